package tag

import (
	"testing"
)

func sampleTags() []Tag {
	tags := []Tag{Sentinel}
	for w := int64(0); w < 4; w++ {
		for lt := int64(0); lt < 4; lt++ {
			tags = append(tags, New(w, lt))
		}
	}
	return tags
}

// TestCompare_Property_Antisymmetric tests that Compare(a,b) == -Compare(b,a)
func TestCompare_Property_Antisymmetric(t *testing.T) {
	tags := sampleTags()
	for _, a := range tags {
		for _, b := range tags {
			if Compare(a, b) != -Compare(b, a) {
				t.Errorf("Compare not antisymmetric for %v, %v", a, b)
			}
		}
	}
}

// TestCompare_Property_Trichotomy tests that distinct tags are never equal in order
func TestCompare_Property_Trichotomy(t *testing.T) {
	tags := sampleTags()
	for _, a := range tags {
		for _, b := range tags {
			c := Compare(a, b)
			if a == b && c != 0 {
				t.Errorf("Equal tags %v compared as %d", a, c)
			}
			if a != b && c == 0 {
				t.Errorf("Distinct tags %v and %v compared equal", a, b)
			}
		}
	}
}

// TestCompare_Property_Transitive tests that a<b and b<c imply a<c
func TestCompare_Property_Transitive(t *testing.T) {
	tags := sampleTags()
	for _, a := range tags {
		for _, b := range tags {
			for _, c := range tags {
				if a.Less(b) && b.Less(c) && !a.Less(c) {
					t.Errorf("Transitivity violated: %v < %v < %v", a, b, c)
				}
			}
		}
	}
}

// TestCompare_Property_SentinelMinimal tests that the sentinel is below every real tag
func TestCompare_Property_SentinelMinimal(t *testing.T) {
	for _, tg := range sampleTags() {
		if tg.IsSentinel() {
			continue
		}
		if !Sentinel.Less(tg) {
			t.Errorf("Sentinel should order before %v", tg)
		}
	}
}
