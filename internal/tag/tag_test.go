package tag

import (
	"errors"
	"testing"
)

func TestCompare_TimeFirst(t *testing.T) {
	tests := []struct {
		name string
		a, b Tag
		want int
	}{
		{"earlier time", New(9, 3), New(1, 5), -1},
		{"later time", New(1, 7), New(2, 5), 1},
		{"same time, smaller writer", New(1, 5), New(2, 5), -1},
		{"same time, larger writer", New(3, 5), New(2, 5), 1},
		{"equal", New(2, 5), New(2, 5), 0},
		{"sentinel before real", Sentinel, New(0, 0), -1},
		{"real after sentinel", New(0, 0), Sentinel, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTag_IsSentinel(t *testing.T) {
	if !Sentinel.IsSentinel() {
		t.Error("Sentinel should be a sentinel")
	}
	if !New(4, -7).IsSentinel() {
		t.Error("Negative logical time should be a sentinel")
	}
	if New(0, 0).IsSentinel() {
		t.Error("Logical time 0 is a real tag")
	}
}

func TestMax(t *testing.T) {
	a := New(1, 5)
	b := New(2, 7)
	if got := Max(a, b); got != b {
		t.Errorf("Max(%v, %v) = %v, want %v", a, b, got, b)
	}
	if got := Max(b, a); got != b {
		t.Errorf("Max(%v, %v) = %v, want %v", b, a, got, b)
	}
	if got := Max(Sentinel, a); got != a {
		t.Errorf("Max(sentinel, %v) = %v", a, got)
	}
}

func TestTag_String(t *testing.T) {
	if got := New(2, 7).String(); got != "(2,7)" {
		t.Errorf("Expected (2,7), got %s", got)
	}
	if got := Sentinel.String(); got != "<none>" {
		t.Errorf("Expected <none>, got %s", got)
	}
}

func TestEncodeDecode(t *testing.T) {
	tags := []Tag{
		New(1, 5),
		New(0, 0),
		Sentinel,
		New(-3, 12),
		New(1<<40, 1<<50),
	}

	for _, want := range tags {
		got, err := Decode(Encode(want))
		if err != nil {
			t.Fatalf("Decode(Encode(%v)) failed: %v", want, err)
		}
		if got != want {
			t.Errorf("Round trip of %v gave %v", want, got)
		}
	}
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	// field 3, varint 1 appended after a valid encoding
	b := append(Encode(New(4, 9)), 0x18, 0x01)

	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != New(4, 9) {
		t.Errorf("Expected (4,9), got %v", got)
	}
}

func TestDecode_Truncated(t *testing.T) {
	b := Encode(New(1, 300))
	_, err := Decode(b[:len(b)-1])
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}
