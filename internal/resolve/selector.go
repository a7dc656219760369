package resolve

import "ecstore/internal/tag"

// Versioned is anything carrying a single write tag, such as a replica
// response for a key stored as one full value.
type Versioned interface {
	Tag() tag.Tag
}

// SelectMax returns the element with the largest tag. On equal tags the
// first one wins. It returns false when no element carries a real tag.
func SelectMax[T Versioned](candidates []T) (T, bool) {
	var chosen T
	best := tag.Sentinel
	found := false

	for _, c := range candidates {
		if t := c.Tag(); !t.IsSentinel() && t.Greater(best) {
			best = t
			chosen = c
			found = true
		}
	}
	return chosen, found
}
