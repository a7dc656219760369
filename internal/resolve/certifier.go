package resolve

import "ecstore/internal/tag"

// Certifier finds the largest tag observed at least k times.
//
// Counts only ever grow by one, so a tag qualifies exactly when its count
// becomes k. The type offers no way to decrement or remove a count; that
// is what makes the "equals k" check equivalent to "reached k".
type Certifier struct {
	k      int
	counts map[tag.Tag]int
	best   tag.Tag
}

// NewCertifier creates a certifier for threshold k (k >= 1).
func NewCertifier(k int) *Certifier {
	return &Certifier{
		k:      k,
		counts: make(map[tag.Tag]int),
		best:   tag.Sentinel,
	}
}

// Observe records one occurrence of t.
func (c *Certifier) Observe(t tag.Tag) {
	c.counts[t]++
	if c.counts[t] == c.k && !t.IsSentinel() && t.Greater(c.best) {
		c.best = t
	}
}

// Count returns the number of occurrences recorded for t.
func (c *Certifier) Count(t tag.Tag) int {
	return c.counts[t]
}

// Best returns the largest certified tag, or tag.Sentinel if none.
func (c *Certifier) Best() tag.Tag {
	return c.best
}
