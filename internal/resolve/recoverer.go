package resolve

import "ecstore/internal/tag"

// Recoverer groups fragment payloads by tag and remembers the largest tag
// whose group reached k fragments, together with the first k payloads.
// Groups are append-only.
type Recoverer struct {
	k         int
	groups    map[tag.Tag][][]byte
	best      tag.Tag
	fragments [][]byte
}

// NewRecoverer creates a recoverer for threshold k (k >= 1).
func NewRecoverer(k int) *Recoverer {
	return &Recoverer{
		k:      k,
		groups: make(map[tag.Tag][][]byte),
		best:   tag.Sentinel,
	}
}

// Add appends one fragment payload for t.
func (r *Recoverer) Add(t tag.Tag, payload []byte) {
	group := append(r.groups[t], payload)
	r.groups[t] = group

	if len(group) == r.k && !t.IsSentinel() && t.Greater(r.best) {
		snapshot := make([][]byte, len(group))
		copy(snapshot, group)
		r.best = t
		r.fragments = snapshot
	}
}

// Size returns the number of fragments collected for t.
func (r *Recoverer) Size(t tag.Tag) int {
	return len(r.groups[t])
}

// Best returns the largest decode-ready tag and the fragments captured when
// it became ready. It returns tag.Sentinel and nil when no tag is ready.
func (r *Recoverer) Best() (tag.Tag, [][]byte) {
	return r.best, r.fragments
}
