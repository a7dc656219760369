package resolve

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecstore/internal/tag"
)

func TestRecoverer_SnapshotAtThreshold(t *testing.T) {
	t1 := tag.New(1, 5)
	r := NewRecoverer(2)

	r.Add(t1, []byte("a"))
	best, frags := r.Best()
	assert.Equal(t, tag.Sentinel, best)
	assert.Nil(t, frags)

	r.Add(t1, []byte("b"))
	r.Add(t1, []byte("c"))

	best, frags = r.Best()
	assert.Equal(t, t1, best)
	require.Len(t, frags, 2)
	assert.Equal(t, []byte("a"), frags[0])
	assert.Equal(t, []byte("b"), frags[1])
	assert.Equal(t, 3, r.Size(t1))
}

func TestRecoverer_KeepsLargestReadyTag(t *testing.T) {
	t1 := tag.New(1, 5)
	t2 := tag.New(2, 7)
	r := NewRecoverer(2)

	r.Add(t2, []byte("x1"))
	r.Add(t1, []byte("y1"))
	r.Add(t2, []byte("x2"))
	r.Add(t1, []byte("y2"))

	best, frags := r.Best()
	assert.Equal(t, t2, best)
	assert.Equal(t, [][]byte{[]byte("x1"), []byte("x2")}, frags)
}

func TestRecoverer_KOne(t *testing.T) {
	t1 := tag.New(3, 1)
	r := NewRecoverer(1)
	r.Add(t1, []byte("only"))

	best, frags := r.Best()
	assert.Equal(t, t1, best)
	assert.Equal(t, [][]byte{[]byte("only")}, frags)
}

// TestRecoverer_Property_SnapshotLengthIsK tests the captured group is exactly k long and the largest ready tag
func TestRecoverer_Property_SnapshotLengthIsK(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for round := 0; round < 200; round++ {
		k := 1 + rng.Intn(4)
		r := NewRecoverer(k)
		sizes := make(map[tag.Tag]int)

		for i := rng.Intn(30); i > 0; i-- {
			tg := tag.New(rng.Int63n(2), rng.Int63n(5))
			r.Add(tg, []byte{byte(i)})
			sizes[tg]++
		}

		want := tag.Sentinel
		for tg, n := range sizes {
			if n >= k && tg.Greater(want) {
				want = tg
			}
		}

		best, frags := r.Best()
		require.Equal(t, want, best, "round %d", round)
		if want.IsSentinel() {
			assert.Nil(t, frags)
		} else {
			assert.Len(t, frags, k)
		}
	}
}
