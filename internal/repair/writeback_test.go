package repair

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"

	"ecstore/internal/resolve"
	"ecstore/internal/tag"
)

func TestNeedsWriteBack(t *testing.T) {
	t1 := tag.New(1, 5)
	t2 := tag.New(2, 7)

	tests := []struct {
		name   string
		result resolve.Result
		want   bool
	}{
		{"failed read", resolve.Result{QuorumTag: t1, DecodeTag: tag.Sentinel}, false},
		{"decode tag already certified", resolve.Result{Success: true, QuorumTag: t2, DecodeTag: t2}, false},
		{"decode tag newer than certified", resolve.Result{Success: true, QuorumTag: t1, DecodeTag: t2}, true},
		{"decode tag older than certified", resolve.Result{Success: true, QuorumTag: t2, DecodeTag: t1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsWriteBack(tt.result))
		})
	}
}

// flakyWriter fails the first failures calls per replica, then succeeds.
type flakyWriter struct {
	mu       sync.Mutex
	failures int
	calls    map[string]int
	written  map[string]tag.Tag
}

func newFlakyWriter(failures int) *flakyWriter {
	return &flakyWriter{
		failures: failures,
		calls:    make(map[string]int),
		written:  make(map[string]tag.Tag),
	}
}

func (w *flakyWriter) write(ctx context.Context, addr, key string, t tag.Tag) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls[addr]++
	if w.calls[addr] <= w.failures {
		return errors.New("transient")
	}
	w.written[addr] = t
	return nil
}

func TestWriteBack_RetriesTransientFailures(t *testing.T) {
	w := newFlakyWriter(2)
	r := NewRepairer(w.write, nil)
	r.initialBackoff = time.Millisecond
	t2 := tag.New(2, 7)

	result := r.WriteBack(context.Background(), "k1", t2, []string{"a", "b", "c"}, 3)

	assert.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, 3, result.Acks)
	for _, addr := range []string{"a", "b", "c"} {
		assert.Equal(t, 3, w.calls[addr])
		assert.Equal(t, t2, w.written[addr])
	}
}

func TestWriteBack_PermanentErrorNotRetried(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	write := func(ctx context.Context, addr, key string, t tag.Tag) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return backoff.Permanent(errors.New("invalid argument"))
	}
	r := NewRepairer(write, nil)

	result := r.WriteBack(context.Background(), "k1", tag.New(1, 1), []string{"a", "b"}, 1)

	assert.False(t, result.Success)
	assert.Equal(t, 2, calls)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestWriteBack_QuorumNotMet(t *testing.T) {
	write := func(ctx context.Context, addr, key string, t tag.Tag) error {
		if addr == "a" {
			return nil
		}
		return backoff.Permanent(errors.New("down"))
	}
	r := NewRepairer(write, nil)

	result := r.WriteBack(context.Background(), "k1", tag.New(1, 1), []string{"a", "b", "c"}, 2)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Acks)
}
