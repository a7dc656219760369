package quorum

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultPerReplicaTimeout is the default timeout for each replica RPC.
	DefaultPerReplicaTimeout = 2 * time.Second
)

// WriteResult represents the result of a quorum write operation.
type WriteResult struct {
	Success      bool
	Acks         int
	Required     int
	Replicas     int
	ErrorMessage string
}

// ReadValue is one replica's answer.
type ReadValue[T any] struct {
	Replica string
	Value   T
}

// ReadResult represents the result of a quorum read operation. Values are
// ordered like the replica list that was polled.
type ReadResult[T any] struct {
	Success      bool
	Responses    int
	Required     int
	Replicas     int
	Values       []ReadValue[T]
	ErrorMessage string
}

// ReplicaWriteFunc is a function that performs a write to a single replica.
// Returns true if successful, false otherwise.
type ReplicaWriteFunc func(ctx context.Context, replicaID string) (bool, error)

// ReplicaReadFunc is a function that performs a read from a single replica.
type ReplicaReadFunc[T any] func(ctx context.Context, replicaID string) (T, error)

// outcome is what one replica call produced.
type outcome[T any] struct {
	done  bool
	ok    bool
	value T
	err   error
}

// fanOut calls fn for every replica in parallel under a per-replica timeout
// and waits for all of them or for ctx. It returns a snapshot of the
// outcomes, indexed like replicas, and whether ctx ended the wait.
func fanOut[T any](ctx context.Context, replicas []string, fn func(ctx context.Context, replicaID string) (T, bool, error)) ([]outcome[T], bool) {
	var (
		mu       sync.Mutex
		outcomes = make([]outcome[T], len(replicas))
		wg       sync.WaitGroup
	)

	replicaCtx, cancel := context.WithTimeout(ctx, DefaultPerReplicaTimeout)
	defer cancel()

	for i, replicaID := range replicas {
		wg.Add(1)
		go func(idx int, rid string) {
			defer wg.Done()

			value, ok, err := fn(replicaCtx, rid)
			mu.Lock()
			defer mu.Unlock()
			outcomes[idx] = outcome[T]{done: true, ok: ok, value: value, err: err}
		}(i, replicaID)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	cancelled := false
	select {
	case <-done:
	case <-ctx.Done():
		cancelled = true
	}

	mu.Lock()
	defer mu.Unlock()
	snapshot := make([]outcome[T], len(outcomes))
	copy(snapshot, outcomes)
	return snapshot, cancelled
}

// validate normalises the required count and checks it against the replica count.
func validate(replicas []string, required int, label string) (int, string) {
	if len(replicas) == 0 {
		return 0, "no replicas provided"
	}
	if required <= 0 {
		required = (len(replicas) / 2) + 1 // default: majority
	}
	if required > len(replicas) {
		return 0, fmt.Sprintf("required %s=%d exceeds replica count=%d", label, required, len(replicas))
	}
	return required, ""
}

// DoWrite performs a quorum write operation.
// It fans out to all replicas in parallel and succeeds when W acks are received.
func DoWrite(ctx context.Context, replicas []string, requiredW int, writeFn ReplicaWriteFunc) WriteResult {
	requiredW, msg := validate(replicas, requiredW, "W")
	if msg != "" {
		return WriteResult{Success: false, ErrorMessage: msg}
	}

	outcomes, cancelled := fanOut(ctx, replicas, func(ctx context.Context, rid string) (struct{}, bool, error) {
		ok, err := writeFn(ctx, rid)
		return struct{}{}, ok, err
	})

	acks := 0
	var errors []error
	for i, o := range outcomes {
		if o.ok {
			acks++
		} else if o.err != nil {
			errors = append(errors, fmt.Errorf("replica %s: %w", replicas[i], o.err))
		}
	}

	if acks >= requiredW {
		return WriteResult{
			Success:  true,
			Acks:     acks,
			Required: requiredW,
			Replicas: len(replicas),
		}
	}

	errMsg := fmt.Sprintf("quorum not met: acks=%d required=%d replicas=%d", acks, requiredW, len(replicas))
	if cancelled {
		errMsg = fmt.Sprintf("context cancelled: %v: %s", ctx.Err(), errMsg)
	}
	if len(errors) > 0 {
		errMsg += fmt.Sprintf(" errors=%v", errors[:min(3, len(errors))])
	}

	return WriteResult{
		Success:      false,
		Acks:         acks,
		Required:     requiredW,
		Replicas:     len(replicas),
		ErrorMessage: errMsg,
	}
}

// DoRead performs a quorum read operation.
// It fans out to all replicas in parallel and succeeds when R responses are
// received, returning every response that arrived before the deadline.
func DoRead[T any](ctx context.Context, replicas []string, requiredR int, readFn ReplicaReadFunc[T]) ReadResult[T] {
	requiredR, msg := validate(replicas, requiredR, "R")
	if msg != "" {
		return ReadResult[T]{Success: false, ErrorMessage: msg}
	}

	outcomes, cancelled := fanOut(ctx, replicas, func(ctx context.Context, rid string) (T, bool, error) {
		value, err := readFn(ctx, rid)
		return value, err == nil, err
	})

	var (
		values []ReadValue[T]
		errors []error
	)
	for i, o := range outcomes {
		if o.ok {
			values = append(values, ReadValue[T]{Replica: replicas[i], Value: o.value})
		} else if o.err != nil {
			errors = append(errors, fmt.Errorf("replica %s: %w", replicas[i], o.err))
		}
	}

	if len(values) >= requiredR {
		return ReadResult[T]{
			Success:   true,
			Responses: len(values),
			Required:  requiredR,
			Replicas:  len(replicas),
			Values:    values,
		}
	}

	errMsg := fmt.Sprintf("quorum not met: responses=%d required=%d replicas=%d", len(values), requiredR, len(replicas))
	if cancelled {
		errMsg = fmt.Sprintf("context cancelled: %v: %s", ctx.Err(), errMsg)
	}
	if len(errors) > 0 {
		errMsg += fmt.Sprintf(" errors=%v", errors[:min(3, len(errors))])
	}

	return ReadResult[T]{
		Success:      false,
		Responses:    len(values),
		Required:     requiredR,
		Replicas:     len(replicas),
		Values:       values,
		ErrorMessage: errMsg,
	}
}
