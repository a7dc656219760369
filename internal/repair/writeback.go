package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"ecstore/internal/quorum"
	"ecstore/internal/resolve"
	"ecstore/internal/tag"
)

// NeedsWriteBack reports whether a successful read must propagate its
// decode tag. When the decoded tag is itself the certified one, a quorum
// already holds it and nothing needs to be written.
func NeedsWriteBack(result resolve.Result) bool {
	return result.Success && result.DecodeTag != result.QuorumTag
}

// TagWriter advances the metadata tag of key on one replica. Errors
// wrapped with backoff.Permanent are not retried.
type TagWriter func(ctx context.Context, replicaAddr, key string, t tag.Tag) error

// Repairer performs write-back rounds.
type Repairer struct {
	write          TagWriter
	initialBackoff time.Duration
	logger         *zap.Logger
}

// NewRepairer creates a repairer writing through write.
func NewRepairer(write TagWriter, logger *zap.Logger) *Repairer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repairer{
		write:          write,
		initialBackoff: 50 * time.Millisecond,
		logger:         logger,
	}
}

// WriteBack advances key's metadata tag to t on the replicas and waits for
// requiredW acknowledgements. Each replica write is retried with
// exponential backoff until it succeeds or the per-replica deadline passes.
func (r *Repairer) WriteBack(ctx context.Context, key string, t tag.Tag, replicas []string, requiredW int) quorum.WriteResult {
	writeFn := func(ctx context.Context, replicaAddr string) (bool, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = r.initialBackoff
		b.MaxElapsedTime = 0 // bounded by ctx

		attempts := 0
		err := backoff.Retry(func() error {
			attempts++
			return r.write(ctx, replicaAddr, key, t)
		}, backoff.WithContext(b, ctx))
		if err != nil {
			r.logger.Debug("write-back to replica failed",
				zap.String("replica", replicaAddr),
				zap.String("key", key),
				zap.Int("attempts", attempts),
				zap.Error(err))
			return false, fmt.Errorf("write-back after %d attempts: %w", attempts, err)
		}
		return true, nil
	}

	result := quorum.DoWrite(ctx, replicas, requiredW, writeFn)
	if result.Success {
		r.logger.Debug("write-back completed",
			zap.String("key", key),
			zap.Stringer("tag", t),
			zap.Int("acks", result.Acks))
	} else {
		r.logger.Warn("write-back did not reach quorum",
			zap.String("key", key),
			zap.Stringer("tag", t),
			zap.String("error", result.ErrorMessage))
	}
	return result
}
