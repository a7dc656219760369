package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ecstore/internal/config"
	"ecstore/internal/metrics"
	"ecstore/internal/quorum"
	"ecstore/internal/repair"
	"ecstore/internal/resolve"
	"ecstore/internal/ring"
	"ecstore/internal/storage"
	"ecstore/internal/tag"
)

var (
	// ErrEmptyKey is returned for reads without a key.
	ErrEmptyKey = errors.New("key cannot be empty")
	// ErrReadQuorum is returned when fewer than R replicas answered.
	ErrReadQuorum = errors.New("read quorum not met")
)

// ReadOutcome is the result of a coordinated read.
type ReadOutcome struct {
	Result resolve.Result
	// Responses is the number of replicas that answered.
	Responses int
	// Dropped is the number of answers discarded as corrupt.
	Dropped int
	// WriteBack is set when a write-back round ran.
	WriteBack *quorum.WriteResult
}

// Reader coordinates reads across the replicas of a key.
type Reader struct {
	cfg         config.Config
	self        ring.Node
	ring        *ring.Ring
	store       storage.Store
	clients     *ClientManager
	coordinator *resolve.Coordinator
	repairer    *repair.Repairer
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewReader creates a reader. Replicas whose address equals self's are
// read from store directly.
func NewReader(cfg config.Config, self ring.Node, rng *ring.Ring, store storage.Store,
	clients *ClientManager, m *metrics.Metrics, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	r := &Reader{
		cfg:     cfg,
		self:    self,
		ring:    rng,
		store:   store,
		clients: clients,
		coordinator: resolve.NewCoordinator(
			resolve.WithLogger(logger),
			resolve.WithDigestPolicy(cfg.DigestPolicy),
		),
		metrics: m,
		logger:  logger,
	}
	r.repairer = repair.NewRepairer(r.advanceTag, logger)
	return r
}

// replicaAddrs returns the addresses of key's replica set.
func (r *Reader) replicaAddrs(key string) []string {
	nodes := r.ring.ReplicaSet(key, r.cfg.ReplicationFactor)
	addrs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		addrs = append(addrs, n.Addr)
	}
	return addrs
}

func (r *Reader) readRow(ctx context.Context, addr, key string) (*storage.Row, error) {
	if addr == r.self.Addr {
		return r.store.Get(key)
	}
	return r.clients.Read(ctx, addr, key)
}

// advanceTag is the write-back TagWriter. Rejected requests are not retried.
func (r *Reader) advanceTag(ctx context.Context, addr, key string, t tag.Tag) error {
	if addr == r.self.Addr {
		return r.store.AdvanceTag(key, t)
	}
	err := r.clients.AdvanceTag(ctx, addr, key, t)
	if status.Code(err) == codes.InvalidArgument {
		return backoff.Permanent(err)
	}
	return err
}

// readRows polls key's replicas and waits for the read quorum.
func (r *Reader) readRows(ctx context.Context, key string) ([]string, quorum.ReadResult[*storage.Row], error) {
	if key == "" {
		return nil, quorum.ReadResult[*storage.Row]{}, ErrEmptyKey
	}

	replicas := r.replicaAddrs(key)
	res := quorum.DoRead[*storage.Row](ctx, replicas, r.cfg.ReadQuorum, func(ctx context.Context, addr string) (*storage.Row, error) {
		return r.readRow(ctx, addr, key)
	})
	if failed := len(replicas) - res.Responses; failed > 0 {
		r.metrics.ReplicaReadErrors.Add(float64(failed))
	}
	if !res.Success {
		r.logger.Warn("read quorum not met", zap.String("key", key), zap.String("error", res.ErrorMessage))
		return replicas, res, fmt.Errorf("%w: %s", ErrReadQuorum, res.ErrorMessage)
	}
	return replicas, res, nil
}

// Get reads an erasure-coded key: it collects the replicas' rows, resolves
// the quorum and decode tags, and writes the decode tag back when enabled.
func (r *Reader) Get(ctx context.Context, key string) (ReadOutcome, error) {
	replicas, res, err := r.readRows(ctx, key)
	if err != nil {
		return ReadOutcome{Responses: res.Responses}, err
	}

	id := resolve.Identity{Key: key, Table: r.cfg.Table, Keyspace: r.cfg.Keyspace}
	observations := make([]resolve.Observation, 0, len(res.Values))
	dropped := 0
	for _, v := range res.Values {
		obs, err := rowToObservation(v.Replica, v.Value, id)
		if err != nil {
			r.logger.Warn("dropping corrupt replica row",
				zap.String("replica", v.Replica), zap.String("key", key), zap.Error(err))
			r.metrics.CorruptRows.Inc()
			dropped++
			continue
		}
		observations = append(observations, obs)
	}

	req, err := resolve.NewRequest(resolve.ReadCommand{
		Kind:     resolve.SingleKey,
		Keyspace: r.cfg.Keyspace,
		Table:    r.cfg.Table,
		Key:      key,
	}, observations, r.cfg.Thresholds())
	if err != nil {
		return ReadOutcome{Responses: res.Responses, Dropped: dropped}, err
	}

	result := r.coordinator.Resolve(req)
	slots := 0
	for _, obs := range observations {
		slots += len(obs.Slots)
	}
	r.metrics.ResolvedFragments.Observe(float64(slots))
	r.metrics.Resolutions.WithLabelValues(result.Outcome()).Inc()

	out := ReadOutcome{Result: result, Responses: res.Responses, Dropped: dropped}
	if r.cfg.WriteBack && repair.NeedsWriteBack(result) {
		wb := r.repairer.WriteBack(ctx, key, result.DecodeTag, replicas, r.cfg.WriteQuorum)
		label := "success"
		if !wb.Success {
			label = "failure"
		}
		r.metrics.WriteBacks.WithLabelValues(label).Inc()
		out.WriteBack = &wb
	}

	r.logger.Debug("read resolved",
		zap.String("key", key),
		zap.String("outcome", result.Outcome()),
		zap.Stringer("quorum_tag", result.QuorumTag),
		zap.Stringer("decode_tag", result.DecodeTag),
		zap.Int("responses", res.Responses))
	return out, nil
}

// GetReplicated reads a key stored as one full value on every replica and
// returns the answer with the largest tag. The bool is false when no
// replica holds a value.
func (r *Reader) GetReplicated(ctx context.Context, key string) (ReplicatedValue, bool, error) {
	_, res, err := r.readRows(ctx, key)
	if err != nil {
		return ReplicatedValue{}, false, err
	}

	candidates := make([]ReplicatedValue, 0, len(res.Values))
	for _, v := range res.Values {
		rv, err := rowToReplicatedValue(v.Replica, v.Value)
		if err != nil {
			r.logger.Warn("dropping corrupt replica row",
				zap.String("replica", v.Replica), zap.String("key", key), zap.Error(err))
			r.metrics.CorruptRows.Inc()
			continue
		}
		candidates = append(candidates, rv)
	}

	chosen, ok := resolve.SelectMax(candidates)
	return chosen, ok, nil
}
