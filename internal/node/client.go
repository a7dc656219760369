package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ecstore/internal/storage"
	"ecstore/internal/tag"
)

const (
	// breakerTimeout is how long an open breaker rejects calls before
	// letting a probe through.
	breakerTimeout = 5 * time.Second
	// breakerFailures is the number of consecutive failures that opens it.
	breakerFailures = 5
)

// peer is a cached connection to one replica.
type peer struct {
	conn *grpc.ClientConn
	cb   *gobreaker.CircuitBreaker
}

// ClientManager manages gRPC connections to peer replicas. Every call to a
// peer goes through that peer's circuit breaker.
type ClientManager struct {
	mu       sync.RWMutex
	peers    map[string]*peer
	dialOpts []grpc.DialOption
	logger   *zap.Logger
}

// NewClientManager creates a client manager. Extra dial options are
// appended to the defaults.
func NewClientManager(logger *zap.Logger, opts ...grpc.DialOption) *ClientManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	dialOpts = append(dialOpts, opts...)

	return &ClientManager{
		peers:    make(map[string]*peer),
		dialOpts: dialOpts,
		logger:   logger,
	}
}

// getPeer returns the cached connection to addr, creating it if needed.
func (cm *ClientManager) getPeer(addr string) (*peer, error) {
	cm.mu.RLock()
	p, exists := cm.peers[addr]
	cm.mu.RUnlock()

	if exists {
		return p, nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Double-check after acquiring write lock
	if p, exists := cm.peers[addr]; exists {
		return p, nil
	}

	conn, err := grpc.NewClient("passthrough:///"+addr, cm.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	p = &peer{
		conn: conn,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    addr,
			Timeout: breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				cm.logger.Info("circuit breaker state changed",
					zap.String("peer", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
			IsSuccessful: func(err error) bool {
				// Rejected requests say nothing about the peer's health.
				return err == nil || status.Code(err) == codes.InvalidArgument
			},
		}),
	}
	cm.peers[addr] = p
	return p, nil
}

// invoke calls method on addr through the peer's breaker.
func (cm *ClientManager) invoke(ctx context.Context, addr, method string, in, out any) error {
	p, err := cm.getPeer(addr)
	if err != nil {
		return err
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.conn.Invoke(ctx, method, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return status.Errorf(codes.Unavailable, "%s: %v", addr, err)
	}
	return err
}

// Read fetches the row for key from the replica at addr.
func (cm *ClientManager) Read(ctx context.Context, addr, key string) (*storage.Row, error) {
	out := new(wrapperspb.BytesValue)
	if err := cm.invoke(ctx, addr, methodRead, wrapperspb.String(key), out); err != nil {
		return nil, err
	}
	return storage.UnmarshalRow(out.GetValue())
}

// PutFragment stores one fragment on the replica at addr.
func (cm *ClientManager) PutFragment(ctx context.Context, addr, key string, index int, t tag.Tag, payload []byte) error {
	body := marshalMutation(mutation{Key: key, Index: index, Tag: t, Payload: payload})
	return cm.invoke(ctx, addr, methodPutFragment, wrapperspb.Bytes(body), new(emptypb.Empty))
}

// AdvanceTag raises the metadata tag of key on the replica at addr.
func (cm *ClientManager) AdvanceTag(ctx context.Context, addr, key string, t tag.Tag) error {
	body := marshalMutation(mutation{Key: key, Tag: t})
	return cm.invoke(ctx, addr, methodAdvanceTag, wrapperspb.Bytes(body), new(emptypb.Empty))
}

// PutValue stores a full value on the replica at addr.
func (cm *ClientManager) PutValue(ctx context.Context, addr, key string, t tag.Tag, value []byte) error {
	body := marshalMutation(mutation{Key: key, Tag: t, Payload: value})
	return cm.invoke(ctx, addr, methodPutValue, wrapperspb.Bytes(body), new(emptypb.Empty))
}

// Close closes all peer connections.
func (cm *ClientManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var errs []error
	for addr, p := range cm.peers {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", addr, err))
		}
	}
	cm.peers = make(map[string]*peer)
	return errors.Join(errs...)
}
