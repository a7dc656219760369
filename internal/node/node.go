package node

import (
	"errors"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"ecstore/internal/config"
	"ecstore/internal/metrics"
	"ecstore/internal/ring"
	"ecstore/internal/storage"
)

// Node represents a single replica in the cluster. It serves its store
// over gRPC and coordinates reads for clients.
type Node struct {
	cfg        config.Config
	logger     *zap.Logger
	store      storage.Store
	ring       *ring.Ring
	selfNode   ring.Node
	clientMgr  *ClientManager
	reader     *Reader
	grpcServer *grpc.Server
}

type options struct {
	logger   *zap.Logger
	reg      prometheus.Registerer
	dialOpts []grpc.DialOption
}

// Option configures a Node.
type Option func(*options)

// WithLogger sets the node's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegisterer registers the node's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// WithDialOptions adds dial options used for peer connections.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) {
		o.dialOpts = append(o.dialOpts, opts...)
	}
}

// NewNode creates a node serving store. The node takes ownership of store
// and closes it on Stop.
func NewNode(cfg config.Config, store storage.Store, opts ...Option) *Node {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With(zap.String("node", cfg.NodeID))

	rng := ring.NewRing(cfg.VNodes)
	rng.SetNodes(cfg.BuildRingNodes())
	selfNode := ring.Node{ID: cfg.NodeID, Addr: cfg.ListenAddr}
	clientMgr := NewClientManager(logger, o.dialOpts...)

	n := &Node{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		ring:       rng,
		selfNode:   selfNode,
		clientMgr:  clientMgr,
		reader:     NewReader(cfg, selfNode, rng, store, clientMgr, metrics.New(o.reg), logger),
		grpcServer: grpc.NewServer(),
	}
	RegisterReplicaServer(n.grpcServer, NewReplicaServer(store, logger))
	return n
}

// Reader returns the node's read coordinator.
func (n *Node) Reader() *Reader {
	return n.reader
}

// Clients returns the node's peer client manager.
func (n *Node) Clients() *ClientManager {
	return n.clientMgr
}

// Start listens on the configured address and serves until Stop.
func (n *Node) Start() error {
	lis, err := net.Listen("tcp", n.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", n.cfg.ListenAddr, err)
	}
	return n.Serve(lis)
}

// Serve serves the replica service on lis until Stop.
func (n *Node) Serve(lis net.Listener) error {
	n.logger.Info("starting node",
		zap.String("addr", lis.Addr().String()),
		zap.Int("ring_nodes", len(n.ring.Nodes())),
		zap.Int("rf", n.cfg.ReplicationFactor),
		zap.Int("r", n.cfg.ReadQuorum),
		zap.Int("w", n.cfg.WriteQuorum),
		zap.Stringer("digest_policy", n.cfg.DigestPolicy))

	if err := n.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the server and releases the node's resources.
func (n *Node) Stop() error {
	n.logger.Info("stopping node")
	n.grpcServer.GracefulStop()

	return errors.Join(n.clientMgr.Close(), n.store.Close())
}
