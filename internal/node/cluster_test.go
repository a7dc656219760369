package node

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"ecstore/internal/config"
	"ecstore/internal/storage"
)

// testCluster is a set of nodes talking to each other over in-memory
// listeners.
type testCluster struct {
	nodes  []*Node
	addrs  []string
	stores []*storage.InMemoryStore
}

// newTestCluster starts size nodes. mutate, if not nil, adjusts each node's
// configuration before it is created.
func newTestCluster(t *testing.T, size int, mutate func(*config.Config)) *testCluster {
	t.Helper()

	listeners := make(map[string]*bufconn.Listener, size)
	peers := make([]config.Peer, 0, size)
	c := &testCluster{}
	for i := 1; i <= size; i++ {
		addr := fmt.Sprintf("bufnet-%d", i)
		listeners[addr] = bufconn.Listen(1 << 20)
		peers = append(peers, config.Peer{ID: fmt.Sprintf("n%d", i), Addr: addr})
		c.addrs = append(c.addrs, addr)
	}

	dialer := grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
		lis, ok := listeners[addr]
		if !ok {
			return nil, fmt.Errorf("unknown address %s", addr)
		}
		return lis.DialContext(ctx)
	})

	for _, p := range peers {
		cfg := config.Default()
		cfg.NodeID = p.ID
		cfg.ListenAddr = p.Addr
		cfg.Peers = peers
		cfg.ReplicationFactor = size
		cfg.ReadQuorum = min(cfg.ReadQuorum, size)
		cfg.WriteQuorum = min(cfg.WriteQuorum, size)
		if mutate != nil {
			mutate(&cfg)
		}
		require.NoError(t, cfg.Validate())

		store := storage.NewInMemoryStore()
		n := NewNode(cfg, store, WithDialOptions(dialer), WithRegisterer(prometheus.NewRegistry()))
		lis := listeners[p.Addr]
		go func() {
			_ = n.Serve(lis)
		}()
		t.Cleanup(func() {
			_ = n.Stop()
		})

		c.nodes = append(c.nodes, n)
		c.stores = append(c.stores, store)
	}
	return c
}
