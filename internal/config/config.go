package config

import (
	"errors"
	"fmt"
	"strings"

	"ecstore/internal/resolve"
	"ecstore/internal/ring"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Peer represents a peer node in the cluster.
type Peer struct {
	ID   string
	Addr string
}

// Config holds the node configuration.
type Config struct {
	NodeID      string
	ListenAddr  string
	MetricsAddr string
	Peers       []Peer
	VNodes      int

	// ReplicationFactor is the number of replicas polled per key.
	ReplicationFactor int
	// ReadQuorum is the number of replica answers a read waits for.
	ReadQuorum int
	// WriteQuorum is the number of acks a write-back waits for.
	WriteQuorum int

	IntersectionQuorum int
	RecoveryThreshold  int
	DigestPolicy       resolve.DigestPolicy
	WriteBack          bool

	// DataDir selects the bbolt backend; empty means in-memory.
	DataDir  string
	Keyspace string
	Table    string

	LogLevel    string
	Development bool
}

// Default returns a configuration for a single local node.
func Default() Config {
	return Config{
		NodeID:             "n1",
		ListenAddr:         "127.0.0.1:50051",
		VNodes:             128,
		ReplicationFactor:  3,
		ReadQuorum:         2,
		WriteQuorum:        2,
		IntersectionQuorum: 2,
		RecoveryThreshold:  2,
		DigestPolicy:       resolve.RequireDigestMatch,
		WriteBack:          true,
		Keyspace:           "ecstore",
		Table:              "values",
		LogLevel:           "info",
	}
}

// Thresholds returns the resolution thresholds.
func (c *Config) Thresholds() resolve.Thresholds {
	return resolve.Thresholds{
		IntersectionQuorum: c.IntersectionQuorum,
		RecoveryThreshold:  c.RecoveryThreshold,
	}
}

// Validate checks the configuration for values the node cannot run with.
func (c *Config) Validate() error {
	if c.NodeID == "" || c.ListenAddr == "" {
		return fmt.Errorf("%w: node ID and listen address are required", ErrInvalidConfig)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.ReplicationFactor <= 0 {
		return fmt.Errorf("%w: replication factor must be positive", ErrInvalidConfig)
	}
	if c.ReadQuorum > c.ReplicationFactor || c.WriteQuorum > c.ReplicationFactor {
		return fmt.Errorf("%w: R=%d W=%d exceed replication factor %d",
			ErrInvalidConfig, c.ReadQuorum, c.WriteQuorum, c.ReplicationFactor)
	}
	if c.Keyspace == "" || c.Table == "" {
		return fmt.Errorf("%w: keyspace and table are required", ErrInvalidConfig)
	}
	return nil
}

// ParsePeers parses a comma-separated list of peers in the format:
// "id1=addr1,id2=addr2,id3=addr3"
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, addr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		id = strings.TrimSpace(id)
		addr = strings.TrimSpace(addr)
		if id == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		peers = append(peers, Peer{ID: id, Addr: addr})
	}

	return peers, nil
}

// BuildRingNodes converts config peers + self into ring.Node slice.
func (c *Config) BuildRingNodes() []ring.Node {
	nodes := make([]ring.Node, 0, len(c.Peers)+1)
	nodes = append(nodes, ring.Node{ID: c.NodeID, Addr: c.ListenAddr})

	for _, peer := range c.Peers {
		// Skip self if it appears in peers list
		if peer.ID != c.NodeID {
			nodes = append(nodes, ring.Node{ID: peer.ID, Addr: peer.Addr})
		}
	}
	return nodes
}
