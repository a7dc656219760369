package it

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ecstore/internal/config"
	"ecstore/internal/node"
	"ecstore/internal/resolve"
	"ecstore/internal/ring"
)

const basePort = 60051

// Cluster represents a test cluster of ecstored processes.
type Cluster struct {
	nodes      []*Node
	logDir     string
	binaryPath string
	clients    *node.ClientManager
	mu         sync.Mutex
}

// Node represents a single node in the test cluster
type Node struct {
	ID      string
	Addr    string
	Port    int
	cmd     *exec.Cmd
	logFile *os.File
}

// NewCluster creates a new test cluster harness
func NewCluster(binaryPath string) (*Cluster, error) {
	logDir := filepath.Join(".local", "it-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &Cluster{
		nodes:      make([]*Node, 0),
		logDir:     logDir,
		binaryPath: binaryPath,
		clients:    node.NewClientManager(nil),
	}, nil
}

func peerList(size int) string {
	peers := make([]string, 0, size)
	for i := 1; i <= size; i++ {
		peers = append(peers, fmt.Sprintf("n%d=127.0.0.1:%d", i, basePort+i-1))
	}
	return strings.Join(peers, ",")
}

// StartNode starts a single node. Every node knows the full peer list of a
// cluster of the given size.
func (c *Cluster) StartNode(ctx context.Context, index, size int, extraArgs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodeID := fmt.Sprintf("n%d", index)
	port := basePort + index - 1
	n := &Node{
		ID:   nodeID,
		Addr: fmt.Sprintf("127.0.0.1:%d", port),
		Port: port,
	}
	if err := c.launch(ctx, n, size, extraArgs); err != nil {
		return err
	}
	c.nodes = append(c.nodes, n)

	if err := c.waitForReady(ctx, n, 10*time.Second); err != nil {
		n.Stop()
		return fmt.Errorf("node %s failed to become ready: %w", nodeID, err)
	}
	return nil
}

func (c *Cluster) launch(ctx context.Context, n *Node, size int, extraArgs []string) error {
	logPath := filepath.Join(c.logDir, fmt.Sprintf("%s.log", n.ID))
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	args := []string{
		"--node-id", n.ID,
		"--listen", n.Addr,
		"--peers", peerList(size),
		"--rf", fmt.Sprintf("%d", size),
		"--r", "2",
		"--w", "2",
		"--vnodes", "128",
		"--log-level", "debug",
	}
	cmd := exec.CommandContext(ctx, c.binaryPath, append(args, extraArgs...)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start node %s: %w", n.ID, err)
	}
	n.cmd = cmd
	n.logFile = logFile
	return nil
}

// waitForReady polls the node with reads until it answers.
func (c *Cluster) waitForReady(ctx context.Context, n *Node, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for node %s to be ready", n.ID)
			}

			readCtx, cancel := context.WithTimeout(ctx, time.Second)
			_, err := c.clients.Read(readCtx, n.Addr, "__ready")
			cancel()

			if err == nil {
				return nil
			}
		}
	}
}

// StartCluster starts size nodes with default settings.
func (c *Cluster) StartCluster(ctx context.Context, size int, extraArgs ...string) error {
	if _, err := os.Stat(c.binaryPath); os.IsNotExist(err) {
		return fmt.Errorf("binary not found at %s, build it first with 'go build -o ecstored ./cmd/ecstored'", c.binaryPath)
	}

	for i := 1; i <= size; i++ {
		if err := c.StartNode(ctx, i, size, extraArgs...); err != nil {
			c.Stop()
			return err
		}
	}
	return nil
}

// Reader returns a read coordinator that polls the cluster from outside.
// It has no local replica; every read goes over gRPC.
func (c *Cluster) Reader(policy resolve.DigestPolicy) *node.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := config.Default()
	cfg.ReplicationFactor = len(c.nodes)
	cfg.DigestPolicy = policy

	rng := ring.NewRing(cfg.VNodes)
	nodes := make([]ring.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		nodes = append(nodes, ring.Node{ID: n.ID, Addr: n.Addr})
	}
	rng.SetNodes(nodes)

	return node.NewReader(cfg, ring.Node{}, rng, nil, c.clients, nil, nil)
}

// Clients returns the harness's client manager.
func (c *Cluster) Clients() *node.ClientManager {
	return c.clients
}

// Nodes returns the started nodes.
func (c *Cluster) Nodes() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Node(nil), c.nodes...)
}

// GetNode returns a node by ID
func (c *Cluster) GetNode(nodeID string) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		if n.ID == nodeID {
			return n
		}
	}
	return nil
}

// KillNode kills a specific node
func (c *Cluster) KillNode(nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		if n.ID == nodeID {
			if n.cmd != nil && n.cmd.Process != nil {
				if err := n.cmd.Process.Kill(); err != nil {
					return fmt.Errorf("failed to kill node %s: %w", nodeID, err)
				}
				n.cmd.Wait()
			}
			return nil
		}
	}
	return fmt.Errorf("node %s not found", nodeID)
}

// Stop stops all nodes in the cluster
func (c *Cluster) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		n.Stop()
	}
	c.nodes = nil
	_ = c.clients.Close()
}

// Stop stops a single node
func (n *Node) Stop() {
	if n.cmd != nil && n.cmd.Process != nil {
		n.cmd.Process.Kill()
		n.cmd.Wait()
	}
	if n.logFile != nil {
		n.logFile.Close()
	}
}
