package ring

import (
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
)

// Node is a physical replica.
type Node struct {
	ID   string
	Addr string
}

// point is one virtual node position on the ring.
type point struct {
	hash   uint64
	nodeID string
}

// Ring implements consistent hashing with virtual nodes.
type Ring struct {
	mu            sync.RWMutex
	vnodesPerNode int
	points        []point
	nodes         map[string]Node
}

// NewRing creates a new consistent hashing ring.
func NewRing(vnodesPerNode int) *Ring {
	if vnodesPerNode <= 0 {
		vnodesPerNode = 128 // default
	}
	return &Ring{
		vnodesPerNode: vnodesPerNode,
		nodes:         make(map[string]Node),
	}
}

// SetNodes rebuilds the ring with the given nodes. The result depends only
// on the set of node IDs, not on their order.
func (r *Ring) SetNodes(nodes []Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes = make(map[string]Node, len(nodes))
	r.points = make([]point, 0, len(nodes)*r.vnodesPerNode)

	for _, node := range nodes {
		r.nodes[node.ID] = node
	}
	for id := range r.nodes {
		for i := 0; i < r.vnodesPerNode; i++ {
			r.points = append(r.points, point{
				hash:   hashString(id + "#" + strconv.Itoa(i)),
				nodeID: id,
			})
		}
	}

	sort.Slice(r.points, func(i, j int) bool {
		if r.points[i].hash != r.points[j].hash {
			return r.points[i].hash < r.points[j].hash
		}
		return r.points[i].nodeID < r.points[j].nodeID
	})
}

// VNodes returns the number of virtual nodes per physical node.
func (r *Ring) VNodes() int {
	return r.vnodesPerNode
}

// Owner returns the first replica of key.
func (r *Ring) Owner(key string) (Node, bool) {
	set := r.ReplicaSet(key, 1)
	if len(set) == 0 {
		return Node{}, false
	}
	return set[0], true
}

// ReplicaSet returns the first n distinct nodes found walking clockwise
// from key's position. Fewer are returned if the ring has fewer nodes.
func (r *Ring) ReplicaSet(key string, n int) []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 || n <= 0 {
		return []Node{}
	}

	h := hashString(key)
	start := sort.Search(len(r.points), func(i int) bool {
		return r.points[i].hash >= h
	})

	seen := make(map[string]bool)
	result := make([]Node, 0, n)
	for i := 0; i < len(r.points) && len(result) < n; i++ {
		id := r.points[(start+i)%len(r.points)].nodeID
		if !seen[id] {
			seen[id] = true
			result = append(result, r.nodes[id])
		}
	}
	return result
}

// Nodes returns all nodes sorted by ID.
func (r *Ring) Nodes() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]Node, 0, len(r.nodes))
	for _, node := range r.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// hashString computes a 64-bit FNV-1a hash of the string.
func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
