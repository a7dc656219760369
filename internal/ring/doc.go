// Package ring places keys on replicas with consistent hashing over virtual
// nodes. The replica set of a key is the list of servers a reader polls
// and a write-back targets.
package ring
