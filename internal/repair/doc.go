// Package repair propagates a resolved tag back to the replica set so that
// later readers observe it on an intersection quorum.
package repair
