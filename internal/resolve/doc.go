// Package resolve implements the read-side resolution of the erasure-coded
// register. Given the observations a reader collected for one key, it finds
// the latest tag certified by an intersection quorum and the latest tag
// with enough fragments to decode, along with those fragments.
//
// Resolution is a pure function of its input. Every call allocates its own
// tracker state, so callers may resolve concurrently without locking.
package resolve
