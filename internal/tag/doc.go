// Package tag provides the write-version tag used by the erasure-coded
// register. Tags are totally ordered so that every reader agrees on which
// of two writes is the more recent one.
package tag
