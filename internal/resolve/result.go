package resolve

import "ecstore/internal/tag"

// Outcome labels used for logging and metrics.
const (
	OutcomeSuccess        = "success"
	OutcomeInsufficient   = "insufficient"
	OutcomeDigestMismatch = "digest_mismatch"
)

// Result is the outcome of one resolution pass.
type Result struct {
	// QuorumTag is the largest tag certified by the intersection quorum.
	QuorumTag tag.Tag
	// DecodeTag is the largest tag with enough fragments to decode.
	DecodeTag tag.Tag
	// Fragments are the payloads captured for DecodeTag, in arrival order.
	Fragments [][]byte

	Key      string
	Table    string
	Keyspace string

	Success bool
	// DigestMismatch is set when the digest gate skipped resolution.
	DigestMismatch bool
}

// Outcome returns a short label for the result.
func (r Result) Outcome() string {
	switch {
	case r.Success:
		return OutcomeSuccess
	case r.DigestMismatch:
		return OutcomeDigestMismatch
	default:
		return OutcomeInsufficient
	}
}
