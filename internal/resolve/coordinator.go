package resolve

import (
	"bytes"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ecstore/internal/tag"
)

// DigestPolicy decides what happens when replica digests disagree.
type DigestPolicy int

const (
	// RequireDigestMatch resolves only when every digest agrees and
	// reports failure otherwise.
	RequireDigestMatch DigestPolicy = iota
	// AlwaysResolve runs resolution regardless of digests.
	AlwaysResolve
)

// String returns the string representation of DigestPolicy.
func (p DigestPolicy) String() string {
	switch p {
	case RequireDigestMatch:
		return "require-match"
	case AlwaysResolve:
		return "always"
	default:
		return "unknown"
	}
}

// ParseDigestPolicy parses the String form of a DigestPolicy.
func ParseDigestPolicy(s string) (DigestPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "require-match":
		return RequireDigestMatch, nil
	case "always":
		return AlwaysResolve, nil
	default:
		return 0, fmt.Errorf("unknown digest policy: %q", s)
	}
}

// PayloadDecoder turns a raw fragment cell into the payload handed to the
// decode stage.
type PayloadDecoder func(raw []byte) ([]byte, error)

// CopyPayload is the default PayloadDecoder.
func CopyPayload(raw []byte) ([]byte, error) {
	return append([]byte(nil), raw...), nil
}

// Coordinator runs resolution passes. It holds only configuration and is
// safe for concurrent use.
type Coordinator struct {
	logger  *zap.Logger
	policy  DigestPolicy
	decoder PayloadDecoder
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithDigestPolicy sets the digest gate policy.
func WithDigestPolicy(policy DigestPolicy) Option {
	return func(c *Coordinator) {
		c.policy = policy
	}
}

// WithPayloadDecoder sets the fragment payload decoder.
func WithPayloadDecoder(decoder PayloadDecoder) Option {
	return func(c *Coordinator) {
		c.decoder = decoder
	}
}

// NewCoordinator creates a coordinator. By default it requires matching
// digests, copies payloads verbatim and does not log.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:  zap.NewNop(),
		policy:  RequireDigestMatch,
		decoder: CopyPayload,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DigestsMatch reports whether every observation carries the same digest
// as the first one.
func DigestsMatch(observations []Observation) bool {
	for i := 1; i < len(observations); i++ {
		if !bytes.Equal(observations[0].Digest, observations[i].Digest) {
			return false
		}
	}
	return true
}

// Resolve runs one resolution pass over req.
func (c *Coordinator) Resolve(req *Request) Result {
	result := Result{
		QuorumTag: tag.Sentinel,
		DecodeTag: tag.Sentinel,
	}

	observations := req.Observations()
	if c.policy == RequireDigestMatch && !DigestsMatch(observations) {
		c.logger.Debug("digest mismatch, skipping resolution",
			zap.String("key", req.Command().Key),
			zap.Int("observations", len(observations)))
		result.DigestMismatch = true
		return result
	}

	thresholds := req.Thresholds()
	certifier := NewCertifier(thresholds.IntersectionQuorum)
	recoverer := NewRecoverer(thresholds.RecoveryThreshold)

	for i, obs := range observations {
		if i == 0 {
			result.Key = obs.Identity.Key
			result.Table = obs.Identity.Table
			result.Keyspace = obs.Identity.Keyspace
		}

		for _, slot := range obs.Slots {
			certifier.Observe(slot.Tag)

			if slot.Index == 0 || !slot.HasFragment {
				continue
			}
			payload, err := c.decoder(slot.Payload)
			if err != nil {
				c.logger.Warn("cannot decode fragment payload",
					zap.String("replica", obs.Replica),
					zap.Int("slot", slot.Index),
					zap.Stringer("tag", slot.Tag),
					zap.Error(err))
				payload = []byte{}
			}
			recoverer.Add(slot.Tag, payload)
		}
	}

	result.QuorumTag = certifier.Best()
	result.DecodeTag, result.Fragments = recoverer.Best()
	result.Success = !result.QuorumTag.IsSentinel() && !result.DecodeTag.IsSentinel()

	if result.Success {
		c.logger.Debug("resolved",
			zap.String("key", result.Key),
			zap.Stringer("quorum_tag", result.QuorumTag),
			zap.Stringer("decode_tag", result.DecodeTag),
			zap.Int("fragments", len(result.Fragments)))
	} else {
		c.logger.Debug("insufficient observations",
			zap.String("key", req.Command().Key),
			zap.Stringer("quorum_tag", result.QuorumTag),
			zap.Stringer("decode_tag", result.DecodeTag))
	}
	return result
}
