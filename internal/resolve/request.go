package resolve

import (
	"fmt"

	"ecstore/internal/tag"
)

// CommandKind distinguishes single-key reads from range scans.
type CommandKind int

const (
	// SingleKey reads one partition key.
	SingleKey CommandKind = iota
	// KeyRange scans a range of keys.
	KeyRange
)

// ReadCommand describes the read the observations were collected for.
type ReadCommand struct {
	Kind     CommandKind
	Keyspace string
	Table    string
	Key      string
}

// Identity names the partition an observation belongs to.
type Identity struct {
	Key      string
	Table    string
	Keyspace string
}

// Slot is one indexed (tag, payload) unit of a replica row. Index 0 is
// reserved for metadata and never carries a fragment.
type Slot struct {
	Index       int
	Tag         tag.Tag
	Payload     []byte
	HasFragment bool
}

// Observation is what one replica returned for the queried key.
type Observation struct {
	Replica  string
	Identity Identity
	Digest   []byte
	Slots    []Slot
}

// Thresholds holds the two counts resolution is driven by.
type Thresholds struct {
	// IntersectionQuorum (k1) is the number of occurrences that certify a tag.
	IntersectionQuorum int
	// RecoveryThreshold (k2) is the number of fragments needed to decode.
	RecoveryThreshold int
}

// Validate checks that both thresholds are at least one.
func (t Thresholds) Validate() error {
	if t.IntersectionQuorum < 1 || t.RecoveryThreshold < 1 {
		return fmt.Errorf("%w: k1=%d k2=%d", ErrInvalidThreshold, t.IntersectionQuorum, t.RecoveryThreshold)
	}
	return nil
}

// Request is one resolution pass worth of input. Build it with NewRequest.
type Request struct {
	command      ReadCommand
	observations []Observation
	thresholds   Thresholds
}

// NewRequest validates and assembles a resolution request. All observations
// are assumed to answer the same single-key read.
func NewRequest(cmd ReadCommand, observations []Observation, thresholds Thresholds) (*Request, error) {
	if cmd.Kind != SingleKey {
		return nil, fmt.Errorf("%w: got command kind %d", ErrInvalidUsage, cmd.Kind)
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	obs := make([]Observation, len(observations))
	copy(obs, observations)

	return &Request{
		command:      cmd,
		observations: obs,
		thresholds:   thresholds,
	}, nil
}

// Command returns the read command.
func (r *Request) Command() ReadCommand { return r.command }

// Observations returns the observations in the order they were supplied.
func (r *Request) Observations() []Observation { return r.observations }

// Thresholds returns the thresholds.
func (r *Request) Thresholds() Thresholds { return r.thresholds }
