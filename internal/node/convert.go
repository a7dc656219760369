package node

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"ecstore/internal/resolve"
	"ecstore/internal/storage"
	"ecstore/internal/tag"
)

// errMalformedMutation is returned when a mutation body cannot be decoded.
var errMalformedMutation = errors.New("malformed mutation")

// mutation is the body of the replica write methods. Index is only used by
// PutFragment and Payload is ignored by AdvanceTag.
type mutation struct {
	Key     string
	Index   int
	Tag     tag.Tag
	Payload []byte
}

const (
	mutationKeyField     protowire.Number = 1
	mutationIndexField   protowire.Number = 2
	mutationTagField     protowire.Number = 3
	mutationPayloadField protowire.Number = 4
)

func marshalMutation(m mutation) []byte {
	var b []byte
	b = protowire.AppendTag(b, mutationKeyField, protowire.BytesType)
	b = protowire.AppendString(b, m.Key)
	b = protowire.AppendTag(b, mutationIndexField, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(m.Index)))
	b = protowire.AppendTag(b, mutationTagField, protowire.BytesType)
	b = protowire.AppendBytes(b, tag.Encode(m.Tag))
	b = protowire.AppendTag(b, mutationPayloadField, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Payload)
	return b
}

func unmarshalMutation(b []byte) (mutation, error) {
	m := mutation{Tag: tag.Sentinel, Payload: []byte{}}
	hasTag := false

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return mutation{}, fmt.Errorf("%w: %v", errMalformedMutation, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == mutationIndexField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return mutation{}, fmt.Errorf("%w: %v", errMalformedMutation, protowire.ParseError(n))
			}
			b = b[n:]
			m.Index = int(protowire.DecodeZigZag(v))

		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return mutation{}, fmt.Errorf("%w: %v", errMalformedMutation, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case mutationKeyField:
				m.Key = string(v)
			case mutationTagField:
				t, err := tag.Decode(v)
				if err != nil {
					return mutation{}, fmt.Errorf("%w: %v", errMalformedMutation, err)
				}
				m.Tag = t
				hasTag = true
			case mutationPayloadField:
				m.Payload = append([]byte{}, v...)
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return mutation{}, fmt.Errorf("%w: %v", errMalformedMutation, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if m.Key == "" {
		return mutation{}, fmt.Errorf("%w: key cannot be empty", errMalformedMutation)
	}
	if !hasTag || m.Tag.IsSentinel() {
		return mutation{}, fmt.Errorf("%w: a write tag is required", errMalformedMutation)
	}
	return m, nil
}

// rowToObservation converts one replica's row into a resolution input.
// A nil row is an answer without data and yields an observation with no
// slots. Rows whose columns cannot be parsed are reported as corrupt.
func rowToObservation(replica string, row *storage.Row, id resolve.Identity) (resolve.Observation, error) {
	if row == nil {
		row = storage.NewRow(id.Key)
	}

	slots, err := row.Slots()
	if err != nil {
		return resolve.Observation{}, err
	}

	obs := resolve.Observation{
		Replica:  replica,
		Identity: id,
		Digest:   row.Digest(),
		Slots:    make([]resolve.Slot, 0, len(slots)),
	}
	for _, s := range slots {
		obs.Slots = append(obs.Slots, resolve.Slot{
			Index:       s.Index,
			Tag:         s.Tag,
			Payload:     s.Payload,
			HasFragment: s.HasFragment,
		})
	}
	return obs, nil
}

// ReplicatedValue is one replica's answer for a key stored as a single
// full value.
type ReplicatedValue struct {
	Replica string
	Version tag.Tag
	Value   []byte
}

// Tag returns the write tag of the value.
func (v ReplicatedValue) Tag() tag.Tag { return v.Version }

func rowToReplicatedValue(replica string, row *storage.Row) (ReplicatedValue, error) {
	if row == nil {
		return ReplicatedValue{Replica: replica, Version: tag.Sentinel}, nil
	}
	t, value, err := row.Value()
	if err != nil {
		return ReplicatedValue{}, err
	}
	return ReplicatedValue{Replica: replica, Version: t, Value: value}, nil
}
