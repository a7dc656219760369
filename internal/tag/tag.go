package tag

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned when tag bytes cannot be decoded.
var ErrMalformed = errors.New("malformed tag")

const (
	writerField protowire.Number = 1
	timeField   protowire.Number = 2
)

// Tag identifies one write: the writer that produced it and the logical
// time it was issued at.
type Tag struct {
	WriterID    int64
	LogicalTime int64
}

// Sentinel is the canonical "no candidate" tag.
var Sentinel = Tag{WriterID: 0, LogicalTime: -1}

// New creates a tag.
func New(writerID, logicalTime int64) Tag {
	return Tag{WriterID: writerID, LogicalTime: logicalTime}
}

// IsSentinel reports whether t stands for "no candidate".
func (t Tag) IsSentinel() bool {
	return t.LogicalTime < 0
}

// Compare returns -1, 0 or +1 depending on whether a orders before, equal
// to, or after b. Logical time decides first; on equal times the larger
// writer ID is the later tag. Any sentinel orders before every real tag.
func Compare(a, b Tag) int {
	switch {
	case a.LogicalTime < b.LogicalTime:
		return -1
	case a.LogicalTime > b.LogicalTime:
		return 1
	case a.WriterID < b.WriterID:
		return -1
	case a.WriterID > b.WriterID:
		return 1
	default:
		return 0
	}
}

// Less reports whether t orders strictly before other.
func (t Tag) Less(other Tag) bool {
	return Compare(t, other) < 0
}

// Greater reports whether t orders strictly after other.
func (t Tag) Greater(other Tag) bool {
	return Compare(t, other) > 0
}

// Max returns the larger of a and b, a when they are equal.
func Max(a, b Tag) Tag {
	if b.Greater(a) {
		return b
	}
	return a
}

// String returns a string representation of the tag.
func (t Tag) String() string {
	if t.IsSentinel() {
		return "<none>"
	}
	return fmt.Sprintf("(%d,%d)", t.WriterID, t.LogicalTime)
}

// Encode serializes t in protobuf wire format: field 1 is the writer ID
// and field 2 the logical time, both zigzag varints.
func Encode(t Tag) []byte {
	b := make([]byte, 0, 16)
	b = protowire.AppendTag(b, writerField, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(t.WriterID))
	b = protowire.AppendTag(b, timeField, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(t.LogicalTime))
	return b
}

// Decode parses bytes produced by Encode. Unknown fields are skipped so
// that newer encoders stay readable; missing fields decode as zero.
func Decode(b []byte) (Tag, error) {
	var t Tag
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Tag{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.VarintType && (num == writerField || num == timeField) {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Tag{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			if num == writerField {
				t.WriterID = protowire.DecodeZigZag(v)
			} else {
				t.LogicalTime = protowire.DecodeZigZag(v)
			}
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return Tag{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return t, nil
}
