package storage

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"ecstore/internal/tag"
)

// Column names. Indexed columns are the prefix followed by the decimal
// slot index; "field0" is reserved for metadata.
const (
	TagPrefix   = "tag"
	FieldPrefix = "field"
	// TagColumn and ValueColumn hold rows stored as one full value.
	TagColumn   = "tag"
	ValueColumn = "value"
)

var (
	// ErrCorruptRow is returned when a row's columns cannot be interpreted.
	ErrCorruptRow = errors.New("corrupt row")
	// ErrInvalidSlot is returned for writes to a reserved or negative slot.
	ErrInvalidSlot = errors.New("invalid slot index")
)

// Slot is one indexed (tag, payload) unit of a row.
type Slot struct {
	Index       int
	Tag         tag.Tag
	Payload     []byte
	HasFragment bool
}

// Row is the stored state of one partition key.
type Row struct {
	Key     string
	Columns map[string][]byte
}

// NewRow creates an empty row for key.
func NewRow(key string) *Row {
	return &Row{Key: key, Columns: make(map[string][]byte)}
}

// TagColumnName returns the tag column name of slot index.
func TagColumnName(index int) string {
	return TagPrefix + strconv.Itoa(index)
}

// FieldColumnName returns the fragment column name of slot index.
func FieldColumnName(index int) string {
	return FieldPrefix + strconv.Itoa(index)
}

// columnIndex parses the slot index out of name, if name is an indexed
// column with the given prefix.
func columnIndex(name, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	c := NewRow(r.Key)
	for name, v := range r.Columns {
		c.Columns[name] = append([]byte{}, v...)
	}
	return c
}

// SlotTag returns the decoded tag of slot index.
func (r *Row) SlotTag(index int) (tag.Tag, bool, error) {
	raw, ok := r.Columns[TagColumnName(index)]
	if !ok {
		return tag.Sentinel, false, nil
	}
	t, err := tag.Decode(raw)
	if err != nil {
		return tag.Sentinel, true, fmt.Errorf("%w: %s: %v", ErrCorruptRow, TagColumnName(index), err)
	}
	return t, true, nil
}

// Slots returns every indexed slot of the row ordered by index. A fragment
// column without a matching tag column, or an undecodable tag, makes the
// whole row corrupt.
func (r *Row) Slots() ([]Slot, error) {
	byIndex := make(map[int]*Slot)

	for name := range r.Columns {
		if idx, ok := columnIndex(name, TagPrefix); ok {
			t, _, err := r.SlotTag(idx)
			if err != nil {
				return nil, err
			}
			if s, exists := byIndex[idx]; exists {
				s.Tag = t
			} else {
				byIndex[idx] = &Slot{Index: idx, Tag: t}
			}
		}
	}

	for name, v := range r.Columns {
		idx, ok := columnIndex(name, FieldPrefix)
		if !ok || idx == 0 {
			continue
		}
		s, exists := byIndex[idx]
		if !exists {
			return nil, fmt.Errorf("%w: %s has no %s", ErrCorruptRow, name, TagColumnName(idx))
		}
		s.Payload = append([]byte{}, v...)
		s.HasFragment = true
	}

	slots := make([]Slot, 0, len(byIndex))
	for _, s := range byIndex {
		slots = append(slots, *s)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Index < slots[j].Index
	})
	return slots, nil
}

// Value returns the single tag and value of a row stored as one full value.
func (r *Row) Value() (tag.Tag, []byte, error) {
	raw, ok := r.Columns[TagColumn]
	if !ok {
		return tag.Sentinel, nil, nil
	}
	t, err := tag.Decode(raw)
	if err != nil {
		return tag.Sentinel, nil, fmt.Errorf("%w: %s: %v", ErrCorruptRow, TagColumn, err)
	}
	return t, append([]byte(nil), r.Columns[ValueColumn]...), nil
}

// applyFragment stores payload in slot index unless the slot already holds
// a tag at least as large. The metadata tag is advanced in either case.
func (r *Row) applyFragment(index int, t tag.Tag, payload []byte) error {
	if index < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, index)
	}
	existing, ok, err := r.SlotTag(index)
	if err != nil {
		return err
	}
	if !ok || t.Greater(existing) {
		r.Columns[TagColumnName(index)] = tag.Encode(t)
		r.Columns[FieldColumnName(index)] = append([]byte{}, payload...)
	}
	return r.applyAdvance(t)
}

// applyAdvance raises the metadata tag of slot 0 to t if t is larger.
func (r *Row) applyAdvance(t tag.Tag) error {
	existing, ok, err := r.SlotTag(0)
	if err != nil {
		return err
	}
	if !ok || t.Greater(existing) {
		r.Columns[TagColumnName(0)] = tag.Encode(t)
	}
	return nil
}

// applyValue replaces the full value if t is larger than the stored tag.
func (r *Row) applyValue(t tag.Tag, value []byte) error {
	existing, _, err := r.Value()
	if err != nil {
		return err
	}
	if t.Greater(existing) {
		r.Columns[TagColumn] = tag.Encode(t)
		r.Columns[ValueColumn] = append([]byte{}, value...)
	}
	return nil
}

// Digest returns a SHA-256 summary of the row's canonical encoding.
func (r *Row) Digest() []byte {
	sum := sha256.Sum256(MarshalRow(r))
	return sum[:]
}

const (
	rowKeyField    protowire.Number = 1
	rowColumnField protowire.Number = 2
	colNameField   protowire.Number = 1
	colValueField  protowire.Number = 2
)

// MarshalRow encodes r in protobuf wire format with columns sorted by name.
func MarshalRow(r *Row) []byte {
	names := make([]string, 0, len(r.Columns))
	for name := range r.Columns {
		names = append(names, name)
	}
	sort.Strings(names)

	var b []byte
	b = protowire.AppendTag(b, rowKeyField, protowire.BytesType)
	b = protowire.AppendString(b, r.Key)
	for _, name := range names {
		var col []byte
		col = protowire.AppendTag(col, colNameField, protowire.BytesType)
		col = protowire.AppendString(col, name)
		col = protowire.AppendTag(col, colValueField, protowire.BytesType)
		col = protowire.AppendBytes(col, r.Columns[name])

		b = protowire.AppendTag(b, rowColumnField, protowire.BytesType)
		b = protowire.AppendBytes(b, col)
	}
	return b
}

// UnmarshalRow decodes bytes produced by MarshalRow.
func UnmarshalRow(b []byte) (*Row, error) {
	r := NewRow("")
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRow, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRow, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRow, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case rowKeyField:
			r.Key = string(v)
		case rowColumnField:
			name, value, err := unmarshalColumn(v)
			if err != nil {
				return nil, err
			}
			r.Columns[name] = value
		}
	}
	return r, nil
}

func unmarshalColumn(b []byte) (string, []byte, error) {
	var (
		name  string
		value = []byte{}
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 || typ != protowire.BytesType {
			return "", nil, fmt.Errorf("%w: bad column encoding", ErrCorruptRow)
		}
		b = b[n:]
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return "", nil, fmt.Errorf("%w: %v", ErrCorruptRow, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case colNameField:
			name = string(v)
		case colValueField:
			value = append([]byte{}, v...)
		}
	}
	if name == "" {
		return "", nil, fmt.Errorf("%w: column without name", ErrCorruptRow)
	}
	return name, value, nil
}
