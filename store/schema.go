package store

import (
	"fmt"
	"strings"
)

// KeyType is the declared type of a key attribute.
type KeyType string

const (
	KeyTypeNumber KeyType = "N"
	KeyTypeString KeyType = "S"
)

// KeyDef names a key attribute and its type.
type KeyDef struct {
	Name string  `yaml:"name"`
	Type KeyType `yaml:"type"`
}

// Parse converts command-line or path text to a key value of the declared type.
func (d KeyDef) Parse(text string) (Value, error) {
	if d.Type == KeyTypeNumber {
		if _, err := normalizeNumber(text); err != nil {
			return nil, &ValidationError{Field: d.Name, Err: ErrTypeMismatch}
		}
		return Number(text), nil
	}
	return String(text), nil
}

// KeySchema describes a table's primary key. SortKey is optional; a zero
// SortKey means the table is keyed by partition alone.
type KeySchema struct {
	PartitionKey KeyDef `yaml:"partitionKey"`
	SortKey      KeyDef `yaml:"sortKey"`
}

// Key identifies one row.
type Key struct {
	Partition Value
	Sort      Value
}

// HasSortKey reports whether the schema declares a sort key.
func (s KeySchema) HasSortKey() bool {
	return s.SortKey.Name != ""
}

// Check verifies the schema itself is well formed.
func (s KeySchema) Check() error {
	if s.PartitionKey.Name == "" {
		return &ValidationError{Field: "partitionKey", Err: fmt.Errorf("%w: partition key name is empty", ErrValidation)}
	}
	if err := checkKeyType(s.PartitionKey); err != nil {
		return err
	}
	if !s.HasSortKey() {
		return nil
	}
	if s.SortKey.Name == s.PartitionKey.Name {
		return &ValidationError{Field: s.SortKey.Name, Err: fmt.Errorf("%w: partition and sort key share a name", ErrValidation)}
	}
	return checkKeyType(s.SortKey)
}

func checkKeyType(d KeyDef) error {
	switch d.Type {
	case KeyTypeNumber, KeyTypeString:
		return nil
	default:
		return &ValidationError{Field: d.Name, Err: fmt.Errorf("%w: unknown key type %q", ErrValidation, d.Type)}
	}
}

// IsKey reports whether name is one of the schema's key attributes.
func (s KeySchema) IsKey(name string) bool {
	_, ok := s.keyDef(name)
	return ok
}

func (s KeySchema) keyDef(name string) (KeyDef, bool) {
	if name == "" {
		return KeyDef{}, false
	}
	if name == s.PartitionKey.Name {
		return s.PartitionKey, true
	}
	if name == s.SortKey.Name {
		return s.SortKey, true
	}
	return KeyDef{}, false
}

func (s KeySchema) keyDefs() []KeyDef {
	if s.HasSortKey() {
		return []KeyDef{s.PartitionKey, s.SortKey}
	}
	return []KeyDef{s.PartitionKey}
}

// Validate checks that r carries every key attribute with its declared type.
// Empty string keys are rejected because the store does not accept them.
func (s KeySchema) Validate(r Record) error {
	for _, def := range s.keyDefs() {
		v, ok := r.Get(def.Name)
		if !ok {
			return &ValidationError{Field: def.Name, Err: ErrMissingKey}
		}
		if err := checkKeyValue(def, v); err != nil {
			return err
		}
	}
	return nil
}

func checkKeyValue(def KeyDef, v Value) error {
	switch def.Type {
	case KeyTypeNumber:
		n, ok := v.(Number)
		if !ok {
			return &ValidationError{Field: def.Name, Err: ErrTypeMismatch}
		}
		if _, err := normalizeNumber(string(n)); err != nil {
			return &ValidationError{Field: def.Name, Err: ErrTypeMismatch}
		}
	default:
		str, ok := v.(String)
		if !ok {
			return &ValidationError{Field: def.Name, Err: ErrTypeMismatch}
		}
		if str == "" {
			return &ValidationError{Field: def.Name, Err: ErrMissingKey}
		}
	}
	return nil
}

// KeyOf extracts the key of a valid record.
func (s KeySchema) KeyOf(r Record) (Key, error) {
	if err := s.Validate(r); err != nil {
		return Key{}, err
	}
	var k Key
	k.Partition, _ = r.Get(s.PartitionKey.Name)
	if s.HasSortKey() {
		k.Sort, _ = r.Get(s.SortKey.Name)
	}
	return k, nil
}

// Attributes encodes k as the key attributes of a row.
func (k Key) Attributes(s KeySchema) (Attributes, error) {
	r := Record{{Name: s.PartitionKey.Name, Value: k.Partition}}
	if s.HasSortKey() {
		r = append(r, Field{Name: s.SortKey.Name, Value: k.Sort})
	}
	for _, def := range s.keyDefs() {
		v, _ := r.Get(def.Name)
		if v == nil {
			return nil, &ValidationError{Field: def.Name, Err: ErrMissingKey}
		}
		if err := checkKeyValue(def, v); err != nil {
			return nil, err
		}
	}
	return NewCodec(s).EncodeRecord(r)
}

// encodeKeyValue encodes a single bound for the given key attribute.
func encodeKeyValue(def KeyDef, v Value) (AttributeValue, error) {
	if v == nil {
		return AttributeValue{}, &ValidationError{Field: def.Name, Err: ErrMissingKey}
	}
	if err := checkKeyValue(def, v); err != nil {
		return AttributeValue{}, err
	}
	return Encode(v)
}

// identity returns a string that is equal for two rows exactly when the store
// would treat their keys as the same item. Numbers compare by value.
func (s KeySchema) identity(attrs Attributes) string {
	var b strings.Builder
	for i, def := range s.keyDefs() {
		if i > 0 {
			b.WriteByte(0)
		}
		av := attrs[def.Name]
		b.WriteString(av.Kind.String())
		b.WriteByte(':')
		if av.Kind == KindNumber {
			if r, err := ratOf(av.Raw); err == nil {
				b.WriteString(r.RatString())
				continue
			}
		}
		b.WriteString(av.Raw)
	}
	return b.String()
}
