package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Value is a dynamic input value. It is one of Number, String, Bool, Null,
// List or Document.
type Value interface {
	value()
}

// Number is a numeric value kept as its decimal text so no precision is lost.
type Number string

// String is a text value.
type String string

// Bool is a boolean value.
type Bool bool

// Null is the absent value.
type Null struct{}

// List is an ordered sequence of values.
type List []Value

// Document is an ordered set of named values. Field names are unique.
type Document []Field

// Field is one named value of a Document.
type Field struct {
	Name  string
	Value Value
}

// Record is a Document written to or read from a table.
type Record = Document

func (Number) value()   {}
func (String) value()   {}
func (Bool) value()     {}
func (Null) value()     {}
func (List) value()     {}
func (Document) value() {}

// Int returns the Number for i.
func Int(i int64) Number {
	return Number(strconv.FormatInt(i, 10))
}

// Float returns the shortest Number that reads back as f.
// NaN and infinities produce text that fails to encode.
func Float(f float64) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Number(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return Number(strconv.FormatFloat(f, 'f', -1, 64))
}

// Int64 parses n as an integer.
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Float64 parses n as a float, rounding if needed.
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Get returns the value of the named field.
func (d Document) Get(name string) (Value, bool) {
	for _, f := range d {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Set returns d with name bound to v, replacing an existing field in place
// or appending a new one.
func (d Document) Set(name string, v Value) Document {
	for i, f := range d {
		if f.Name == name {
			out := make(Document, len(d))
			copy(out, d)
			out[i].Value = v
			return out
		}
	}
	out := make(Document, len(d), len(d)+1)
	copy(out, d)
	return append(out, Field{Name: name, Value: v})
}

// Without returns d minus the named fields.
func (d Document) Without(names ...string) Document {
	out := make(Document, 0, len(d))
next:
	for _, f := range d {
		for _, n := range names {
			if f.Name == n {
				continue next
			}
		}
		out = append(out, f)
	}
	return out
}

// Names returns the field names in order.
func (d Document) Names() []string {
	names := make([]string, len(d))
	for i, f := range d {
		names[i] = f.Name
	}
	return names
}

// MarshalJSON writes d as a JSON object in field order. Numbers are written verbatim.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping field order and exact number text.
func (d *Document) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	doc, ok := v.(Document)
	if !ok {
		return fmt.Errorf("%w: JSON value is not an object", ErrValidation)
	}
	*d = doc
	return nil
}

func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToJSON returns the canonical JSON text of v.
func ToJSON(v Value) (string, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(t)))
	case Number:
		n, err := normalizeNumber(string(t))
		if err != nil {
			return err
		}
		buf.WriteString(n)
	case String:
		writeQuoted(buf, string(t))
	case List:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Document:
		buf.WriteByte('{')
		for i, f := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeQuoted(buf, f.Name)
			buf.WriteByte(':')
			if err := writeJSON(buf, f.Value); err != nil {
				return &CodecError{Field: f.Name, Err: err}
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: unsupported value %T", ErrEncoding, v)
	}
	return nil
}

func writeQuoted(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	buf.Truncate(buf.Len() - 1) // Encode appends a newline
}

// ParseJSON decodes a single JSON value, keeping object field order and exact
// number text. Trailing data after the value is an error.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := DecodeJSON(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrValidation)
	}
	return v, nil
}

// DecodeJSON reads the next JSON value from dec, which must have UseNumber set.
// Duplicate object fields keep their first position and last value.
func DecodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			doc := Document{}
			index := make(map[string]int)
			for dec.More() {
				nameTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				name, ok := nameTok.(string)
				if !ok {
					return nil, fmt.Errorf("%w: object key %v is not a string", ErrValidation, nameTok)
				}
				v, err := DecodeJSON(dec)
				if err != nil {
					return nil, err
				}
				if i, ok := index[name]; ok {
					doc[i].Value = v
					continue
				}
				index[name] = len(doc)
				doc = append(doc, Field{Name: name, Value: v})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			list := List{}
			for dec.More() {
				v, err := DecodeJSON(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		default:
			return nil, fmt.Errorf("%w: unexpected delimiter %q", ErrValidation, t)
		}
	case json.Number:
		return Number(t), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected token %v", ErrValidation, tok)
	}
}
