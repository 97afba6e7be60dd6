package store

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

var (
	plainNumber = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	expNumber   = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?[eE][+-]?[0-9]+$`)
)

// maxExponent bounds exponent expansion so a short text cannot build a huge string.
const maxExponent = 400

// Limits of the store's number type.
const (
	maxStoredDigits   = 38
	minStoredExponent = -130
	maxStoredExponent = 125
)

// normalizeNumber returns text as a plain decimal. Exponent forms are expanded
// without rounding; plain decimals are returned unchanged.
func normalizeNumber(text string) (string, error) {
	if plainNumber.MatchString(text) {
		return text, nil
	}
	if !expNumber.MatchString(text) {
		return "", fmt.Errorf("%w: %q is not a decimal number", ErrEncoding, text)
	}
	d, _, err := apd.NewFromString(text)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrEncoding, text, err)
	}
	if adj := int64(d.Exponent) + d.NumDigits() - 1; adj > maxExponent || adj < -maxExponent {
		return "", fmt.Errorf("%w: exponent of %q out of range", ErrEncoding, text)
	}
	d.Reduce(d)
	return d.Text('f'), nil
}

// checkStoredNumber reports whether text fits the store's number type: at most
// 38 significant digits and a magnitude between 1E-130 and 9.99E+125.
func checkStoredNumber(text string) error {
	d, _, err := apd.NewFromString(text)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrEncoding, text, err)
	}
	if d.IsZero() {
		return nil
	}
	d.Reduce(d)
	digits := d.NumDigits()
	if digits > maxStoredDigits {
		return fmt.Errorf("%w: %q has %d significant digits, the store keeps %d", ErrEncoding, text, digits, maxStoredDigits)
	}
	if adj := int64(d.Exponent) + digits - 1; adj < minStoredExponent || adj > maxStoredExponent {
		return fmt.Errorf("%w: %q is outside the store's number range", ErrEncoding, text)
	}
	return nil
}

// Encode converts a dynamic value to an attribute value.
//
// Numbers keep their exact text; exponent forms are expanded. Numbers the
// store cannot hold exactly are rejected. Strings are
// stored verbatim and booleans as the strings "true" and "false". Documents and
// lists are stored as a String holding their canonical JSON.
func Encode(v Value) (AttributeValue, error) {
	switch t := v.(type) {
	case nil, Null:
		return NullAttribute(), nil
	case Number:
		n, err := normalizeNumber(string(t))
		if err != nil {
			return AttributeValue{}, err
		}
		if err := checkStoredNumber(n); err != nil {
			return AttributeValue{}, err
		}
		return NumberAttribute(n), nil
	case String:
		return StringAttribute(string(t)), nil
	case Bool:
		return StringAttribute(strconv.FormatBool(bool(t))), nil
	case List, Document:
		text, err := ToJSON(t)
		if err != nil {
			return AttributeValue{}, err
		}
		return StringAttribute(text), nil
	default:
		return AttributeValue{}, fmt.Errorf("%w: unsupported value %T", ErrEncoding, v)
	}
}

// Codec converts between values and attribute values for one key schema.
type Codec struct {
	schema KeySchema
}

// NewCodec returns a Codec that decodes key fields per schema.
func NewCodec(schema KeySchema) Codec {
	return Codec{schema: schema}
}

// EncodeRecord encodes every field of r. The error names the first field that
// could not be encoded.
func (c Codec) EncodeRecord(r Record) (Attributes, error) {
	attrs := make(Attributes, len(r))
	for _, f := range r {
		av, err := Encode(f.Value)
		if err != nil {
			return nil, &CodecError{Field: f.Name, Err: err}
		}
		attrs[f.Name] = av
	}
	return attrs, nil
}

// Decode converts a stored attribute back to a value.
//
// Key fields are decoded strictly to their declared type. Other fields never
// fail: Number attributes become Number, and String attributes holding JSON
// are parsed back into the value they encode, falling back to the raw text.
// A payload string that happens to be valid JSON, such as "42", is therefore
// read back as the value it spells.
func (c Codec) Decode(av AttributeValue, field string) (Value, error) {
	if def, ok := c.schema.keyDef(field); ok {
		return decodeKey(def, av)
	}
	switch av.Kind {
	case KindNumber:
		return Number(av.Raw), nil
	case KindString:
		if v, err := ParseJSON([]byte(av.Raw)); err == nil {
			return v, nil
		}
		return String(av.Raw), nil
	default:
		return Null{}, nil
	}
}

func decodeKey(def KeyDef, av AttributeValue) (Value, error) {
	switch def.Type {
	case KeyTypeNumber:
		if av.Kind != KindNumber {
			return nil, &CodecError{Field: def.Name, Err: fmt.Errorf("%w: expected N, got %s", ErrDecoding, av.Kind)}
		}
		n, err := normalizeNumber(av.Raw)
		if err != nil {
			return nil, &CodecError{Field: def.Name, Err: fmt.Errorf("%w: %v", ErrDecoding, err)}
		}
		return Number(n), nil
	default:
		if av.Kind != KindString {
			return nil, &CodecError{Field: def.Name, Err: fmt.Errorf("%w: expected S, got %s", ErrDecoding, av.Kind)}
		}
		return String(av.Raw), nil
	}
}
