package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tailscale/hujson"
)

// ReadDocument reads a bulk-load document: a JSON array whose elements become
// records. Comments and trailing commas are tolerated. Field order and exact
// number text are preserved. Elements are returned as decoded; callers decide
// what to do with elements that are not objects.
func ReadDocument(r io.Reader) ([]Value, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	std, err := hujson.Standardize(src)
	if err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}

	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("%w: document: %v", ErrValidation, err)}
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, &ValidationError{Err: fmt.Errorf("%w: document is not a JSON array", ErrValidation)}
	}

	var elems []Value
	for dec.More() {
		v, err := DecodeJSON(dec)
		if err != nil {
			return nil, &ValidationError{Err: fmt.Errorf("%w: element %d: %v", ErrValidation, len(elems), err)}
		}
		elems = append(elems, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("%w: document: %v", ErrValidation, err)}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ValidationError{Err: fmt.Errorf("%w: trailing data after document", ErrValidation)}
	}
	return elems, nil
}
