// Package keyenc builds order-preserving byte keys for rows held in an
// ordered key-value store.
//
// A row key is the concatenation of escaped components, each terminated by
// 0x00 0x01. Escaping maps 0x00 to 0x00 0xFF, so a component prefix never
// matches a longer component and byte order follows component order.
package keyenc

import (
	"encoding/binary"
	"errors"

	"github.com/cockroachdb/apd/v3"
)

// ErrNotNumber is returned when a numeric component is not a decimal number.
var ErrNotNumber = errors.New("keyenc: not a decimal number")

const (
	rowSpace     = 'r'
	catalogSpace = 'c'
)

// Component is one typed key part.
type Component struct {
	Numeric bool
	Text    string
}

// Catalog returns the key under which a table definition is stored.
func Catalog(table string) []byte {
	return appendString([]byte{catalogSpace}, table)
}

// CatalogPrefix returns the prefix shared by every table definition.
func CatalogPrefix() []byte {
	return []byte{catalogSpace}
}

// Table returns the prefix shared by every row of table.
func Table(table string) []byte {
	return appendString([]byte{rowSpace}, table)
}

// Partition returns the prefix shared by every row of one partition.
func Partition(table string, partition Component) ([]byte, error) {
	return appendComponent(Table(table), partition)
}

// Row returns the key of one row. sort may be nil for tables without a sort key.
func Row(table string, partition Component, sort *Component) ([]byte, error) {
	key, err := Partition(table, partition)
	if err != nil {
		return nil, err
	}
	if sort == nil {
		return key, nil
	}
	return appendComponent(key, *sort)
}

// Sign classes of a numeric component.
const (
	negative = 0x01
	zero     = 0x02
	positive = 0x03
)

// appendComponent encodes numbers as sign class, adjusted exponent and
// significant digits. Negative numbers have the exponent and digits inverted
// and a 0xFF digit sentinel, so larger magnitudes sort first.
func appendComponent(dst []byte, c Component) ([]byte, error) {
	if !c.Numeric {
		return appendString(append(dst, 's'), c.Text), nil
	}
	d, _, err := apd.NewFromString(c.Text)
	if err != nil || d.Form != apd.Finite {
		return nil, ErrNotNumber
	}
	dst = append(dst, 'n')
	if d.IsZero() {
		return append(dst, zero), nil
	}
	d.Reduce(d)
	digits := []byte(d.Coeff.String())
	exp := uint64(int64(d.Exponent)+int64(len(digits))-1) ^ 1<<63

	if !d.Negative {
		dst = append(dst, positive)
		dst = binary.BigEndian.AppendUint64(dst, exp)
		return appendString(dst, string(digits)), nil
	}
	dst = append(dst, negative)
	dst = binary.BigEndian.AppendUint64(dst, ^exp)
	for i := range digits {
		digits[i] = ^digits[i]
	}
	return appendString(dst, string(append(digits, 0xFF))), nil
}

func appendString(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			dst = append(dst, 0, 0xFF)
			continue
		}
		dst = append(dst, s[i])
	}
	return append(dst, 0, 1)
}
