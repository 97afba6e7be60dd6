package keyenc

import (
	"bytes"
	"errors"
	"testing"
)

func num(s string) Component { return Component{Numeric: true, Text: s} }
func str(s string) Component { return Component{Text: s} }

func mustRow(t *testing.T, table string, p Component, s *Component) []byte {
	t.Helper()
	key, err := Row(table, p, s)
	if err != nil {
		t.Fatalf("Row(%q, %v, %v): %v", table, p, s, err)
	}
	return key
}

func TestRow_NumericOrder(t *testing.T) {
	ordered := []string{"-1000", "-5", "-1.5", "-0.001", "0", "0.5", "2", "10", "1999", "2000", "1e10"}

	for i := 1; i < len(ordered); i++ {
		a := mustRow(t, "t", num(ordered[i-1]), nil)
		b := mustRow(t, "t", num(ordered[i]), nil)
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("expected key(%s) < key(%s)", ordered[i-1], ordered[i])
		}
	}
}

func TestRow_ExactDecimalOrder(t *testing.T) {
	ordered := []string{
		"-1E+125",
		"-12345678901234567890.2",
		"-12345678901234567890.1",
		"-0.5000000000000000005",
		"-0.50000000000000000001",
		"-0.5",
		"-1E-130",
		"0",
		"1E-130",
		"0.5",
		"0.50000000000000000001",
		"0.5000000000000000005",
		"12345678901234567890.1",
		"12345678901234567890.2",
		"99999999999999999999999999999999999999",
		"1E+125",
	}

	for i := 1; i < len(ordered); i++ {
		a := mustRow(t, "t", num("1"), &Component{Numeric: true, Text: ordered[i-1]})
		b := mustRow(t, "t", num("1"), &Component{Numeric: true, Text: ordered[i]})
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("expected key(%s) < key(%s)", ordered[i-1], ordered[i])
		}
	}
}

func TestRow_ZeroHasOneKey(t *testing.T) {
	a := mustRow(t, "t", num("0"), nil)
	for _, z := range []string{"-0", "0.000", "0e5"} {
		if !bytes.Equal(a, mustRow(t, "t", num(z), nil)) {
			t.Errorf("expected %s to encode like 0", z)
		}
	}
}

func TestRow_EqualNumbersShareKey(t *testing.T) {
	a := mustRow(t, "t", num("1.50"), nil)
	b := mustRow(t, "t", num("1.5"), nil)
	if !bytes.Equal(a, b) {
		t.Errorf("expected 1.50 and 1.5 to encode identically")
	}
}

func TestRow_StringOrder(t *testing.T) {
	ordered := []string{"", "A", "Magnolia", "a", "a\x00", "ab", "b"}

	for i := 1; i < len(ordered); i++ {
		a := mustRow(t, "t", num("1"), &Component{Text: ordered[i-1]})
		b := mustRow(t, "t", num("1"), &Component{Text: ordered[i]})
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("expected key(%q) < key(%q)", ordered[i-1], ordered[i])
		}
	}
}

func TestPartition_PrefixIsExact(t *testing.T) {
	prefix, err := Partition("movies", num("1"))
	if err != nil {
		t.Fatal(err)
	}

	inside := mustRow(t, "movies", num("1"), &Component{Text: "x"})
	if !bytes.HasPrefix(inside, prefix) {
		t.Errorf("expected row of partition 1 to carry its prefix")
	}

	outside := mustRow(t, "movies", num("10"), &Component{Text: "x"})
	if bytes.HasPrefix(outside, prefix) {
		t.Errorf("expected row of partition 10 not to match prefix of partition 1")
	}
}

func TestTable_PrefixIsExact(t *testing.T) {
	prefix := Table("movie")
	if bytes.HasPrefix(mustRow(t, "movies", str("x"), nil), prefix) {
		t.Errorf("expected table movies not to match prefix of table movie")
	}
	if !bytes.HasPrefix(mustRow(t, "movie", str("x"), nil), prefix) {
		t.Errorf("expected table movie rows to match its prefix")
	}
}

func TestCatalog_SeparateFromRows(t *testing.T) {
	if bytes.HasPrefix(Catalog("movies"), Table("movies")) {
		t.Errorf("expected catalog key outside the row space")
	}
	if !bytes.HasPrefix(Catalog("movies"), CatalogPrefix()) {
		t.Errorf("expected catalog key under catalog prefix")
	}
}

func TestRow_InvalidNumber(t *testing.T) {
	for _, in := range []string{"abc", "NaN", "Infinity", ""} {
		if _, err := Row("t", num(in), nil); !errors.Is(err, ErrNotNumber) {
			t.Errorf("expected ErrNotNumber for %q, got %v", in, err)
		}
	}
}
