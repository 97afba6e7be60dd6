package store_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jacentio/arbor/store"
)

func TestReadDocument(t *testing.T) {
	src := `[
		// the sample data
		{"year": 2013, "title": "Rush", "info": {"rating": 8.30, "genres": ["Action", "Biography"],},},
		/* a bare value */
		"stray",
	]`

	got, err := store.ReadDocument(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []store.Value{
		store.Document{
			{Name: "year", Value: store.Number("2013")},
			{Name: "title", Value: store.String("Rush")},
			{Name: "info", Value: store.Document{
				{Name: "rating", Value: store.Number("8.30")},
				{Name: "genres", Value: store.List{store.String("Action"), store.String("Biography")}},
			}},
		},
		store.String("stray"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadDocument_CommentMarkersInStrings(t *testing.T) {
	src := `[{"year": 1999, "title": "Magnolia // not a comment", "plot": "/* nor this */, ]",}, // trailing
	]`

	got, err := store.ReadDocument(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []store.Value{store.Document{
		{Name: "year", Value: store.Number("1999")},
		{Name: "title", Value: store.String("Magnolia // not a comment")},
		{Name: "plot", Value: store.String("/* nor this */, ]")},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadDocument_Empty(t *testing.T) {
	got, err := store.ReadDocument(strings.NewReader(" [ ] "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no elements, got %v", got)
	}
}

func TestReadDocument_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"object at top level", `{"year": 1999}`},
		{"scalar at top level", `42`},
		{"empty input", ``},
		{"truncated", `[{"year": 1999}`},
		{"trailing data", `[] []`},
		{"unterminated comment", `[/* oops`},
		{"bad element", `[{"year": }]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ReadDocument(strings.NewReader(tt.src))
			if !errors.Is(err, store.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}
