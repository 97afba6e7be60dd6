package stream

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/arbor/store"
)

// --- ConvertImage Tests ---

func TestConvertImage_Scalars(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"name":    events.NewStringAttribute("test-value"),
		"version": events.NewNumberAttribute("42.50"),
		"gone":    events.NewNullAttribute(),
		"active":  events.NewBooleanAttribute(true),
	}

	row := ConvertImage(image, nil)

	if row["name"] != store.StringAttribute("test-value") {
		t.Errorf("expected name S:test-value, got %v", row["name"])
	}
	if row["version"] != store.NumberAttribute("42.50") {
		t.Errorf("expected version N:42.50 verbatim, got %v", row["version"])
	}
	if !row["gone"].IsNull() {
		t.Errorf("expected gone NULL, got %v", row["gone"])
	}
	if row["active"] != store.StringAttribute("true") {
		t.Errorf("expected active S:true, got %v", row["active"])
	}
}

func TestConvertImage_NestedBecomesJSON(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"info": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"rank":   events.NewNumberAttribute("7"),
			"genres": events.NewListAttribute([]events.DynamoDBAttributeValue{events.NewStringAttribute("drama")}),
		}),
	}

	row := ConvertImage(image, nil)

	want := `{"genres":["drama"],"rank":7}`
	if row["info"] != store.StringAttribute(want) {
		t.Errorf("expected %q, got %v", want, row["info"])
	}
}

func TestConvertImage_UnencodableAttributeLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	image := map[string]events.DynamoDBAttributeValue{
		"title": events.NewStringAttribute("Magnolia"),
		"info": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"rank": events.NewNumberAttribute("not-a-number"),
		}),
	}

	row := ConvertImage(image, logger)

	if _, ok := row["info"]; ok {
		t.Errorf("expected info to be dropped, got %v", row["info"])
	}
	if row["title"] != store.StringAttribute("Magnolia") {
		t.Errorf("expected title kept, got %v", row["title"])
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "attribute=info") {
		t.Errorf("expected a warning naming the attribute, got %q", out)
	}
}

func TestConvertImage_EmptyImage(t *testing.T) {
	row := ConvertImage(map[string]events.DynamoDBAttributeValue{}, nil)
	if len(row) != 0 {
		t.Errorf("expected empty row, got %v", row)
	}
}

func TestConvertImage_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	row := ConvertImage(image, nil)
	if row == nil || len(row) != 0 {
		t.Errorf("expected empty non-nil row for nil image, got %v", row)
	}
}

func TestPlain_Sets(t *testing.T) {
	v := plain(events.NewStringSetAttribute([]string{"a", "b"}))
	got, ok := v.([]string)
	if !ok || len(got) != 2 {
		t.Errorf("expected string set, got %#v", v)
	}
}
