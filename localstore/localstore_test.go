package localstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/arbor/store"
)

var movies = store.TableDefinition{
	Name: "Movies",
	Schema: store.KeySchema{
		PartitionKey: store.KeyDef{Name: "year", Type: store.KeyTypeNumber},
		SortKey:      store.KeyDef{Name: "title", Type: store.KeyTypeString},
	},
	ReadCapacity:  10,
	WriteCapacity: 10,
}

func newTestStore(t *testing.T, defs ...store.TableDefinition) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	for _, def := range defs {
		require.NoError(t, s.CreateTable(context.Background(), def))
	}
	return s
}

func movie(year, title string, extra ...string) store.Attributes {
	row := store.Attributes{
		"year":  store.NumberAttribute(year),
		"title": store.StringAttribute(title),
	}
	for i := 0; i+1 < len(extra); i += 2 {
		row[extra[i]] = store.StringAttribute(extra[i+1])
	}
	return row
}

func titles(rows []store.Attributes) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r["title"].Raw
	}
	return out
}

func TestStore_CreateAndListTables(t *testing.T) {
	s := newTestStore(t, movies)
	ctx := context.Background()

	other := movies
	other.Name = "Books"
	require.NoError(t, s.CreateTable(ctx, other))

	names, err := s.ListTables(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"Books", "Movies"}, names)

	limited, err := s.ListTables(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_CreateTable_AlreadyExists(t *testing.T) {
	s := newTestStore(t, movies)

	err := s.CreateTable(context.Background(), movies)
	assert.ErrorIs(t, err, ErrTableExists)
	assert.ErrorIs(t, err, store.ErrStoreRejected)
}

func TestStore_PutBatch_UnknownTable(t *testing.T) {
	s := newTestStore(t)

	_, err := s.PutBatch(context.Background(), "Missing", []store.Attributes{movie("1999", "Magnolia")})
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.ErrorIs(t, err, store.ErrStoreRejected)
}

func TestStore_PutBatch_DuplicateKeyRejectsBatch(t *testing.T) {
	s := newTestStore(t, movies)
	ctx := context.Background()

	_, err := s.PutBatch(ctx, "Movies", []store.Attributes{
		movie("1999", "Magnolia"),
		movie("1999.0", "Magnolia"),
	})
	assert.ErrorIs(t, err, ErrInvalidKey)

	q := store.QuerySpec{Partition: store.NumberAttribute("1999")}
	rows, err := s.Query(ctx, "Movies", q)
	require.NoError(t, err)
	assert.Empty(t, rows, "rejected batch must not be partially applied")
}

func TestStore_PutBatch_WrongKeyType(t *testing.T) {
	s := newTestStore(t, movies)

	row := movie("1999", "Magnolia")
	row["year"] = store.StringAttribute("1999")
	_, err := s.PutBatch(context.Background(), "Movies", []store.Attributes{row})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestStore_Query_PartitionInSortOrder(t *testing.T) {
	s := newTestStore(t, movies)
	ctx := context.Background()

	_, err := s.PutBatch(ctx, "Movies", []store.Attributes{
		movie("1999", "The Matrix"),
		movie("1999", "Magnolia"),
		movie("1999", "Fight Club"),
		movie("19990", "Elsewhere"),
		movie("2000", "Gladiator"),
	})
	require.NoError(t, err)

	rows, err := s.Query(ctx, "Movies", store.QuerySpec{Partition: store.NumberAttribute("1999")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Fight Club", "Magnolia", "The Matrix"}, titles(rows))
}

func TestStore_Query_SortRange(t *testing.T) {
	s := newTestStore(t, movies)
	ctx := context.Background()

	_, err := s.PutBatch(ctx, "Movies", []store.Attributes{
		movie("1999", "A"), movie("1999", "B"), movie("1999", "C"), movie("1999", "D"),
	})
	require.NoError(t, err)

	rows, err := s.Query(ctx, "Movies", store.QuerySpec{
		Partition: store.NumberAttribute("1999"),
		SortRange: &store.Range{Low: store.StringAttribute("B"), High: store.StringAttribute("C")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, titles(rows))
}

func TestStore_Scan_InclusiveRange(t *testing.T) {
	s := newTestStore(t, movies)
	ctx := context.Background()

	var batch []store.Attributes
	for _, y := range []string{"1985", "1990", "1995", "2000", "2001"} {
		batch = append(batch, movie(y, "Film "+y))
	}
	_, err := s.PutBatch(ctx, "Movies", batch)
	require.NoError(t, err)

	rows, err := s.Scan(ctx, "Movies", store.QuerySpec{
		PartitionRange: &store.Range{Low: store.NumberAttribute("1990"), High: store.NumberAttribute("2000")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Film 1990", "Film 1995", "Film 2000"}, titles(rows))
}

func TestStore_Scan_Projection(t *testing.T) {
	s := newTestStore(t, movies)
	ctx := context.Background()

	require.NoError(t, s.PutItem(ctx, "Movies", movie("1999", "Magnolia", "info", `{"genre":"drama"}`, "rating", "R")))

	rows, err := s.Scan(ctx, "Movies", store.QuerySpec{Projection: []string{"year", "title", "info"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0], "info")
	assert.NotContains(t, rows[0], "rating")
}

func TestStore_UpdateItem(t *testing.T) {
	s := newTestStore(t, movies)
	ctx := context.Background()

	require.NoError(t, s.PutItem(ctx, "Movies", movie("1999", "Magnolia", "rating", "R")))

	row, err := s.UpdateItem(ctx, store.UpdateRequest{
		Table: "Movies",
		Key:   movie("1999", "Magnolia"),
		Set:   store.Attributes{"info": store.StringAttribute(`{"genre":"drama"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, store.StringAttribute("R"), row["rating"])
	assert.Equal(t, store.StringAttribute(`{"genre":"drama"}`), row["info"])
}

func TestStore_UpdateItem_CreatesMissingRow(t *testing.T) {
	s := newTestStore(t, movies)

	row, err := s.UpdateItem(context.Background(), store.UpdateRequest{
		Table: "Movies",
		Key:   movie("2001", "Memento"),
		Set:   store.Attributes{"rating": store.StringAttribute("R")},
	})
	require.NoError(t, err)
	assert.Equal(t, movie("2001", "Memento", "rating", "R"), row)
}

func TestStore_UpdateItem_KeyAttributeRejected(t *testing.T) {
	s := newTestStore(t, movies)

	_, err := s.UpdateItem(context.Background(), store.UpdateRequest{
		Table: "Movies",
		Key:   movie("2001", "Memento"),
		Set:   store.Attributes{"title": store.StringAttribute("Other")},
	})
	assert.ErrorIs(t, err, store.ErrStoreRejected)
}

func TestStore_DeleteItem(t *testing.T) {
	s := newTestStore(t, movies)
	ctx := context.Background()

	require.NoError(t, s.PutItem(ctx, "Movies", movie("1999", "Magnolia")))
	require.NoError(t, s.DeleteItem(ctx, "Movies", movie("1999", "Magnolia")))
	require.NoError(t, s.DeleteItem(ctx, "Movies", movie("1999", "Magnolia")), "deleting a missing row succeeds")

	rows, err := s.Query(ctx, "Movies", store.QuerySpec{Partition: store.NumberAttribute("1999")})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_Query_NumericSortKeysInExactOrder(t *testing.T) {
	readings := store.TableDefinition{
		Name: "Readings",
		Schema: store.KeySchema{
			PartitionKey: store.KeyDef{Name: "sensor", Type: store.KeyTypeString},
			SortKey:      store.KeyDef{Name: "at", Type: store.KeyTypeNumber},
		},
	}
	s := newTestStore(t, readings)
	ctx := context.Background()

	reading := func(at string) store.Attributes {
		return store.Attributes{"sensor": store.StringAttribute("s1"), "at": store.NumberAttribute(at)}
	}
	_, err := s.PutBatch(ctx, "Readings", []store.Attributes{
		reading("0.5000000000000000005"),
		reading("0.50000000000000000001"),
		reading("-0.5"),
		reading("0.5"),
	})
	require.NoError(t, err)

	rows, err := s.Query(ctx, "Readings", store.QuerySpec{Partition: store.StringAttribute("s1")})
	require.NoError(t, err)
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r["at"].Raw
	}
	assert.Equal(t, []string{"-0.5", "0.5", "0.50000000000000000001", "0.5000000000000000005"}, got)
}

func TestStore_PartitionOnlyTable(t *testing.T) {
	users := store.TableDefinition{
		Name:   "Users",
		Schema: store.KeySchema{PartitionKey: store.KeyDef{Name: "id", Type: store.KeyTypeString}},
	}
	s := newTestStore(t, users)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.PutItem(ctx, "Users", store.Attributes{
			"id":   store.StringAttribute(fmt.Sprintf("u%d", i)),
			"name": store.StringAttribute("same"),
		}))
	}
	rows, err := s.Scan(ctx, "Users", store.QuerySpec{})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestStore_CancelledContext(t *testing.T) {
	s := newTestStore(t, movies)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.PutBatch(ctx, "Movies", []store.Attributes{movie("1999", "Magnolia")})
	assert.True(t, errors.Is(err, store.ErrStoreTimeout), "expected timeout, got %v", err)
}
