package stream

import (
	"context"

	"github.com/jacentio/arbor/store"
)

// TableSink mirrors changes into another table, such as a local replica.
type TableSink struct {
	table *store.Table
}

// NewTableSink returns a Sink writing to t.
func NewTableSink(t *store.Table) *TableSink {
	return &TableSink{table: t}
}

func (s *TableSink) Upsert(ctx context.Context, record store.Record) error {
	return s.table.Put(ctx, record)
}

func (s *TableSink) Remove(ctx context.Context, key store.Key) error {
	return s.table.Delete(ctx, key)
}
