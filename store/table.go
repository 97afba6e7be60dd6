package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// Table runs the caller-facing operations against one table of a Store.
type Table struct {
	store     Store
	name      string
	schema    KeySchema
	config    Config
	queries   QueryBuilder
	projector Projector
	writer    *BatchWriter
	logger    *slog.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Table for cfg.TableName with key schema cfg.Schema.
func New(s Store, cfg Config, opts ...Option) (*Table, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrValidation)
	}
	cfg.validate()
	if err := cfg.Schema.Check(); err != nil {
		return nil, err
	}

	t := &Table{
		store:     s,
		name:      cfg.TableName,
		schema:    cfg.Schema,
		config:    cfg,
		queries:   NewQueryBuilder(cfg.Schema),
		projector: NewProjector(cfg.Schema),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("table", t.name)
	t.writer = NewBatchWriter(s, cfg, t.logger)
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Schema returns the table's key schema.
func (t *Table) Schema() KeySchema { return t.schema }

// QueryResult holds projected rows and the number of rows dropped because
// their keys could not be read.
type QueryResult struct {
	Records []Record
	Skipped int
}

// call runs fn under the configured per-call timeout and classifies its error.
func (t *Table) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		err = classifyStoreError(op, err)
		t.logger.Error("store call failed",
			"op", op,
			"error", err,
		)
		return err
	}
	return nil
}

// ListTables returns up to Config.ListLimit table names.
func (t *Table) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	err := t.call(ctx, "ListTables", func(ctx context.Context) error {
		var err error
		names, err = t.store.ListTables(ctx, t.config.ListLimit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// CreateTable creates the table with the configured key schema and throughput.
func (t *Table) CreateTable(ctx context.Context) error {
	def := TableDefinition{
		Name:          t.name,
		Schema:        t.schema,
		ReadCapacity:  t.config.ReadCapacity,
		WriteCapacity: t.config.WriteCapacity,
	}
	if err := t.call(ctx, "CreateTable", func(ctx context.Context) error {
		return t.store.CreateTable(ctx, def)
	}); err != nil {
		return err
	}
	t.logger.Info("table created",
		"partitionKey", t.schema.PartitionKey.Name,
		"sortKey", t.schema.SortKey.Name,
	)
	return nil
}

// Insert writes records in batches. Per-record failures are reported in the
// result and never abort the rest.
func (t *Table) Insert(ctx context.Context, records []Record) BatchResult {
	return t.writer.Submit(ctx, records)
}

// Put validates and writes a single record, replacing any row with the same key.
func (t *Table) Put(ctx context.Context, record Record) error {
	if err := t.schema.Validate(record); err != nil {
		return err
	}
	attrs, err := NewCodec(t.schema).EncodeRecord(record)
	if err != nil {
		return err
	}
	return t.call(ctx, "PutItem", func(ctx context.Context) error {
		return t.store.PutItem(ctx, t.name, attrs)
	})
}

// InsertDocument reads a JSON array of objects from r and writes each object
// as a record. Elements that are not objects fail individually. An error is
// returned only when the document itself cannot be read.
func (t *Table) InsertDocument(ctx context.Context, r io.Reader) (BatchResult, error) {
	elems, err := ReadDocument(r)
	if err != nil {
		return BatchResult{}, err
	}

	var notObjects []FailedRecord
	records := make([]Record, 0, len(elems))
	positions := make([]int, 0, len(elems))
	for i, e := range elems {
		doc, ok := e.(Document)
		if !ok {
			notObjects = append(notObjects, FailedRecord{
				Index: i,
				Err:   &ValidationError{Err: fmt.Errorf("%w: element is %T, not an object", ErrValidation, e)},
			})
			continue
		}
		records = append(records, doc)
		positions = append(positions, i)
	}

	result := t.writer.Submit(ctx, records)
	for i := range result.Failed {
		result.Failed[i].Index = positions[result.Failed[i].Index]
	}
	result.Failed = append(result.Failed, notObjects...)
	slices.SortStableFunc(result.Failed, func(a, b FailedRecord) int {
		return a.Index - b.Index
	})
	return result, nil
}

// Update sets one non-key field on the row identified by key and returns the
// row as stored afterwards. The row is created if it does not exist.
func (t *Table) Update(ctx context.Context, key Key, field string, value Value) (Record, error) {
	if err := checkAttributeName(field); err != nil {
		return nil, err
	}
	if t.schema.IsKey(field) {
		return nil, &ValidationError{Field: field, Err: fmt.Errorf("%w: key attributes cannot be updated", ErrValidation)}
	}
	keyAttrs, err := key.Attributes(t.schema)
	if err != nil {
		return nil, err
	}
	av, err := Encode(value)
	if err != nil {
		return nil, &CodecError{Field: field, Err: err}
	}

	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name(field), expression.Value(av))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("%w: build update: %v", ErrValidation, err)
	}

	req := UpdateRequest{
		Table:      t.name,
		Key:        keyAttrs,
		Set:        Attributes{field: av},
		Expression: expr.Update(),
		Names:      expr.Names(),
		Values:     expr.Values(),
	}

	var row Attributes
	if err := t.call(ctx, "UpdateItem", func(ctx context.Context) error {
		var err error
		row, err = t.store.UpdateItem(ctx, req)
		return err
	}); err != nil {
		return nil, err
	}
	return t.projector.Project(row)
}

// Delete removes the row identified by key. Deleting a missing row succeeds.
func (t *Table) Delete(ctx context.Context, key Key) error {
	keyAttrs, err := key.Attributes(t.schema)
	if err != nil {
		return err
	}
	return t.call(ctx, "DeleteItem", func(ctx context.Context) error {
		return t.store.DeleteItem(ctx, t.name, keyAttrs)
	})
}

// Query returns every row in the given partition, in sort key order.
func (t *Table) Query(ctx context.Context, partition Value, opts ...QueryOption) (QueryResult, error) {
	spec, err := t.queries.PointQuery(partition, opts...)
	if err != nil {
		return QueryResult{}, err
	}
	var rows []Attributes
	if err := t.call(ctx, "Query", func(ctx context.Context) error {
		var err error
		rows, err = t.store.Query(ctx, t.name, spec)
		return err
	}); err != nil {
		return QueryResult{}, err
	}
	return t.project("Query", rows), nil
}

// Scan returns every row whose partition key lies between low and high inclusive.
func (t *Table) Scan(ctx context.Context, low, high Value, opts ...QueryOption) (QueryResult, error) {
	spec, err := t.queries.RangeScan(low, high, opts...)
	if err != nil {
		return QueryResult{}, err
	}
	var rows []Attributes
	if err := t.call(ctx, "Scan", func(ctx context.Context) error {
		var err error
		rows, err = t.store.Scan(ctx, t.name, spec)
		return err
	}); err != nil {
		return QueryResult{}, err
	}
	return t.project("Scan", rows), nil
}

func (t *Table) project(op string, rows []Attributes) QueryResult {
	records, skipped := t.projector.ProjectAll(rows)
	if skipped > 0 {
		t.logger.Warn("skipped malformed rows",
			"op", op,
			"skipped", skipped,
		)
	}
	return QueryResult{Records: records, Skipped: skipped}
}
