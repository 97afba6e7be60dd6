package store

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Store is the backing wide-column store. Implementations must be safe for
// concurrent use. Errors should be classified with TimeoutError,
// UnavailableError or RejectedError where the implementation can tell them apart.
type Store interface {
	// ListTables returns up to limit table names.
	ListTables(ctx context.Context, limit int32) ([]string, error)

	// CreateTable creates a table with the given key schema and throughput.
	CreateTable(ctx context.Context, def TableDefinition) error

	// PutBatch writes up to MaxBatchSize items in one request and returns the
	// items the store did not process. A non-nil error means nothing can be
	// assumed written.
	PutBatch(ctx context.Context, table string, items []Attributes) ([]Attributes, error)

	// PutItem writes a single item, replacing any item with the same key.
	PutItem(ctx context.Context, table string, item Attributes) error

	// UpdateItem applies req and returns the full row after the update.
	UpdateItem(ctx context.Context, req UpdateRequest) (Attributes, error)

	// DeleteItem removes the item with the given key. Deleting a missing item is not an error.
	DeleteItem(ctx context.Context, table string, key Attributes) error

	// Query returns the rows of one partition matching q, in sort key order.
	Query(ctx context.Context, table string, q QuerySpec) ([]Attributes, error)

	// Scan returns every row of the table matching q's filter.
	Scan(ctx context.Context, table string, q QuerySpec) ([]Attributes, error)
}

// TableDefinition describes a table to create.
type TableDefinition struct {
	Name          string
	Schema        KeySchema
	ReadCapacity  int64
	WriteCapacity int64
}

// UpdateRequest sets one or more non-key attributes on an existing or new row.
//
// Expression, Names and Values carry the update as a DynamoDB update
// expression. Set carries the same assignments as plain attributes for stores
// that do not evaluate expressions.
type UpdateRequest struct {
	Table      string
	Key        Attributes
	Set        Attributes
	Expression *string
	Names      map[string]string
	Values     map[string]types.AttributeValue
}
