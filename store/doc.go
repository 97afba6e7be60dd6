// Package store provides a data access layer over a wide-column table with a
// fixed key schema.
//
// Records are loosely typed documents. The package converts them to the
// store's attribute model, writes them in batches the store accepts, builds
// key conditions and filters for reads, and rebuilds records from raw rows.
//
// # Features
//
//   - Exact numbers: decimal text is never rounded, exponent forms are expanded
//   - Nested documents and lists stored as canonical JSON text
//   - Batch writes chunked to 25 items, with retry of unprocessed items
//   - Per-record failure reporting; one bad record never aborts a batch
//   - Point queries with optional sort key range, partition range scans
//   - Lenient bulk documents (comments, trailing commas)
//
// # Store
//
// All I/O goes through the [Store] interface. The dynamo package implements it
// on Amazon DynamoDB and the localstore package on an embedded badger database.
//
// # Usage
//
//	cfg := store.DefaultConfig() // table "Movies", keys year (N) and title (S)
//	tbl, err := store.New(backend, cfg)
//	result := tbl.Insert(ctx, []store.Record{
//	    {{Name: "year", Value: store.Int(1999)}, {Name: "title", Value: store.String("Magnolia")}},
//	})
//	rows, err := tbl.Query(ctx, store.Int(1999))
//
// # Errors
//
//   - [ErrValidation] - record or argument does not fit the key schema
//   - [ErrMissingKey], [ErrTypeMismatch] - specific validation causes
//   - [ErrEncoding] - value cannot be stored (NaN, malformed number)
//   - [ErrInvalidRange] - range with low above high
//   - [ErrStoreTimeout], [ErrStoreUnavailable], [ErrStoreRejected] - store call failures
//   - [ErrUnprocessed] - batch item never accepted within the retry budget
//   - [ErrPartialBatch] - some records of a batch were not written
package store
