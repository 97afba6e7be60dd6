// Package localstore implements store.Store on an embedded badger database,
// for development, tests and offline use.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/jacentio/arbor/internal/keyenc"
	"github.com/jacentio/arbor/store"
)

var (
	// ErrTableNotFound is returned for operations on a table that was never created.
	ErrTableNotFound = errors.New("localstore: table not found")

	// ErrTableExists is returned when creating a table that already exists.
	ErrTableExists = errors.New("localstore: table already exists")

	// ErrInvalidKey is returned when an item's key attributes are missing or mistyped.
	ErrInvalidKey = errors.New("localstore: invalid key")
)

var _ store.Store = (*Store)(nil)

// Store is a store.Store backed by badger.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Options configures the badger database.
type Options struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger receives badger's own log output and store events. If nil,
	// badger logging is disabled and events go to slog.Default().
	Logger *slog.Logger
}

// Open opens or creates a database.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)

	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	logger := opts.Logger
	if logger != nil {
		badgerOpts = badgerOpts.WithLogger(badgerLogger{logger})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListTables returns up to limit table names in name order.
func (s *Store) ListTables(ctx context.Context, limit int32) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.TimeoutError("ListTables", err)
	}
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyenc.CatalogPrefix()

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && int32(len(names)) >= limit {
				break
			}
			var def store.TableDefinition
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &def)
			}); err != nil {
				return err
			}
			names = append(names, def.Name)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("ListTables", err)
	}
	return names, nil
}

// CreateTable records the table definition. Throughput values are kept but
// have no effect.
func (s *Store) CreateTable(ctx context.Context, def store.TableDefinition) error {
	if err := ctx.Err(); err != nil {
		return store.TimeoutError("CreateTable", err)
	}
	if def.Name == "" {
		return store.RejectedError("CreateTable", fmt.Errorf("%w: empty table name", ErrTableNotFound))
	}
	if err := def.Schema.Check(); err != nil {
		return store.RejectedError("CreateTable", err)
	}
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal table definition: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := keyenc.Catalog(def.Name)
		_, err := txn.Get(key)
		if err == nil {
			return store.RejectedError("CreateTable", fmt.Errorf("%w: %s", ErrTableExists, def.Name))
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return wrap("CreateTable", err)
	}
	s.logger.Debug("local table created", "table", def.Name)
	return nil
}

// PutBatch writes every item in one transaction. Nothing is ever left
// unprocessed. Two items with the same key reject the whole batch.
func (s *Store) PutBatch(ctx context.Context, table string, items []store.Attributes) ([]store.Attributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.TimeoutError("PutBatch", err)
	}
	if len(items) > store.MaxBatchSize {
		return nil, store.RejectedError("PutBatch", fmt.Errorf("batch of %d items exceeds %d", len(items), store.MaxBatchSize))
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		def, err := definition(txn, table)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(items))
		for _, item := range items {
			key, err := rowKey(def, item)
			if err != nil {
				return err
			}
			if seen[string(key)] {
				return store.RejectedError("PutBatch", fmt.Errorf("%w: duplicate key in batch", ErrInvalidKey))
			}
			seen[string(key)] = true
			if err := putRow(txn, key, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap("PutBatch", err)
	}
	return nil, nil
}

// PutItem writes one item, replacing any row with the same key.
func (s *Store) PutItem(ctx context.Context, table string, item store.Attributes) error {
	if err := ctx.Err(); err != nil {
		return store.TimeoutError("PutItem", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		def, err := definition(txn, table)
		if err != nil {
			return err
		}
		key, err := rowKey(def, item)
		if err != nil {
			return err
		}
		return putRow(txn, key, item)
	})
	return wrap("PutItem", err)
}

// UpdateItem applies req.Set to the row, creating it when absent, and
// returns the full row.
func (s *Store) UpdateItem(ctx context.Context, req store.UpdateRequest) (store.Attributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.TimeoutError("UpdateItem", err)
	}
	if len(req.Set) == 0 {
		return nil, store.RejectedError("UpdateItem", errors.New("no attributes to set"))
	}

	var row store.Attributes
	err := s.db.Update(func(txn *badger.Txn) error {
		def, err := definition(txn, req.Table)
		if err != nil {
			return err
		}
		key, err := rowKey(def, req.Key)
		if err != nil {
			return err
		}
		for name := range req.Set {
			if def.Schema.IsKey(name) {
				return store.RejectedError("UpdateItem", fmt.Errorf("%w: cannot update key attribute %q", ErrInvalidKey, name))
			}
		}

		row, err = getRow(txn, key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			row = make(store.Attributes, len(req.Key)+len(req.Set))
			for name, av := range req.Key {
				row[name] = av
			}
		} else if err != nil {
			return err
		}
		for name, av := range req.Set {
			row[name] = av
		}
		return putRow(txn, key, row)
	})
	if err != nil {
		return nil, wrap("UpdateItem", err)
	}
	return row, nil
}

// DeleteItem removes the row with the given key if present.
func (s *Store) DeleteItem(ctx context.Context, table string, key store.Attributes) error {
	if err := ctx.Err(); err != nil {
		return store.TimeoutError("DeleteItem", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		def, err := definition(txn, table)
		if err != nil {
			return err
		}
		k, err := rowKey(def, key)
		if err != nil {
			return err
		}
		return txn.Delete(k)
	})
	return wrap("DeleteItem", err)
}

// Query iterates one partition in sort key order, applying q's sort range and projection.
func (s *Store) Query(ctx context.Context, table string, q store.QuerySpec) ([]store.Attributes, error) {
	var rows []store.Attributes
	err := s.db.View(func(txn *badger.Txn) error {
		def, err := definition(txn, table)
		if err != nil {
			return err
		}
		pk, err := component(def.Schema.PartitionKey, q.Partition)
		if err != nil {
			return err
		}
		prefix, err := keyenc.Partition(table, pk)
		if err != nil {
			return store.RejectedError("Query", fmt.Errorf("%w: %v", ErrInvalidKey, err))
		}

		rows, err = iterate(ctx, txn, prefix, func(row store.Attributes) bool {
			if q.SortRange == nil {
				return true
			}
			return q.SortRange.Contains(row[def.Schema.SortKey.Name])
		})
		return err
	})
	if err != nil {
		return nil, wrap("Query", err)
	}
	return project(rows, q.Projection), nil
}

// Scan iterates the whole table, applying q's partition range and projection.
func (s *Store) Scan(ctx context.Context, table string, q store.QuerySpec) ([]store.Attributes, error) {
	var rows []store.Attributes
	err := s.db.View(func(txn *badger.Txn) error {
		def, err := definition(txn, table)
		if err != nil {
			return err
		}
		rows, err = iterate(ctx, txn, keyenc.Table(table), func(row store.Attributes) bool {
			if q.PartitionRange == nil {
				return true
			}
			return q.PartitionRange.Contains(row[def.Schema.PartitionKey.Name])
		})
		return err
	})
	if err != nil {
		return nil, wrap("Scan", err)
	}
	return project(rows, q.Projection), nil
}

func iterate(ctx context.Context, txn *badger.Txn, prefix []byte, keep func(store.Attributes) bool) ([]store.Attributes, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var rows []store.Attributes
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, store.TimeoutError("iterate", err)
		}
		var row store.Attributes
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		}); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		if keep(row) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func project(rows []store.Attributes, names []string) []store.Attributes {
	if len(names) == 0 {
		return rows
	}
	out := make([]store.Attributes, len(rows))
	for i, row := range rows {
		p := make(store.Attributes, len(names))
		for _, n := range names {
			if av, ok := row[n]; ok {
				p[n] = av
			}
		}
		out[i] = p
	}
	return out
}

func definition(txn *badger.Txn, table string) (store.TableDefinition, error) {
	var def store.TableDefinition
	item, err := txn.Get(keyenc.Catalog(table))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return def, store.RejectedError("lookup", fmt.Errorf("%w: %s", ErrTableNotFound, table))
	}
	if err != nil {
		return def, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &def)
	})
	return def, err
}

func component(kd store.KeyDef, av store.AttributeValue) (keyenc.Component, error) {
	want := store.KindString
	if kd.Type == store.KeyTypeNumber {
		want = store.KindNumber
	}
	if av.Kind != want {
		return keyenc.Component{}, store.RejectedError("key", fmt.Errorf("%w: %s must be %s, got %s", ErrInvalidKey, kd.Name, kd.Type, av.Kind))
	}
	return keyenc.Component{Numeric: want == store.KindNumber, Text: av.Raw}, nil
}

func rowKey(def store.TableDefinition, item store.Attributes) ([]byte, error) {
	pk, err := component(def.Schema.PartitionKey, item[def.Schema.PartitionKey.Name])
	if err != nil {
		return nil, err
	}
	var sk *keyenc.Component
	if def.Schema.HasSortKey() {
		c, err := component(def.Schema.SortKey, item[def.Schema.SortKey.Name])
		if err != nil {
			return nil, err
		}
		sk = &c
	}
	key, err := keyenc.Row(def.Name, pk, sk)
	if err != nil {
		return nil, store.RejectedError("key", fmt.Errorf("%w: %v", ErrInvalidKey, err))
	}
	return key, nil
}

func getRow(txn *badger.Txn, key []byte) (store.Attributes, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var row store.Attributes
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &row)
	})
	return row, err
}

func putRow(txn *badger.Txn, key []byte, row store.Attributes) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	return txn.Set(key, data)
}

// wrap classifies badger failures. Errors already carrying a store
// classification pass through.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *store.StoreError
	if errors.As(err, &se) {
		return err
	}
	return store.UnavailableError(op, err)
}
