package store

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Outcome summarises a BatchResult.
type Outcome int

const (
	Succeeded Outcome = iota
	PartiallySucceeded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case PartiallySucceeded:
		return "partially succeeded"
	default:
		return "failed"
	}
}

// FailedRecord is a record that was not written, with the reason.
// Index is the record's position in the submitted slice.
type FailedRecord struct {
	Index  int
	Record Record
	Err    error
}

// BatchResult reports what a bulk write did. Failed is ordered by Index.
type BatchResult struct {
	Written int
	Failed  []FailedRecord
}

// Outcome classifies the result. An empty submission succeeds.
func (r BatchResult) Outcome() Outcome {
	switch {
	case len(r.Failed) == 0:
		return Succeeded
	case r.Written > 0:
		return PartiallySucceeded
	default:
		return Failed
	}
}

// Err returns nil when every record was written, and a *PartialBatchError otherwise.
func (r BatchResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialBatchError{Written: r.Written, Failed: len(r.Failed)}
}

// BatchWriter writes records in chunks the store accepts, retrying items the
// store leaves unprocessed.
type BatchWriter struct {
	store  Store
	table  string
	schema KeySchema
	codec  Codec
	config Config
	logger *slog.Logger
}

// NewBatchWriter creates a BatchWriter for cfg.TableName.
func NewBatchWriter(s Store, cfg Config, logger *slog.Logger) *BatchWriter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.validate()
	return &BatchWriter{
		store:  s,
		table:  cfg.TableName,
		schema: cfg.Schema,
		codec:  NewCodec(cfg.Schema),
		config: cfg,
		logger: logger,
	}
}

type pendingItem struct {
	index  int
	record Record
	attrs  Attributes
	key    string
}

type chunkResult struct {
	written int
	failed  []FailedRecord
}

func (c *chunkResult) fail(items []pendingItem, err error) {
	for _, it := range items {
		c.failed = append(c.failed, FailedRecord{Index: it.index, Record: it.record, Err: err})
	}
}

// Submit validates, encodes and writes records. Invalid records are reported
// in the result without reaching the store and never stop the others.
func (w *BatchWriter) Submit(ctx context.Context, records []Record) BatchResult {
	log := w.logger.With(
		"batchID", uuid.NewString(),
		"table", w.table,
	)

	var result BatchResult

	// 1. Validate and encode each record on its own
	pending := make([]pendingItem, 0, len(records))
	for i, rec := range records {
		item, err := w.prepare(rec)
		if err != nil {
			log.Warn("rejected record",
				"index", i,
				"error", err,
			)
			result.Failed = append(result.Failed, FailedRecord{Index: i, Record: rec, Err: err})
			continue
		}
		item.index = i
		pending = append(pending, item)
	}

	// 2. Split into store-sized chunks and write them with bounded concurrency.
	// Chunks sharing a key land in separate waves so the later record wins.
	chunks := w.chunk(pending)
	results := make([]chunkResult, len(chunks))

	for _, wave := range waves(chunks) {
		var g errgroup.Group
		g.SetLimit(w.config.Concurrency)
		for _, i := range wave {
			g.Go(func() error {
				results[i] = w.writeChunk(ctx, log.With("chunk", i), chunks[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	// 3. Merge chunk results in input order
	for _, r := range results {
		result.Written += r.written
		result.Failed = append(result.Failed, r.failed...)
	}
	slices.SortStableFunc(result.Failed, func(a, b FailedRecord) int {
		return a.Index - b.Index
	})

	log.Info("batch submitted",
		"records", len(records),
		"chunks", len(chunks),
		"written", result.Written,
		"failed", len(result.Failed),
		"outcome", result.Outcome().String(),
	)
	return result
}

func (w *BatchWriter) prepare(rec Record) (pendingItem, error) {
	if err := w.schema.Validate(rec); err != nil {
		return pendingItem{}, err
	}
	attrs, err := w.codec.EncodeRecord(rec)
	if err != nil {
		return pendingItem{}, err
	}
	return pendingItem{record: rec, attrs: attrs, key: w.schema.identity(attrs)}, nil
}

// chunk splits items into groups of at most BatchSize. A group is closed
// early rather than hold two items with the same key, which the store rejects.
func (w *BatchWriter) chunk(items []pendingItem) [][]pendingItem {
	var chunks [][]pendingItem
	var cur []pendingItem
	seen := make(map[string]bool)
	for _, it := range items {
		if len(cur) == w.config.BatchSize || seen[it.key] {
			chunks = append(chunks, cur)
			cur = nil
			seen = make(map[string]bool)
		}
		cur = append(cur, it)
		seen[it.key] = true
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// waves groups chunk indexes in order. A chunk repeating a key of an earlier
// chunk in the current wave starts a new wave, which runs only after the
// previous one has finished.
func waves(chunks [][]pendingItem) [][]int {
	var out [][]int
	var cur []int
	seen := make(map[string]bool)
	for i, c := range chunks {
		for _, it := range c {
			if seen[it.key] {
				out = append(out, cur)
				cur = nil
				seen = make(map[string]bool)
				break
			}
		}
		cur = append(cur, i)
		for _, it := range c {
			seen[it.key] = true
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// writeChunk writes one chunk, re-submitting only the items the store
// reports unprocessed until none remain or the retry budget is spent.
func (w *BatchWriter) writeChunk(ctx context.Context, log *slog.Logger, items []pendingItem) chunkResult {
	var res chunkResult
	policy := backoff.WithContext(w.retryPolicy(), ctx)
	remaining := items

	for attempt := 1; ; attempt++ {
		unprocessed, err := w.put(ctx, remaining)
		if err != nil {
			log.Error("batch write failed",
				"attempt", attempt,
				"items", len(remaining),
				"error", err,
			)
			res.fail(remaining, err)
			return res
		}

		left := w.match(remaining, unprocessed)
		res.written += len(remaining) - len(left)
		if len(left) == 0 {
			return res
		}
		remaining = left

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			err := ErrUnprocessed
			if ctx.Err() != nil {
				err = TimeoutError("PutBatch", ctx.Err())
			}
			log.Warn("giving up on unprocessed items",
				"attempts", attempt,
				"items", len(remaining),
			)
			res.fail(remaining, err)
			return res
		}

		log.Warn("retrying unprocessed items",
			"attempt", attempt,
			"items", len(remaining),
			"wait", wait,
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.fail(remaining, TimeoutError("PutBatch", ctx.Err()))
			return res
		case <-timer.C:
		}
	}
}

func (w *BatchWriter) retryPolicy() backoff.BackOff {
	if w.config.MaxRetries == 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.config.InitialBackoff
	b.MaxInterval = w.config.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(w.config.MaxRetries))
}

// put issues one PutBatch call under the configured timeout.
func (w *BatchWriter) put(ctx context.Context, items []pendingItem) ([]Attributes, error) {
	callCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	attrs := make([]Attributes, len(items))
	for i, it := range items {
		attrs[i] = it.attrs
	}
	unprocessed, err := w.store.PutBatch(callCtx, w.table, attrs)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			var se *StoreError
			if !errors.As(err, &se) || se.Kind != ErrStoreTimeout {
				return nil, TimeoutError("PutBatch", err)
			}
		}
		return nil, classifyStoreError("PutBatch", err)
	}
	return unprocessed, nil
}

// match returns the items of sent that the store reported unprocessed.
func (w *BatchWriter) match(sent []pendingItem, unprocessed []Attributes) []pendingItem {
	if len(unprocessed) == 0 {
		return nil
	}
	keys := make(map[string]bool, len(unprocessed))
	for _, attrs := range unprocessed {
		keys[w.schema.identity(attrs)] = true
	}
	var left []pendingItem
	for _, it := range sent {
		if keys[it.key] {
			left = append(left, it)
		}
	}
	return left
}
