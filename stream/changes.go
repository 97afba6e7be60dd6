// Package stream provides DynamoDB Streams handlers that project table
// changes into records.
package stream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/arbor/store"
)

// Sink receives projected changes.
type Sink interface {
	// Upsert is called with the new image of an inserted or modified row.
	Upsert(ctx context.Context, record store.Record) error
	// Remove is called with the key of a deleted row.
	Remove(ctx context.Context, key store.Key) error
}

// Handler processes DynamoDB stream events for one table.
type Handler struct {
	schema    store.KeySchema
	projector store.Projector
	sink      Sink
	logger    *slog.Logger
}

// NewHandler creates a handler that projects rows with schema and forwards them to sink.
func NewHandler(schema store.KeySchema, sink Sink, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		schema:    schema,
		projector: store.NewProjector(schema),
		sink:      sink,
		logger:    logger,
	}
}

// HandleChanges processes a batch of stream records in order.
// This function is designed to be used as an AWS Lambda handler.
// A sink failure stops processing so the batch is retried.
func (h *Handler) HandleChanges(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	switch record.EventName {
	case "INSERT", "MODIFY":
		if len(record.Change.NewImage) == 0 {
			h.logger.Warn("skipping change without new image",
				"eventID", record.EventID,
				"streamViewType", record.Change.StreamViewType,
			)
			return nil
		}
		rec, err := h.projector.Project(ConvertImage(record.Change.NewImage, h.logger.With("eventID", record.EventID)))
		if err != nil {
			h.logger.Warn("skipping malformed image",
				"eventID", record.EventID,
				"error", err,
			)
			return nil
		}
		if err := h.sink.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("upsert: %w", err)
		}

	case "REMOVE":
		rec, err := h.projector.Project(ConvertImage(record.Change.Keys, h.logger.With("eventID", record.EventID)))
		if err != nil {
			h.logger.Warn("skipping malformed key",
				"eventID", record.EventID,
				"error", err,
			)
			return nil
		}
		key, err := h.schema.KeyOf(rec)
		if err != nil {
			h.logger.Warn("skipping malformed key",
				"eventID", record.EventID,
				"error", err,
			)
			return nil
		}
		if err := h.sink.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove: %w", err)
		}
	}
	return nil
}

// ConvertImage converts a stream image to a store row. Booleans become the
// strings "true" and "false"; maps, lists, sets and binary values become
// String attributes holding JSON, matching how the store encodes nested values.
// Attributes that cannot be written as JSON are dropped and logged to logger,
// or to the default logger when it is nil.
func ConvertImage(image map[string]events.DynamoDBAttributeValue, logger *slog.Logger) store.Attributes {
	if logger == nil {
		logger = slog.Default()
	}
	result := make(store.Attributes, len(image))
	for k, v := range image {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = store.StringAttribute(v.String())
		case events.DataTypeNumber:
			result[k] = store.NumberAttribute(v.Number())
		case events.DataTypeNull:
			result[k] = store.NullAttribute()
		case events.DataTypeBoolean:
			if v.Boolean() {
				result[k] = store.StringAttribute("true")
			} else {
				result[k] = store.StringAttribute("false")
			}
		default:
			b, err := json.Marshal(plain(v))
			if err != nil {
				logger.Warn("dropping attribute that cannot be encoded",
					"attribute", k,
					"dataType", v.DataType(),
					"error", err,
				)
				continue
			}
			result[k] = store.StringAttribute(string(b))
		}
	}
	return result
}

// plain converts a stream attribute into a value encoding/json can write.
func plain(v events.DynamoDBAttributeValue) any {
	switch v.DataType() {
	case events.DataTypeString:
		return v.String()
	case events.DataTypeNumber:
		return json.Number(v.Number())
	case events.DataTypeBoolean:
		return v.Boolean()
	case events.DataTypeBinary:
		return base64.StdEncoding.EncodeToString(v.Binary())
	case events.DataTypeMap:
		m := make(map[string]any, len(v.Map()))
		for k, e := range v.Map() {
			m[k] = plain(e)
		}
		return m
	case events.DataTypeList:
		l := make([]any, 0, len(v.List()))
		for _, e := range v.List() {
			l = append(l, plain(e))
		}
		return l
	case events.DataTypeStringSet:
		return v.StringSet()
	case events.DataTypeNumberSet:
		set := make([]json.Number, 0, len(v.NumberSet()))
		for _, n := range v.NumberSet() {
			set = append(set, json.Number(n))
		}
		return set
	case events.DataTypeBinarySet:
		set := make([]string, 0, len(v.BinarySet()))
		for _, b := range v.BinarySet() {
			set = append(set, base64.StdEncoding.EncodeToString(b))
		}
		return set
	default:
		return nil
	}
}
