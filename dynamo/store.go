// Package dynamo implements store.Store on Amazon DynamoDB.
package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/store"
)

// API is the subset of *dynamodb.Client the Store uses.
type API interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

var (
	_ API         = (*dynamodb.Client)(nil)
	_ store.Store = (*Store)(nil)
)

// Store is a store.Store backed by DynamoDB.
type Store struct {
	client      API
	waitTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTableWait makes CreateTable wait up to d for the new table to become
// active. Zero returns as soon as the create request is accepted.
func WithTableWait(d time.Duration) Option {
	return func(s *Store) { s.waitTimeout = d }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store using client.
func New(client API, opts ...Option) *Store {
	s := &Store{
		client:      client,
		waitTimeout: 2 * time.Minute,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListTables pages through table names until limit names are collected.
func (s *Store) ListTables(ctx context.Context, limit int32) ([]string, error) {
	input := &dynamodb.ListTablesInput{}
	if limit > 0 {
		input.Limit = aws.Int32(min(limit, 100))
	}

	var names []string
	paginator := dynamodb.NewListTablesPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("ListTables", err)
		}
		names = append(names, page.TableNames...)
		if limit > 0 && int32(len(names)) >= limit {
			return names[:limit], nil
		}
	}
	return names, nil
}

// CreateTable creates a provisioned table, or an on-demand table when both
// capacities are zero.
func (s *Store) CreateTable(ctx context.Context, def store.TableDefinition) error {
	input := &dynamodb.CreateTableInput{
		TableName: aws.String(def.Name),
		AttributeDefinitions: []types.AttributeDefinition{{
			AttributeName: aws.String(def.Schema.PartitionKey.Name),
			AttributeType: scalarType(def.Schema.PartitionKey.Type),
		}},
		KeySchema: []types.KeySchemaElement{{
			AttributeName: aws.String(def.Schema.PartitionKey.Name),
			KeyType:       types.KeyTypeHash,
		}},
	}
	if def.Schema.HasSortKey() {
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(def.Schema.SortKey.Name),
			AttributeType: scalarType(def.Schema.SortKey.Type),
		})
		input.KeySchema = append(input.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(def.Schema.SortKey.Name),
			KeyType:       types.KeyTypeRange,
		})
	}
	if def.ReadCapacity == 0 && def.WriteCapacity == 0 {
		input.BillingMode = types.BillingModePayPerRequest
	} else {
		input.BillingMode = types.BillingModeProvisioned
		input.ProvisionedThroughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(def.ReadCapacity),
			WriteCapacityUnits: aws.Int64(def.WriteCapacity),
		}
	}

	if _, err := s.client.CreateTable(ctx, input); err != nil {
		return classify("CreateTable", err)
	}
	if s.waitTimeout <= 0 {
		return nil
	}

	s.logger.Info("waiting for table to become active",
		"table", def.Name,
		"timeout", s.waitTimeout,
	)
	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(def.Name)}, s.waitTimeout); err != nil {
		return classify("CreateTable", fmt.Errorf("wait for table %s: %w", def.Name, err))
	}
	return nil
}

func scalarType(t store.KeyType) types.ScalarAttributeType {
	if t == store.KeyTypeNumber {
		return types.ScalarAttributeTypeN
	}
	return types.ScalarAttributeTypeS
}

// PutBatch issues one BatchWriteItem call and returns the put requests
// DynamoDB reported as unprocessed.
func (s *Store) PutBatch(ctx context.Context, table string, items []store.Attributes) ([]store.Attributes, error) {
	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return nil, store.RejectedError("PutBatch", fmt.Errorf("%w: %v", store.ErrEncoding, err))
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}

	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{table: requests},
	})
	if err != nil {
		return nil, classify("PutBatch", err)
	}

	var unprocessed []store.Attributes
	for _, req := range out.UnprocessedItems[table] {
		if req.PutRequest == nil {
			continue
		}
		var item store.Attributes
		if err := attributevalue.UnmarshalMap(req.PutRequest.Item, &item); err != nil {
			return nil, store.UnavailableError("PutBatch", fmt.Errorf("decode unprocessed item: %w", err))
		}
		unprocessed = append(unprocessed, item)
	}
	return unprocessed, nil
}

// PutItem writes a single item.
func (s *Store) PutItem(ctx context.Context, table string, item store.Attributes) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return store.RejectedError("PutItem", fmt.Errorf("%w: %v", store.ErrEncoding, err))
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	})
	return classify("PutItem", err)
}

// UpdateItem runs req's update expression and returns the row as stored afterwards.
func (s *Store) UpdateItem(ctx context.Context, req store.UpdateRequest) (store.Attributes, error) {
	if req.Expression == nil {
		return nil, store.RejectedError("UpdateItem", fmt.Errorf("missing update expression"))
	}
	key, err := attributevalue.MarshalMap(req.Key)
	if err != nil {
		return nil, store.RejectedError("UpdateItem", fmt.Errorf("%w: %v", store.ErrEncoding, err))
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(req.Table),
		Key:                       key,
		UpdateExpression:          req.Expression,
		ExpressionAttributeNames:  req.Names,
		ExpressionAttributeValues: req.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, classify("UpdateItem", err)
	}

	var row store.Attributes
	if err := attributevalue.UnmarshalMap(out.Attributes, &row); err != nil {
		return nil, store.UnavailableError("UpdateItem", fmt.Errorf("decode row: %w", err))
	}
	return row, nil
}

// DeleteItem removes one item.
func (s *Store) DeleteItem(ctx context.Context, table string, key store.Attributes) error {
	av, err := attributevalue.MarshalMap(key)
	if err != nil {
		return store.RejectedError("DeleteItem", fmt.Errorf("%w: %v", store.ErrEncoding, err))
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       av,
	})
	return classify("DeleteItem", err)
}

// Query pages through every result of q's key condition.
func (s *Store) Query(ctx context.Context, table string, q store.QuerySpec) ([]store.Attributes, error) {
	if q.KeyCondition == nil {
		return nil, store.RejectedError("Query", fmt.Errorf("missing key condition"))
	}
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    q.KeyCondition,
		FilterExpression:          q.Filter,
		ProjectionExpression:      q.ProjectionExpression,
		ExpressionAttributeNames:  q.Names,
		ExpressionAttributeValues: q.Values,
	})

	var rows []store.Attributes
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("Query", err)
		}
		if rows, err = appendRows(rows, page.Items); err != nil {
			return nil, store.UnavailableError("Query", err)
		}
	}
	return rows, nil
}

// Scan pages through the whole table applying q's filter.
func (s *Store) Scan(ctx context.Context, table string, q store.QuerySpec) ([]store.Attributes, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(table),
		FilterExpression:          q.Filter,
		ProjectionExpression:      q.ProjectionExpression,
		ExpressionAttributeNames:  q.Names,
		ExpressionAttributeValues: q.Values,
	})

	var rows []store.Attributes
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("Scan", err)
		}
		if rows, err = appendRows(rows, page.Items); err != nil {
			return nil, store.UnavailableError("Scan", err)
		}
	}
	return rows, nil
}

func appendRows(rows []store.Attributes, items []map[string]types.AttributeValue) ([]store.Attributes, error) {
	for _, raw := range items {
		var row store.Attributes
		if err := attributevalue.UnmarshalMap(raw, &row); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
