package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Range is an inclusive pair of bounds.
type Range struct {
	Low  AttributeValue
	High AttributeValue
}

// Contains reports whether v lies within r, bounds included.
func (r Range) Contains(v AttributeValue) bool {
	lo, err := CompareAttributes(r.Low, v)
	if err != nil || lo > 0 {
		return false
	}
	hi, err := CompareAttributes(v, r.High)
	return err == nil && hi <= 0
}

// QuerySpec is a prepared point query or range scan.
//
// The structured fields (Partition, SortRange, PartitionRange, Projection)
// describe the request for stores that evaluate it directly. KeyCondition,
// Filter, ProjectionExpression, Names and Values carry the same request as
// DynamoDB expressions with every name and value behind a placeholder.
type QuerySpec struct {
	Partition      AttributeValue
	SortRange      *Range
	PartitionRange *Range
	Projection     []string

	KeyCondition         *string
	Filter               *string
	ProjectionExpression *string
	Names                map[string]string
	Values               map[string]types.AttributeValue
}

type queryOptions struct {
	sortLow, sortHigh Value
	hasSortRange      bool
	projection        []string
}

// QueryOption customises a point query or range scan.
type QueryOption func(*queryOptions)

// WithSortRange restricts a point query to sort keys between low and high inclusive.
func WithSortRange(low, high Value) QueryOption {
	return func(o *queryOptions) {
		o.sortLow, o.sortHigh = low, high
		o.hasSortRange = true
	}
}

// WithProjection limits the returned attributes to names. Key attributes are
// always returned.
func WithProjection(names ...string) QueryOption {
	return func(o *queryOptions) {
		o.projection = append(o.projection, names...)
	}
}

// QueryBuilder turns key values into QuerySpecs for one key schema.
type QueryBuilder struct {
	schema KeySchema
}

// NewQueryBuilder returns a QueryBuilder for schema.
func NewQueryBuilder(schema KeySchema) QueryBuilder {
	return QueryBuilder{schema: schema}
}

// PointQuery selects every row whose partition key equals partition.
func (b QueryBuilder) PointQuery(partition Value, opts ...QueryOption) (QuerySpec, error) {
	o := applyQueryOptions(opts)

	pk, err := encodeKeyValue(b.schema.PartitionKey, partition)
	if err != nil {
		return QuerySpec{}, err
	}
	spec := QuerySpec{Partition: pk}
	keyCond := expression.Key(b.schema.PartitionKey.Name).Equal(expression.Value(pk))

	if o.hasSortRange {
		if !b.schema.HasSortKey() {
			return QuerySpec{}, &ValidationError{Err: fmt.Errorf("%w: table has no sort key", ErrValidation)}
		}
		r, err := b.rangeOf(b.schema.SortKey, o.sortLow, o.sortHigh)
		if err != nil {
			return QuerySpec{}, err
		}
		spec.SortRange = &r
		keyCond = keyCond.And(expression.Key(b.schema.SortKey.Name).Between(expression.Value(r.Low), expression.Value(r.High)))
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if len(o.projection) > 0 {
		names, proj, err := b.projection(o.projection)
		if err != nil {
			return QuerySpec{}, err
		}
		spec.Projection = names
		builder = builder.WithProjection(proj)
	}

	expr, err := builder.Build()
	if err != nil {
		return QuerySpec{}, fmt.Errorf("%w: build key condition: %v", ErrValidation, err)
	}
	spec.KeyCondition = expr.KeyCondition()
	spec.ProjectionExpression = expr.Projection()
	spec.Names = expr.Names()
	spec.Values = expr.Values()
	return spec, nil
}

// RangeScan selects every row whose partition key lies between low and high
// inclusive. Equal bounds select exactly that partition value.
func (b QueryBuilder) RangeScan(low, high Value, opts ...QueryOption) (QuerySpec, error) {
	o := applyQueryOptions(opts)
	if o.hasSortRange {
		return QuerySpec{}, &ValidationError{Err: fmt.Errorf("%w: sort range applies to point queries only", ErrValidation)}
	}

	r, err := b.rangeOf(b.schema.PartitionKey, low, high)
	if err != nil {
		return QuerySpec{}, err
	}
	spec := QuerySpec{PartitionRange: &r}
	filter := expression.Name(b.schema.PartitionKey.Name).Between(expression.Value(r.Low), expression.Value(r.High))

	builder := expression.NewBuilder().WithFilter(filter)
	if len(o.projection) > 0 {
		names, proj, err := b.projection(o.projection)
		if err != nil {
			return QuerySpec{}, err
		}
		spec.Projection = names
		builder = builder.WithProjection(proj)
	}

	expr, err := builder.Build()
	if err != nil {
		return QuerySpec{}, fmt.Errorf("%w: build filter: %v", ErrValidation, err)
	}
	spec.Filter = expr.Filter()
	spec.ProjectionExpression = expr.Projection()
	spec.Names = expr.Names()
	spec.Values = expr.Values()
	return spec, nil
}

func applyQueryOptions(opts []QueryOption) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (b QueryBuilder) rangeOf(def KeyDef, low, high Value) (Range, error) {
	lo, err := encodeKeyValue(def, low)
	if err != nil {
		return Range{}, err
	}
	hi, err := encodeKeyValue(def, high)
	if err != nil {
		return Range{}, err
	}
	c, err := CompareAttributes(lo, hi)
	if err != nil {
		return Range{}, &ValidationError{Field: def.Name, Err: err}
	}
	if c > 0 {
		return Range{}, &ValidationError{Field: def.Name, Err: fmt.Errorf("%w: low %s is above high %s", ErrInvalidRange, lo.Raw, hi.Raw)}
	}
	return Range{Low: lo, High: hi}, nil
}

// projection returns the projected attribute names, key attributes first,
// and the matching projection builder.
func (b QueryBuilder) projection(requested []string) ([]string, expression.ProjectionBuilder, error) {
	names := []string{b.schema.PartitionKey.Name}
	if b.schema.HasSortKey() {
		names = append(names, b.schema.SortKey.Name)
	}
	for _, n := range requested {
		if err := checkAttributeName(n); err != nil {
			return nil, expression.ProjectionBuilder{}, err
		}
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}

	rest := make([]expression.NameBuilder, 0, len(names)-1)
	for _, n := range names[1:] {
		rest = append(rest, expression.Name(n))
	}
	return names, expression.NamesList(expression.Name(names[0]), rest...), nil
}

// checkAttributeName rejects names the expression builder would read as a
// document path rather than a top-level attribute.
func checkAttributeName(name string) error {
	if name == "" || strings.ContainsAny(name, ".[]") {
		return &ValidationError{Field: name, Err: fmt.Errorf("%w: invalid attribute name", ErrValidation)}
	}
	return nil
}
