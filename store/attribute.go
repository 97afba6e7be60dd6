package store

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AttributeKind is the storage-level type of an AttributeValue.
type AttributeKind int

const (
	KindNull AttributeKind = iota
	KindNumber
	KindString
)

func (k AttributeKind) String() string {
	switch k {
	case KindNumber:
		return "N"
	case KindString:
		return "S"
	default:
		return "NULL"
	}
}

// AttributeValue is a value in the store's own type system.
// Numbers keep their exact decimal text in Raw. The zero value is Null.
type AttributeValue struct {
	Kind AttributeKind
	Raw  string
}

// NumberAttribute returns a Number attribute holding text verbatim.
func NumberAttribute(text string) AttributeValue {
	return AttributeValue{Kind: KindNumber, Raw: text}
}

// StringAttribute returns a String attribute.
func StringAttribute(s string) AttributeValue {
	return AttributeValue{Kind: KindString, Raw: s}
}

// NullAttribute returns a Null attribute.
func NullAttribute() AttributeValue {
	return AttributeValue{}
}

func (a AttributeValue) IsNull() bool { return a.Kind == KindNull }

func (a AttributeValue) String() string {
	switch a.Kind {
	case KindNumber:
		return "N:" + a.Raw
	case KindString:
		return "S:" + a.Raw
	default:
		return "NULL"
	}
}

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (a AttributeValue) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	switch a.Kind {
	case KindNumber:
		return &types.AttributeValueMemberN{Value: a.Raw}, nil
	case KindString:
		return &types.AttributeValueMemberS{Value: a.Raw}, nil
	default:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
//
// Rows written by other tools may hold booleans, sets, lists or maps. Booleans
// become the strings "true" and "false"; the other composite types are folded
// into a String holding their JSON text so the row stays readable.
func (a *AttributeValue) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		*a = AttributeValue{}
	case *types.AttributeValueMemberN:
		*a = NumberAttribute(v.Value)
	case *types.AttributeValueMemberS:
		*a = StringAttribute(v.Value)
	case *types.AttributeValueMemberBOOL:
		if v.Value {
			*a = StringAttribute("true")
		} else {
			*a = StringAttribute("false")
		}
	default:
		var plain any
		if err := attributevalue.Unmarshal(av, &plain); err != nil {
			return fmt.Errorf("%w: %T: %v", ErrDecoding, av, err)
		}
		b, err := json.Marshal(plain)
		if err != nil {
			return fmt.Errorf("%w: %T: %v", ErrDecoding, av, err)
		}
		*a = StringAttribute(string(b))
	}
	return nil
}

// MarshalJSON writes the attribute in DynamoDB JSON form, e.g. {"N":"2020"}.
func (a AttributeValue) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case KindNumber:
		return json.Marshal(map[string]string{"N": a.Raw})
	case KindString:
		return json.Marshal(map[string]string{"S": a.Raw})
	default:
		return []byte(`{"NULL":true}`), nil
	}
}

func (a *AttributeValue) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if raw, ok := m["N"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*a = NumberAttribute(s)
		return nil
	}
	if raw, ok := m["S"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*a = StringAttribute(s)
		return nil
	}
	if _, ok := m["NULL"]; ok {
		*a = AttributeValue{}
		return nil
	}
	return fmt.Errorf("%w: unrecognised attribute %s", ErrDecoding, data)
}

// Attributes is one raw row: attribute name to value.
type Attributes map[string]AttributeValue

// CompareAttributes orders two attributes of the same kind.
// Numbers compare by exact decimal value and strings bytewise.
func CompareAttributes(a, b AttributeValue) (int, error) {
	if a.Kind != b.Kind {
		return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, a.Kind, b.Kind)
	}
	switch a.Kind {
	case KindNumber:
		x, err := ratOf(a.Raw)
		if err != nil {
			return 0, err
		}
		y, err := ratOf(b.Raw)
		if err != nil {
			return 0, err
		}
		return x.Cmp(y), nil
	case KindString:
		return strings.Compare(a.Raw, b.Raw), nil
	default:
		return 0, fmt.Errorf("%w: null attributes are not ordered", ErrTypeMismatch)
	}
}

func ratOf(text string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, text)
	}
	return r, nil
}
