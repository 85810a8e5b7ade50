package storage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"yeti/core"
	"yeti/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxFilterKeys bounds the number of keys in a single search filter
const maxFilterKeys = 32

// FieldKind is the stored type of a searchable field, used to convert JSON
// filter values into BSON values
type FieldKind int

const (
	KindString FieldKind = iota
	KindObjectID
	KindBool
	KindTime
)

// SearchFields maps the stored field name of every searchable field to its kind
type SearchFields map[string]FieldKind

// GroupSearchFields are the group fields a search filter may reference
var GroupSearchFields = SearchFields{
	"_id":     KindObjectID,
	"name":    KindString,
	"enabled": KindBool,
	"members": KindObjectID,
	"admins":  KindObjectID,
	"created": KindTime,
	"updated": KindTime,
}

// TTPSearchFields are the TTP fields a search filter may reference
var TTPSearchFields = SearchFields{
	"_id":         KindObjectID,
	"name":        KindString,
	"description": KindString,
	"tags":        KindString,
	"killchain":   KindString,
	"created":     KindTime,
	"updated":     KindTime,
}

type operatorArity int

const (
	arityList operatorArity = iota
	arityScalar
	arityBool
)

// operators maps the __suffix of a filter key to its Mongo operator
var operators = map[string]struct {
	mongo string
	arity operatorArity
	regex bool
}{
	"in":     {"$in", arityList, true},
	"nin":    {"$nin", arityList, true},
	"all":    {"$all", arityList, true},
	"ne":     {"$ne", arityScalar, false},
	"gt":     {"$gt", arityScalar, false},
	"gte":    {"$gte", arityScalar, false},
	"lt":     {"$lt", arityScalar, false},
	"lte":    {"$lte", arityScalar, false},
	"exists": {"$exists", arityBool, false},
}

// FilterBuilder translates search filters into Mongo filter documents.
//
// A key is a field name optionally suffixed with __op. A bare key with a list
// value means $in, a bare key with a scalar value means equality. The public
// name "id" addresses "_id". With regex enabled, string values of $in, $nin,
// $all and equality become case-insensitive regular expressions.
//
// Every failure wraps core.ErrInvalidQuery.
type FilterBuilder struct {
	fields SearchFields
	regex  *util.RegexValidator
}

// NewFilterBuilder creates a FilterBuilder for the given field set
func NewFilterBuilder(fields SearchFields, regex *util.RegexValidator) *FilterBuilder {
	if regex == nil {
		regex = util.NewRegexValidator()
	}
	return &FilterBuilder{fields: fields, regex: regex}
}

// Build translates filter into a bson.M. A nil or empty filter matches everything.
func (b *FilterBuilder) Build(filter map[string]interface{}, useRegex bool) (bson.M, error) {
	out := bson.M{}
	if len(filter) > maxFilterKeys {
		return nil, invalidQuery("too many filter keys: %d (max %d)", len(filter), maxFilterKeys)
	}

	// Sorted for deterministic error reporting
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field, op, err := b.parseKey(key)
		if err != nil {
			return nil, err
		}
		kind := b.fields[field]

		cond, err := b.condition(field, kind, op, filter[key], useRegex)
		if err != nil {
			return nil, err
		}

		existing, ok := out[field].(bson.M)
		if !ok {
			out[field] = cond
			continue
		}
		for mop, v := range cond {
			if _, dup := existing[mop]; dup {
				return nil, invalidQuery("conflicting %s conditions on field %q", mop, field)
			}
			existing[mop] = v
		}
	}

	return out, nil
}

func (b *FilterBuilder) parseKey(key string) (string, string, error) {
	if key == "" {
		return "", "", invalidQuery("empty filter key")
	}
	field, op := key, ""
	if i := strings.LastIndex(key, "__"); i >= 0 {
		field, op = key[:i], key[i+2:]
		if _, ok := operators[op]; !ok {
			return "", "", invalidQuery("unknown operator %q in key %q", op, key)
		}
	}
	if field == "id" {
		field = "_id"
	}
	if _, ok := b.fields[field]; !ok {
		return "", "", invalidQuery("unknown field %q", field)
	}
	return field, op, nil
}

func (b *FilterBuilder) condition(field string, kind FieldKind, op string, raw interface{}, useRegex bool) (bson.M, error) {
	if op == "" {
		if list, ok := asList(raw); ok {
			values, err := b.convertList(field, kind, list, useRegex)
			if err != nil {
				return nil, err
			}
			return bson.M{"$in": values}, nil
		}
		v, err := b.convertValue(field, kind, raw, useRegex)
		if err != nil {
			return nil, err
		}
		return bson.M{"$eq": v}, nil
	}

	opDef := operators[op]
	switch opDef.arity {
	case arityList:
		list, ok := asList(raw)
		if !ok {
			list = []interface{}{raw}
		}
		values, err := b.convertList(field, kind, list, useRegex && opDef.regex)
		if err != nil {
			return nil, err
		}
		return bson.M{opDef.mongo: values}, nil
	case arityBool:
		v, ok := raw.(bool)
		if !ok {
			return nil, invalidQuery("%s__%s expects a boolean", field, op)
		}
		return bson.M{opDef.mongo: v}, nil
	default:
		if _, isList := asList(raw); isList {
			return nil, invalidQuery("%s__%s expects a single value", field, op)
		}
		v, err := b.convertValue(field, kind, raw, false)
		if err != nil {
			return nil, err
		}
		return bson.M{opDef.mongo: v}, nil
	}
}

func (b *FilterBuilder) convertList(field string, kind FieldKind, list []interface{}, useRegex bool) (bson.A, error) {
	values := make(bson.A, 0, len(list))
	for _, item := range list {
		if _, nested := asList(item); nested {
			return nil, invalidQuery("nested lists are not allowed for field %q", field)
		}
		v, err := b.convertValue(field, kind, item, useRegex)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (b *FilterBuilder) convertValue(field string, kind FieldKind, raw interface{}, useRegex bool) (interface{}, error) {
	switch kind {
	case KindObjectID:
		return toObjectID(field, raw)
	case KindBool:
		v, ok := raw.(bool)
		if !ok {
			return nil, invalidQuery("field %q expects a boolean", field)
		}
		return v, nil
	case KindTime:
		return toTime(field, raw)
	default:
		s, err := toString(field, raw)
		if err != nil {
			return nil, err
		}
		if !useRegex {
			return s, nil
		}
		if err := b.regex.ValidatePattern(s); err != nil {
			return nil, invalidQuery("unsafe regex for field %q: %v", field, err)
		}
		return primitive.Regex{Pattern: s, Options: "i"}, nil
	}
}

func asList(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case []interface{}:
		return list, true
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []primitive.ObjectID:
		out := make([]interface{}, len(list))
		for i, id := range list {
			out[i] = id
		}
		return out, true
	}
	return nil, false
}

func toObjectID(field string, raw interface{}) (primitive.ObjectID, error) {
	switch v := raw.(type) {
	case primitive.ObjectID:
		return v, nil
	case string:
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return primitive.NilObjectID, invalidQuery("field %q expects an object id, got %q", field, v)
		}
		return id, nil
	}
	return primitive.NilObjectID, invalidQuery("field %q expects an object id", field)
}

func toTime(field string, raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, invalidQuery("field %q expects an RFC3339 timestamp, got %q", field, v)
		}
		return t, nil
	}
	return time.Time{}, invalidQuery("field %q expects an RFC3339 timestamp", field)
}

// toString accepts strings and JSON numbers; numbers cover kill chain codes sent unquoted
func toString(field string, raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	}
	return "", invalidQuery("field %q expects a string", field)
}

func invalidQuery(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", core.ErrInvalidQuery, fmt.Sprintf(format, args...))
}
