// Package store defines the record store contract the repositories are
// written against.
//
// A Table is a schemaless key-value table with a partition key and an
// optional sort key, modelled on DynamoDB: items are attribute maps, scans
// are paginated and the filter is applied after the page limit. That last
// point matters: a page may come back empty while LastKey is still set, and
// LastKey may belong to a partition the filter never asked for. Callers that
// want "every item for partition X" use ScanPartition or ScanAll instead of
// driving Scan by hand.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

var (
	// ErrNotFound is returned by Get, Update and Increment when the key is absent.
	ErrNotFound = errors.New("store: item not found")
	// ErrConditionFailed is returned by Update when the condition filter does
	// not match the stored item, and by Insert when the key is taken.
	ErrConditionFailed = errors.New("store: condition failed")
	// ErrInvalidCursor is returned by DecodeCursor for malformed tokens.
	ErrInvalidCursor = errors.New("store: invalid cursor")
)

// Table is implemented by every backend (memory, sqlite, dynamo).
type Table interface {
	Put(ctx context.Context, item Item) error
	// Insert writes item only if no item has its key yet.
	Insert(ctx context.Context, item Item) error
	Get(ctx context.Context, key Key) (Item, error)
	// Update sets the given attributes on an existing item. A nil cond makes
	// the write unconditional.
	Update(ctx context.Context, key Key, set map[string]any, cond Filter) error
	// Increment atomically adds delta to a numeric attribute (missing counts
	// as zero) and returns the new value.
	Increment(ctx context.Context, key Key, attr string, delta int) (int, error)
	Scan(ctx context.Context, in ScanInput) (*ScanOutput, error)
	Schema() Schema
}

// Schema names a table and its key attributes. SortKey is empty for tables
// keyed by partition only.
type Schema struct {
	Name         string
	PartitionKey string
	SortKey      string
}

// KeyOf extracts the primary key of item. Missing key attributes are an error.
func (s Schema) KeyOf(item Item) (Key, error) {
	pk := item.String(s.PartitionKey)
	if pk == "" {
		return nil, fmt.Errorf("store: %s: missing partition key %q", s.Name, s.PartitionKey)
	}
	key := Key{s.PartitionKey: pk}
	if s.SortKey != "" {
		sk := item.String(s.SortKey)
		if sk == "" {
			return nil, fmt.Errorf("store: %s: missing sort key %q", s.Name, s.SortKey)
		}
		key[s.SortKey] = sk
	}
	return key, nil
}

// Parts returns the partition and sort values of key under this schema.
func (s Schema) Parts(key Key) (pk, sk string, err error) {
	pk = key[s.PartitionKey]
	if pk == "" {
		return "", "", fmt.Errorf("store: %s: key has no %q", s.Name, s.PartitionKey)
	}
	if s.SortKey != "" {
		sk = key[s.SortKey]
		if sk == "" {
			return "", "", fmt.Errorf("store: %s: key has no %q", s.Name, s.SortKey)
		}
	}
	return pk, sk, nil
}

// IsKeyAttr reports whether attr is part of the primary key.
func (s Schema) IsKeyAttr(attr string) bool {
	return attr == s.PartitionKey || (s.SortKey != "" && attr == s.SortKey)
}

// Key identifies one item. Key attributes are always strings.
type Key map[string]string

// ScanInput controls a single page of a table scan.
type ScanInput struct {
	Filter   Filter
	StartKey Key // exclusive; nil starts from the beginning
	Limit    int // items examined per page; <= 0 uses the backend default
}

// ScanOutput is one page. LastKey is the key of the last examined item, or
// nil once the table is exhausted.
type ScanOutput struct {
	Items   []Item
	LastKey Key
}

// Condition is a single equality test on one attribute.
type Condition struct {
	Attr  string
	Value any
}

// Eq builds an equality condition.
func Eq(attr string, value any) Condition {
	return Condition{Attr: attr, Value: value}
}

// Filter is a conjunction of conditions. An empty filter matches everything.
type Filter []Condition

// Matches reports whether every condition holds for item.
func (f Filter) Matches(item Item) bool {
	for _, c := range f {
		if !valuesEqual(item[c.Attr], c.Value) {
			return false
		}
	}
	return true
}

// Item is one stored record.
type Item map[string]any

// Encode converts a tagged struct into an Item via its JSON form, so numbers
// come back as float64 the same way every backend returns them.
func Encode(v any) (Item, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	var item Item
	if err := json.Unmarshal(b, &item); err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	return item, nil
}

// Decode fills the struct pointed to by v from item.
func Decode(item Item, v any) error {
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("store: decode: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("store: decode: %w", err)
	}
	return nil
}

// Clone returns a deep copy of item with values normalized to their JSON
// kinds (string, float64, bool, nil, []any, map[string]any).
func (i Item) Clone() (Item, error) {
	return Encode(i)
}

// String returns the attribute as a string, formatting numbers without a
// trailing ".0" so a numeric match id still reads "123".
func (i Item) String(attr string) string {
	switch v := i[attr].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		if s, ok := stringKind(v); ok {
			return s
		}
		return fmt.Sprint(v)
	}
}

// Int returns a numeric attribute as an int, or 0 when absent or not a number.
func (i Item) Int(attr string) int {
	f, ok := number(i[attr])
	if !ok {
		return 0
	}
	return int(f)
}

// Bool returns a boolean attribute, or false when absent.
func (i Item) Bool(attr string) bool {
	b, _ := i[attr].(bool)
	return b
}

func valuesEqual(stored, want any) bool {
	if stored == nil || want == nil {
		return stored == nil && want == nil
	}
	if a, ok := number(stored); ok {
		b, ok := number(want)
		return ok && a == b
	}
	if a, ok := stringKind(stored); ok {
		b, ok := stringKind(want)
		return ok && a == b
	}
	if a, ok := stored.(bool); ok {
		b, ok := want.(bool)
		return ok && a == b
	}
	return reflect.DeepEqual(stored, want)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// stringKind accepts named string types such as model.Outcome.
func stringKind(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}
