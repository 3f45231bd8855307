// Package memory implements store.Table in process memory.
//
// It is the backend used by tests and by STORE_BACKEND=memory. Scans walk
// keys in (partition, sort) order and honour page limits the same way the
// persistent backends do, so pagination bugs show up here too.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sakif/matchday-predictor/internal/store"
)

const defaultPageSize = 100

// compile-time check
var _ store.Table = (*Table)(nil)

// Table keeps a thread-safe map of items.
type Table struct {
	mu       sync.RWMutex
	schema   store.Schema
	items    map[rowKey]store.Item
	pageSize int
}

type rowKey struct {
	pk, sk string
}

func (a rowKey) less(b rowKey) bool {
	if a.pk != b.pk {
		return a.pk < b.pk
	}
	return a.sk < b.sk
}

// Option configures a Table.
type Option func(*Table)

// WithPageSize caps how many items one Scan call examines.
func WithPageSize(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.pageSize = n
		}
	}
}

// New constructs an empty Table.
func New(schema store.Schema, opts ...Option) *Table {
	t := &Table{
		schema:   schema,
		items:    make(map[rowKey]store.Item),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Table) Schema() store.Schema { return t.schema }

func (t *Table) Put(ctx context.Context, item store.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := t.schema.KeyOf(item)
	if err != nil {
		return err
	}
	clone, err := item.Clone()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[t.rowKey(key)] = clone
	return nil
}

func (t *Table) Insert(ctx context.Context, item store.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := t.schema.KeyOf(item)
	if err != nil {
		return err
	}
	clone, err := item.Clone()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	rk := t.rowKey(key)
	if _, ok := t.items[rk]; ok {
		return store.ErrConditionFailed
	}
	t.items[rk] = clone
	return nil
}

func (t *Table) Get(ctx context.Context, key store.Key) (store.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rk, err := t.checkedRowKey(key)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.items[rk]
	if !ok {
		return nil, store.ErrNotFound
	}
	return item.Clone()
}

func (t *Table) Update(ctx context.Context, key store.Key, set map[string]any, cond store.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rk, err := t.checkedRowKey(key)
	if err != nil {
		return err
	}
	patch, err := store.Item(set).Clone()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[rk]
	if !ok {
		return store.ErrNotFound
	}
	if !cond.Matches(item) {
		return store.ErrConditionFailed
	}
	for attr, v := range patch {
		if t.schema.IsKeyAttr(attr) {
			continue
		}
		item[attr] = v
	}
	return nil
}

func (t *Table) Increment(ctx context.Context, key store.Key, attr string, delta int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rk, err := t.checkedRowKey(key)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[rk]
	if !ok {
		return 0, store.ErrNotFound
	}
	next := item.Int(attr) + delta
	item[attr] = float64(next)
	return next, nil
}

func (t *Table) Scan(ctx context.Context, in store.ScanInput) (*store.ScanOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = t.pageSize
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := t.sortedKeys()
	startIdx := 0
	if in.StartKey != nil {
		start := t.rowKey(in.StartKey)
		startIdx = sort.Search(len(keys), func(i int) bool { return start.less(keys[i]) })
	}

	out := &store.ScanOutput{Items: []store.Item{}}
	end := startIdx + limit
	if end > len(keys) {
		end = len(keys)
	}
	for _, k := range keys[startIdx:end] {
		item := t.items[k]
		if !in.Filter.Matches(item) {
			continue
		}
		clone, err := item.Clone()
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, clone)
	}
	if end < len(keys) {
		out.LastKey = t.keyOf(keys[end-1])
	}
	return out, nil
}

// Len reports how many items are stored.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

func (t *Table) sortedKeys() []rowKey {
	keys := make([]rowKey, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

func (t *Table) rowKey(key store.Key) rowKey {
	rk := rowKey{pk: key[t.schema.PartitionKey]}
	if t.schema.SortKey != "" {
		rk.sk = key[t.schema.SortKey]
	}
	return rk
}

func (t *Table) checkedRowKey(key store.Key) (rowKey, error) {
	if _, _, err := t.schema.Parts(key); err != nil {
		return rowKey{}, err
	}
	return t.rowKey(key), nil
}

func (t *Table) keyOf(rk rowKey) store.Key {
	key := store.Key{t.schema.PartitionKey: rk.pk}
	if t.schema.SortKey != "" {
		key[t.schema.SortKey] = rk.sk
	}
	return key
}
