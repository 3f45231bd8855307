package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sakif/matchday-predictor/internal/store"
)

// compile-time check that *Table implements store.Table
var _ store.Table = (*Table)(nil)

// Table is one logical table inside the records table.
type Table struct {
	db     *DB
	schema store.Schema
}

func (t *Table) Schema() store.Schema { return t.schema }

// Put inserts or fully replaces an item.
func (t *Table) Put(ctx context.Context, item store.Item) error {
	key, err := t.schema.KeyOf(item)
	if err != nil {
		return err
	}
	pk, sk, _ := t.schema.Parts(key)

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s item: %w", t.schema.Name, err)
	}

	_, err = t.db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO records (tbl, pk, sk, data, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		t.schema.Name, pk, sk, string(data),
	)
	if err != nil {
		return fmt.Errorf("sqlite: putting %s/%s/%s: %w", t.schema.Name, pk, sk, err)
	}
	return nil
}

// Insert relies on the (tbl, pk, sk) primary key: OR IGNORE leaves an
// existing row alone and reports zero rows affected.
func (t *Table) Insert(ctx context.Context, item store.Item) error {
	key, err := t.schema.KeyOf(item)
	if err != nil {
		return err
	}
	pk, sk, _ := t.schema.Parts(key)

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s item: %w", t.schema.Name, err)
	}

	res, err := t.db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO records (tbl, pk, sk, data, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		t.schema.Name, pk, sk, string(data),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting %s/%s/%s: %w", t.schema.Name, pk, sk, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: inserting %s/%s/%s: %w", t.schema.Name, pk, sk, err)
	}
	if n == 0 {
		return store.ErrConditionFailed
	}
	return nil
}

// Get returns store.ErrNotFound when no record has this key.
func (t *Table) Get(ctx context.Context, key store.Key) (store.Item, error) {
	pk, sk, err := t.schema.Parts(key)
	if err != nil {
		return nil, err
	}
	return t.load(ctx, t.db.conn, pk, sk)
}

// Update applies set to an existing item inside a transaction, after
// checking cond against the stored version.
func (t *Table) Update(ctx context.Context, key store.Key, set map[string]any, cond store.Filter) error {
	pk, sk, err := t.schema.Parts(key)
	if err != nil {
		return err
	}
	patch, err := store.Item(set).Clone()
	if err != nil {
		return err
	}

	return t.inTx(ctx, func(tx *sql.Tx) error {
		item, err := t.load(ctx, tx, pk, sk)
		if err != nil {
			return err
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
		return t.save(ctx, tx, pk, sk, item)
	})
}

// Increment adds delta to attr and returns the new value.
func (t *Table) Increment(ctx context.Context, key store.Key, attr string, delta int) (int, error) {
	pk, sk, err := t.schema.Parts(key)
	if err != nil {
		return 0, err
	}

	var next int
	err = t.inTx(ctx, func(tx *sql.Tx) error {
		item, err := t.load(ctx, tx, pk, sk)
		if err != nil {
			return err
		}
		next = item.Int(attr) + delta
		item[attr] = next
		return t.save(ctx, tx, pk, sk, item)
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Scan reads up to Limit records after StartKey in (pk, sk) order and then
// applies the filter, so a page can be empty while LastKey is still set.
func (t *Table) Scan(ctx context.Context, in store.ScanInput) (*store.ScanOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = t.db.pageSize
	}

	var (
		rows *sql.Rows
		err  error
	)
	if in.StartKey == nil {
		rows, err = t.db.conn.QueryContext(ctx,
			`SELECT pk, sk, data FROM records
			 WHERE tbl = ?
			 ORDER BY pk, sk
			 LIMIT ?`,
			t.schema.Name, limit,
		)
	} else {
		startPK, startSK, kerr := t.schema.Parts(in.StartKey)
		if kerr != nil {
			return nil, kerr
		}
		rows, err = t.db.conn.QueryContext(ctx,
			`SELECT pk, sk, data FROM records
			 WHERE tbl = ? AND (pk > ? OR (pk = ? AND sk > ?))
			 ORDER BY pk, sk
			 LIMIT ?`,
			t.schema.Name, startPK, startPK, startSK, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scanning %s: %w", t.schema.Name, err)
	}
	defer rows.Close()

	out := &store.ScanOutput{Items: []store.Item{}}
	var examined int
	var lastPK, lastSK string
	for rows.Next() {
		var data string
		if err := rows.Scan(&lastPK, &lastSK, &data); err != nil {
			return nil, fmt.Errorf("sqlite: reading %s row: %w", t.schema.Name, err)
		}
		examined++

		item, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("sqlite: decoding %s/%s/%s: %w", t.schema.Name, lastPK, lastSK, err)
		}
		if in.Filter.Matches(item) {
			out.Items = append(out.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s: %w", t.schema.Name, err)
	}

	// A full page may have more behind it; the next call finds out.
	if examined == limit {
		out.LastKey = t.keyOf(lastPK, lastSK)
	}
	return out, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (t *Table) load(ctx context.Context, q querier, pk, sk string) (store.Item, error) {
	var data string
	err := q.QueryRowContext(ctx,
		`SELECT data FROM records WHERE tbl = ? AND pk = ? AND sk = ?`,
		t.schema.Name, pk, sk,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: getting %s/%s/%s: %w", t.schema.Name, pk, sk, err)
	}
	item, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("sqlite: decoding %s/%s/%s: %w", t.schema.Name, pk, sk, err)
	}
	return item, nil
}

func (t *Table) save(ctx context.Context, tx *sql.Tx, pk, sk string, item store.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s item: %w", t.schema.Name, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE records SET data = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE tbl = ? AND pk = ? AND sk = ?`,
		string(data), t.schema.Name, pk, sk,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s/%s/%s: %w", t.schema.Name, pk, sk, err)
	}
	return nil
}

func (t *Table) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := t.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

func (t *Table) keyOf(pk, sk string) store.Key {
	key := store.Key{t.schema.PartitionKey: pk}
	if t.schema.SortKey != "" {
		key[t.schema.SortKey] = sk
	}
	return key
}

func decode(data string) (store.Item, error) {
	var item store.Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, err
	}
	return item, nil
}
