package store

import "context"

// ScanAll drains every page of t, returning the items that match filter.
func ScanAll(ctx context.Context, t Table, filter Filter) ([]Item, error) {
	var (
		items []Item
		start Key
	)
	for {
		out, err := t.Scan(ctx, ScanInput{Filter: filter, StartKey: start})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if out.LastKey == nil {
			return items, nil
		}
		start = out.LastKey
	}
}

// ScanPartition returns one logical page of items for a single owner.
//
// A raw scan page can stop on an item owned by someone else, and handing
// that key back as a cursor would make the next request resume in the wrong
// place. ScanPartition keeps scanning until either the table is exhausted
// (next is nil) or the last examined key has anchorAttr == anchorValue, and
// returns every matching item seen along the way.
func ScanPartition(ctx context.Context, t Table, filter Filter, start Key, anchorAttr, anchorValue string) (items []Item, next Key, err error) {
	for {
		out, err := t.Scan(ctx, ScanInput{Filter: filter, StartKey: start})
		if err != nil {
			return nil, nil, err
		}
		items = append(items, out.Items...)
		if out.LastKey == nil {
			return items, nil, nil
		}
		if out.LastKey[anchorAttr] == anchorValue {
			return items, out.LastKey, nil
		}
		start = out.LastKey
	}
}
