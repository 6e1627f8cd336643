package core

import "context"

// PropertyWrite is the result of storing one property.
type PropertyWrite struct {
	Key   string
	Value string
	Err   error // nil when the write succeeded
}

// PropertyWrites aggregates the writes made for one entity.
type PropertyWrites []PropertyWrite

// Failed returns the writes that did not succeed.
func (w PropertyWrites) Failed() []PropertyWrite {
	var failed []PropertyWrite
	for _, pw := range w {
		if pw.Err != nil {
			failed = append(failed, pw)
		}
	}
	return failed
}

// Err returns a *PropertyWriteError when any write failed, nil otherwise.
func (w PropertyWrites) Err(stableID string) error {
	failed := w.Failed()
	if len(failed) == 0 {
		return nil
	}
	return &PropertyWriteError{StableID: stableID, Failed: failed}
}

// PropertyReplacer stores the property set of a genetic entity.
//
// Both operations run on a caller-supplied Tx so that the entity write and its
// properties commit or roll back together. Writing stops at the first failed
// property: on most stores the transaction is unusable after a failed
// statement, and the whole entity is rolled back anyway.
type PropertyReplacer struct{}

// Add inserts one property record per entry of props, in key order.
func (PropertyReplacer) Add(ctx context.Context, tx Tx, stableID string, props PropertyMap) (PropertyWrites, error) {
	writes := make(PropertyWrites, 0, len(props))
	for _, key := range props.Keys() {
		w := PropertyWrite{Key: key, Value: props[key]}
		w.Err = tx.InsertProperty(ctx, stableID, key, w.Value)
		writes = append(writes, w)
		if w.Err != nil {
			break
		}
	}
	return writes, writes.Err(stableID)
}

// Replace deletes every stored property of stableID, then adds props.
// Keys present before but absent from props are gone afterwards.
func (r PropertyReplacer) Replace(ctx context.Context, tx Tx, stableID string, props PropertyMap) (PropertyWrites, error) {
	if err := tx.DeleteProperties(ctx, stableID); err != nil {
		return nil, err
	}
	return r.Add(ctx, tx, stableID, props)
}
