// Package guard serializes state-changing custody operations per record.
//
// A Guard hands out exclusive holds on a set of keys. The engine acquires the
// keys of the asset and, when resolving, the ledger entry before opening its
// atomic unit and releases them after commit. Keys are always taken in sorted
// order so two callers asking for overlapping sets cannot deadlock.
package guard

import (
	"context"
	"errors"
	"slices"
)

// ErrNoKeys is returned when Acquire is called without a key.
var ErrNoKeys = errors.New("guard: no keys to acquire")

// Guard grants exclusive holds on keys.
type Guard interface {
	// Acquire blocks until every key is held or ctx ends. The returned release
	// function frees all keys and is safe to call more than once.
	Acquire(ctx context.Context, keys ...string) (func(), error)
}

// AssetKey is the guard key of an asset record.
func AssetKey(assetID string) string {
	return "asset:" + assetID
}

// TransactionKey is the guard key of a ledger entry.
func TransactionKey(txnID string) string {
	return "txn:" + txnID
}

// normalizeKeys returns the keys sorted and without duplicates or blanks.
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
