// Package storage defines the persistence contracts of the custody service.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/filter"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write that violates a uniqueness or state
	// constraint, such as a second pending entry for one asset.
	ErrConflict = errors.New("record conflict")
)

// AssetQuery selects a page of assets.
type AssetQuery struct {
	Condition filter.SQLCondition
	// LocationIDs restricts results to assets placed at one of the ids.
	LocationIDs []string
	PageSize    int
	PageToken   string
}

// AssetPage is a page of assets, newest first.
type AssetPage struct {
	Assets        []domain.Asset
	NextPageToken string
}

// TransactionQuery selects a page of ledger entries.
type TransactionQuery struct {
	Condition filter.SQLCondition
	AssetID   string
	PageSize  int
	PageToken string
}

// TransactionPage is a page of ledger entries, newest first.
type TransactionPage struct {
	Transactions  []domain.Transaction
	NextPageToken string
}

// AuditRow summarizes the ledger of one asset for reconciliation.
type AuditRow struct {
	AssetID          string
	Status           domain.AssetStatus
	PendingCount     int
	CompletedBorrows int
}

// Tx is one atomic unit of work. Lock methods hold the row until the unit
// commits or aborts.
type Tx interface {
	LockAsset(ctx context.Context, assetID string) (domain.Asset, error)
	LockTransaction(ctx context.Context, txnID string) (domain.Transaction, error)
	// LatestTransaction returns the newest entry for the asset with the given
	// action and status, or ErrNotFound.
	LatestTransaction(ctx context.Context, assetID string, action domain.Action, status domain.TxnStatus) (domain.Transaction, error)
	LocationExists(ctx context.Context, locationID string) (bool, error)
	PutAsset(ctx context.Context, asset domain.Asset) error
	InsertAsset(ctx context.Context, asset domain.Asset) error
	InsertTransaction(ctx context.Context, txn domain.Transaction) error
	// ResolveTransaction writes the resolution of a pending entry. It returns
	// ErrConflict when the entry is no longer pending.
	ResolveTransaction(ctx context.Context, txn domain.Transaction) error
	// FinalizeSnapshot rewrites the snapshot of a completed return. A snapshot
	// is finalized at most once; later calls return ErrConflict.
	FinalizeSnapshot(ctx context.Context, txnID string, snapshot domain.Placement) error
	InsertLocation(ctx context.Context, loc domain.Location) error
}

// Store persists assets, the ledger, and locations.
type Store interface {
	// Update runs fn inside one atomic unit. A nil return commits.
	Update(ctx context.Context, fn func(Tx) error) error

	GetAsset(ctx context.Context, assetID string) (domain.Asset, error)
	ListAssets(ctx context.Context, query AssetQuery) (AssetPage, error)
	GetTransaction(ctx context.Context, txnID string) (domain.Transaction, error)
	ListTransactions(ctx context.Context, query TransactionQuery) (TransactionPage, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	AuditLedger(ctx context.Context) ([]AuditRow, error)

	Close() error
}
