// Package sqlite implements the custody store on modernc.org/sqlite.
//
// Every Update runs in a BEGIN IMMEDIATE transaction, so the write lock is
// taken before the first read and held until commit. That gives the same
// exclusion as row locks in a server database for a single-file store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/custody/internal/platform/storage/migrate"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/storage"
	"github.com/louisbranch/custody/internal/services/custody/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for custody state.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a custody SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := migrate.Apply(context.Background(), sqlDB, migrations.FS, "", migrate.SQLite); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// Update runs fn inside one immediate transaction.
func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("update function is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin custody write: %w", err)
	}
	if err := fn(&unit{q: tx}); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback custody write: %v", err, rollbackErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit custody write: %w", err)
	}
	return nil
}

// GetAsset loads one asset.
func (s *Store) GetAsset(ctx context.Context, assetID string) (domain.Asset, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Asset{}, err
	}
	return getAsset(ctx, s.sqlDB, assetID)
}

// GetTransaction loads one ledger entry.
func (s *Store) GetTransaction(ctx context.Context, txnID string) (domain.Transaction, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Transaction{}, err
	}
	return getTransaction(ctx, s.sqlDB, txnID)
}

// ListAssets lists assets newest first with cursor pagination.
func (s *Store) ListAssets(ctx context.Context, query storage.AssetQuery) (storage.AssetPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.AssetPage{}, err
	}
	if query.PageSize <= 0 {
		return storage.AssetPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var where []string
	var args []any
	if len(query.LocationIDs) > 0 {
		locationIDs, err := json.Marshal(query.LocationIDs)
		if err != nil {
			return storage.AssetPage{}, fmt.Errorf("encode location ids: %w", err)
		}
		where = append(where, "location_id IN (SELECT value FROM json_each(?))")
		args = append(args, string(locationIDs))
	}
	if !query.Condition.Empty() {
		where = append(where, query.Condition.Clause)
		args = append(args, query.Condition.Params...)
	}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		var createdAt int64
		err := s.sqlDB.QueryRowContext(ctx, "SELECT created_at FROM assets WHERE id = ?", token).Scan(&createdAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.AssetPage{}, nil
			}
			return storage.AssetPage{}, fmt.Errorf("resolve asset page token: %w", err)
		}
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, createdAt, createdAt, token)
	}

	stmt := "SELECT " + assetColumns + " FROM assets" + whereClause(where) + " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, query.PageSize+1)
	rows, err := s.sqlDB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return storage.AssetPage{}, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	page := storage.AssetPage{Assets: make([]domain.Asset, 0, query.PageSize)}
	for rows.Next() {
		asset, err := scanAsset(rows.Scan)
		if err != nil {
			return storage.AssetPage{}, fmt.Errorf("scan asset row: %w", err)
		}
		page.Assets = append(page.Assets, asset)
	}
	if err := rows.Err(); err != nil {
		return storage.AssetPage{}, fmt.Errorf("iterate asset rows: %w", err)
	}
	if len(page.Assets) > query.PageSize {
		page.NextPageToken = page.Assets[query.PageSize-1].ID
		page.Assets = page.Assets[:query.PageSize]
	}
	return page, nil
}

// ListTransactions lists ledger entries newest first with cursor pagination.
func (s *Store) ListTransactions(ctx context.Context, query storage.TransactionQuery) (storage.TransactionPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.TransactionPage{}, err
	}
	if query.PageSize <= 0 {
		return storage.TransactionPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var where []string
	var args []any
	if assetID := strings.TrimSpace(query.AssetID); assetID != "" {
		where = append(where, "asset_id = ?")
		args = append(args, assetID)
	}
	if !query.Condition.Empty() {
		where = append(where, query.Condition.Clause)
		args = append(args, query.Condition.Params...)
	}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		var createdAt, seq int64
		err := s.sqlDB.QueryRowContext(ctx, "SELECT created_at, seq FROM transactions WHERE id = ?", token).Scan(&createdAt, &seq)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.TransactionPage{}, nil
			}
			return storage.TransactionPage{}, fmt.Errorf("resolve transaction page token: %w", err)
		}
		where = append(where, "(created_at < ? OR (created_at = ? AND seq < ?))")
		args = append(args, createdAt, createdAt, seq)
	}

	stmt := "SELECT " + transactionColumns + " FROM transactions" + whereClause(where) + " ORDER BY created_at DESC, seq DESC LIMIT ?"
	args = append(args, query.PageSize+1)
	rows, err := s.sqlDB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return storage.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	page := storage.TransactionPage{Transactions: make([]domain.Transaction, 0, query.PageSize)}
	for rows.Next() {
		txn, err := scanTransaction(rows.Scan)
		if err != nil {
			return storage.TransactionPage{}, fmt.Errorf("scan transaction row: %w", err)
		}
		page.Transactions = append(page.Transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return storage.TransactionPage{}, fmt.Errorf("iterate transaction rows: %w", err)
	}
	if len(page.Transactions) > query.PageSize {
		page.NextPageToken = page.Transactions[query.PageSize-1].ID
		page.Transactions = page.Transactions[:query.PageSize]
	}
	return page, nil
}

// ListLocations lists every location ordered by name.
func (s *Store) ListLocations(ctx context.Context) ([]domain.Location, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT id, name, parent_id, created_at FROM locations ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		var loc domain.Location
		var parentID sql.NullString
		var createdAt int64
		if err := rows.Scan(&loc.ID, &loc.Name, &parentID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		loc.ParentID = parentID.String
		loc.CreatedAt = fromMillis(createdAt)
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location rows: %w", err)
	}
	return out, nil
}

// AuditLedger summarizes pending and completed-borrow counts per asset.
func (s *Store) AuditLedger(ctx context.Context) ([]storage.AuditRow, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT a.id, a.status,
       COALESCE(SUM(CASE WHEN t.status = 'PENDING_APPROVAL' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN t.action = 'BORROW' AND t.status = 'COMPLETED' THEN 1 ELSE 0 END), 0)
FROM assets a
LEFT JOIN transactions t ON t.asset_id = a.id
GROUP BY a.id, a.status
ORDER BY a.id
`)
	if err != nil {
		return nil, fmt.Errorf("audit ledger: %w", err)
	}
	defer rows.Close()

	var out []storage.AuditRow
	for rows.Next() {
		var row storage.AuditRow
		if err := rows.Scan(&row.AssetID, &row.Status, &row.PendingCount, &row.CompletedBorrows); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return out, nil
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}
