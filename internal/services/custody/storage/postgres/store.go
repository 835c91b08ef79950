// Package postgres implements the custody store on Postgres through pgx.
//
// Lock methods use SELECT ... FOR UPDATE, so concurrent operations on one
// asset queue on the row until the holder commits.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/louisbranch/custody/internal/platform/storage/migrate"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/storage"
	"github.com/louisbranch/custody/internal/services/custody/storage/postgres/migrations"
)

// Store provides Postgres-backed persistence for custody state.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open connects to dsn, verifies the connection, and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// The pool owns the connections; the database/sql view only borrows them.
	sqlDB := stdlib.OpenDBFromPool(pool)
	if err := migrate.Apply(ctx, sqlDB, migrations.FS, "", migrate.Postgres); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// Update runs fn inside one read-committed transaction.
func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("update function is required")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&unit{q: tx})
	})
}

// GetAsset loads one asset.
func (s *Store) GetAsset(ctx context.Context, assetID string) (domain.Asset, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Asset{}, err
	}
	return getAsset(ctx, s.pool, assetID, false)
}

// GetTransaction loads one ledger entry.
func (s *Store) GetTransaction(ctx context.Context, txnID string) (domain.Transaction, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Transaction{}, err
	}
	return getTransaction(ctx, s.pool, txnID, false)
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
		where = append(where, "location_id = ANY(?)")
		args = append(args, query.LocationIDs)
	}
	if !query.Condition.Empty() {
		where = append(where, query.Condition.Clause)
		args = append(args, query.Condition.Params...)
	}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		var createdAt int64
		err := s.pool.QueryRow(ctx, "SELECT created_at FROM assets WHERE id = $1", token).Scan(&createdAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.AssetPage{}, nil
			}
			return storage.AssetPage{}, fmt.Errorf("resolve asset page token: %w", err)
		}
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, createdAt, createdAt, token)
	}

	stmt := "SELECT " + assetColumns + " FROM assets" + whereClause(where) + " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, query.PageSize+1)
	rows, err := s.pool.Query(ctx, rebind(stmt), args...)
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
		err := s.pool.QueryRow(ctx, "SELECT created_at, seq FROM transactions WHERE id = $1", token).Scan(&createdAt, &seq)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.TransactionPage{}, nil
			}
			return storage.TransactionPage{}, fmt.Errorf("resolve transaction page token: %w", err)
		}
		where = append(where, "(created_at < ? OR (created_at = ? AND seq < ?))")
		args = append(args, createdAt, createdAt, seq)
	}

	stmt := "SELECT " + transactionColumns + " FROM transactions" + whereClause(where) + " ORDER BY created_at DESC, seq DESC LIMIT ?"
	args = append(args, query.PageSize+1)
	rows, err := s.pool.Query(ctx, rebind(stmt), args...)
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
	rows, err := s.pool.Query(ctx, "SELECT id, name, parent_id, created_at FROM locations ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		var loc domain.Location
		var parentID *string
		var createdAt int64
		if err := rows.Scan(&loc.ID, &loc.Name, &parentID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		loc.ParentID = deref(parentID)
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
	rows, err := s.pool.Query(ctx, `
SELECT a.id, a.status,
       COUNT(t.seq) FILTER (WHERE t.status = 'PENDING_APPROVAL'),
       COUNT(t.seq) FILTER (WHERE t.action = 'BORROW' AND t.status = 'COMPLETED')
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
		var status string
		var pending, borrows int64
		if err := rows.Scan(&row.AssetID, &status, &pending, &borrows); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		row.Status = domain.AssetStatus(status)
		row.PendingCount = int(pending)
		row.CompletedBorrows = int(borrows)
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

// rebind rewrites ? placeholders to $n. Statements built here carry no
// string literals containing '?'.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
