package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/storage"
)

const assetColumns = "id, name, description, category, status, location_id, zone, cabinet, number, " +
	"target_location_id, target_zone, target_cabinet, target_number, created_at, updated_at"

const transactionColumns = "id, asset_id, requester_id, verifier_id, action, status, location_id, zone, cabinet, number, " +
	"reason, admin_note, due_at, image_ref, created_at, updated_at"

const uniqueViolation = "23505"

type scanner func(dest ...any) error

// unit is the storage.Tx of one pgx transaction.
type unit struct {
	q querier
}

var _ storage.Tx = (*unit)(nil)

func (u *unit) LockAsset(ctx context.Context, assetID string) (domain.Asset, error) {
	return getAsset(ctx, u.q, assetID, true)
}

func (u *unit) LockTransaction(ctx context.Context, txnID string) (domain.Transaction, error) {
	return getTransaction(ctx, u.q, txnID, true)
}

func (u *unit) LatestTransaction(ctx context.Context, assetID string, action domain.Action, status domain.TxnStatus) (domain.Transaction, error) {
	row := u.q.QueryRow(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE asset_id = $1 AND action = $2 AND status = $3
ORDER BY created_at DESC, seq DESC
LIMIT 1
`, assetID, string(action), string(status))
	txn, err := scanTransaction(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, storage.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("latest transaction: %w", err)
	}
	return txn, nil
}

func (u *unit) LocationExists(ctx context.Context, locationID string) (bool, error) {
	var found bool
	err := u.q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM locations WHERE id = $1)", locationID).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("check location: %w", err)
	}
	return found, nil
}

func (u *unit) PutAsset(ctx context.Context, asset domain.Asset) error {
	tag, err := u.q.Exec(ctx, `
UPDATE assets
SET name = $1, description = $2, category = $3, status = $4,
    location_id = $5, zone = $6, cabinet = $7, number = $8,
    target_location_id = $9, target_zone = $10, target_cabinet = $11, target_number = $12,
    updated_at = $13
WHERE id = $14
`,
		asset.Name, asset.Description, asset.Category, string(asset.Status),
		nullable(asset.Placement.LocationID), asset.Placement.Zone, asset.Placement.Cabinet, asset.Placement.Number,
		nullable(asset.Target.LocationID), asset.Target.Zone, asset.Target.Cabinet, asset.Target.Number,
		toMillis(asset.UpdatedAt), asset.ID,
	)
	if err != nil {
		return fmt.Errorf("put asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("put asset: %w", storage.ErrNotFound)
	}
	return nil
}

func (u *unit) InsertAsset(ctx context.Context, asset domain.Asset) error {
	_, err := u.q.Exec(ctx, `
INSERT INTO assets (`+assetColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`,
		asset.ID, asset.Name, asset.Description, asset.Category, string(asset.Status),
		nullable(asset.Placement.LocationID), asset.Placement.Zone, asset.Placement.Cabinet, asset.Placement.Number,
		nullable(asset.Target.LocationID), asset.Target.Zone, asset.Target.Cabinet, asset.Target.Number,
		toMillis(asset.CreatedAt), toMillis(asset.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert asset: %w", storage.ErrConflict)
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (u *unit) InsertTransaction(ctx context.Context, txn domain.Transaction) error {
	var dueAt *int64
	if txn.DueAt != nil {
		value := toMillis(*txn.DueAt)
		dueAt = &value
	}
	_, err := u.q.Exec(ctx, `
INSERT INTO transactions (`+transactionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`,
		txn.ID, txn.AssetID, txn.RequesterID, txn.VerifierID, string(txn.Action), string(txn.Status),
		nullable(txn.Snapshot.LocationID), txn.Snapshot.Zone, txn.Snapshot.Cabinet, txn.Snapshot.Number,
		txn.Reason, txn.AdminNote, dueAt, txn.ImageRef,
		toMillis(txn.CreatedAt), toMillis(txn.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert transaction: %w", storage.ErrConflict)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (u *unit) ResolveTransaction(ctx context.Context, txn domain.Transaction) error {
	tag, err := u.q.Exec(ctx, `
UPDATE transactions
SET status = $1, verifier_id = $2, admin_note = $3, updated_at = $4
WHERE id = $5 AND status = 'PENDING_APPROVAL'
`, string(txn.Status), txn.VerifierID, txn.AdminNote, toMillis(txn.UpdatedAt), txn.ID)
	if err != nil {
		return fmt.Errorf("resolve transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resolve transaction: %w", storage.ErrConflict)
	}
	return nil
}

func (u *unit) FinalizeSnapshot(ctx context.Context, txnID string, snapshot domain.Placement) error {
	tag, err := u.q.Exec(ctx, `
UPDATE transactions
SET location_id = $1, zone = $2, cabinet = $3, number = $4, snapshot_finalized = TRUE
WHERE id = $5 AND action = 'RETURN' AND status = 'COMPLETED' AND NOT snapshot_finalized
`, nullable(snapshot.LocationID), snapshot.Zone, snapshot.Cabinet, snapshot.Number, txnID)
	if err != nil {
		return fmt.Errorf("finalize snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finalize snapshot: %w", storage.ErrConflict)
	}
	return nil
}

func (u *unit) InsertLocation(ctx context.Context, loc domain.Location) error {
	_, err := u.q.Exec(ctx,
		"INSERT INTO locations (id, name, parent_id, created_at) VALUES ($1, $2, $3, $4)",
		loc.ID, loc.Name, nullable(loc.ParentID), toMillis(loc.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert location: %w", storage.ErrConflict)
		}
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

func getAsset(ctx context.Context, q querier, assetID string, lock bool) (domain.Asset, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return domain.Asset{}, storage.ErrNotFound
	}
	stmt := "SELECT " + assetColumns + " FROM assets WHERE id = $1"
	if lock {
		stmt += " FOR UPDATE"
	}
	asset, err := scanAsset(q.QueryRow(ctx, stmt, assetID).Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Asset{}, storage.ErrNotFound
		}
		return domain.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

func getTransaction(ctx context.Context, q querier, txnID string, lock bool) (domain.Transaction, error) {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return domain.Transaction{}, storage.ErrNotFound
	}
	stmt := "SELECT " + transactionColumns + " FROM transactions WHERE id = $1"
	if lock {
		stmt += " FOR UPDATE"
	}
	txn, err := scanTransaction(q.QueryRow(ctx, stmt, txnID).Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, storage.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}

func scanAsset(scan scanner) (domain.Asset, error) {
	var asset domain.Asset
	var status string
	var locationID, targetLocationID *string
	var createdAt, updatedAt int64
	if err := scan(
		&asset.ID,
		&asset.Name,
		&asset.Description,
		&asset.Category,
		&status,
		&locationID,
		&asset.Placement.Zone,
		&asset.Placement.Cabinet,
		&asset.Placement.Number,
		&targetLocationID,
		&asset.Target.Zone,
		&asset.Target.Cabinet,
		&asset.Target.Number,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Asset{}, err
	}
	asset.Status = domain.AssetStatus(status)
	asset.Placement.LocationID = deref(locationID)
	asset.Target.LocationID = deref(targetLocationID)
	asset.CreatedAt = fromMillis(createdAt)
	asset.UpdatedAt = fromMillis(updatedAt)
	return asset, nil
}

func scanTransaction(scan scanner) (domain.Transaction, error) {
	var txn domain.Transaction
	var action, status string
	var locationID *string
	var dueAt *int64
	var createdAt, updatedAt int64
	if err := scan(
		&txn.ID,
		&txn.AssetID,
		&txn.RequesterID,
		&txn.VerifierID,
		&action,
		&status,
		&locationID,
		&txn.Snapshot.Zone,
		&txn.Snapshot.Cabinet,
		&txn.Snapshot.Number,
		&txn.Reason,
		&txn.AdminNote,
		&dueAt,
		&txn.ImageRef,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Transaction{}, err
	}
	txn.Action = domain.Action(action)
	txn.Status = domain.TxnStatus(status)
	txn.Snapshot.LocationID = deref(locationID)
	if dueAt != nil {
		value := fromMillis(*dueAt)
		txn.DueAt = &value
	}
	txn.CreatedAt = fromMillis(createdAt)
	txn.UpdatedAt = fromMillis(updatedAt)
	return txn, nil
}

func nullable(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
