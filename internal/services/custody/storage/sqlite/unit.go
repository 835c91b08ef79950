package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/storage"
)

const assetColumns = "id, name, description, category, status, location_id, zone, cabinet, number, " +
	"target_location_id, target_zone, target_cabinet, target_number, created_at, updated_at"

const transactionColumns = "id, asset_id, requester_id, verifier_id, action, status, location_id, zone, cabinet, number, " +
	"reason, admin_note, due_at, image_ref, created_at, updated_at"

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner func(dest ...any) error

// unit is the storage.Tx of one immediate transaction.
type unit struct {
	q queryer
}

var _ storage.Tx = (*unit)(nil)

func (u *unit) LockAsset(ctx context.Context, assetID string) (domain.Asset, error) {
	return getAsset(ctx, u.q, assetID)
}

func (u *unit) LockTransaction(ctx context.Context, txnID string) (domain.Transaction, error) {
	return getTransaction(ctx, u.q, txnID)
}

func (u *unit) LatestTransaction(ctx context.Context, assetID string, action domain.Action, status domain.TxnStatus) (domain.Transaction, error) {
	row := u.q.QueryRowContext(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE asset_id = ? AND action = ? AND status = ?
ORDER BY created_at DESC, seq DESC
LIMIT 1
`, assetID, string(action), string(status))
	txn, err := scanTransaction(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, storage.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("latest transaction: %w", err)
	}
	return txn, nil
}

func (u *unit) LocationExists(ctx context.Context, locationID string) (bool, error) {
	var found int
	err := u.q.QueryRowContext(ctx, "SELECT 1 FROM locations WHERE id = ?", locationID).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check location: %w", err)
	}
	return true, nil
}

func (u *unit) PutAsset(ctx context.Context, asset domain.Asset) error {
	result, err := u.q.ExecContext(ctx, `
UPDATE assets
SET name = ?, description = ?, category = ?, status = ?,
    location_id = ?, zone = ?, cabinet = ?, number = ?,
    target_location_id = ?, target_zone = ?, target_cabinet = ?, target_number = ?,
    updated_at = ?
WHERE id = ?
`,
		asset.Name, asset.Description, asset.Category, string(asset.Status),
		nullString(asset.Placement.LocationID), asset.Placement.Zone, asset.Placement.Cabinet, asset.Placement.Number,
		nullString(asset.Target.LocationID), asset.Target.Zone, asset.Target.Cabinet, asset.Target.Number,
		toMillis(asset.UpdatedAt), asset.ID,
	)
	if err != nil {
		return fmt.Errorf("put asset: %w", err)
	}
	return expectOneRow(result, storage.ErrNotFound, "put asset")
}

func (u *unit) InsertAsset(ctx context.Context, asset domain.Asset) error {
	_, err := u.q.ExecContext(ctx, `
INSERT INTO assets (`+assetColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		asset.ID, asset.Name, asset.Description, asset.Category, string(asset.Status),
		nullString(asset.Placement.LocationID), asset.Placement.Zone, asset.Placement.Cabinet, asset.Placement.Number,
		nullString(asset.Target.LocationID), asset.Target.Zone, asset.Target.Cabinet, asset.Target.Number,
		toMillis(asset.CreatedAt), toMillis(asset.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("insert asset: %w", storage.ErrConflict)
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (u *unit) InsertTransaction(ctx context.Context, txn domain.Transaction) error {
	var dueAt sql.NullInt64
	if txn.DueAt != nil {
		dueAt = sql.NullInt64{Int64: toMillis(*txn.DueAt), Valid: true}
	}
	_, err := u.q.ExecContext(ctx, `
INSERT INTO transactions (`+transactionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		txn.ID, txn.AssetID, txn.RequesterID, txn.VerifierID, string(txn.Action), string(txn.Status),
		nullString(txn.Snapshot.LocationID), txn.Snapshot.Zone, txn.Snapshot.Cabinet, txn.Snapshot.Number,
		txn.Reason, txn.AdminNote, dueAt, txn.ImageRef,
		toMillis(txn.CreatedAt), toMillis(txn.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("insert transaction: %w", storage.ErrConflict)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (u *unit) ResolveTransaction(ctx context.Context, txn domain.Transaction) error {
	result, err := u.q.ExecContext(ctx, `
UPDATE transactions
SET status = ?, verifier_id = ?, admin_note = ?, updated_at = ?
WHERE id = ? AND status = 'PENDING_APPROVAL'
`, string(txn.Status), txn.VerifierID, txn.AdminNote, toMillis(txn.UpdatedAt), txn.ID)
	if err != nil {
		return fmt.Errorf("resolve transaction: %w", err)
	}
	return expectOneRow(result, storage.ErrConflict, "resolve transaction")
}

func (u *unit) FinalizeSnapshot(ctx context.Context, txnID string, snapshot domain.Placement) error {
	result, err := u.q.ExecContext(ctx, `
UPDATE transactions
SET location_id = ?, zone = ?, cabinet = ?, number = ?, snapshot_finalized = 1
WHERE id = ? AND action = 'RETURN' AND status = 'COMPLETED' AND snapshot_finalized = 0
`, nullString(snapshot.LocationID), snapshot.Zone, snapshot.Cabinet, snapshot.Number, txnID)
	if err != nil {
		return fmt.Errorf("finalize snapshot: %w", err)
	}
	return expectOneRow(result, storage.ErrConflict, "finalize snapshot")
}

func (u *unit) InsertLocation(ctx context.Context, loc domain.Location) error {
	_, err := u.q.ExecContext(ctx,
		"INSERT INTO locations (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)",
		loc.ID, loc.Name, nullString(loc.ParentID), toMillis(loc.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("insert location: %w", storage.ErrConflict)
		}
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

func getAsset(ctx context.Context, q queryer, assetID string) (domain.Asset, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return domain.Asset{}, storage.ErrNotFound
	}
	row := q.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets WHERE id = ?", assetID)
	asset, err := scanAsset(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Asset{}, storage.ErrNotFound
		}
		return domain.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

func getTransaction(ctx context.Context, q queryer, txnID string) (domain.Transaction, error) {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return domain.Transaction{}, storage.ErrNotFound
	}
	row := q.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", txnID)
	txn, err := scanTransaction(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, storage.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}

func scanAsset(scan scanner) (domain.Asset, error) {
	var asset domain.Asset
	var status string
	var locationID, targetLocationID sql.NullString
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
	asset.Placement.LocationID = locationID.String
	asset.Target.LocationID = targetLocationID.String
	asset.CreatedAt = fromMillis(createdAt)
	asset.UpdatedAt = fromMillis(updatedAt)
	return asset, nil
}

func scanTransaction(scan scanner) (domain.Transaction, error) {
	var txn domain.Transaction
	var action, status string
	var locationID sql.NullString
	var dueAt sql.NullInt64
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
	txn.Snapshot.LocationID = locationID.String
	if dueAt.Valid {
		value := fromMillis(dueAt.Int64)
		txn.DueAt = &value
	}
	txn.CreatedAt = fromMillis(createdAt)
	txn.UpdatedAt = fromMillis(updatedAt)
	return txn, nil
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}

func expectOneRow(result sql.Result, missing error, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, missing)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}
