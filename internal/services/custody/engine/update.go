package engine

import (
	"context"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/guard"
	"github.com/louisbranch/custody/internal/services/custody/storage"
)

// FieldUpdateResult is the outcome of ApplyFieldUpdate. Entry is nil when the
// edit implied no ledger entry.
type FieldUpdateResult struct {
	Asset domain.Asset
	Entry *domain.Transaction
}

// ApplyFieldUpdate edits asset fields directly and may emit a ledger entry.
//
// Status changes into or out of IN_TRANSIT record MOVE_START and
// MOVE_CONFIRM, and placement edits on an AVAILABLE asset record a
// MOVE_CONFIRM. Such entries are self-approved by the actor and written in the
// same unit as the edit. Only elevated actors may edit assets directly.
func (e *Engine) ApplyFieldUpdate(ctx context.Context, actor domain.Actor, assetID string, update domain.FieldUpdate) (FieldUpdateResult, error) {
	ctx, op := e.begin(ctx, "apply_field_update", actor)
	op.attr("asset_id", assetID)

	result, err := e.doFieldUpdate(ctx, op, actor, assetID, update)
	if err = e.end(ctx, op, err); err != nil {
		return FieldUpdateResult{}, err
	}
	return result, nil
}

func (e *Engine) doFieldUpdate(ctx context.Context, op *operation, actor domain.Actor, assetID string, update domain.FieldUpdate) (FieldUpdateResult, error) {
	if err := checkElevated(actor); err != nil {
		return FieldUpdateResult{}, err
	}
	assetID, err := requireID(assetID, "asset id")
	if err != nil {
		return FieldUpdateResult{}, err
	}
	if update.Empty() {
		return FieldUpdateResult{}, apperrors.New(apperrors.CodeInvalidInput, "no fields to update")
	}
	txnID, err := e.generateID()
	if err != nil {
		return FieldUpdateResult{}, err
	}

	var result FieldUpdateResult
	err = e.locked(ctx, []string{guard.AssetKey(assetID)}, func(ctx context.Context, tx storage.Tx) error {
		before, err := tx.LockAsset(ctx, assetID)
		if err != nil {
			return notFound(err, "AssetID", assetID)
		}
		after, err := update.Apply(before)
		if err != nil {
			return err
		}
		if err := checkLocation(ctx, tx, before.Placement.LocationID, after.Placement.LocationID); err != nil {
			return err
		}
		if err := checkLocation(ctx, tx, before.Target.LocationID, after.Target.LocationID); err != nil {
			return err
		}

		now := e.timestamp()
		after.UpdatedAt = now
		if err := tx.PutAsset(ctx, after); err != nil {
			return notFound(err, "AssetID", assetID)
		}

		result = FieldUpdateResult{Asset: after}
		if entry, ok := domain.DecideFieldUpdate(before, after); ok {
			txn := domain.Transaction{
				ID:          txnID,
				AssetID:     assetID,
				RequesterID: actor.ID,
				VerifierID:  actor.ID,
				Action:      entry.Action,
				Status:      domain.TxnStatusCompleted,
				Snapshot:    after.Placement,
				Reason:      entry.Reason,
				ImageRef:    update.ImageRef,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.InsertTransaction(ctx, txn); err != nil {
				return err
			}
			op.attr("transaction_id", txn.ID)
			op.attr("action", string(txn.Action))
			result.Entry = &txn
		}
		op.transition(before.Status, after.Status)
		return nil
	})
	return result, err
}
