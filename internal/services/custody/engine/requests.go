package engine

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/guard"
	"github.com/louisbranch/custody/internal/services/custody/storage"
)

// RequestBorrow asks to borrow an AVAILABLE asset. The asset moves to
// PENDING_BORROW and a pending BORROW entry snapshots its placement.
func (e *Engine) RequestBorrow(ctx context.Context, actor domain.Actor, assetID string, input domain.RequestInput) (Result, error) {
	return e.request(ctx, "request_borrow", actor, assetID, domain.ActionBorrow, input)
}

// RequestDispatch asks to dispatch an AVAILABLE asset. It shares the
// PENDING_BORROW status with borrowing.
func (e *Engine) RequestDispatch(ctx context.Context, actor domain.Actor, assetID string, input domain.RequestInput) (Result, error) {
	return e.request(ctx, "request_dispatch", actor, assetID, domain.ActionDispatch, input)
}

// RequestReturn asks to return a BORROWED asset. Only the requester of the
// latest completed borrow may return it unless the actor is elevated.
func (e *Engine) RequestReturn(ctx context.Context, actor domain.Actor, assetID string, input domain.RequestInput) (Result, error) {
	return e.request(ctx, "request_return", actor, assetID, domain.ActionReturn, input)
}

func (e *Engine) request(ctx context.Context, name string, actor domain.Actor, assetID string, action domain.Action, input domain.RequestInput) (Result, error) {
	ctx, op := e.begin(ctx, name, actor)
	op.attr("asset_id", assetID)

	result, err := e.doRequest(ctx, op, actor, assetID, action, input)
	if err = e.end(ctx, op, err); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (e *Engine) doRequest(ctx context.Context, op *operation, actor domain.Actor, assetID string, action domain.Action, input domain.RequestInput) (Result, error) {
	if err := actor.Validate(); err != nil {
		return Result{}, err
	}
	assetID, err := requireID(assetID, "asset id")
	if err != nil {
		return Result{}, err
	}
	txnID, err := e.generateID()
	if err != nil {
		return Result{}, err
	}

	var result Result
	err = e.locked(ctx, []string{guard.AssetKey(assetID)}, func(ctx context.Context, tx storage.Tx) error {
		asset, err := tx.LockAsset(ctx, assetID)
		if err != nil {
			return notFound(err, "AssetID", assetID)
		}

		next, txn, err := domain.DecideRequest(actor, asset, action, input)
		if err != nil {
			return err
		}
		if action == domain.ActionReturn {
			if err := checkReturnRequester(ctx, tx, actor, assetID); err != nil {
				return err
			}
		}

		now := e.timestamp()
		txn.ID = txnID
		txn.CreatedAt = now
		txn.UpdatedAt = now
		next.UpdatedAt = now

		if err := tx.PutAsset(ctx, next); err != nil {
			return notFound(err, "AssetID", assetID)
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				// Another pending entry exists for the asset.
				return apperrors.Annotate(domain.ErrAssetNotAvailable, "Status", string(asset.Status))
			}
			return err
		}

		op.attr("transaction_id", txn.ID)
		op.transition(asset.Status, next.Status)
		result = Result{Asset: next, Transaction: txn}
		return nil
	})
	return result, err
}

func checkReturnRequester(ctx context.Context, tx storage.Tx, actor domain.Actor, assetID string) error {
	latest, err := tx.LatestTransaction(ctx, assetID, domain.ActionBorrow, domain.TxnStatusCompleted)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.CheckReturnRequester(actor, nil)
	case err != nil:
		return err
	default:
		return domain.CheckReturnRequester(actor, &latest)
	}
}
