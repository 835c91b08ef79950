package engine

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/guard"
	"github.com/louisbranch/custody/internal/services/custody/storage"
)

// outbound are the actions resolved by Approve and Reject.
var outbound = []domain.Action{domain.ActionBorrow, domain.ActionDispatch}

// Approve completes a pending BORROW or DISPATCH entry. The asset becomes
// BORROWED or DISPATCHED and the verifier and note are recorded.
func (e *Engine) Approve(ctx context.Context, verifier domain.Actor, txnID, adminNote string) (Result, error) {
	return e.resolve(ctx, "approve", verifier, txnID, resolution{
		allowed: outbound,
		decide: func(txn domain.Transaction) (domain.Transaction, domain.AssetStatus, error) {
			return domain.Approve(txn, verifier, adminNote)
		},
	})
}

// Reject rejects a pending BORROW or DISPATCH entry and makes the asset
// AVAILABLE again.
func (e *Engine) Reject(ctx context.Context, verifier domain.Actor, txnID, reason string) (Result, error) {
	return e.resolve(ctx, "reject", verifier, txnID, resolution{
		allowed: outbound,
		decide: func(txn domain.Transaction) (domain.Transaction, domain.AssetStatus, error) {
			return domain.Reject(txn, verifier, reason)
		},
	})
}

// ApproveReturn completes a pending RETURN entry. The asset becomes
// AVAILABLE, every present field of placement replaces the asset's current
// one, and the entry's snapshot is rewritten to the final placement.
func (e *Engine) ApproveReturn(ctx context.Context, verifier domain.Actor, txnID string, placement domain.PlacementUpdate, adminNote string) (Result, error) {
	return e.resolve(ctx, "approve_return", verifier, txnID, returnApproval(verifier, placement, adminNote))
}

// RejectReturn rejects a pending RETURN entry and leaves the asset BORROWED.
func (e *Engine) RejectReturn(ctx context.Context, verifier domain.Actor, txnID, reason string) (Result, error) {
	return e.resolve(ctx, "reject_return", verifier, txnID, resolution{
		allowed: []domain.Action{domain.ActionReturn},
		decide: func(txn domain.Transaction) (domain.Transaction, domain.AssetStatus, error) {
			return domain.Reject(txn, verifier, reason)
		},
	})
}

func returnApproval(verifier domain.Actor, placement domain.PlacementUpdate, adminNote string) resolution {
	return resolution{
		allowed:   []domain.Action{domain.ActionReturn},
		placement: placement,
		finalize:  true,
		decide: func(txn domain.Transaction) (domain.Transaction, domain.AssetStatus, error) {
			return domain.Approve(txn, verifier, adminNote)
		},
	}
}

// resolution describes how one resolve operation treats its entry.
type resolution struct {
	allowed []domain.Action
	decide  func(domain.Transaction) (domain.Transaction, domain.AssetStatus, error)
	// placement is applied to the asset before the snapshot is finalized.
	placement domain.PlacementUpdate
	finalize  bool
}

func (e *Engine) resolve(ctx context.Context, name string, verifier domain.Actor, txnID string, res resolution) (Result, error) {
	ctx, op := e.begin(ctx, name, verifier)
	op.attr("transaction_id", txnID)

	result, err := e.doResolve(ctx, op, verifier, txnID, res)
	if err = e.end(ctx, op, err); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (e *Engine) doResolve(ctx context.Context, op *operation, verifier domain.Actor, txnID string, res resolution) (Result, error) {
	if err := checkElevated(verifier); err != nil {
		return Result{}, err
	}
	txnID, err := requireID(txnID, "transaction id")
	if err != nil {
		return Result{}, err
	}

	// The asset of an entry never changes, so it can be read before locking.
	current, err := e.store.GetTransaction(ctx, txnID)
	if err != nil {
		return Result{}, notFound(err, "TransactionID", txnID)
	}
	keys := []string{guard.AssetKey(current.AssetID), guard.TransactionKey(txnID)}

	var result Result
	err = e.locked(ctx, keys, func(ctx context.Context, tx storage.Tx) error {
		txn, err := tx.LockTransaction(ctx, txnID)
		if err != nil {
			return notFound(err, "TransactionID", txnID)
		}
		asset, err := tx.LockAsset(ctx, txn.AssetID)
		if err != nil {
			return notFound(err, "AssetID", txn.AssetID)
		}
		if err := domain.CheckResolvable(txn, res.allowed...); err != nil {
			return err
		}

		resolved, status, err := res.decide(txn)
		if err != nil {
			return err
		}
		next := asset
		next.Status = status
		if res.finalize {
			next.Placement = res.placement.Apply(asset.Placement)
			if err := checkLocation(ctx, tx, asset.Placement.LocationID, next.Placement.LocationID); err != nil {
				return err
			}
		}

		now := e.timestamp()
		resolved.UpdatedAt = now
		next.UpdatedAt = now

		if err := tx.ResolveTransaction(ctx, resolved); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return domain.ErrNotPendingApproval
			}
			return err
		}
		if res.finalize {
			resolved, err = domain.FinalizeSnapshot(resolved, next.Placement)
			if err != nil {
				return err
			}
			if err := tx.FinalizeSnapshot(ctx, resolved.ID, resolved.Snapshot); err != nil {
				return err
			}
		}
		if err := tx.PutAsset(ctx, next); err != nil {
			return notFound(err, "AssetID", next.ID)
		}

		op.attr("asset_id", asset.ID)
		op.transition(asset.Status, next.Status)
		result = Result{Asset: next, Transaction: resolved}
		return nil
	})
	return result, err
}

// checkLocation verifies a changed, non-empty location reference.
func checkLocation(ctx context.Context, tx storage.Tx, before, after string) error {
	after = strings.TrimSpace(after)
	if after == "" || after == before {
		return nil
	}
	ok, err := tx.LocationExists(ctx, after)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Annotate(domain.ErrLocationNotFound, "LocationID", after)
	}
	return nil
}
