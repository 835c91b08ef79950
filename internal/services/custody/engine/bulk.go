package engine

import (
	"context"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"github.com/louisbranch/custody/internal/services/custody/domain"
)

// BulkFailure is one entry a bulk approval could not apply.
type BulkFailure struct {
	TransactionID string
	Err           error
}

// BulkResult partitions the ids of a bulk approval.
type BulkResult struct {
	Succeeded []string
	Failed    []BulkFailure
}

// BulkApprove approves each pending entry independently and in order. A
// failed item never undoes or blocks the others. RETURN entries are approved
// as returns, keeping the asset's current placement.
//
// Only actor-level problems fail the whole call; per-item errors are
// reported in the result.
func (e *Engine) BulkApprove(ctx context.Context, verifier domain.Actor, txnIDs []string, adminNote string) (BulkResult, error) {
	ctx, op := e.begin(ctx, "bulk_approve", verifier)
	op.attr("count", strconv.Itoa(len(txnIDs)))

	result, err := e.doBulkApprove(ctx, verifier, txnIDs, adminNote)
	if err == nil {
		op.attr("succeeded", strconv.Itoa(len(result.Succeeded)))
		op.attr("failed", strconv.Itoa(len(result.Failed)))
	}
	if err = e.end(ctx, op, err); err != nil {
		return BulkResult{}, err
	}
	return result, nil
}

func (e *Engine) doBulkApprove(ctx context.Context, verifier domain.Actor, txnIDs []string, adminNote string) (BulkResult, error) {
	if err := checkElevated(verifier); err != nil {
		return BulkResult{}, err
	}
	if len(txnIDs) == 0 {
		return BulkResult{}, apperrors.New(apperrors.CodeInvalidInput, "transaction ids are required")
	}

	result := BulkResult{Succeeded: make([]string, 0, len(txnIDs))}
	for _, txnID := range txnIDs {
		txnID = strings.TrimSpace(txnID)
		if err := e.approveAny(ctx, verifier, txnID, adminNote); err != nil {
			result.Failed = append(result.Failed, BulkFailure{TransactionID: txnID, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, txnID)
	}
	return result, nil
}

// approveAny routes an entry to the approval matching its action.
func (e *Engine) approveAny(ctx context.Context, verifier domain.Actor, txnID, adminNote string) error {
	if txnID == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "transaction id is required")
	}
	txn, err := e.store.GetTransaction(ctx, txnID)
	if err != nil {
		return notFound(err, "TransactionID", txnID)
	}
	if txn.Action == domain.ActionReturn {
		_, err = e.ApproveReturn(ctx, verifier, txnID, domain.PlacementUpdate{}, adminNote)
		return err
	}
	_, err = e.Approve(ctx, verifier, txnID, adminNote)
	return err
}
