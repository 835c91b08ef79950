package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
)

// DefaultRejectReason is recorded when a rejection carries no reason.
const DefaultRejectReason = "Rejected"

// DirectLocationReason is recorded for a direct placement edit on an
// AVAILABLE asset.
const DirectLocationReason = "direct location update"

// RequestInput carries the requester-supplied fields of a request.
type RequestInput struct {
	Reason   string
	DueAt    *time.Time
	ImageRef string
}

type requestRule struct {
	requires AssetStatus
	pending  AssetStatus
	err      *apperrors.Error
}

// Dispatch shares the pending-outbound status with borrow.
var requestRules = map[Action]requestRule{
	ActionBorrow:   {requires: AssetStatusAvailable, pending: AssetStatusPendingBorrow, err: ErrAssetNotAvailable},
	ActionDispatch: {requires: AssetStatusAvailable, pending: AssetStatusPendingBorrow, err: ErrAssetNotAvailable},
	ActionReturn:   {requires: AssetStatusBorrowed, pending: AssetStatusPendingReturn, err: ErrAssetNotBorrowed},
}

var approvedStatus = map[Action]AssetStatus{
	ActionBorrow:   AssetStatusBorrowed,
	ActionDispatch: AssetStatusDispatched,
	ActionReturn:   AssetStatusAvailable,
}

var rejectedStatus = map[Action]AssetStatus{
	ActionBorrow:   AssetStatusAvailable,
	ActionDispatch: AssetStatusAvailable,
	ActionReturn:   AssetStatusBorrowed,
}

// DecideRequest checks a borrow, dispatch, or return request against the
// locked asset and returns the asset and pending ledger entry to persist.
// The returned transaction has no id or timestamps.
func DecideRequest(actor Actor, asset Asset, action Action, input RequestInput) (Asset, Transaction, error) {
	rule, ok := requestRules[action]
	if !ok {
		return Asset{}, Transaction{}, ErrWrongActionKind
	}
	if asset.Status != rule.requires {
		return Asset{}, Transaction{}, apperrors.Annotate(rule.err, "Status", string(asset.Status))
	}

	next := asset
	next.Status = rule.pending
	txn := Transaction{
		AssetID:     asset.ID,
		RequesterID: actor.ID,
		Action:      action,
		Status:      TxnStatusPendingApproval,
		Snapshot:    asset.Placement,
		Reason:      strings.TrimSpace(input.Reason),
		DueAt:       input.DueAt,
		ImageRef:    strings.TrimSpace(input.ImageRef),
	}
	return next, txn, nil
}

// CheckReturnRequester enforces that only the requester of the latest
// completed borrow may return an asset, unless the actor is elevated. With no
// completed borrow on record only elevated actors may proceed.
func CheckReturnRequester(actor Actor, lastBorrow *Transaction) error {
	if actor.Elevated() {
		return nil
	}
	if lastBorrow == nil || lastBorrow.RequesterID != actor.ID {
		return ErrNotOriginalBorrower
	}
	return nil
}

// CheckResolver ensures the actor may approve or reject ledger entries.
func CheckResolver(actor Actor) error {
	if !actor.Elevated() {
		return ErrPermissionDenied
	}
	return nil
}

// CheckResolvable ensures txn is pending and its action is one of allowed.
func CheckResolvable(txn Transaction, allowed ...Action) error {
	if txn.Status != TxnStatusPendingApproval {
		return apperrors.Annotate(ErrNotPendingApproval, "Status", string(txn.Status))
	}
	for _, action := range allowed {
		if txn.Action == action {
			return nil
		}
	}
	return apperrors.Annotate(ErrWrongActionKind, "Action", string(txn.Action))
}

// Approve completes txn and returns the asset's approved status.
func Approve(txn Transaction, verifier Actor, adminNote string) (Transaction, AssetStatus, error) {
	status, ok := approvedStatus[txn.Action]
	if !ok {
		return Transaction{}, "", apperrors.Annotate(ErrWrongActionKind, "Action", string(txn.Action))
	}
	txn.Status = TxnStatusCompleted
	txn.VerifierID = verifier.ID
	txn.AdminNote = strings.TrimSpace(adminNote)
	return txn, status, nil
}

// Reject rejects txn and returns the asset's reverted status. An empty
// reason records DefaultRejectReason.
func Reject(txn Transaction, verifier Actor, reason string) (Transaction, AssetStatus, error) {
	status, ok := rejectedStatus[txn.Action]
	if !ok {
		return Transaction{}, "", apperrors.Annotate(ErrWrongActionKind, "Action", string(txn.Action))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectReason
	}
	txn.Status = TxnStatusRejected
	txn.VerifierID = verifier.ID
	txn.AdminNote = reason
	return txn, status, nil
}

// FinalizeSnapshot overwrites the snapshot of a completed return with the
// asset's final placement. It is the only rewrite of a snapshot after
// creation and refuses any other entry.
func FinalizeSnapshot(txn Transaction, final Placement) (Transaction, error) {
	if txn.Action != ActionReturn || txn.Status != TxnStatusCompleted {
		return Transaction{}, apperrors.Annotate(ErrWrongActionKind, "Action", string(txn.Action))
	}
	txn.Snapshot = final
	return txn, nil
}

// FieldUpdate is a direct edit of asset fields. Nil fields are untouched.
type FieldUpdate struct {
	Status      *AssetStatus
	Name        *string
	Description *string
	Category    *string
	Placement   PlacementUpdate
	Target      PlacementUpdate
	ImageRef    string
}

// Empty reports whether the update changes nothing.
func (u FieldUpdate) Empty() bool {
	return u.Status == nil && u.Name == nil && u.Description == nil && u.Category == nil &&
		u.Placement.Empty() && u.Target.Empty()
}

// Apply returns asset with the update applied.
func (u FieldUpdate) Apply(asset Asset) (Asset, error) {
	if u.Status != nil {
		status, ok := ParseAssetStatus(string(*u.Status))
		if !ok {
			return Asset{}, invalidInput(fmt.Sprintf("unknown asset status %q", *u.Status))
		}
		asset.Status = status
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return Asset{}, invalidInput("asset name is required")
		}
		asset.Name = name
	}
	if u.Description != nil {
		asset.Description = *u.Description
	}
	if u.Category != nil {
		asset.Category = strings.TrimSpace(*u.Category)
	}
	asset.Placement = u.Placement.Apply(asset.Placement)
	asset.Target = u.Target.Apply(asset.Target)
	return asset, nil
}

// MoveEntry is the self-approving ledger entry a direct update emits.
type MoveEntry struct {
	Action Action
	Reason string
}

// DecideFieldUpdate returns the ledger entry implied by a direct update from
// before to after. Rules are evaluated in order and only the first match
// fires:
//
//  1. status changed to IN_TRANSIT: MOVE_START
//  2. status changed from IN_TRANSIT to AVAILABLE: MOVE_CONFIRM
//  3. AVAILABLE with a changed placement: MOVE_CONFIRM, direct location update
//
// Any other edit emits nothing.
func DecideFieldUpdate(before, after Asset) (MoveEntry, bool) {
	switch {
	case before.Status != after.Status && after.Status == AssetStatusInTransit:
		return MoveEntry{Action: ActionMoveStart, Reason: statusChangedReason(before.Status, after.Status)}, true
	case before.Status == AssetStatusInTransit && after.Status == AssetStatusAvailable:
		return MoveEntry{Action: ActionMoveConfirm, Reason: statusChangedReason(before.Status, after.Status)}, true
	case after.Status == AssetStatusAvailable && before.Placement != after.Placement:
		return MoveEntry{Action: ActionMoveConfirm, Reason: DirectLocationReason}, true
	default:
		return MoveEntry{}, false
	}
}

func statusChangedReason(from, to AssetStatus) string {
	return fmt.Sprintf("status changed from %s to %s", from, to)
}

// NewAsset is the input for registering an asset.
type NewAsset struct {
	Name        string
	Description string
	Category    string
	Placement   Placement
}

// Validate normalizes and checks the registration input.
func (n NewAsset) Validate() (NewAsset, error) {
	n.Name = strings.TrimSpace(n.Name)
	n.Category = strings.TrimSpace(n.Category)
	n.Placement.LocationID = strings.TrimSpace(n.Placement.LocationID)
	if n.Name == "" {
		return NewAsset{}, invalidInput("asset name is required")
	}
	return n, nil
}
