package domain

import "strings"

// AssetStatus is the custody lifecycle label of an asset.
type AssetStatus string

const (
	AssetStatusAvailable       AssetStatus = "AVAILABLE"
	AssetStatusPendingBorrow   AssetStatus = "PENDING_BORROW"
	AssetStatusBorrowed        AssetStatus = "BORROWED"
	AssetStatusPendingReturn   AssetStatus = "PENDING_RETURN"
	AssetStatusPendingDispatch AssetStatus = "PENDING_DISPATCH"
	AssetStatusDispatched      AssetStatus = "DISPATCHED"
	AssetStatusToBeMoved       AssetStatus = "TO_BE_MOVED"
	AssetStatusInTransit       AssetStatus = "IN_TRANSIT"
	AssetStatusMaintenance     AssetStatus = "MAINTENANCE"
	AssetStatusLost            AssetStatus = "LOST"
	AssetStatusDisposed        AssetStatus = "DISPOSED"
)

var assetStatuses = []AssetStatus{
	AssetStatusAvailable,
	AssetStatusPendingBorrow,
	AssetStatusBorrowed,
	AssetStatusPendingReturn,
	AssetStatusPendingDispatch,
	AssetStatusDispatched,
	AssetStatusToBeMoved,
	AssetStatusInTransit,
	AssetStatusMaintenance,
	AssetStatusLost,
	AssetStatusDisposed,
}

// AssetStatuses lists every asset status in declaration order.
func AssetStatuses() []AssetStatus {
	return append([]AssetStatus(nil), assetStatuses...)
}

// ParseAssetStatus canonicalizes a status label.
func ParseAssetStatus(value string) (AssetStatus, bool) {
	label := AssetStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range assetStatuses {
		if status == label {
			return status, true
		}
	}
	return "", false
}

// Pending reports whether the status waits on an approval decision.
func (s AssetStatus) Pending() bool {
	switch s {
	case AssetStatusPendingBorrow, AssetStatusPendingReturn, AssetStatusPendingDispatch:
		return true
	default:
		return false
	}
}

// Action is the kind of custody event recorded on the ledger.
type Action string

const (
	ActionBorrow         Action = "BORROW"
	ActionReturn         Action = "RETURN"
	ActionDispatch       Action = "DISPATCH"
	ActionMaintenanceIn  Action = "MAINTENANCE_IN"
	ActionMaintenanceOut Action = "MAINTENANCE_OUT"
	ActionMoveStart      Action = "MOVE_START"
	ActionMoveConfirm    Action = "MOVE_CONFIRM"
)

var actions = []Action{
	ActionBorrow,
	ActionReturn,
	ActionDispatch,
	ActionMaintenanceIn,
	ActionMaintenanceOut,
	ActionMoveStart,
	ActionMoveConfirm,
}

// ParseAction canonicalizes an action label.
func ParseAction(value string) (Action, bool) {
	label := Action(strings.ToUpper(strings.TrimSpace(value)))
	for _, action := range actions {
		if action == label {
			return action, true
		}
	}
	return "", false
}

// TxnStatus is the resolution state of a ledger entry.
type TxnStatus string

const (
	TxnStatusPendingApproval TxnStatus = "PENDING_APPROVAL"
	TxnStatusCompleted       TxnStatus = "COMPLETED"
	TxnStatusRejected        TxnStatus = "REJECTED"
)

// ParseTxnStatus canonicalizes a ledger status label.
func ParseTxnStatus(value string) (TxnStatus, bool) {
	switch label := TxnStatus(strings.ToUpper(strings.TrimSpace(value))); label {
	case TxnStatusPendingApproval, TxnStatusCompleted, TxnStatusRejected:
		return label, true
	default:
		return "", false
	}
}

// Resolved reports whether the entry can no longer change.
func (s TxnStatus) Resolved() bool {
	return s == TxnStatusCompleted || s == TxnStatusRejected
}
