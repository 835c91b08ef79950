// Package errors provides structured error handling for custody operations.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeLocationNotFound Code = "LOCATION_NOT_FOUND"

	// Asset precondition errors
	CodeAssetNotAvailable Code = "ASSET_NOT_AVAILABLE"
	CodeAssetNotBorrowed  Code = "ASSET_NOT_BORROWED"

	// Ledger precondition errors
	CodeNotPendingApproval Code = "NOT_PENDING_APPROVAL"
	CodeWrongActionKind    Code = "WRONG_ACTION_KIND"

	// Actor errors
	CodeNotOriginalBorrower Code = "NOT_ORIGINAL_BORROWER"
	CodePermissionDenied    Code = "PERMISSION_DENIED"

	// Input errors
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeInvalidFilter Code = "INVALID_FILTER"

	// Grant errors
	CodeGrantInvalid  Code = "GRANT_INVALID"
	CodeGrantExpired  Code = "GRANT_EXPIRED"
	CodeGrantMismatch Code = "GRANT_MISMATCH"
)

// Precondition reports whether the code describes a state that disallows the
// requested operation, as opposed to bad input or a missing record.
func (c Code) Precondition() bool {
	switch c {
	case CodeAssetNotAvailable,
		CodeAssetNotBorrowed,
		CodeNotPendingApproval,
		CodeWrongActionKind,
		CodeNotOriginalBorrower:
		return true
	default:
		return false
	}
}
