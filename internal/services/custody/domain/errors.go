package domain

import apperrors "github.com/louisbranch/custody/internal/platform/errors"

var (
	// ErrNotFound indicates a missing asset or transaction.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrAssetNotAvailable indicates a request against an asset that is not AVAILABLE.
	ErrAssetNotAvailable = apperrors.New(apperrors.CodeAssetNotAvailable, "asset is not available")
	// ErrAssetNotBorrowed indicates a return against an asset that is not BORROWED.
	ErrAssetNotBorrowed = apperrors.New(apperrors.CodeAssetNotBorrowed, "asset is not borrowed")
	// ErrNotPendingApproval indicates a transaction that was already resolved.
	ErrNotPendingApproval = apperrors.New(apperrors.CodeNotPendingApproval, "transaction is not pending approval")
	// ErrWrongActionKind indicates a resolution against a transaction of another action.
	ErrWrongActionKind = apperrors.New(apperrors.CodeWrongActionKind, "transaction action does not match the operation")
	// ErrNotOriginalBorrower indicates a return requested by someone other than the borrower.
	ErrNotOriginalBorrower = apperrors.New(apperrors.CodeNotOriginalBorrower, "only the original borrower may return this asset")
	// ErrPermissionDenied indicates an actor without the required privilege.
	ErrPermissionDenied = apperrors.New(apperrors.CodePermissionDenied, "actor lacks the required privilege")
	// ErrLocationNotFound indicates an unknown location id.
	ErrLocationNotFound = apperrors.New(apperrors.CodeLocationNotFound, "location not found")
	// ErrInvalidInput indicates a missing or malformed field.
	ErrInvalidInput = apperrors.New(apperrors.CodeInvalidInput, "invalid input")
)

func invalidInput(message string) error {
	return apperrors.New(apperrors.CodeInvalidInput, message)
}
