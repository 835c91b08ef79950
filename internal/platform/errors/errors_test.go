package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodeAssetNotAvailable, "asset is not available")
	annotated := Annotate(base, "AssetID", "asset-1")

	if !stderrors.Is(annotated, base) {
		t.Fatal("expected annotated error to match base by code")
	}
	if stderrors.Is(annotated, New(CodeAssetNotBorrowed, "other")) {
		t.Fatal("expected different codes not to match")
	}
	if annotated.Metadata["AssetID"] != "asset-1" {
		t.Fatalf("metadata = %v, want AssetID", annotated.Metadata)
	}
	if len(base.Metadata) != 0 {
		t.Fatal("expected annotate to leave the base error untouched")
	}
}

func TestCodeOfWalksChain(t *testing.T) {
	err := fmt.Errorf("approve: %w", New(CodeNotPendingApproval, "transaction is not pending approval"))
	if got := CodeOf(err); got != CodeNotPendingApproval {
		t.Fatalf("code = %q, want %q", got, CodeNotPendingApproval)
	}
	if got := CodeOf(stderrors.New("boom")); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeUnknown, "write ledger", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if err.Error() != "write ledger: disk full" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestCodePrecondition(t *testing.T) {
	if !CodeWrongActionKind.Precondition() {
		t.Fatal("expected wrong action kind to be a precondition failure")
	}
	if CodeInvalidInput.Precondition() {
		t.Fatal("expected invalid input not to be a precondition failure")
	}
}
