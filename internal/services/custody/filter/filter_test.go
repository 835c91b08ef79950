package filter

import (
	"errors"
	"reflect"
	"testing"
	"time"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
)

func TestTransactionsStatusEquals(t *testing.T) {
	cond, err := Transactions.Parse(`status = "PENDING_APPROVAL"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "status = ?" {
		t.Errorf("expected 'status = ?', got %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"PENDING_APPROVAL"}) {
		t.Fatalf("Params = %v", cond.Params)
	}
}

func TestParseEmpty(t *testing.T) {
	cond, err := Assets.Parse(" ")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if !cond.Empty() || cond.Params != nil {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestTransactionsAndOr(t *testing.T) {
	cond, err := Transactions.Parse(`action = "BORROW" AND requester_id = "user-1"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(action = ? AND requester_id = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"BORROW", "user-1"}) {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = Transactions.Parse(`action = "BORROW" OR action = "DISPATCH"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(action = ? OR action = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestAssetsNot(t *testing.T) {
	cond, err := Assets.Parse(`NOT status = "DISPOSED"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "NOT (status = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestTransactionsCreatedAtTimestamp(t *testing.T) {
	cond, err := Transactions.Parse(`created_at > timestamp("2025-01-01T00:00:00Z")`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "created_at > ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if !reflect.DeepEqual(cond.Params, []any{want}) {
		t.Fatalf("Params = %v, want [%d]", cond.Params, want)
	}
}

func TestParseRejectsFieldsOutsideSchema(t *testing.T) {
	if _, err := Assets.Parse(`requester_id = "user-1"`); err == nil {
		t.Fatal("expected error for transaction field on asset schema")
	}
	_, err := Transactions.Parse(`unknown = "x"`)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !errors.Is(err, apperrors.New(apperrors.CodeInvalidFilter, "")) {
		t.Fatalf("err = %v, want invalid filter code", err)
	}
}

func TestParseInvalidValues(t *testing.T) {
	if _, err := Transactions.Parse(`created_at = duration("1h")`); err == nil {
		t.Fatal("expected error for unsupported value function")
	}
	if _, err := Transactions.Parse(`created_at = timestamp("not-a-time")`); err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}
