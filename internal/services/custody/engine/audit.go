package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/louisbranch/custody/internal/services/custody/domain"
)

// ViolationKind names a ledger inconsistency.
type ViolationKind string

const (
	// ViolationMultiplePending is an asset with more than one pending entry.
	ViolationMultiplePending ViolationKind = "MULTIPLE_PENDING"
	// ViolationPendingStatusWithoutEntry is a PENDING_* asset with no pending entry.
	ViolationPendingStatusWithoutEntry ViolationKind = "PENDING_STATUS_WITHOUT_ENTRY"
	// ViolationPendingEntryWithoutStatus is a pending entry on an asset that is not PENDING_*.
	ViolationPendingEntryWithoutStatus ViolationKind = "PENDING_ENTRY_WITHOUT_STATUS"
	// ViolationBorrowedWithoutBorrow is a BORROWED asset with no completed borrow.
	ViolationBorrowedWithoutBorrow ViolationKind = "BORROWED_WITHOUT_BORROW"
)

// Violation is one inconsistency between the registry and the ledger.
type Violation struct {
	AssetID string
	Kind    ViolationKind
	Detail  string
}

// LedgerReport is the result of CheckLedger.
type LedgerReport struct {
	AssetsChecked int
	Violations    []Violation
}

// CheckLedger reconciles every asset's status with its ledger. It reads
// without locking and changes nothing. Elevated only.
func (e *Engine) CheckLedger(ctx context.Context, actor domain.Actor) (LedgerReport, error) {
	ctx, op := e.begin(ctx, "check_ledger", actor)

	report, err := e.doCheckLedger(ctx, actor)
	if err == nil {
		op.attr("violations", strconv.Itoa(len(report.Violations)))
	}
	if err = e.end(ctx, op, err); err != nil {
		return LedgerReport{}, err
	}
	return report, nil
}

func (e *Engine) doCheckLedger(ctx context.Context, actor domain.Actor) (LedgerReport, error) {
	if err := checkElevated(actor); err != nil {
		return LedgerReport{}, err
	}
	rows, err := e.store.AuditLedger(ctx)
	if err != nil {
		return LedgerReport{}, fmt.Errorf("audit ledger: %w", err)
	}

	report := LedgerReport{AssetsChecked: len(rows)}
	for _, row := range rows {
		add := func(kind ViolationKind, detail string) {
			report.Violations = append(report.Violations, Violation{AssetID: row.AssetID, Kind: kind, Detail: detail})
		}
		if row.PendingCount > 1 {
			add(ViolationMultiplePending, fmt.Sprintf("%d pending entries", row.PendingCount))
		}
		switch {
		case row.Status.Pending() && row.PendingCount == 0:
			add(ViolationPendingStatusWithoutEntry, fmt.Sprintf("status %s has no pending entry", row.Status))
		case !row.Status.Pending() && row.PendingCount > 0:
			add(ViolationPendingEntryWithoutStatus, fmt.Sprintf("status %s has a pending entry", row.Status))
		}
		if row.Status == domain.AssetStatusBorrowed && row.CompletedBorrows == 0 {
			add(ViolationBorrowedWithoutBorrow, "no completed borrow on record")
		}
	}
	return report, nil
}
