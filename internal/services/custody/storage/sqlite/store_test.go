package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/filter"
	"github.com/louisbranch/custody/internal/services/custody/storage"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	t.Parallel()

	var store *Store
	if _, err := store.GetAsset(context.Background(), "asset-1"); err == nil {
		t.Fatal("expected not configured error")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestInsertLockAndPutAsset(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedLocation(t, store, domain.Location{ID: "loc-1", Name: "Lab"})
	seedAsset(t, store, domain.Asset{
		ID:        "asset-1",
		Name:      "Oscilloscope",
		Status:    domain.AssetStatusAvailable,
		Placement: domain.Placement{LocationID: "loc-1", Zone: "A"},
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	})

	err := store.Update(ctx, func(tx storage.Tx) error {
		asset, err := tx.LockAsset(ctx, "asset-1")
		if err != nil {
			return err
		}
		asset.Status = domain.AssetStatusPendingBorrow
		asset.Placement.Cabinet = "7"
		asset.UpdatedAt = baseTime.Add(time.Minute)
		return tx.PutAsset(ctx, asset)
	})
	if err != nil {
		t.Fatalf("update asset: %v", err)
	}

	got, err := store.GetAsset(ctx, "asset-1")
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if got.Status != domain.AssetStatusPendingBorrow || got.Placement.Cabinet != "7" || got.Placement.LocationID != "loc-1" {
		t.Fatalf("asset = %+v", got)
	}
	if !got.UpdatedAt.Equal(baseTime.Add(time.Minute)) {
		t.Fatalf("updated_at = %v", got.UpdatedAt)
	}

	if _, err := store.GetAsset(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedAsset(t, store, availableAsset("asset-1", baseTime))

	boom := errors.New("precondition failed")
	err := store.Update(ctx, func(tx storage.Tx) error {
		asset, err := tx.LockAsset(ctx, "asset-1")
		if err != nil {
			return err
		}
		asset.Status = domain.AssetStatusLost
		if err := tx.PutAsset(ctx, asset); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	got, err := store.GetAsset(ctx, "asset-1")
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if got.Status != domain.AssetStatusAvailable {
		t.Fatalf("status = %s, want rollback to AVAILABLE", got.Status)
	}
}

func TestSecondPendingTransactionConflicts(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedAsset(t, store, availableAsset("asset-1", baseTime))

	insertTxn(t, store, pendingTxn("txn-1", "asset-1", domain.ActionBorrow, baseTime))
	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.InsertTransaction(ctx, pendingTxn("txn-2", "asset-1", domain.ActionDispatch, baseTime.Add(time.Second)))
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestResolveTransactionOnlyOnce(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedAsset(t, store, availableAsset("asset-1", baseTime))
	insertTxn(t, store, pendingTxn("txn-1", "asset-1", domain.ActionBorrow, baseTime))

	resolve := func(status domain.TxnStatus) error {
		return store.Update(ctx, func(tx storage.Tx) error {
			txn, err := tx.LockTransaction(ctx, "txn-1")
			if err != nil {
				return err
			}
			txn.Status = status
			txn.VerifierID = "manager-1"
			txn.AdminNote = "ok"
			txn.UpdatedAt = baseTime.Add(time.Minute)
			return tx.ResolveTransaction(ctx, txn)
		})
	}
	if err := resolve(domain.TxnStatusCompleted); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := resolve(domain.TxnStatusRejected); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	got, err := store.GetTransaction(ctx, "txn-1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.Status != domain.TxnStatusCompleted || got.VerifierID != "manager-1" {
		t.Fatalf("transaction = %+v", got)
	}
}

func TestFinalizeSnapshotOnlyOnCompletedReturn(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedAsset(t, store, availableAsset("asset-1", baseTime))
	done := pendingTxn("txn-1", "asset-1", domain.ActionReturn, baseTime)
	done.Status = domain.TxnStatusCompleted
	insertTxn(t, store, done)

	final := domain.Placement{LocationID: "loc-9", Zone: "B", Cabinet: "2", Number: "5"}
	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.FinalizeSnapshot(ctx, "txn-1", final)
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	got, err := store.GetTransaction(ctx, "txn-1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.Snapshot != final {
		t.Fatalf("snapshot = %+v, want %+v", got.Snapshot, final)
	}

	borrow := pendingTxn("txn-2", "asset-1", domain.ActionBorrow, baseTime.Add(time.Second))
	borrow.Status = domain.TxnStatusCompleted
	insertTxn(t, store, borrow)
	err = store.Update(ctx, func(tx storage.Tx) error {
		return tx.FinalizeSnapshot(ctx, "txn-2", final)
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestFinalizeSnapshotOnlyOnce(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedAsset(t, store, availableAsset("asset-1", baseTime))
	done := pendingTxn("txn-1", "asset-1", domain.ActionReturn, baseTime)
	done.Status = domain.TxnStatusCompleted
	insertTxn(t, store, done)

	first := domain.Placement{LocationID: "loc-1", Zone: "A"}
	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.FinalizeSnapshot(ctx, "txn-1", first)
	})
	if err != nil {
		t.Fatalf("first finalize: %v", err)
	}

	err = store.Update(ctx, func(tx storage.Tx) error {
		return tx.FinalizeSnapshot(ctx, "txn-1", domain.Placement{LocationID: "loc-2", Zone: "Z"})
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if _, err := store.sqlDB.Exec("UPDATE transactions SET zone = 'Q' WHERE id = 'txn-1'"); err == nil {
		t.Fatal("expected finalized snapshot to be immutable")
	}

	got, err := store.GetTransaction(ctx, "txn-1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.Snapshot != first {
		t.Fatalf("snapshot = %+v, want %+v", got.Snapshot, first)
	}
}

func TestLedgerRowsAreNeverDeleted(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	seedAsset(t, store, availableAsset("asset-1", baseTime))
	insertTxn(t, store, pendingTxn("txn-1", "asset-1", domain.ActionBorrow, baseTime))

	if _, err := store.sqlDB.Exec("DELETE FROM transactions WHERE id = 'txn-1'"); err == nil {
		t.Fatal("expected delete to be refused")
	}
	if _, err := store.sqlDB.Exec("UPDATE transactions SET status = 'COMPLETED' WHERE id = 'txn-1'"); err != nil {
		t.Fatalf("resolve pending row: %v", err)
	}
	if _, err := store.sqlDB.Exec("UPDATE transactions SET admin_note = 'edited' WHERE id = 'txn-1'"); err == nil {
		t.Fatal("expected resolved row to be immutable")
	}
}

func TestLatestTransactionPicksNewest(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedAsset(t, store, availableAsset("asset-1", baseTime))
	for i, requester := range []string{"user-1", "user-2", "user-3"} {
		txn := pendingTxn("txn-"+requester, "asset-1", domain.ActionBorrow, baseTime)
		txn.Status = domain.TxnStatusCompleted
		txn.RequesterID = requester
		// Same millisecond for the last two; insertion order breaks the tie.
		if i > 0 {
			txn.CreatedAt = baseTime.Add(time.Minute)
		}
		insertTxn(t, store, txn)
	}

	err := store.Update(ctx, func(tx storage.Tx) error {
		latest, err := tx.LatestTransaction(ctx, "asset-1", domain.ActionBorrow, domain.TxnStatusCompleted)
		if err != nil {
			return err
		}
		if latest.RequesterID != "user-3" {
			t.Fatalf("latest requester = %s, want user-3", latest.RequesterID)
		}
		_, err = tx.LatestTransaction(ctx, "asset-1", domain.ActionReturn, domain.TxnStatusCompleted)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestListTransactionsPagesNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedAsset(t, store, availableAsset("asset-1", baseTime))
	seedAsset(t, store, availableAsset("asset-2", baseTime))
	for i := 0; i < 5; i++ {
		txn := pendingTxn("txn-"+string(rune('a'+i)), "asset-1", domain.ActionMoveConfirm, baseTime.Add(time.Duration(i)*time.Minute))
		txn.Status = domain.TxnStatusCompleted
		insertTxn(t, store, txn)
	}
	insertTxn(t, store, pendingTxn("txn-other", "asset-2", domain.ActionBorrow, baseTime))

	first, err := store.ListTransactions(ctx, storage.TransactionQuery{AssetID: "asset-1", PageSize: 2})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if ids(first.Transactions) != "txn-e,txn-d" || first.NextPageToken != "txn-d" {
		t.Fatalf("first page = %s token %q", ids(first.Transactions), first.NextPageToken)
	}
	second, err := store.ListTransactions(ctx, storage.TransactionQuery{AssetID: "asset-1", PageSize: 2, PageToken: first.NextPageToken})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if ids(second.Transactions) != "txn-c,txn-b" {
		t.Fatalf("second page = %s", ids(second.Transactions))
	}
	third, err := store.ListTransactions(ctx, storage.TransactionQuery{AssetID: "asset-1", PageSize: 2, PageToken: second.NextPageToken})
	if err != nil {
		t.Fatalf("list third page: %v", err)
	}
	if ids(third.Transactions) != "txn-a" || third.NextPageToken != "" {
		t.Fatalf("third page = %s token %q", ids(third.Transactions), third.NextPageToken)
	}

	cond, err := filter.Transactions.Parse(`status = "PENDING_APPROVAL"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	pending, err := store.ListTransactions(ctx, storage.TransactionQuery{Condition: cond, PageSize: 10})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if ids(pending.Transactions) != "txn-other" {
		t.Fatalf("pending = %s", ids(pending.Transactions))
	}
}

func TestListAssetsByLocationAndFilter(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedLocation(t, store, domain.Location{ID: "lab", Name: "Lab", CreatedAt: baseTime})
	seedLocation(t, store, domain.Location{ID: "bench", Name: "Bench", ParentID: "lab", CreatedAt: baseTime})
	seedLocation(t, store, domain.Location{ID: "annex", Name: "Annex", CreatedAt: baseTime})

	onBench := availableAsset("asset-bench", baseTime)
	onBench.Placement.LocationID = "bench"
	onBench.Category = "meters"
	inLab := availableAsset("asset-lab", baseTime.Add(time.Minute))
	inLab.Placement.LocationID = "lab"
	inLab.Status = domain.AssetStatusBorrowed
	inAnnex := availableAsset("asset-annex", baseTime.Add(2*time.Minute))
	inAnnex.Placement.LocationID = "annex"
	for _, asset := range []domain.Asset{onBench, inLab, inAnnex} {
		seedAsset(t, store, asset)
	}

	page, err := store.ListAssets(ctx, storage.AssetQuery{LocationIDs: []string{"lab", "bench"}, PageSize: 10})
	if err != nil {
		t.Fatalf("list assets: %v", err)
	}
	if assetIDs(page.Assets) != "asset-lab,asset-bench" {
		t.Fatalf("assets = %s", assetIDs(page.Assets))
	}

	cond, err := filter.Assets.Parse(`status = "AVAILABLE" AND category = "meters"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	page, err = store.ListAssets(ctx, storage.AssetQuery{Condition: cond, PageSize: 10})
	if err != nil {
		t.Fatalf("list filtered assets: %v", err)
	}
	if assetIDs(page.Assets) != "asset-bench" {
		t.Fatalf("filtered assets = %s", assetIDs(page.Assets))
	}

	locations, err := store.ListLocations(ctx)
	if err != nil {
		t.Fatalf("list locations: %v", err)
	}
	if len(locations) != 3 || locations[0].Name != "Annex" || locations[1].ParentID != "lab" {
		t.Fatalf("locations = %+v", locations)
	}
}

func TestListAssetsByLargeLocationSet(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedLocation(t, store, domain.Location{ID: "deep", Name: "Deep", CreatedAt: baseTime})
	placed := availableAsset("asset-deep", baseTime)
	placed.Placement.LocationID = "deep"
	seedAsset(t, store, placed)
	seedAsset(t, store, availableAsset("asset-unplaced", baseTime.Add(time.Minute)))

	locationIDs := make([]string, 0, 40001)
	for i := 0; i < 40000; i++ {
		locationIDs = append(locationIDs, fmt.Sprintf("loc-%05d", i))
	}
	locationIDs = append(locationIDs, "deep")

	page, err := store.ListAssets(ctx, storage.AssetQuery{LocationIDs: locationIDs, PageSize: 10})
	if err != nil {
		t.Fatalf("list assets: %v", err)
	}
	if assetIDs(page.Assets) != "asset-deep" {
		t.Fatalf("assets = %s", assetIDs(page.Assets))
	}
}

func TestAuditLedgerCounts(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	borrowed := availableAsset("asset-1", baseTime)
	borrowed.Status = domain.AssetStatusBorrowed
	seedAsset(t, store, borrowed)
	seedAsset(t, store, availableAsset("asset-2", baseTime))

	done := pendingTxn("txn-1", "asset-1", domain.ActionBorrow, baseTime)
	done.Status = domain.TxnStatusCompleted
	insertTxn(t, store, done)
	insertTxn(t, store, pendingTxn("txn-2", "asset-1", domain.ActionReturn, baseTime.Add(time.Minute)))

	rows, err := store.AuditLedger(ctx)
	if err != nil {
		t.Fatalf("audit ledger: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].AssetID != "asset-1" || rows[0].PendingCount != 1 || rows[0].CompletedBorrows != 1 {
		t.Fatalf("asset-1 audit = %+v", rows[0])
	}
	if rows[1].AssetID != "asset-2" || rows[1].PendingCount != 0 || rows[1].CompletedBorrows != 0 {
		t.Fatalf("asset-2 audit = %+v", rows[1])
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "custody.db")
	store, err := Open(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Fatalf("close store: %v", closeErr)
		}
	})
	return store
}

func availableAsset(id string, createdAt time.Time) domain.Asset {
	return domain.Asset{
		ID:        id,
		Name:      "Asset " + id,
		Status:    domain.AssetStatusAvailable,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func pendingTxn(id, assetID string, action domain.Action, createdAt time.Time) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		AssetID:     assetID,
		RequesterID: "user-1",
		Action:      action,
		Status:      domain.TxnStatusPendingApproval,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func seedLocation(t *testing.T, store *Store, loc domain.Location) {
	t.Helper()
	err := store.Update(context.Background(), func(tx storage.Tx) error {
		return tx.InsertLocation(context.Background(), loc)
	})
	if err != nil {
		t.Fatalf("seed location %s: %v", loc.ID, err)
	}
}

func seedAsset(t *testing.T, store *Store, asset domain.Asset) {
	t.Helper()
	err := store.Update(context.Background(), func(tx storage.Tx) error {
		return tx.InsertAsset(context.Background(), asset)
	})
	if err != nil {
		t.Fatalf("seed asset %s: %v", asset.ID, err)
	}
}

func insertTxn(t *testing.T, store *Store, txn domain.Transaction) {
	t.Helper()
	err := store.Update(context.Background(), func(tx storage.Tx) error {
		return tx.InsertTransaction(context.Background(), txn)
	})
	if err != nil {
		t.Fatalf("insert transaction %s: %v", txn.ID, err)
	}
}

func ids(txns []domain.Transaction) string {
	out := ""
	for i, txn := range txns {
		if i > 0 {
			out += ","
		}
		out += txn.ID
	}
	return out
}

func assetIDs(assets []domain.Asset) string {
	out := ""
	for i, asset := range assets {
		if i > 0 {
			out += ","
		}
		out += asset.ID
	}
	return out
}
