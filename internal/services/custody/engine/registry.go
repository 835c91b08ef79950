package engine

import (
	"context"
	"strings"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/domain/location"
	"github.com/louisbranch/custody/internal/services/custody/filter"
	"github.com/louisbranch/custody/internal/services/custody/storage"
)

// RegisterAsset creates an AVAILABLE asset. Elevated only.
func (e *Engine) RegisterAsset(ctx context.Context, actor domain.Actor, input domain.NewAsset) (domain.Asset, error) {
	ctx, op := e.begin(ctx, "register_asset", actor)

	asset, err := e.doRegisterAsset(ctx, op, actor, input)
	if err = e.end(ctx, op, err); err != nil {
		return domain.Asset{}, err
	}
	return asset, nil
}

func (e *Engine) doRegisterAsset(ctx context.Context, op *operation, actor domain.Actor, input domain.NewAsset) (domain.Asset, error) {
	if err := checkElevated(actor); err != nil {
		return domain.Asset{}, err
	}
	input, err := input.Validate()
	if err != nil {
		return domain.Asset{}, err
	}
	assetID, err := e.generateID()
	if err != nil {
		return domain.Asset{}, err
	}

	now := e.timestamp()
	asset := domain.Asset{
		ID:          assetID,
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Status:      domain.AssetStatusAvailable,
		Placement:   input.Placement,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ctx = context.WithoutCancel(ctx)
	err = e.store.Update(ctx, func(tx storage.Tx) error {
		if err := checkLocation(ctx, tx, "", asset.Placement.LocationID); err != nil {
			return err
		}
		return tx.InsertAsset(ctx, asset)
	})
	if err != nil {
		return domain.Asset{}, err
	}
	op.attr("asset_id", asset.ID)
	op.transition("", asset.Status)
	return asset, nil
}

// RegisterLocation adds a node to the location tree. A non-empty parent must
// exist. Elevated only.
func (e *Engine) RegisterLocation(ctx context.Context, actor domain.Actor, name, parentID string) (domain.Location, error) {
	ctx, op := e.begin(ctx, "register_location", actor)

	loc, err := e.doRegisterLocation(ctx, actor, name, parentID)
	if err == nil {
		op.attr("location_id", loc.ID)
	}
	if err = e.end(ctx, op, err); err != nil {
		return domain.Location{}, err
	}
	return loc, nil
}

func (e *Engine) doRegisterLocation(ctx context.Context, actor domain.Actor, name, parentID string) (domain.Location, error) {
	if err := checkElevated(actor); err != nil {
		return domain.Location{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Location{}, apperrors.New(apperrors.CodeInvalidInput, "location name is required")
	}
	locationID, err := e.generateID()
	if err != nil {
		return domain.Location{}, err
	}

	loc := domain.Location{
		ID:        locationID,
		Name:      name,
		ParentID:  strings.TrimSpace(parentID),
		CreatedAt: e.timestamp(),
	}
	ctx = context.WithoutCancel(ctx)
	err = e.store.Update(ctx, func(tx storage.Tx) error {
		if err := checkLocation(ctx, tx, "", loc.ParentID); err != nil {
			return err
		}
		return tx.InsertLocation(ctx, loc)
	})
	if err != nil {
		return domain.Location{}, err
	}
	return loc, nil
}

// GetAsset loads one asset without locking.
func (e *Engine) GetAsset(ctx context.Context, assetID string) (domain.Asset, error) {
	assetID, err := requireID(assetID, "asset id")
	if err != nil {
		return domain.Asset{}, err
	}
	asset, err := e.store.GetAsset(ctx, assetID)
	if err != nil {
		return domain.Asset{}, notFound(err, "AssetID", assetID)
	}
	return asset, nil
}

// GetTransaction loads one ledger entry without locking.
func (e *Engine) GetTransaction(ctx context.Context, txnID string) (domain.Transaction, error) {
	txnID, err := requireID(txnID, "transaction id")
	if err != nil {
		return domain.Transaction{}, err
	}
	txn, err := e.store.GetTransaction(ctx, txnID)
	if err != nil {
		return domain.Transaction{}, notFound(err, "TransactionID", txnID)
	}
	return txn, nil
}

// AssetListRequest selects assets.
type AssetListRequest struct {
	// Filter is an AIP-160 expression over status, category, name, and
	// location_id.
	Filter string
	// LocationID restricts results to the location and all its descendants.
	LocationID string
	PageSize   int
	PageToken  string
}

// ListAssets lists assets newest first.
func (e *Engine) ListAssets(ctx context.Context, req AssetListRequest) (storage.AssetPage, error) {
	cond, err := filter.Assets.Parse(req.Filter)
	if err != nil {
		return storage.AssetPage{}, err
	}
	query := storage.AssetQuery{
		Condition: cond,
		PageSize:  normalizePageSize(req.PageSize),
		PageToken: strings.TrimSpace(req.PageToken),
	}
	if root := strings.TrimSpace(req.LocationID); root != "" {
		ids, err := e.subtree(ctx, root)
		if err != nil {
			return storage.AssetPage{}, err
		}
		query.LocationIDs = ids
	}
	return e.store.ListAssets(ctx, query)
}

// subtree returns root and every location below it.
func (e *Engine) subtree(ctx context.Context, root string) ([]string, error) {
	locations, err := e.store.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	known := false
	for _, loc := range locations {
		if loc.ID == root {
			known = true
			break
		}
	}
	if !known {
		return nil, apperrors.Annotate(domain.ErrLocationNotFound, "LocationID", root)
	}
	return location.Descendants(location.BuildTree(locations), root), nil
}

// ListLocations returns the whole location tree as a flat list.
func (e *Engine) ListLocations(ctx context.Context) ([]domain.Location, error) {
	return e.store.ListLocations(ctx)
}

// TransactionListRequest selects ledger entries.
type TransactionListRequest struct {
	// Filter is an AIP-160 expression over asset_id, requester_id,
	// verifier_id, action, status, and created_at.
	Filter    string
	PageSize  int
	PageToken string
}

// ListTransactions lists ledger entries newest first. A filter of
// status = "PENDING_APPROVAL" yields the approval queue.
func (e *Engine) ListTransactions(ctx context.Context, req TransactionListRequest) (storage.TransactionPage, error) {
	cond, err := filter.Transactions.Parse(req.Filter)
	if err != nil {
		return storage.TransactionPage{}, err
	}
	return e.store.ListTransactions(ctx, storage.TransactionQuery{
		Condition: cond,
		PageSize:  normalizePageSize(req.PageSize),
		PageToken: strings.TrimSpace(req.PageToken),
	})
}

// History returns the ledger of one asset, newest first, without locking.
func (e *Engine) History(ctx context.Context, assetID string, pageSize int, pageToken string) (storage.TransactionPage, error) {
	assetID, err := requireID(assetID, "asset id")
	if err != nil {
		return storage.TransactionPage{}, err
	}
	if _, err := e.store.GetAsset(ctx, assetID); err != nil {
		return storage.TransactionPage{}, notFound(err, "AssetID", assetID)
	}
	return e.store.ListTransactions(ctx, storage.TransactionQuery{
		AssetID:   assetID,
		PageSize:  normalizePageSize(pageSize),
		PageToken: strings.TrimSpace(pageToken),
	})
}
