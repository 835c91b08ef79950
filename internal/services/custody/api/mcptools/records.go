package mcptools

import (
	"time"

	"github.com/louisbranch/custody/internal/services/custody/domain"
)

// PlacementResult is a location reference plus sub-location fields.
type PlacementResult struct {
	LocationID string `json:"location_id,omitempty" jsonschema:"location identifier"`
	Zone       string `json:"zone,omitempty" jsonschema:"zone within the location"`
	Cabinet    string `json:"cabinet,omitempty" jsonschema:"cabinet within the zone"`
	Number     string `json:"number,omitempty" jsonschema:"slot number within the cabinet"`
}

// PlacementInput carries optional placement fields. Omitted fields are left
// untouched; an empty string clears the field.
type PlacementInput struct {
	LocationID *string `json:"location_id,omitempty" jsonschema:"location identifier"`
	Zone       *string `json:"zone,omitempty" jsonschema:"zone within the location"`
	Cabinet    *string `json:"cabinet,omitempty" jsonschema:"cabinet within the zone"`
	Number     *string `json:"number,omitempty" jsonschema:"slot number within the cabinet"`
}

// AssetResult is the tool view of an asset.
type AssetResult struct {
	ID          string          `json:"id" jsonschema:"asset identifier"`
	Name        string          `json:"name" jsonschema:"asset name"`
	Description string          `json:"description,omitempty" jsonschema:"asset description"`
	Category    string          `json:"category,omitempty" jsonschema:"asset category"`
	Status      string          `json:"status" jsonschema:"custody status (AVAILABLE, PENDING_BORROW, BORROWED, PENDING_RETURN, PENDING_DISPATCH, DISPATCHED, TO_BE_MOVED, IN_TRANSIT, MAINTENANCE, LOST, DISPOSED)"`
	Placement   PlacementResult `json:"placement" jsonschema:"current placement"`
	Target      PlacementResult `json:"target" jsonschema:"target placement of a pending move"`
	CreatedAt   string          `json:"created_at" jsonschema:"RFC3339 timestamp when the asset was registered"`
	UpdatedAt   string          `json:"updated_at" jsonschema:"RFC3339 timestamp of the last change"`
}

// TransactionResult is the tool view of a ledger entry.
type TransactionResult struct {
	ID          string          `json:"id" jsonschema:"transaction identifier"`
	AssetID     string          `json:"asset_id" jsonschema:"asset identifier"`
	RequesterID string          `json:"requester_id" jsonschema:"requesting user"`
	VerifierID  string          `json:"verifier_id,omitempty" jsonschema:"approving or rejecting user"`
	Action      string          `json:"action" jsonschema:"custody action (BORROW, RETURN, DISPATCH, MAINTENANCE_IN, MAINTENANCE_OUT, MOVE_START, MOVE_CONFIRM)"`
	Status      string          `json:"status" jsonschema:"ledger status (PENDING_APPROVAL, COMPLETED, REJECTED)"`
	Snapshot    PlacementResult `json:"snapshot" jsonschema:"placement captured by the entry"`
	Reason      string          `json:"reason,omitempty" jsonschema:"requester reason"`
	AdminNote   string          `json:"admin_note,omitempty" jsonschema:"verifier note or rejection reason"`
	DueAt       string          `json:"due_at,omitempty" jsonschema:"RFC3339 due date of a borrow"`
	ImageRef    string          `json:"image_ref,omitempty" jsonschema:"opaque image reference"`
	CreatedAt   string          `json:"created_at" jsonschema:"RFC3339 timestamp when the entry was created"`
	UpdatedAt   string          `json:"updated_at" jsonschema:"RFC3339 timestamp of the resolution"`
}

// LocationResult is the tool view of a location.
type LocationResult struct {
	ID        string `json:"id" jsonschema:"location identifier"`
	Name      string `json:"name" jsonschema:"location name"`
	ParentID  string `json:"parent_id,omitempty" jsonschema:"parent location identifier"`
	CreatedAt string `json:"created_at" jsonschema:"RFC3339 timestamp when the location was registered"`
}

// OutcomeResult is the committed state of a request or resolution.
type OutcomeResult struct {
	Asset       AssetResult       `json:"asset" jsonschema:"asset after the operation"`
	Transaction TransactionResult `json:"transaction" jsonschema:"ledger entry after the operation"`
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func placementResult(p domain.Placement) PlacementResult {
	return PlacementResult{LocationID: p.LocationID, Zone: p.Zone, Cabinet: p.Cabinet, Number: p.Number}
}

func (in *PlacementInput) update() domain.PlacementUpdate {
	if in == nil {
		return domain.PlacementUpdate{}
	}
	return domain.PlacementUpdate{LocationID: in.LocationID, Zone: in.Zone, Cabinet: in.Cabinet, Number: in.Number}
}

func assetResult(asset domain.Asset) AssetResult {
	return AssetResult{
		ID:          asset.ID,
		Name:        asset.Name,
		Description: asset.Description,
		Category:    asset.Category,
		Status:      string(asset.Status),
		Placement:   placementResult(asset.Placement),
		Target:      placementResult(asset.Target),
		CreatedAt:   formatTimestamp(asset.CreatedAt),
		UpdatedAt:   formatTimestamp(asset.UpdatedAt),
	}
}

func transactionResult(txn domain.Transaction) TransactionResult {
	result := TransactionResult{
		ID:          txn.ID,
		AssetID:     txn.AssetID,
		RequesterID: txn.RequesterID,
		VerifierID:  txn.VerifierID,
		Action:      string(txn.Action),
		Status:      string(txn.Status),
		Snapshot:    placementResult(txn.Snapshot),
		Reason:      txn.Reason,
		AdminNote:   txn.AdminNote,
		ImageRef:    txn.ImageRef,
		CreatedAt:   formatTimestamp(txn.CreatedAt),
		UpdatedAt:   formatTimestamp(txn.UpdatedAt),
	}
	if txn.DueAt != nil {
		result.DueAt = formatTimestamp(*txn.DueAt)
	}
	return result
}

func transactionResults(txns []domain.Transaction) []TransactionResult {
	out := make([]TransactionResult, 0, len(txns))
	for _, txn := range txns {
		out = append(out, transactionResult(txn))
	}
	return out
}

func locationResult(loc domain.Location) LocationResult {
	return LocationResult{
		ID:        loc.ID,
		Name:      loc.Name,
		ParentID:  loc.ParentID,
		CreatedAt: formatTimestamp(loc.CreatedAt),
	}
}
