package domain

import (
	"strings"
	"time"
)

// Placement is a location reference plus free-text sub-location fields.
type Placement struct {
	LocationID string
	Zone       string
	Cabinet    string
	Number     string
}

// PlacementUpdate carries optional placement fields. A nil field is left
// untouched; a non-nil field is applied even when it points to "".
type PlacementUpdate struct {
	LocationID *string
	Zone       *string
	Cabinet    *string
	Number     *string
}

// Empty reports whether no field is present.
func (u PlacementUpdate) Empty() bool {
	return u.LocationID == nil && u.Zone == nil && u.Cabinet == nil && u.Number == nil
}

// Apply returns p with every present field overwritten.
func (u PlacementUpdate) Apply(p Placement) Placement {
	if u.LocationID != nil {
		p.LocationID = strings.TrimSpace(*u.LocationID)
	}
	if u.Zone != nil {
		p.Zone = *u.Zone
	}
	if u.Cabinet != nil {
		p.Cabinet = *u.Cabinet
	}
	if u.Number != nil {
		p.Number = *u.Number
	}
	return p
}

// Asset is the registry record for one tracked item.
type Asset struct {
	ID          string
	Name        string
	Description string
	Category    string
	Status      AssetStatus
	Placement   Placement
	Target      Placement
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transaction is one ledger entry.
type Transaction struct {
	ID          string
	AssetID     string
	RequesterID string
	VerifierID  string
	Action      Action
	Status      TxnStatus
	Snapshot    Placement
	Reason      string
	AdminNote   string
	DueAt       *time.Time
	ImageRef    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Location is a node of the location tree.
type Location struct {
	ID        string
	Name      string
	ParentID  string
	CreatedAt time.Time
}
