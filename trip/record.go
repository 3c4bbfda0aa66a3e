// Package trip defines the trip record shapes that flow through the load
// pipeline, the coercion helpers that turn raw cells into nullable values,
// and a CSV source for the raw trip dataset.
package trip

import (
	"database/sql"
	"time"
)

// Raw is one trip row exactly as read from the source. Every field is the
// untrimmed cell text; an empty or null-token cell means the value is missing.
type Raw struct {
	VendorID        string
	PickupDatetime  string
	DropoffDatetime string
	PassengerCount  string
	TripDistance    string
	FareAmount      string
	Extra           string
	MTATax          string
	TipAmount       string
	TollsAmount     string
	TotalAmount     string
	PULocationID    string
	DOLocationID    string
}

// ZoneAttrs are the zone columns joined onto a trip. Valid is false when the
// location identifier had no matching zone.
type ZoneAttrs struct {
	Borough     string
	Zone        string
	ServiceZone string
	Valid       bool
}

// Enriched is a raw row with its pickup (PU_) and dropoff (DO_) zone
// attributes attached. It is comparable, so equal rows are exact duplicates.
type Enriched struct {
	Raw Raw
	PU  ZoneAttrs
	DO  ZoneAttrs
}

// Validated is a row that passed every cleaning stage, with its numeric
// fields coerced. Unparsable numeric values are null.
type Validated struct {
	VendorID       sql.NullFloat64
	Pickup         time.Time
	Dropoff        time.Time
	PassengerCount sql.NullFloat64
	TripDistance   sql.NullFloat64
	FareAmount     sql.NullFloat64
	Extra          sql.NullFloat64
	MTATax         sql.NullFloat64
	TipAmount      sql.NullFloat64
	TollsAmount    sql.NullFloat64
	TotalAmount    sql.NullFloat64
	PULocationID   sql.NullFloat64
	DOLocationID   sql.NullFloat64
	PU             ZoneAttrs
	DO             ZoneAttrs
}

// PickupZoneID returns the pickup location identifier, if it is a whole number.
func (v Validated) PickupZoneID() (int64, bool) { return ID(v.PULocationID) }

// DropoffZoneID returns the dropoff location identifier, if it is a whole number.
func (v Validated) DropoffZoneID() (int64, bool) { return ID(v.DOLocationID) }

// Derived is a validated row plus its computed features. It is the unit
// written to the store.
type Derived struct {
	Validated

	// TripDuration is dropoff minus pickup, in minutes.
	TripDuration float64
	// FarePerMile is null when the trip distance is not positive.
	FarePerMile sql.NullFloat64
	// TripSpeed is in miles per hour; null when the duration is not positive.
	TripSpeed sql.NullFloat64
}
