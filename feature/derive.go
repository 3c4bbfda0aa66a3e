// Package feature computes the derived trip features.
package feature

import (
	"database/sql"

	"github.com/bjaus/tripload/trip"
)

// Derive computes duration (minutes), fare per mile and speed (mph) for
// each row. A feature whose denominator is not positive is null.
func Derive(rows []trip.Validated) []trip.Derived {
	out := make([]trip.Derived, len(rows))
	for i, v := range rows {
		out[i] = One(v)
	}
	return out
}

// One derives the features of a single row.
func One(v trip.Validated) trip.Derived {
	d := trip.Derived{
		Validated:    v,
		TripDuration: v.Dropoff.Sub(v.Pickup).Minutes(),
	}
	if v.TripDistance.Valid && v.TripDistance.Float64 > 0 && v.FareAmount.Valid {
		d.FarePerMile = sql.NullFloat64{Float64: v.FareAmount.Float64 / v.TripDistance.Float64, Valid: true}
	}
	if d.TripDuration > 0 && v.TripDistance.Valid {
		d.TripSpeed = sql.NullFloat64{Float64: v.TripDistance.Float64 / (d.TripDuration / 60), Valid: true}
	}
	return d
}
