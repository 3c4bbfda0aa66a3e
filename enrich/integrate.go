// Package enrich joins raw trip rows to the zone catalog.
package enrich

import (
	"github.com/bjaus/tripload/trip"
	"github.com/bjaus/tripload/zone"
)

// Catalog is the lookup side of the join.
type Catalog interface {
	Lookup(id int64) (zone.Zone, bool)
}

// Integrate left-joins rows to the catalog on their pickup and dropoff
// location identifiers. Every input row yields exactly one output row, in
// order. An unmatched or unparsable identifier leaves the zone attributes
// invalid; it is not an error here.
func Integrate(rows []trip.Raw, catalog Catalog) []trip.Enriched {
	out := make([]trip.Enriched, len(rows))
	for i, r := range rows {
		out[i] = trip.Enriched{
			Raw: r,
			PU:  attrs(catalog, r.PULocationID),
			DO:  attrs(catalog, r.DOLocationID),
		}
	}
	return out
}

func attrs(catalog Catalog, cell string) trip.ZoneAttrs {
	id, ok := trip.ParseID(cell)
	if !ok {
		return trip.ZoneAttrs{}
	}
	z, ok := catalog.Lookup(id)
	if !ok {
		return trip.ZoneAttrs{}
	}
	return trip.ZoneAttrs{
		Borough:     z.Borough,
		Zone:        z.Zone,
		ServiceZone: z.ServiceZone,
		Valid:       true,
	}
}
