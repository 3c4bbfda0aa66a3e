// Package clean applies the ordered data-quality stages to enriched trip rows
// and accounts for every row it removes.
package clean

import (
	"encoding/binary"
	"hash/maphash"
	"sync"

	"github.com/bjaus/tripload/trip"
)

// Stage names, in the order they run.
const (
	StageDuplicates            = "duplicates"
	StageMissingCritical       = "missing_critical"
	StageUnparsableDatetime    = "unparsable_datetime"
	StageNonpositiveDistance   = "nonpositive_trip_distance"
	StageNonpositiveFare       = "nonpositive_fare_amount"
	StageDropoffBeforePickup   = "dropoff_before_pickup"
	StageNonpositivePassengers = "nonpositive_passenger_count"
	StageHugeDistance          = "huge_trip_distance"
	StageHugeFare              = "huge_fare_amount"
)

// Stages lists every stage name in execution order.
var Stages = []string{
	StageDuplicates,
	StageMissingCritical,
	StageUnparsableDatetime,
	StageNonpositiveDistance,
	StageNonpositiveFare,
	StageDropoffBeforePickup,
	StageNonpositivePassengers,
	StageHugeDistance,
	StageHugeFare,
}

// Upper bounds, exclusive. Units follow the source dataset (miles, dollars).
const (
	MaxTripDistance = 200
	MaxFareAmount   = 1000
)

// predicate is a named keep-test over coerced rows.
type predicate struct {
	stage string
	keep  func(trip.Validated) bool
}

// The range stages. A null value never satisfies a comparison, so a row with
// a null operand is removed by the first stage that reads it.
var predicates = []predicate{
	{StageNonpositiveDistance, func(v trip.Validated) bool {
		return v.TripDistance.Valid && v.TripDistance.Float64 > 0
	}},
	{StageNonpositiveFare, func(v trip.Validated) bool {
		return v.FareAmount.Valid && v.FareAmount.Float64 > 0
	}},
	{StageDropoffBeforePickup, func(v trip.Validated) bool {
		return v.Dropoff.After(v.Pickup)
	}},
	{StageNonpositivePassengers, func(v trip.Validated) bool {
		return v.PassengerCount.Valid && v.PassengerCount.Float64 > 0
	}},
	{StageHugeDistance, func(v trip.Validated) bool {
		return v.TripDistance.Valid && v.TripDistance.Float64 < MaxTripDistance
	}},
	{StageHugeFare, func(v trip.Validated) bool {
		return v.FareAmount.Valid && v.FareAmount.Float64 < MaxFareAmount
	}},
}

// Clean runs every stage over rows, each stage seeing only the rows the
// previous stages kept. Duplicates are detected within rows only; use a
// Cleaner to detect them across calls. It never fails: bad rows are counted
// in the report. The input slice is not modified.
func Clean(rows []trip.Enriched) ([]trip.Validated, Report) {
	return New().Clean(rows)
}

// Cleaner runs the stages over successive slices of one input, remembering
// every row it has seen so a row repeated in a later slice is still removed
// as a duplicate. It is safe for concurrent use.
type Cleaner struct {
	mu    sync.Mutex
	seeds [2]maphash.Seed
	seen  map[fingerprint]struct{}
}

// fingerprint identifies a raw row. Two independent 64-bit hashes keep
// accidental collisions out of reach for any realistic input size.
type fingerprint [2]uint64

// New returns a Cleaner that has seen nothing.
func New() *Cleaner {
	return &Cleaner{
		seeds: [2]maphash.Seed{maphash.MakeSeed(), maphash.MakeSeed()},
		seen:  make(map[fingerprint]struct{}),
	}
}

// Clean runs every stage over rows, like the package-level Clean, except
// that rows seen by earlier calls or by Observe count as duplicates.
func (c *Cleaner) Clean(rows []trip.Enriched) ([]trip.Validated, Report) {
	report := NewReport()
	report.Input = int64(len(rows))

	c.mu.Lock()
	rows = filter(&report, StageDuplicates, rows, c.firstOccurrence)
	c.mu.Unlock()
	rows = filter(&report, StageMissingCritical, rows, hasCriticalFields)

	out := make([]trip.Validated, 0, len(rows))
	for _, r := range rows {
		if v, ok := coerce(r); ok {
			out = append(out, v)
		}
	}
	report.add(StageUnparsableDatetime, int64(len(rows)-len(out)))

	for _, p := range predicates {
		out = filter(&report, p.stage, out, p.keep)
	}
	return out, report
}

// Observe records r as seen without cleaning it. A resumed run observes the
// rows before its checkpoint so their repeats are still duplicates.
func (c *Cleaner) Observe(r trip.Raw) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[c.fingerprint(r)] = struct{}{}
}

func filter[T any](report *Report, stage string, rows []T, keep func(T) bool) []T {
	kept := make([]T, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	report.add(stage, int64(len(rows)-len(kept)))
	return kept
}

// firstOccurrence keeps the first of each set of identical rows. The zone
// attributes follow from the raw identifiers, so the raw row decides.
// c.mu must be held.
func (c *Cleaner) firstOccurrence(e trip.Enriched) bool {
	fp := c.fingerprint(e.Raw)
	if _, dup := c.seen[fp]; dup {
		return false
	}
	c.seen[fp] = struct{}{}
	return true
}

func (c *Cleaner) fingerprint(r trip.Raw) fingerprint {
	cells := [...]string{
		r.VendorID, r.PickupDatetime, r.DropoffDatetime, r.PassengerCount,
		r.TripDistance, r.FareAmount, r.Extra, r.MTATax, r.TipAmount,
		r.TollsAmount, r.TotalAmount, r.PULocationID, r.DOLocationID,
	}
	var fp fingerprint
	var size [8]byte
	for i, seed := range c.seeds {
		var h maphash.Hash
		h.SetSeed(seed)
		for _, cell := range cells {
			// Length prefix keeps ("ab", "c") apart from ("a", "bc").
			binary.LittleEndian.PutUint64(size[:], uint64(len(cell)))
			h.Write(size[:])
			h.WriteString(cell)
		}
		fp[i] = h.Sum64()
	}
	return fp
}

// hasCriticalFields requires every critical cell to be present. Numeric
// critical cells must also parse, and identifiers must be whole numbers in
// int64 range; a malformed one counts as missing.
func hasCriticalFields(e trip.Enriched) bool {
	r := e.Raw
	if trip.IsMissing(r.PickupDatetime) || trip.IsMissing(r.DropoffDatetime) {
		return false
	}
	for _, cell := range []string{r.VendorID, r.PULocationID, r.DOLocationID} {
		if _, ok := trip.ParseID(cell); !ok {
			return false
		}
	}
	for _, cell := range []string{r.TripDistance, r.FareAmount} {
		if !trip.ParseFloat(cell).Valid {
			return false
		}
	}
	return true
}

// coerce parses timestamps and numbers. It reports false only when a
// timestamp does not parse; other malformed values become null.
func coerce(e trip.Enriched) (trip.Validated, bool) {
	r := e.Raw
	pickup, ok := trip.ParseTime(r.PickupDatetime)
	if !ok {
		return trip.Validated{}, false
	}
	dropoff, ok := trip.ParseTime(r.DropoffDatetime)
	if !ok {
		return trip.Validated{}, false
	}
	return trip.Validated{
		VendorID:       trip.ParseFloat(r.VendorID),
		Pickup:         pickup,
		Dropoff:        dropoff,
		PassengerCount: trip.ParseFloat(r.PassengerCount),
		TripDistance:   trip.ParseFloat(r.TripDistance),
		FareAmount:     trip.ParseFloat(r.FareAmount),
		Extra:          trip.ParseFloat(r.Extra),
		MTATax:         trip.ParseFloat(r.MTATax),
		TipAmount:      trip.ParseFloat(r.TipAmount),
		TollsAmount:    trip.ParseFloat(r.TollsAmount),
		TotalAmount:    trip.ParseFloat(r.TotalAmount),
		PULocationID:   trip.ParseFloat(r.PULocationID),
		DOLocationID:   trip.ParseFloat(r.DOLocationID),
		PU:             e.PU,
		DO:             e.DO,
	}, true
}
