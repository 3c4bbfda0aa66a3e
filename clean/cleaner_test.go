package clean_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjaus/tripload/clean"
	"github.com/bjaus/tripload/trip"
)

// good returns a row that passes every stage.
func good() trip.Raw {
	return trip.Raw{
		VendorID:        "1",
		PickupDatetime:  "01/01/2019 00:00",
		DropoffDatetime: "01/01/2019 00:10",
		PassengerCount:  "1",
		TripDistance:    "2.0",
		FareAmount:      "10.0",
		Extra:           "0.5",
		TotalAmount:     "11",
		PULocationID:    "1",
		DOLocationID:    "2",
	}
}

func with(mod func(*trip.Raw)) trip.Enriched {
	r := good()
	mod(&r)
	return trip.Enriched{Raw: r}
}

func TestClean_AttributesFirstFailingStage(t *testing.T) {
	tests := []struct {
		name  string
		row   trip.Enriched
		stage string
	}{
		{"missing vendor", with(func(r *trip.Raw) { r.VendorID = "" }), clean.StageMissingCritical},
		{"missing pickup", with(func(r *trip.Raw) { r.PickupDatetime = "NaN" }), clean.StageMissingCritical},
		{"missing dropoff location", with(func(r *trip.Raw) { r.DOLocationID = "" }), clean.StageMissingCritical},
		{"malformed distance", with(func(r *trip.Raw) { r.TripDistance = "far" }), clean.StageMissingCritical},
		{"fractional vendor", with(func(r *trip.Raw) { r.VendorID = "1.5" }), clean.StageMissingCritical},
		{"vendor out of range", with(func(r *trip.Raw) { r.VendorID = "1e30" }), clean.StageMissingCritical},
		{"fractional pickup location", with(func(r *trip.Raw) { r.PULocationID = "1.25" }), clean.StageMissingCritical},
		{"dropoff location out of range", with(func(r *trip.Raw) { r.DOLocationID = "9223372036854775808" }), clean.StageMissingCritical},
		{"unparsable pickup", with(func(r *trip.Raw) { r.PickupDatetime = "soon" }), clean.StageUnparsableDatetime},
		{"zero distance", with(func(r *trip.Raw) { r.TripDistance = "0" }), clean.StageNonpositiveDistance},
		{"zero fare", with(func(r *trip.Raw) { r.FareAmount = "0" }), clean.StageNonpositiveFare},
		{"negative fare", with(func(r *trip.Raw) { r.FareAmount = "-5" }), clean.StageNonpositiveFare},
		{"dropoff before pickup", with(func(r *trip.Raw) { r.DropoffDatetime = "12/31/2018 23:50" }), clean.StageDropoffBeforePickup},
		{"dropoff equals pickup", with(func(r *trip.Raw) { r.DropoffDatetime = r.PickupDatetime }), clean.StageDropoffBeforePickup},
		{"zero passengers", with(func(r *trip.Raw) { r.PassengerCount = "0" }), clean.StageNonpositivePassengers},
		{"null passengers", with(func(r *trip.Raw) { r.PassengerCount = "" }), clean.StageNonpositivePassengers},
		{"huge distance", with(func(r *trip.Raw) { r.TripDistance = "200" }), clean.StageHugeDistance},
		{"huge fare", with(func(r *trip.Raw) { r.FareAmount = "1000" }), clean.StageHugeFare},
		{"fails several, first wins", with(func(r *trip.Raw) {
			r.TripDistance = "-1"
			r.FareAmount = "5000"
			r.PassengerCount = "0"
		}), clean.StageNonpositiveDistance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, report := clean.Clean([]trip.Enriched{tt.row, {Raw: good()}})
			require.Len(t, out, 1)
			require.Equal(t, int64(2), report.Input)
			require.Equal(t, int64(1), report.Removed())
			require.Equal(t, int64(1), report.Count(tt.stage), "stage %s", tt.stage)
		})
	}
}

func TestClean_Duplicates(t *testing.T) {
	row := trip.Enriched{Raw: good()}
	other := with(func(r *trip.Raw) { r.VendorID = "2" })

	out, report := clean.Clean([]trip.Enriched{row, other, row, row})
	require.Len(t, out, 2)
	require.Equal(t, int64(2), report.Count(clean.StageDuplicates))
}

func TestCleaner_DuplicatesAcrossCalls(t *testing.T) {
	row := trip.Enriched{Raw: good()}
	other := with(func(r *trip.Raw) { r.VendorID = "2" })
	c := clean.New()

	out, report := c.Clean([]trip.Enriched{row})
	require.Len(t, out, 1)
	require.Equal(t, int64(0), report.Count(clean.StageDuplicates))

	out, report = c.Clean([]trip.Enriched{other, row})
	require.Len(t, out, 1)
	require.Equal(t, int64(1), report.Count(clean.StageDuplicates))

	// A fresh cleaner has no memory of either row.
	out, _ = clean.New().Clean([]trip.Enriched{row, other})
	require.Len(t, out, 2)
}

func TestCleaner_RejectedRowsStillCountAsSeen(t *testing.T) {
	bad := with(func(r *trip.Raw) { r.FareAmount = "0" })
	c := clean.New()

	_, report := c.Clean([]trip.Enriched{bad})
	require.Equal(t, int64(1), report.Count(clean.StageNonpositiveFare))

	_, report = c.Clean([]trip.Enriched{bad})
	require.Equal(t, int64(1), report.Count(clean.StageDuplicates))
	require.Equal(t, int64(0), report.Count(clean.StageNonpositiveFare))
}

func TestCleaner_Observe(t *testing.T) {
	c := clean.New()
	c.Observe(good())

	out, report := c.Clean([]trip.Enriched{{Raw: good()}})
	require.Empty(t, out)
	require.Equal(t, int64(1), report.Count(clean.StageDuplicates))
}

func TestCleaner_CellBoundariesMatter(t *testing.T) {
	a := with(func(r *trip.Raw) { r.Extra = "0.5"; r.MTATax = "1" })
	b := with(func(r *trip.Raw) { r.Extra = "0.51"; r.MTATax = "" })

	out, report := clean.New().Clean([]trip.Enriched{a, b})
	require.Len(t, out, 2)
	require.Equal(t, int64(0), report.Count(clean.StageDuplicates))
}

func TestClean_CoercesFields(t *testing.T) {
	e := with(func(r *trip.Raw) { r.TipAmount = "oops" })
	e.PU = trip.ZoneAttrs{Borough: "Manhattan", Zone: "Z1", ServiceZone: "Yellow Zone", Valid: true}

	out, _ := clean.Clean([]trip.Enriched{e})
	require.Len(t, out, 1)

	v := out[0]
	require.InDelta(t, 2.0, v.TripDistance.Float64, 1e-9)
	require.InDelta(t, 0.5, v.Extra.Float64, 1e-9)
	require.False(t, v.TipAmount.Valid, "malformed optional value is null, not a rejection")
	require.False(t, v.MTATax.Valid)
	require.Equal(t, e.PU, v.PU)
	require.Equal(t, 10, v.Dropoff.Minute())
}

func TestClean_Accounting(t *testing.T) {
	rows := []trip.Enriched{
		{Raw: good()},
		{Raw: good()},
		with(func(r *trip.Raw) { r.VendorID = "" }),
		with(func(r *trip.Raw) { r.DropoffDatetime = "x" }),
		with(func(r *trip.Raw) { r.TripDistance = "0" }),
		with(func(r *trip.Raw) { r.FareAmount = "0" }),
		with(func(r *trip.Raw) { r.DropoffDatetime = "01/01/2019 00:00" }),
		with(func(r *trip.Raw) { r.PassengerCount = "0" }),
		with(func(r *trip.Raw) { r.TripDistance = "500" }),
		with(func(r *trip.Raw) { r.FareAmount = "2000" }),
		with(func(r *trip.Raw) { r.VendorID = "2" }),
	}

	out, report := clean.Clean(rows)
	require.Len(t, out, 2)
	require.Equal(t, int64(len(rows)), report.Input)
	require.Equal(t, int64(2), report.Retained())
	require.Equal(t, report.Input, report.Removed()+report.Retained())

	require.Len(t, report.Stages, len(clean.Stages))
	for i, s := range report.Stages {
		require.Equal(t, clean.Stages[i], s.Stage)
		require.Equal(t, int64(1), s.Removed, s.Stage)
	}
}

func TestClean_Empty(t *testing.T) {
	out, report := clean.Clean(nil)
	require.Empty(t, out)
	require.Equal(t, int64(0), report.Input)
	require.Equal(t, int64(0), report.Removed())
}

func TestReport_MergeAndWrite(t *testing.T) {
	_, a := clean.Clean([]trip.Enriched{{Raw: good()}, {Raw: good()}})
	_, b := clean.Clean([]trip.Enriched{with(func(r *trip.Raw) { r.FareAmount = "0" }), {Raw: good()}})

	total := clean.NewReport()
	total.Merge(a)
	total.Merge(b)
	require.Equal(t, int64(4), total.Input)
	require.Equal(t, int64(1), total.Count(clean.StageDuplicates))
	require.Equal(t, int64(1), total.Count(clean.StageNonpositiveFare))
	require.Equal(t, int64(2), total.Retained())

	var buf bytes.Buffer
	_, err := total.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, `duplicates: 1
missing_critical: 0
unparsable_datetime: 0
nonpositive_trip_distance: 0
nonpositive_fare_amount: 1
dropoff_before_pickup: 0
nonpositive_passenger_count: 0
huge_trip_distance: 0
huge_fare_amount: 0
cleaned_count: 2
removed_total: 2
`, buf.String())

	path := filepath.Join(t.TempDir(), "cleaning_report.txt")
	require.NoError(t, total.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, buf.String(), string(data))
}
