package trip

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// Column names of the raw trip dataset.
const (
	ColVendorID        = "VendorID"
	ColPickupDatetime  = "tpep_pickup_datetime"
	ColDropoffDatetime = "tpep_dropoff_datetime"
	ColPassengerCount  = "passenger_count"
	ColTripDistance    = "trip_distance"
	ColFareAmount      = "fare_amount"
	ColExtra           = "extra"
	ColMTATax          = "mta_tax"
	ColTipAmount       = "tip_amount"
	ColTollsAmount     = "tolls_amount"
	ColTotalAmount     = "total_amount"
	ColPULocationID    = "PULocationID"
	ColDOLocationID    = "DOLocationID"
)

// requiredColumns must appear in the header. Optional columns that are
// absent read as missing on every row.
var requiredColumns = []string{
	ColVendorID, ColPickupDatetime, ColDropoffDatetime,
	ColTripDistance, ColFareAmount, ColPULocationID, ColDOLocationID,
}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// CSVSource streams Raw rows from a CSV trip dataset. The file is opened on
// each call to Rows and closed when iteration stops.
type CSVSource struct {
	path string
	open func() (io.ReadCloser, error)
}

// NewCSVFile returns a source reading the CSV file at path.
func NewCSVFile(path string) *CSVSource {
	return &CSVSource{
		path: path,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// NewCSVReader returns a source reading r. It can be iterated only once.
func NewCSVReader(r io.Reader) *CSVSource {
	return &CSVSource{
		path: "<reader>",
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

// Path returns the file the source reads from.
func (s *CSVSource) Path() string { return s.path }

// Rows yields every data row in file order. A read error ends iteration
// after being yielded once.
func (s *CSVSource) Rows(_ context.Context) iter.Seq2[Raw, error] {
	return func(yield func(Raw, error) bool) {
		rc, err := s.open()
		if err != nil {
			yield(Raw{}, fmt.Errorf("open %s: %w", s.path, err))
			return
		}
		defer rc.Close()

		cr := csv.NewReader(rc)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true

		head, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			yield(Raw{}, fmt.Errorf("read header: %w", err))
			return
		}
		cols, err := indexHeader(head)
		if err != nil {
			yield(Raw{}, err)
			return
		}

		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Raw{}, fmt.Errorf("read %s: %w", s.path, err))
				return
			}
			if !yield(cols.raw(rec), nil) {
				return
			}
		}
	}
}

// header holds the column position of each known field, or -1.
type header struct {
	vendor, pickup, dropoff, passengers, distance, fare      int
	extra, mtaTax, tip, tolls, total, puLocation, doLocation int
}

func indexHeader(head []string) (header, error) {
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), col) {
				return i
			}
		}
		return -1
	}
	for _, col := range requiredColumns {
		if idx(col) < 0 {
			return header{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return header{
		vendor:     idx(ColVendorID),
		pickup:     idx(ColPickupDatetime),
		dropoff:    idx(ColDropoffDatetime),
		passengers: idx(ColPassengerCount),
		distance:   idx(ColTripDistance),
		fare:       idx(ColFareAmount),
		extra:      idx(ColExtra),
		mtaTax:     idx(ColMTATax),
		tip:        idx(ColTipAmount),
		tolls:      idx(ColTollsAmount),
		total:      idx(ColTotalAmount),
		puLocation: idx(ColPULocationID),
		doLocation: idx(ColDOLocationID),
	}, nil
}

func (h header) raw(rec []string) Raw {
	cell := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	return Raw{
		VendorID:        cell(h.vendor),
		PickupDatetime:  cell(h.pickup),
		DropoffDatetime: cell(h.dropoff),
		PassengerCount:  cell(h.passengers),
		TripDistance:    cell(h.distance),
		FareAmount:      cell(h.fare),
		Extra:           cell(h.extra),
		MTATax:          cell(h.mtaTax),
		TipAmount:       cell(h.tip),
		TollsAmount:     cell(h.tolls),
		TotalAmount:     cell(h.total),
		PULocationID:    cell(h.puLocation),
		DOLocationID:    cell(h.doLocation),
	}
}
