package tripload

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/bjaus/tripload/clean"
)

// Summary is the run-level account of a load. Counters only cover chunks
// whose write committed, so after a failed run they show exactly how far it
// got. Safe for concurrent reads while a run is in progress.
type Summary struct {
	runID string

	zonesUpserted atomic.Int64
	chunks        atomic.Int64
	read          atomic.Int64
	skipped       atomic.Int64
	inserted      atomic.Int64

	mu         sync.Mutex
	rejections clean.Report
}

// NewSummary creates an empty Summary for the given run.
func NewSummary(runID string) *Summary {
	return &Summary{runID: runID, rejections: clean.NewReport()}
}

// RunID returns the identifier of the run.
func (s *Summary) RunID() string { return s.runID }

// ZonesUpserted returns the number of zones written before the first chunk.
func (s *Summary) ZonesUpserted() int64 { return s.zonesUpserted.Load() }

// Chunks returns the number of chunks committed.
func (s *Summary) Chunks() int64 { return s.chunks.Load() }

// RowsRead returns the number of input rows processed.
func (s *Summary) RowsRead() int64 { return s.read.Load() }

// Cleaned returns the number of rows removed by the cleaning stages.
func (s *Summary) Cleaned() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejections.Removed()
}

// SkippedUnknownZone returns the number of clean rows dropped because a
// location identifier was not in the committed zone set.
func (s *Summary) SkippedUnknownZone() int64 { return s.skipped.Load() }

// Inserted returns the number of trips written.
func (s *Summary) Inserted() int64 { return s.inserted.Load() }

// Rejections returns a copy of the aggregated cleaning report.
func (s *Summary) Rejections() clean.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rejections
	r.Stages = append([]clean.StageCount(nil), s.rejections.Stages...)
	return r
}

// Fields returns the counters as logrus fields.
func (s *Summary) Fields() logrus.Fields {
	return logrus.Fields{
		"run_id":               s.RunID(),
		"zones_upserted":       s.ZonesUpserted(),
		"chunks":               s.Chunks(),
		"rows_read":            s.RowsRead(),
		"rows_cleaned":         s.Cleaned(),
		"skipped_unknown_zone": s.SkippedUnknownZone(),
		"inserted":             s.Inserted(),
	}
}

// summaryJSON is the JSON representation for marshaling/unmarshaling Summary.
type summaryJSON struct {
	RunID              string       `json:"run_id"`
	ZonesUpserted      int64        `json:"zones_upserted"`
	Chunks             int64        `json:"chunks"`
	RowsRead           int64        `json:"rows_read"`
	Rejections         clean.Report `json:"rejections"`
	SkippedUnknownZone int64        `json:"skipped_unknown_zone"`
	Inserted           int64        `json:"inserted"`
}

// MarshalJSON implements json.Marshaler.
func (s *Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		RunID:              s.RunID(),
		ZonesUpserted:      s.ZonesUpserted(),
		Chunks:             s.Chunks(),
		RowsRead:           s.RowsRead(),
		Rejections:         s.Rejections(),
		SkippedUnknownZone: s.SkippedUnknownZone(),
		Inserted:           s.Inserted(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Summary) UnmarshalJSON(data []byte) error {
	var v summaryJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.runID = v.RunID
	s.zonesUpserted.Store(v.ZonesUpserted)
	s.chunks.Store(v.Chunks)
	s.read.Store(v.RowsRead)
	s.skipped.Store(v.SkippedUnknownZone)
	s.inserted.Store(v.Inserted)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejections = clean.NewReport()
	s.rejections.Merge(v.Rejections)
	return nil
}

// restore copies the counters of a checkpointed summary. The run ID and
// zone count belong to the current run and are kept.
func (s *Summary) restore(saved *Summary) {
	s.chunks.Store(saved.Chunks())
	s.read.Store(saved.RowsRead())
	s.skipped.Store(saved.SkippedUnknownZone())
	s.inserted.Store(saved.Inserted())

	r := saved.Rejections()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejections = clean.NewReport()
	s.rejections.Merge(r)
}

// addChunk records one committed chunk. It returns the rows-read total
// before and after, for progress interval tracking.
func (s *Summary) addChunk(rows int, report clean.Report, skipped, inserted int64) (prev, next int64) {
	s.mu.Lock()
	s.rejections.Merge(report)
	s.mu.Unlock()

	s.skipped.Add(skipped)
	s.inserted.Add(inserted)
	s.chunks.Add(1)
	next = s.read.Add(int64(rows))
	return next - int64(rows), next
}
