package tripload

import (
	"database/sql"
	"sync"

	"github.com/bjaus/tripload/trip"
)

// zoneSet is the run's view of zone identifiers committed to the store.
// It only grows: merge adds identifiers and nothing removes them.
type zoneSet struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func (s *zoneSet) merge(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		s.ids = make(map[int64]struct{}, len(ids))
	}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

func (s *zoneSet) contains(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *zoneSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// missingFrom counts the identifiers that known does not report.
func (s *zoneSet) missingFrom(known func(int64) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for id := range s.ids {
		if !known(id) {
			n++
		}
	}
	return n
}

// admits reports whether n is null or a committed zone identifier.
func (s *zoneSet) admits(n sql.NullFloat64) bool {
	if !n.Valid {
		return true
	}
	id, ok := trip.ID(n)
	return ok && s.contains(id)
}

// filter splits rows into those whose location identifiers are all
// committed and a count of those that are not.
func (s *zoneSet) filter(rows []trip.Derived) ([]trip.Derived, int) {
	keep := make([]trip.Derived, 0, len(rows))
	for _, r := range rows {
		if s.admits(r.PULocationID) && s.admits(r.DOLocationID) {
			keep = append(keep, r)
		}
	}
	return keep, len(rows) - len(keep)
}
