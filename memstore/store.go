// Package memstore is an in-memory tripload.Store. It backs dry runs and
// tests; nothing survives the process.
package memstore

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/bjaus/tripload"
	"github.com/bjaus/tripload/trip"
	"github.com/bjaus/tripload/zone"
)

// Store keeps zones by LocationID, trips in insertion order, and one
// checkpoint per job. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	zones       map[int64]zone.Zone
	trips       []trip.Derived
	checkpoints map[string][]byte

	// Fail, when set, is consulted before every operation. A non-nil result
	// is returned in place of performing it. op is the method name.
	Fail func(op string) error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		zones:       make(map[int64]zone.Zone),
		checkpoints: make(map[string][]byte),
	}
}

var (
	_ tripload.Store        = (*Store)(nil)
	_ tripload.Checkpointer = (*Store)(nil)
)

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

// UpsertZones replaces each zone by LocationID.
func (s *Store) UpsertZones(_ context.Context, zones []zone.Zone) (int64, error) {
	if err := s.fail("UpsertZones"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, z := range zones {
		s.zones[z.LocationID] = z
	}
	return int64(len(zones)), nil
}

// ZoneIDs returns the stored LocationIDs in ascending order.
func (s *Store) ZoneIDs(_ context.Context) ([]int64, error) {
	if err := s.fail("ZoneIDs"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.zones))
	for id := range s.zones {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// InsertTrips appends trips. A failure leaves the store untouched.
func (s *Store) InsertTrips(_ context.Context, trips []trip.Derived) (int64, error) {
	if err := s.fail("InsertTrips"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips = append(s.trips, trips...)
	return int64(len(trips)), nil
}

// Zones returns a copy of the stored zones ordered by LocationID.
func (s *Store) Zones() []zone.Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]zone.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, z)
	}
	slices.SortFunc(out, func(a, b zone.Zone) int { return cmp.Compare(a.LocationID, b.LocationID) })
	return out
}

// Trips returns a copy of the stored trips.
func (s *Store) Trips() []trip.Derived {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.trips)
}

// LoadCheckpoint returns the checkpoint saved for job, or nil.
func (s *Store) LoadCheckpoint(_ context.Context, job string) (*tripload.Checkpoint, error) {
	if err := s.fail("LoadCheckpoint"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.checkpoints[job]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var saved checkpoint
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, err
	}
	return &tripload.Checkpoint{Cursor: saved.Cursor, Summary: saved.Summary}, nil
}

// SaveCheckpoint stores a snapshot of cp, so later changes to the live
// summary do not leak into it.
func (s *Store) SaveCheckpoint(_ context.Context, job string, cp tripload.Checkpoint) error {
	if err := s.fail("SaveCheckpoint"); err != nil {
		return err
	}
	data, err := json.Marshal(checkpoint{Cursor: cp.Cursor, Summary: cp.Summary})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[job] = data
	return nil
}

// ClearCheckpoint removes the checkpoint for job.
func (s *Store) ClearCheckpoint(_ context.Context, job string) error {
	if err := s.fail("ClearCheckpoint"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, job)
	return nil
}

// HasCheckpoint reports whether a checkpoint is saved for job.
func (s *Store) HasCheckpoint(job string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.checkpoints[job]
	return ok
}

type checkpoint struct {
	Cursor  int64             `json:"cursor"`
	Summary *tripload.Summary `json:"summary"`
}
