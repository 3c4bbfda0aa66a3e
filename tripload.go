package tripload

import (
	"context"
	"fmt"
	"iter"

	"github.com/bjaus/tripload/trip"
	"github.com/bjaus/tripload/zone"
)

// Stage identifies where in a run a fatal error occurred.
type Stage string

const (
	StageZones      Stage = "zones"      // zone upsert before the first chunk
	StageRead       Stage = "read"       // input stream
	StageMembership Stage = "membership" // committed zone set query
	StageLoad       Stage = "load"       // chunk write
	StageCheckpoint Stage = "checkpoint" // checkpoint load, save or clear
)

// StageError is a fatal, run-aborting error. Chunk is the zero-based index
// of the chunk being handled, or -1 outside chunk processing.
type StageError struct {
	Stage Stage
	Chunk int
	Err   error
}

func (e *StageError) Error() string {
	if e.Chunk < 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s chunk %d: %v", e.Stage, e.Chunk, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Source yields raw trip rows in input order.
//
// Rows may yield a non-nil error at most once, after which iteration ends.
// Every read error is fatal for the run.
type Source interface {
	Rows(ctx context.Context) iter.Seq2[trip.Raw, error]
}

// Store is the persistent destination of a run. This is the only interface
// a destination must implement; Checkpointer is detected if present.
type Store interface {
	// UpsertZones writes every zone, updating rows that already exist by
	// LocationID. Repeating it with the same zones must leave the table
	// unchanged.
	UpsertZones(ctx context.Context, zones []zone.Zone) (int64, error)

	// ZoneIDs returns the LocationIDs committed to the zone table.
	ZoneIDs(ctx context.Context) ([]int64, error)

	// InsertTrips writes a chunk's trips in one atomic write and returns the
	// number of rows written. Either every row commits or none does.
	InsertTrips(ctx context.Context, trips []trip.Derived) (int64, error)
}
