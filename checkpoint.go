package tripload

import (
	"context"
	"errors"
)

// Checkpointer enables resumable runs. A Store that also implements it gets
// checkpointing automatically; nothing else needs configuring.
//
// After every committed chunk the loader saves a Checkpoint holding the
// number of input rows consumed so far and the run Summary. With
// WithResume(true), the next run loads it, skips that many input rows,
// restores the summary counters and continues. A successful run clears it.
//
// The checkpoint is saved after the chunk's write commits, not inside it. A
// crash between the two re-processes that one chunk on resume, so trips near
// the boundary may be written twice.
//
// Example:
//
//	func (s *Store) LoadCheckpoint(ctx context.Context, job string) (*tripload.Checkpoint, error) {
//	    var cursor int64
//	    var data []byte
//	    err := s.db.QueryRowContext(ctx,
//	        "SELECT cursor, summary FROM load_checkpoints WHERE job = ?", job).Scan(&cursor, &data)
//	    if errors.Is(err, sql.ErrNoRows) {
//	        return nil, nil // fresh start
//	    }
//	    if err != nil {
//	        return nil, err
//	    }
//	    summary := &tripload.Summary{}
//	    if err := summary.UnmarshalJSON(data); err != nil {
//	        return nil, err
//	    }
//	    return &tripload.Checkpoint{Cursor: cursor, Summary: summary}, nil
//	}
type Checkpointer interface {
	// LoadCheckpoint returns the saved checkpoint for job, or (nil, nil) if
	// none exists.
	LoadCheckpoint(ctx context.Context, job string) (*Checkpoint, error)

	// SaveCheckpoint persists cp for job, replacing any previous one.
	SaveCheckpoint(ctx context.Context, job string, cp Checkpoint) error

	// ClearCheckpoint removes the checkpoint for job.
	ClearCheckpoint(ctx context.Context, job string) error
}

// Checkpoint is the resumable state of a run.
type Checkpoint struct {
	// Cursor is the number of input rows consumed by committed chunks.
	Cursor int64
	// Summary holds the counters as of Cursor.
	Summary *Summary
}

// loadCheckpoint restores summary counters from a saved checkpoint and
// returns the number of input rows to skip. It returns 0 when resuming is
// disabled or no checkpoint exists.
func (l *Loader) loadCheckpoint(ctx context.Context, summary *Summary) (int64, error) {
	if l.checkpoint == nil || !l.resume {
		return 0, nil
	}

	cp, err := l.checkpoint.LoadCheckpoint(ctx, l.resolveJob())
	if err != nil {
		return 0, &StageError{Stage: StageCheckpoint, Chunk: -1, Err: err}
	}
	if cp == nil {
		return 0, nil
	}
	if cp.Cursor < 0 {
		return 0, &StageError{Stage: StageCheckpoint, Chunk: -1, Err: errors.New("negative cursor")}
	}

	if cp.Summary != nil {
		summary.restore(cp.Summary)
	}
	return cp.Cursor, nil
}

// saveCheckpoint persists progress after chunk c committed.
func (l *Loader) saveCheckpoint(ctx context.Context, c chunk, summary *Summary) error {
	if l.checkpoint == nil {
		return nil
	}
	err := l.checkpoint.SaveCheckpoint(ctx, l.resolveJob(), Checkpoint{Cursor: c.cursor, Summary: summary})
	if err != nil {
		return &StageError{Stage: StageCheckpoint, Chunk: c.index, Err: err}
	}
	return nil
}

// clearCheckpoint removes the checkpoint after a complete run.
func (l *Loader) clearCheckpoint(ctx context.Context) error {
	if l.checkpoint == nil {
		return nil
	}
	if err := l.checkpoint.ClearCheckpoint(ctx, l.resolveJob()); err != nil {
		return &StageError{Stage: StageCheckpoint, Chunk: -1, Err: err}
	}
	return nil
}
