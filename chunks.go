package tripload

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bjaus/tripload/clean"
	"github.com/bjaus/tripload/enrich"
	"github.com/bjaus/tripload/feature"
	"github.com/bjaus/tripload/trip"
	"github.com/bjaus/tripload/zone"
)

// chunk is a bounded slice of the input handled as one unit and committed
// as one write.
type chunk struct {
	index int
	rows  []trip.Raw
	// cursor is the number of input rows consumed once this chunk commits.
	cursor int64
}

// execute reads chunks on one goroutine while processing them, strictly in
// order, on another. Reading ahead by one chunk overlaps input I/O with
// processing; only the processing goroutine touches the store, so each
// chunk's write is committed before the next chunk's zone check runs.
func (l *Loader) execute(ctx context.Context, src Source, catalog *zone.Catalog, zones *zoneSet, skip int64, summary *Summary, log logrus.FieldLogger) error {
	group, groupCtx := errgroup.WithContext(ctx)
	chunks := make(chan chunk, 1)
	// One cleaner for the whole run so duplicates are found across chunks.
	cleaner := clean.New()

	group.Go(func() error {
		return l.readChunks(groupCtx, src, skip, int(summary.Chunks()), cleaner, chunks)
	})

	group.Go(func() error {
		return l.processChunks(ctx, groupCtx, catalog, zones, cleaner, chunks, summary, log)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// readChunks groups source rows into chunks. It skips the first skip rows,
// handing them to cleaner as already seen, and stops once the row limit is
// reached. When ctx is cancelled it stops
// and returns nil; the processor decides how the run ends.
func (l *Loader) readChunks(ctx context.Context, src Source, skip int64, index int, cleaner *clean.Cleaner, out chan<- chunk) error {
	defer close(out)

	size := l.resolveChunkSize()
	consumed := skip
	if l.rowLimit > 0 && consumed >= l.rowLimit {
		return nil
	}

	send := func(rows []trip.Raw) bool {
		select {
		case out <- chunk{index: index, rows: rows, cursor: consumed}:
			index++
			return true
		case <-ctx.Done():
			return false
		}
	}

	var seen int64
	rows := make([]trip.Raw, 0, size)
	for row, err := range src.Rows(ctx) {
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return &StageError{Stage: StageRead, Chunk: index, Err: err}
		}
		if seen < skip {
			cleaner.Observe(row)
			seen++
			continue
		}

		rows = append(rows, row)
		consumed++

		if len(rows) == size {
			if !send(rows) {
				return nil
			}
			rows = make([]trip.Raw, 0, size)
		}
		if l.rowLimit > 0 && consumed >= l.rowLimit {
			break
		}
	}

	if seen < skip {
		return &StageError{Stage: StageRead, Chunk: index, Err: fmt.Errorf("input has %d rows, checkpoint cursor is %d", seen, skip)}
	}
	if len(rows) > 0 {
		send(rows)
	}
	return nil
}

// processChunks handles chunks in arrival order. groupCtx is checked
// between chunks; the chunk itself runs on a context that ignores
// cancellation so it is never abandoned half-written.
func (l *Loader) processChunks(ctx, groupCtx context.Context, catalog *zone.Catalog, zones *zoneSet, cleaner *clean.Cleaner, in <-chan chunk, summary *Summary, log logrus.FieldLogger) error {
	drainCtx := context.WithoutCancel(ctx)

	for c := range in {
		if err := groupCtx.Err(); err != nil {
			return err
		}
		if err := l.processChunk(drainCtx, c, catalog, zones, cleaner, summary, log); err != nil {
			return err
		}
	}
	return nil
}

// processChunk runs one chunk through integration, cleaning and feature
// derivation, drops rows referencing uncommitted zones, and writes the rest.
func (l *Loader) processChunk(ctx context.Context, c chunk, catalog *zone.Catalog, zones *zoneSet, cleaner *clean.Cleaner, summary *Summary, log logrus.FieldLogger) error {
	enriched := enrich.Integrate(c.rows, catalog)
	validated, report := cleaner.Clean(enriched)
	derived := feature.Derive(validated)

	if !l.cacheZones {
		if err := l.refreshZones(ctx, zones); err != nil {
			return &StageError{Stage: StageMembership, Chunk: c.index, Err: err}
		}
	}
	keep, skipped := zones.filter(derived)

	var inserted int64
	if len(keep) > 0 {
		n, err := l.store.InsertTrips(ctx, keep)
		if err != nil {
			return &StageError{Stage: StageLoad, Chunk: c.index, Err: err}
		}
		if n != int64(len(keep)) {
			return &StageError{Stage: StageLoad, Chunk: c.index, Err: fmt.Errorf("wrote %d of %d rows", n, len(keep))}
		}
		inserted = n
	}

	prev, next := summary.addChunk(len(c.rows), report, int64(skipped), inserted)

	if err := l.saveCheckpoint(ctx, c, summary); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"chunk":                c.index,
		"rows":                 len(c.rows),
		"cleaned":              report.Removed(),
		"skipped_unknown_zone": skipped,
		"inserted":             inserted,
		"total_inserted":       summary.Inserted(),
	}).Debug("chunk committed")

	l.reportProgress(ctx, summary, prev, next)
	return nil
}
