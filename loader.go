package tripload

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bjaus/tripload/zone"
)

// Loader drives a run: it upserts the zone catalog, then streams the input
// through integration, cleaning and feature derivation one chunk at a time,
// filtering each chunk against the committed zone set before writing it.
type Loader struct {
	store Store

	// Configuration overrides (nil means use default)
	chunkSize      *int
	reportInterval *int
	rowLimit       int64
	job            string
	runID          string
	resume         bool
	cacheZones     bool

	logger   logrus.FieldLogger
	progress ProgressReporter

	// Optional capabilities (detected from the store)
	checkpoint Checkpointer
}

// New creates a Loader writing to store. If store implements Checkpointer,
// every committed chunk is checkpointed.
func New(store Store) *Loader {
	l := &Loader{store: store}

	if c, ok := store.(Checkpointer); ok {
		l.checkpoint = c
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)
	l.logger = discard

	return l
}

// WithChunkSize overrides the number of input rows per chunk.
// Values less than 1 are ignored.
func (l *Loader) WithChunkSize(n int) *Loader {
	if n >= 1 {
		l.chunkSize = &n
	}
	return l
}

// WithRowLimit stops the run once n input rows have been consumed; the last
// chunk is trimmed so the limit is never exceeded. Zero or negative means
// no limit.
func (l *Loader) WithRowLimit(n int64) *Loader {
	if n < 0 {
		n = 0
	}
	l.rowLimit = n
	return l
}

// WithReportInterval overrides how often progress is reported (in rows read).
// Values less than 1 are ignored.
func (l *Loader) WithReportInterval(n int) *Loader {
	if n >= 1 {
		l.reportInterval = &n
	}
	return l
}

// WithProgress sets the progress reporter.
func (l *Loader) WithProgress(p ProgressReporter) *Loader {
	l.progress = p
	return l
}

// WithLogger sets the logger. The default discards everything.
func (l *Loader) WithLogger(logger logrus.FieldLogger) *Loader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithJob sets the name checkpoints are stored under.
func (l *Loader) WithJob(name string) *Loader {
	l.job = name
	return l
}

// WithRunID sets the run identifier. The default is a random UUID.
func (l *Loader) WithRunID(id string) *Loader {
	l.runID = id
	return l
}

// WithResume makes the run continue from the store's checkpoint, if any.
// It has no effect when the store is not a Checkpointer.
func (l *Loader) WithResume(resume bool) *Loader {
	l.resume = resume
	return l
}

// WithZoneCache stops re-querying the committed zone set on every chunk.
// The set read right after the zone upsert is used for the whole run.
func (l *Loader) WithZoneCache(cache bool) *Loader {
	l.cacheZones = cache
	return l
}

// Run executes the load. The returned Summary is never nil: on error it
// holds the counters of every chunk committed before the failure.
//
// Cancelling ctx stops reading new chunks. The chunk in flight still runs to
// completion, then Run returns the context's error.
func (l *Loader) Run(ctx context.Context, src Source, catalog *zone.Catalog) (*Summary, error) {
	runID := l.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	summary := NewSummary(runID)
	log := l.logger.WithFields(logrus.Fields{"run_id": runID, "job": l.resolveJob()})
	started := time.Now()

	err := l.run(ctx, src, catalog, summary, log)

	fields := summary.Fields()
	fields["elapsed"] = time.Since(started).String()
	if err != nil {
		log.WithFields(fields).WithError(err).Error("load failed")
		return summary, err
	}
	log.WithFields(fields).Info("load complete")
	return summary, nil
}

func (l *Loader) run(ctx context.Context, src Source, catalog *zone.Catalog, summary *Summary, log logrus.FieldLogger) error {
	skip, err := l.loadCheckpoint(ctx, summary)
	if err != nil {
		return err
	}
	if skip > 0 {
		log.WithField("cursor", skip).Info("resuming from checkpoint")
	}

	n, err := l.store.UpsertZones(ctx, catalog.All())
	if err != nil {
		return &StageError{Stage: StageZones, Chunk: -1, Err: err}
	}
	summary.zonesUpserted.Store(n)
	log.WithField("zones", n).Info("zones upserted")

	zones := &zoneSet{}
	if err := l.refreshZones(ctx, zones); err != nil {
		return &StageError{Stage: StageMembership, Chunk: -1, Err: err}
	}
	log.WithField("committed_zones", zones.len()).Debug("zone set loaded")
	if extra := zones.missingFrom(catalog.Contains); extra > 0 {
		// Trips may reference these; rows joined to them carry no zone attributes.
		log.WithField("zones", extra).Warn("store holds zones missing from the catalog")
	}

	if err := l.execute(ctx, src, catalog, zones, skip, summary, log); err != nil {
		return err
	}
	return l.clearCheckpoint(ctx)
}

// refreshZones merges the store's committed zone identifiers into zones.
func (l *Loader) refreshZones(ctx context.Context, zones *zoneSet) error {
	ids, err := l.store.ZoneIDs(ctx)
	if err != nil {
		return err
	}
	zones.merge(ids)
	return nil
}
