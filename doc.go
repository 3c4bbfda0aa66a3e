// Package tripload loads taxi trip records and their zone catalog into a
// relational store.
//
// A run upserts the zone catalog first, then streams the trip file through
// four steps one chunk at a time:
//
//  1. Integration: left-join each row to the catalog on both location IDs
//  2. Cleaning: drop rows that fail the data-quality stages, counting each
//     removed row against the first stage it fails
//  3. Feature derivation: trip duration, fare per mile and speed
//  4. Load: drop rows whose location IDs are not committed zones, then
//     write the rest as one atomic insert
//
// # Quick Start
//
// Implement Store for your destination, or use the sqlstore and memstore
// packages:
//
//	catalog, err := zone.LoadFile("taxi_zone_lookup.csv")
//	if err != nil {
//	    return err
//	}
//
//	store, err := sqlstore.Open("sqlite3", "trips.db", logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	summary, err := tripload.New(store).
//	    WithChunkSize(5000).
//	    WithLogger(logger).
//	    Run(ctx, trip.NewCSVFile("yellow_tripdata.csv"), catalog)
//	if err != nil {
//	    return err
//	}
//	return summary.Rejections().WriteFile("cleaning_report.txt")
//
// # Chunks
//
// Rows are read in chunks of WithChunkSize rows (default 5000). Reading runs
// one chunk ahead of processing; processing and writing are strictly
// sequential, so every chunk sees the zones committed before it. Chunk
// boundaries never change the outcome: the same input gives the same rows
// and counts at any chunk size.
//
// Duplicate removal spans the whole run: a row identical to any earlier row,
// in any chunk, is removed. A resumed run replays the rows before its
// checkpoint into the duplicate set without processing them again.
//
// # Zone Membership
//
// By default the committed zone set is re-read from the store before each
// chunk's write. The set the loader filters against only grows. Use
// WithZoneCache(true) to read it once after the zone upsert.
//
// # Checkpointing
//
// A Store that also implements Checkpointer gets a checkpoint after every
// committed chunk. With WithResume(true) the next run skips the rows already
// consumed and restores the summary counters:
//
//	summary, err := tripload.New(store).
//	    WithJob("yellow-2024-01").
//	    WithResume(true).
//	    Run(ctx, src, catalog)
//
// A run that completes clears its checkpoint.
//
// # Progress
//
// Set a ProgressReporter to observe a long run:
//
//	loader := tripload.New(store).
//	    WithProgress(tripload.LogProgress(logger)).
//	    WithReportInterval(100000)
//
// # Error Handling
//
// Rows that fail cleaning or reference an unknown zone are counted, never
// fatal. Everything else stops the run and is returned as a *StageError
// naming the stage and chunk:
//
//	var se *tripload.StageError
//	if errors.As(err, &se) && se.Stage == tripload.StageLoad {
//	    // chunk se.Chunk rolled back; earlier chunks stay committed
//	}
//
// Run always returns a Summary. After a failure it covers exactly the chunks
// committed before it.
//
// For graceful shutdown on SIGINT/SIGTERM, set up signal handling before calling Run:
//
//	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	summary, err := tripload.New(store).Run(ctx, src, catalog)
//
// The chunk in flight when the signal arrives is still committed.
package tripload
