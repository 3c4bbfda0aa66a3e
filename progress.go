package tripload

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ProgressReporter receives periodic progress updates during a run. Use it
// to log throughput, emit metrics, or drive a heartbeat while a large file
// loads.
//
// OnProgress is called after a chunk commits whenever the cumulative rows
// read crosses a report interval boundary. It runs on the chunk processing
// goroutine, so the next chunk waits for it; avoid slow I/O inside it.
//
// The interval is resolved in this order: WithReportInterval, then the
// reporter's own ReportInterval method if it has one, then
// DefaultReportInterval.
//
// Example:
//
//	type reporter struct{}
//
//	func (reporter) ReportInterval() int { return 10000 }
//
//	func (reporter) OnProgress(ctx context.Context, s *tripload.Summary) {
//	    fmt.Println("read", s.RowsRead(), "inserted", s.Inserted())
//	}
type ProgressReporter interface {
	// OnProgress is called periodically during execution.
	OnProgress(ctx context.Context, summary *Summary)
}

// ProgressFunc adapts a plain function to ProgressReporter.
type ProgressFunc func(ctx context.Context, summary *Summary)

func (f ProgressFunc) OnProgress(ctx context.Context, summary *Summary) { f(ctx, summary) }

// LogProgress returns a reporter that logs the summary counters at Info.
func LogProgress(logger logrus.FieldLogger) ProgressReporter {
	return ProgressFunc(func(_ context.Context, s *Summary) {
		logger.WithFields(s.Fields()).Info("load progress")
	})
}

// reportProgress calls the reporter if the rows-read count crossed an
// interval boundary between prev and next.
func (l *Loader) reportProgress(ctx context.Context, summary *Summary, prev, next int64) {
	if l.progress == nil {
		return
	}
	every := int64(l.resolveReportInterval())
	if next/every > prev/every {
		l.progress.OnProgress(ctx, summary)
	}
}
