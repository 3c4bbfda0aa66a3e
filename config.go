package tripload

// Default configuration values.
const (
	DefaultChunkSize      = 5000
	DefaultReportInterval = 50000
	DefaultJob            = "trips"
)

// ReportInterval controls how often progress is reported, measured in input
// rows read. Implement it on a ProgressReporter to set the interval there
// rather than on the loader.
//
// The value can be overridden at runtime via WithReportInterval, which takes
// precedence. If neither is set, DefaultReportInterval is used.
//
// Example:
//
//	func (r *myReporter) ReportInterval() int { return 100000 }
type ReportInterval interface {
	// ReportInterval returns how often to call OnProgress (in rows read).
	ReportInterval() int
}

// resolveChunkSize returns the effective chunk size.
// Priority: WithChunkSize > DefaultChunkSize.
func (l *Loader) resolveChunkSize() int {
	if l.chunkSize != nil {
		return *l.chunkSize
	}
	return DefaultChunkSize
}

// resolveReportInterval returns the effective report interval.
// Priority: WithReportInterval > ReportInterval on the reporter > DefaultReportInterval.
func (l *Loader) resolveReportInterval() int {
	if l.reportInterval != nil {
		return *l.reportInterval
	}
	if r, ok := l.progress.(ReportInterval); ok {
		if n := r.ReportInterval(); n >= 1 {
			return n
		}
	}
	return DefaultReportInterval
}

// resolveJob returns the checkpoint key of the run.
func (l *Loader) resolveJob() string {
	if l.job != "" {
		return l.job
	}
	return DefaultJob
}
