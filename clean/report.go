package clean

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// StageCount is the number of rows one stage removed.
type StageCount struct {
	Stage   string `json:"stage"`
	Removed int64  `json:"removed"`
}

// Report accounts for every row handed to Clean: each removed row is
// attributed to exactly one stage, the first it failed.
type Report struct {
	Input  int64        `json:"input"`
	Stages []StageCount `json:"stages"`
}

// NewReport returns an empty report listing every stage in order.
func NewReport() Report {
	r := Report{Stages: make([]StageCount, len(Stages))}
	for i, name := range Stages {
		r.Stages[i] = StageCount{Stage: name}
	}
	return r
}

// Removed returns the number of rows removed by all stages.
func (r Report) Removed() int64 {
	var n int64
	for _, s := range r.Stages {
		n += s.Removed
	}
	return n
}

// Retained returns the number of rows that passed every stage.
func (r Report) Retained() int64 { return r.Input - r.Removed() }

// Count returns the rows removed by the named stage.
func (r Report) Count(stage string) int64 {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Removed
		}
	}
	return 0
}

func (r *Report) add(stage string, n int64) {
	for i := range r.Stages {
		if r.Stages[i].Stage == stage {
			r.Stages[i].Removed += n
			return
		}
	}
	r.Stages = append(r.Stages, StageCount{Stage: stage, Removed: n})
}

// Merge adds o's counts into r. Stages unknown to r are appended in o's order.
func (r *Report) Merge(o Report) {
	r.Input += o.Input
	for _, s := range o.Stages {
		r.add(s.Stage, s.Removed)
	}
}

// WriteTo writes the report as "stage: count" lines followed by the
// cleaned_count and removed_total lines.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	line := func(name string, n int64) error {
		k, err := fmt.Fprintf(bw, "%s: %d\n", name, n)
		total += int64(k)
		return err
	}
	for _, s := range r.Stages {
		if err := line(s.Stage, s.Removed); err != nil {
			return total, err
		}
	}
	if err := line("cleaned_count", r.Retained()); err != nil {
		return total, err
	}
	if err := line("removed_total", r.Removed()); err != nil {
		return total, err
	}
	return total, bw.Flush()
}

// WriteFile writes the report to path, replacing any existing file.
func (r Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
