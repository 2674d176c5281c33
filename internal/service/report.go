package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/natefinch/atomic"
)

// SkippedIssue records one issue the run gave up on, with the reason.
type SkippedIssue struct {
	IID    int    `json:"iid"`
	Reason string `json:"reason"`
}

// Report summarises one reconciliation run. It is regenerated every
// run and carries no state the next run depends on.
type Report struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  string         `json:"duration"`
	Processed int            `json:"processed"`
	Changed   int            `json:"changed"`
	Mutations int            `json:"mutations"`
	Skipped   []SkippedIssue `json:"skipped,omitempty"`
}

// Failed reports whether the run should exit non-zero: at least one
// issue was skipped due to errors. Partial success is a valid terminal
// outcome; the successful mutations stay applied.
func (r *Report) Failed() bool {
	return len(r.Skipped) > 0
}

// Log writes a human-readable summary of the run.
func (r *Report) Log(logger Logger) {
	logger.Printf("[Reconciler] Completed in %s: %d processed, %d changed, %d mutations, %d skipped",
		r.Duration, r.Processed, r.Changed, r.Mutations, len(r.Skipped))
	for _, s := range r.Skipped {
		logger.Printf("[Reconciler] Skipped issue #%d: %s", s.IID, s.Reason)
	}
}

// WriteFile writes the report as JSON. The write is atomic so a crash
// mid-run never leaves a truncated report behind.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := atomic.WriteFile(path, strings.NewReader(string(data)+"\n")); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
