package store

import (
	"time"

	"podscript/internal/services"
)

// Status is the coarse outcome of a run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusPartial  Status = Status(services.StatusPartial)
	StatusFailed   Status = Status(services.StatusFailed)
)

// FinishedStatuses are the statuses removed by ClearFinished.
var FinishedStatuses = []Status{StatusComplete, StatusPartial, StatusFailed}

// State names written by Complete and Fail. Other states are opaque strings
// supplied by the episode runner.
const (
	StateComplete = "complete"
	StateFailed   = "failed"
)

// Episode is one row of run history.
type Episode struct {
	RunID              string
	Name               string
	Status             Status
	State              string
	SegmentIndex       int
	SegmentCount       int
	ErrorMessage       string
	OutputDir          string
	OutlineProvider    string
	OutlineModel       string
	TranscriptProvider string
	TranscriptModel    string
	Skipped            []int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Finished reports whether the run reached a terminal status.
func (e *Episode) Finished() bool {
	return e != nil && e.Status != StatusRunning
}

// Progress renders segment progress as "i/n"; "-" before any segment ran.
func (e *Episode) Progress() string {
	if e == nil || e.SegmentIndex < 0 || e.SegmentCount == 0 {
		return "-"
	}
	return itoa(e.SegmentIndex+1) + "/" + itoa(e.SegmentCount)
}
