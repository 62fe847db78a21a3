package domain

import "time"

// LabelCount is the number of blobs of one set carrying a label.
type LabelCount struct {
	Label Label
	Blobs int
}

// SetSummary describes the outcome of tagging one blob set.
type SetSummary struct {
	Set        string
	Blobs      int
	Pairings   map[PairMethod]int
	Labels     []LabelCount
	Slices     int
	Partitions []string
}

// RunStatus is the terminal state of a tagging run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one execution of a tagging job.
type Run struct {
	ID         string
	JobFile    string
	RadiusDeg  float64
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Error      string
	Sets       []SetSummary
}
