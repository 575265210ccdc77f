package domain

// JobStatus is the lifecycle state of a backfill job.
type JobStatus string

const (
	JobStatusIdle     JobStatus = "idle"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusPaused   JobStatus = "paused"
	JobStatusError    JobStatus = "error"
)

// IsTerminal reports whether the job has stopped running.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusPaused || s == JobStatusError
}

// JobState is the progress of a backfill job. Values are snapshots; the
// controller owns the live copy.
type JobState struct {
	RunID            string    // uuid of the run
	Status           JobStatus // idle | running | complete | paused | error
	TotalMints       int
	ProcessedMints   int
	TotalEntries     int
	ProcessedEntries int
	UpdatedCount     int
	ErrorCount       int
	SkippedCount     int
	CurrentMint      string
	StartedAtMs      int64
	UpdatedAtMs      int64
	ETAMillis        int64
	AvgMillisPerMint float64
	LastError        string
}
