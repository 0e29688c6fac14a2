package entity

import "time"

type JobKind string

const (
	JobIngest JobKind = "ingest"
	JobEnrich JobKind = "enrich"
	JobTrain  JobKind = "train"
)

func ParseJobKind(s string) (JobKind, bool) {
	switch JobKind(s) {
	case JobIngest, JobEnrich, JobTrain:
		return JobKind(s), true
	}
	return "", false
}

type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Job is the transient record of one orchestration run.
type Job struct {
	ID         string     `json:"id" db:"id"`
	Kind       JobKind    `json:"kind" db:"kind"`
	State      JobState   `json:"state" db:"state"`
	StartedAt  *time.Time `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at" db:"finished_at"`
	Error      *string    `json:"error" db:"error"`
	Processed  int        `json:"processed" db:"processed"`
	Skipped    int        `json:"skipped" db:"skipped"`
	Failed     int        `json:"failed" db:"failed"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
