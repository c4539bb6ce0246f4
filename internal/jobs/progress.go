package jobs

import "time"

// Stage is the pipeline phase reported in progress snapshots.
type Stage string

const (
	StageScraping   Stage = "scraping"
	StageEvaluating Stage = "evaluating"
	StageSaving     Stage = "saving"
	StageCompleted  Stage = "completed"
	StageError      Stage = "error"
)

// Terminal reports whether no further updates follow this stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// Progress is a snapshot of one pipeline run. It is superseded on every stage transition.
type Progress struct {
	RunID       string    `json:"runId,omitempty"`
	IsRunning   bool      `json:"isRunning"`
	Progress    int       `json:"progress"`
	Stage       Stage     `json:"stage"`
	Message     string    `json:"message"`
	JobsFound   int       `json:"jobsFound"`
	JobsMatched int       `json:"jobsMatched"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}
