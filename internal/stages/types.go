package stages

import (
	"time"

	"github.com/danmuck/legosorter/internal/scripts"
)

// Stage is one host script in the pipeline.
type Stage struct {
	ID          string
	Name        string
	Description string
	// Script renders the host code for the given scene parameters.
	Script func(scripts.Params) (string, error)
	// Timeout bounds the reply wait; zero defers to the runner.
	Timeout time.Duration
	// Skippable stages are dropped when a plan asks to skip the conveyor.
	Skippable bool
}

// Status is the outcome of one stage in one run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Run level outcomes.
const (
	RunSuccess     = "success"
	RunFailed      = "failed"
	RunAborted     = "aborted"
	RunUnavailable = "unavailable"
)

// StageResult records one executed or skipped stage.
type StageResult struct {
	ID       string        `json:"id"`
	Status   Status        `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Report is the outcome of a pipeline run.
type Report struct {
	RunID    uint          `json:"run_id,omitempty"`
	Status   string        `json:"status"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Results  []StageResult `json:"results"`
}

// Failed counts failed stages.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Result looks up the result for stage id.
func (r Report) Result(id string) (StageResult, bool) {
	for _, res := range r.Results {
		if res.ID == id {
			return res, true
		}
	}
	return StageResult{}, false
}
