package db

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
	RunFailed      RunStatus = "failed"
)

// ItemStatus mirrors batch.ItemStatus in storage.
type ItemStatus string

const (
	ItemOK      ItemStatus = "ok"
	ItemMissing ItemStatus = "missing"
	ItemFailed  ItemStatus = "failed"
)

// StepStart is the current_step of a run that has not processed anything.
const StepStart = "start"

// Run is one batch over an input file. Timestamps are unix milliseconds.
type Run struct {
	ID                 string    `json:"id"`
	InputPath          string    `json:"input_path"`
	OutputPath         string    `json:"output_path"`
	Kind               string    `json:"kind"`
	Total              int       `json:"total"`
	Index              int       `json:"index"`
	SuccessfulRequests int       `json:"successful_requests"`
	CurrentStep        string    `json:"current_step"`
	Status             RunStatus `json:"status"`
	Error              *string   `json:"error,omitempty"`
	CreatedAt          int64     `json:"created_at"`
	UpdatedAt          int64     `json:"updated_at"`
	FinishedAt         *int64    `json:"finished_at,omitempty"`
}

// BatchState is the checkpoint document reported for a run.
type BatchState struct {
	Index              int     `json:"index"`
	SuccessfulRequests int     `json:"successful_requests"`
	CurrentStep        string  `json:"current_step"`
	LastSavedTime      float64 `json:"last_saved_time"` // unix seconds
}

// State returns the run's checkpoint document.
func (r *Run) State() BatchState {
	return BatchState{
		Index:              r.Index,
		SuccessfulRequests: r.SuccessfulRequests,
		CurrentStep:        r.CurrentStep,
		LastSavedTime:      float64(r.UpdatedAt) / 1000,
	}
}

// RunItem is the stored outcome of one identifier within a run.
type RunItem struct {
	RunID      string     `json:"run_id"`
	Identifier string     `json:"identifier"`
	Position   int        `json:"position"`
	Status     ItemStatus `json:"status"`
	Name       *string    `json:"name,omitempty"`
	CID        *int64     `json:"cid,omitempty"`
	Line       *string    `json:"line,omitempty"`
	Error      *string    `json:"error,omitempty"`
	UpdatedAt  int64      `json:"updated_at"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
