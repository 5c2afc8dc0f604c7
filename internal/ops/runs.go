package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/chemfetch/internal/db"
	"github.com/hpungsan/chemfetch/internal/errors"
)

// Status returns the checkpoint document of a run.
func Status(ctx context.Context, database *sql.DB, id string) (*db.BatchState, error) {
	run, err := getRun(ctx, database, id)
	if err != nil {
		return nil, err
	}
	state := run.State()
	return &state, nil
}

// ListRunsInput contains parameters for the ListRuns operation.
type ListRunsInput struct {
	Status string // optional: running, completed, interrupted, failed
	Limit  int    // default: 20, max: 100
	Offset int
}

// ListRunsOutput contains the result of the ListRuns operation.
type ListRunsOutput struct {
	Items      []db.Run   `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ListRuns returns runs newest first.
func ListRuns(ctx context.Context, database *sql.DB, input ListRunsInput) (*ListRunsOutput, error) {
	status := db.RunStatus(strings.ToLower(strings.TrimSpace(input.Status)))
	switch status {
	case "", db.RunRunning, db.RunCompleted, db.RunInterrupted, db.RunFailed:
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown run status %q", input.Status))
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	runs, total, err := db.ListRuns(ctx, database, db.ListRunsFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	return &ListRunsOutput{
		Items: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
	}, nil
}

// DeleteRunOutput contains the result of the DeleteRun operation.
type DeleteRunOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteRunInput contains parameters for the DeleteRun operation.
type DeleteRunInput struct {
	ID string

	// Force deletes a run still marked running, such as one left behind by a
	// crashed process.
	Force bool
}

// DeleteRun removes a run and its stored items. A running run cannot be
// deleted unless input.Force is set.
func DeleteRun(ctx context.Context, database *sql.DB, input DeleteRunInput) (*DeleteRunOutput, error) {
	run, err := getRun(ctx, database, input.ID)
	if err != nil {
		return nil, err
	}
	if run.Status == db.RunRunning && !input.Force {
		return nil, errors.NewConflict(fmt.Sprintf("run %s is still running; use force to delete it anyway", run.ID))
	}
	if err := db.DeleteRun(ctx, database, run.ID); err != nil {
		return nil, err
	}
	return &DeleteRunOutput{ID: run.ID, Deleted: true}, nil
}

func getRun(ctx context.Context, database *sql.DB, id string) (*db.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("run id is required")
	}
	return db.GetRun(ctx, database, id)
}
