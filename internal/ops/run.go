package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/chemfetch/internal/batch"
	"github.com/hpungsan/chemfetch/internal/compound"
	"github.com/hpungsan/chemfetch/internal/config"
	"github.com/hpungsan/chemfetch/internal/db"
	"github.com/hpungsan/chemfetch/internal/errors"
	"github.com/hpungsan/chemfetch/internal/files"
)

// RunInput contains parameters for the Run operation.
type RunInput struct {
	InputPath  string // required unless resuming
	OutputPath string // required unless resuming
	Kind       string // name, cid or smiles; defaults to the stored kind when resuming
	ResumeID   string // optional run to continue

	// Force resumes a run still marked running. Without it a second session
	// cannot claim a run another one is processing.
	Force bool

	// Interval overrides the configured pause between identifiers when non-nil.
	Interval *time.Duration

	// OnStart is called once the run row exists, before the first identifier.
	OnStart func(runID string, total int)

	// OnProgress receives per-identifier progress on the calling goroutine.
	OnProgress batch.ProgressFunc
}

// RunOutput contains the result of the Run operation.
type RunOutput struct {
	RunID       string   `json:"run_id"`
	InputPath   string   `json:"input_path"`
	OutputPath  string   `json:"output_path"`
	Kind        string   `json:"kind"`
	Total       int      `json:"total"`
	Processed   int      `json:"processed"`
	Succeeded   int      `json:"succeeded"`
	Missing     int      `json:"missing"`
	Failed      int      `json:"failed"`
	Skipped     int      `json:"skipped"`
	Lines       int      `json:"lines"` // lines in the output file after dedupe
	Display     []string `json:"display"`
	Interrupted bool     `json:"interrupted"`
	Status      string   `json:"status"`
}

// Run executes (or resumes) a batch: it reads the identifier file, resolves
// every identifier not completed by an earlier session, writes the resolved
// lines of the whole run to the output file, and deduplicates that file.
//
// Cancelling ctx stops the batch between identifiers. The output file is still
// written with everything resolved so far and the run is marked interrupted,
// so it can be resumed later.
func Run(ctx context.Context, database *sql.DB, cfg *config.Config, resolver batch.Resolver, input RunInput) (*RunOutput, error) {
	run, kind, err := prepareRun(ctx, database, input)
	if err != nil {
		return nil, err
	}

	ids, err := files.ReadIdentifiers(run.InputPath)
	if err != nil {
		return nil, err
	}
	ids = batch.Unique(ids)

	// Bookkeeping below must survive cancellation of the batch itself
	store := context.WithoutCancel(ctx)

	if input.ResumeID == "" {
		id, err := newRunID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		run.ID = id
		run.Total = len(ids)
		if err := db.CreateRun(store, database, run); err != nil {
			return nil, err
		}
	} else {
		if err := db.ReopenRun(store, database, run.ID, len(ids), input.Force); err != nil {
			return nil, err
		}
		run.Total = len(ids)
	}

	log := zerolog.Ctx(ctx).With().Str("run_id", run.ID).Str("kind", string(kind)).Logger()
	ctx = log.WithContext(ctx)

	cp, err := newStoreCheckpoint(store, database, run.ID)
	if err != nil {
		return nil, err
	}
	if input.ResumeID != "" {
		log.Info().Int("completed", len(cp.done)).Int("total", run.Total).Msg("resuming run")
	}

	if input.OnStart != nil {
		input.OnStart(run.ID, run.Total)
	}

	interval := cfg.RequestInterval()
	if input.Interval != nil {
		interval = *input.Interval
	}

	res := batch.New(resolver, interval).
		WithCheckpoint(cp).
		WithProgress(input.OnProgress).
		Run(ctx, ids, kind)

	kept, err := writeOutput(store, database, run)
	if err != nil {
		if ferr := db.FinishRun(store, database, run.ID, db.RunFailed, res.Status, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("failed to record run failure")
		}
		return nil, err
	}

	status := db.RunCompleted
	if res.Interrupted {
		status = db.RunInterrupted
	}
	if err := db.FinishRun(store, database, run.ID, status, res.Status, ""); err != nil {
		return nil, err
	}

	return &RunOutput{
		RunID:       run.ID,
		InputPath:   run.InputPath,
		OutputPath:  run.OutputPath,
		Kind:        run.Kind,
		Total:       res.Total,
		Processed:   res.Processed,
		Succeeded:   res.Succeeded,
		Missing:     res.Missing,
		Failed:      res.Failed,
		Skipped:     res.Skipped,
		Lines:       kept,
		Display:     res.Display,
		Interrupted: res.Interrupted,
		Status:      res.Status,
	}, nil
}

// prepareRun validates input and returns the run to create or resume.
func prepareRun(ctx context.Context, database *sql.DB, input RunInput) (*db.Run, compound.Kind, error) {
	inputPath := strings.TrimSpace(input.InputPath)
	outputPath := strings.TrimSpace(input.OutputPath)
	kindStr := strings.TrimSpace(input.Kind)

	if input.ResumeID == "" {
		if inputPath == "" {
			return nil, "", errors.NewInvalidRequest("input path is required")
		}
		if outputPath == "" {
			return nil, "", errors.NewInvalidRequest("output path is required")
		}
		if kindStr == "" {
			return nil, "", errors.NewInvalidRequest("kind is required")
		}
		kind, err := compound.ParseKind(kindStr)
		if err != nil {
			return nil, "", err
		}
		return &db.Run{
			InputPath:  inputPath,
			OutputPath: outputPath,
			Kind:       string(kind),
		}, kind, nil
	}

	run, err := db.GetRun(ctx, database, input.ResumeID)
	if err != nil {
		return nil, "", err
	}
	stored, err := compound.ParseKind(run.Kind)
	if err != nil {
		return nil, "", err
	}
	if kindStr != "" {
		kind, err := compound.ParseKind(kindStr)
		if err != nil {
			return nil, "", err
		}
		if kind != stored {
			return nil, "", errors.NewInvalidRequest(
				fmt.Sprintf("run %s was started with kind %q, not %q", run.ID, stored, kind))
		}
	}
	if inputPath != "" && inputPath != run.InputPath {
		return nil, "", errors.NewInvalidRequest(
			fmt.Sprintf("run %s reads %s; start a new run for a different input", run.ID, run.InputPath))
	}
	if outputPath != "" {
		run.OutputPath = outputPath
	}
	return run, stored, nil
}

// writeOutput writes every resolved line of the run and deduplicates the file.
// Returns the number of lines kept.
func writeOutput(ctx context.Context, database *sql.DB, run *db.Run) (int, error) {
	lines, err := db.ItemLines(ctx, database, run.ID)
	if err != nil {
		return 0, err
	}
	if err := files.WriteLines(run.OutputPath, lines); err != nil {
		return 0, err
	}
	kept, err := files.Dedupe(run.OutputPath)
	if err != nil {
		return 0, err
	}
	return len(kept), nil
}

// storeCheckpoint persists batch progress in the run tables.
type storeCheckpoint struct {
	database *sql.DB
	runID    string
	done     map[string]bool
	prior    int // resolved identifiers from earlier sessions
}

func newStoreCheckpoint(ctx context.Context, database *sql.DB, runID string) (*storeCheckpoint, error) {
	done, err := db.CompletedIdentifiers(ctx, database, runID)
	if err != nil {
		return nil, err
	}
	prior, err := db.CountItems(ctx, database, runID, db.ItemOK)
	if err != nil {
		return nil, err
	}
	return &storeCheckpoint{database: database, runID: runID, done: done, prior: prior}, nil
}

func (c *storeCheckpoint) Done(identifier string) bool {
	return c.done[identifier]
}

func (c *storeCheckpoint) Save(ctx context.Context, item batch.Item) error {
	it := &db.RunItem{
		RunID:      c.runID,
		Identifier: item.Identifier,
		Position:   item.Index,
		Status:     db.ItemStatus(item.Status),
	}
	if rec := item.Record; rec != nil {
		line := rec.Line()
		name := rec.Name
		cid := rec.CID
		it.Name = &name
		it.CID = &cid
		it.Line = &line
	}
	if item.Err != nil {
		msg := item.Err.Error()
		it.Error = &msg
	}
	if err := db.PutItem(ctx, c.database, it); err != nil {
		return err
	}

	return db.SaveState(ctx, c.database, c.runID, db.BatchState{
		Index:              item.Progress.Index,
		SuccessfulRequests: c.prior + item.Progress.Succeeded,
		CurrentStep:        item.Progress.Status,
	})
}
