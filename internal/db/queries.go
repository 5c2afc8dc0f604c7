package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/chemfetch/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.ChemError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const runColumns = `
	id, input_path, output_path, kind, total, idx, successful_requests,
	current_step, status, error, created_at, updated_at, finished_at
`

// CreateRun stores a new run. CreatedAt and UpdatedAt are set when zero.
func CreateRun(ctx context.Context, db *sql.DB, r *Run) error {
	now := nowMillis()
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	if r.UpdatedAt == 0 {
		r.UpdatedAt = now
	}
	if r.CurrentStep == "" {
		r.CurrentStep = StepStart
	}
	if r.Status == "" {
		r.Status = RunRunning
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		r.ID, r.InputPath, r.OutputPath, r.Kind, r.Total, r.Index, r.SuccessfulRequests,
		r.CurrentStep, r.Status, toNullString(r.Error), r.CreatedAt, r.UpdatedAt, toNullInt64(r.FinishedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetRun retrieves a run by its ULID.
func GetRun(ctx context.Context, db *sql.DB, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("run", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListRunsFilter narrows ListRuns. Zero values mean no filter.
type ListRunsFilter struct {
	Status RunStatus
	Limit  int
	Offset int
}

// ListRuns returns runs newest first, plus the total number matching the filter.
func ListRuns(ctx context.Context, db *sql.DB, f ListRunsFilter) ([]Run, int, error) {
	where := ""
	args := []any{}
	if f.Status != "" {
		where = " WHERE status = ?"
		args = append(args, f.Status)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + runColumns + ` FROM runs` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return runs, total, nil
}

// SaveState records the checkpoint document of a run and bumps updated_at.
func SaveState(ctx context.Context, db *sql.DB, id string, s BatchState) error {
	query := `
		UPDATE runs
		SET idx = ?, successful_requests = ?, current_step = ?, updated_at = ?
		WHERE id = ?
	`
	return execOne(ctx, db, id, query, s.Index, s.SuccessfulRequests, s.CurrentStep, nowMillis(), id)
}

// ReopenRun claims a run for another session and marks it running again.
// The claim fails with CONFLICT while the run is still marked running, unless
// force is set (recovering a run left running by a crashed process).
func ReopenRun(ctx context.Context, db *sql.DB, id string, total int, force bool) error {
	query := `
		UPDATE runs
		SET status = ?, total = ?, error = NULL, finished_at = NULL, updated_at = ?
		WHERE id = ? AND (status <> ? OR ?)
	`
	result, err := db.ExecContext(ctx, query, RunRunning, total, nowMillis(), id, RunRunning, force)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		if _, err := GetRun(ctx, db, id); err != nil {
			return err
		}
		return errors.NewConflict(fmt.Sprintf("run %s is already running", id))
	}
	return nil
}

// FinishRun sets the final status of a run. step becomes current_step;
// errMsg is stored when non-empty.
func FinishRun(ctx context.Context, db *sql.DB, id string, status RunStatus, step, errMsg string) error {
	now := nowMillis()
	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}
	query := `
		UPDATE runs
		SET status = ?, current_step = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`
	return execOne(ctx, db, id, query, status, step, errVal, now, now, id)
}

// PutItem inserts or replaces the stored outcome of one identifier.
func PutItem(ctx context.Context, db *sql.DB, it *RunItem) error {
	if it.UpdatedAt == 0 {
		it.UpdatedAt = nowMillis()
	}
	query := `
		INSERT INTO run_items (run_id, identifier, position, status, name, cid, line, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, identifier) DO UPDATE SET
			position = excluded.position,
			status = excluded.status,
			name = excluded.name,
			cid = excluded.cid,
			line = excluded.line,
			error = excluded.error,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		it.RunID, it.Identifier, it.Position, it.Status,
		toNullString(it.Name), toNullInt64(it.CID), toNullString(it.Line), toNullString(it.Error),
		it.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return errors.NewNotFound("run", it.RunID)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// CompletedIdentifiers returns the identifiers of a run that need no further
// work: resolved ones and ones PubChem has no match for. Failed items are
// excluded so a resumed session retries them.
func CompletedIdentifiers(ctx context.Context, db *sql.DB, runID string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT identifier FROM run_items WHERE run_id = ? AND status IN (?, ?)`,
		runID, ItemOK, ItemMissing,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewInternal(err)
		}
		done[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return done, nil
}

// CountItems returns the number of items of a run with the given status.
func CountItems(ctx context.Context, db *sql.DB, runID string, status ItemStatus) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM run_items WHERE run_id = ? AND status = ?`, runID, status,
	).Scan(&n)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// ItemLines returns the output lines of the resolved items of a run in input order.
func ItemLines(ctx context.Context, db *sql.DB, runID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT line FROM run_items WHERE run_id = ? AND status = ? AND line IS NOT NULL ORDER BY position`,
		runID, ItemOK,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, errors.NewInternal(err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return lines, nil
}

// ListItems returns every stored item of a run in input order.
func ListItems(ctx context.Context, db *sql.DB, runID string) ([]RunItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, identifier, position, status, name, cid, line, error, updated_at
		FROM run_items
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	items := []RunItem{}
	for rows.Next() {
		var (
			it    RunItem
			name  sql.NullString
			cid   sql.NullInt64
			line  sql.NullString
			itErr sql.NullString
		)
		if err := rows.Scan(&it.RunID, &it.Identifier, &it.Position, &it.Status,
			&name, &cid, &line, &itErr, &it.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		it.Name = fromNullString(name)
		it.CID = fromNullInt64(cid)
		it.Line = fromNullString(line)
		it.Error = fromNullString(itErr)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return items, nil
}

// DeleteRun removes a run and its items.
func DeleteRun(ctx context.Context, db *sql.DB, id string) error {
	return execOne(ctx, db, id, `DELETE FROM runs WHERE id = ?`, id)
}

// execOne runs an update that must touch exactly the run identified by id.
func execOne(ctx context.Context, db *sql.DB, id, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("run", id)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run struct.
func scanRun(row rowScanner) (*Run, error) {
	var (
		r          Run
		runErr     sql.NullString
		finishedAt sql.NullInt64
	)
	err := row.Scan(
		&r.ID, &r.InputPath, &r.OutputPath, &r.Kind, &r.Total, &r.Index, &r.SuccessfulRequests,
		&r.CurrentStep, &r.Status, &runErr, &r.CreatedAt, &r.UpdatedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Error = fromNullString(runErr)
	r.FinishedAt = fromNullInt64(finishedAt)
	return &r, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}
