package web

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hpungsan/chemfetch/internal/compound"
	"github.com/hpungsan/chemfetch/internal/config"
	"github.com/hpungsan/chemfetch/internal/db"
	"github.com/hpungsan/chemfetch/internal/errors"
	"github.com/hpungsan/chemfetch/internal/job"
	"github.com/hpungsan/chemfetch/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	jobs     *job.Manager
	renderer *Renderer
}

// jobStatus is the JSON shape polled by the batch page.
type jobStatus struct {
	job.Snapshot
	Percent float64 `json:"percent"`
}

// HandleIndex handles GET /: the batch form and the current job's progress.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, "index", IndexPageData{
		PageData: PageData{
			Title:   "Batch",
			Version: h.renderer.version,
			Nav:     "batch",
		},
		Job:      h.jobs.Snapshot(),
		Kinds:    compound.Kinds,
		Interval: h.cfg.RequestInterval(),
	})
}

// HandleStart handles POST /jobs/start: start a batch from the form.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	req := job.Request{
		InputPath:  r.FormValue("input_path"),
		OutputPath: r.FormValue("output_path"),
		Kind:       r.FormValue("kind"),
		ResumeID:   r.FormValue("resume_id"),
	}
	if req.ResumeID == "" {
		// Validate up front so a bad form is reported on the page, not as a failed job
		if req.InputPath == "" {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("Please select an input file"))
			return
		}
		if req.OutputPath == "" {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("Please enter an output filename"))
			return
		}
		if _, err := compound.ParseKind(req.Kind); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	}

	if err := h.jobs.Start(req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respondJob(w, r, http.StatusAccepted)
}

// HandleRestart handles POST /jobs/restart: stop the running batch and start it over.
func (h *Handlers) HandleRestart(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Restart(); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respondJob(w, r, http.StatusAccepted)
}

// HandleCancel handles POST /jobs/cancel: stop the running batch after the current identifier.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Cancel(); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respondJob(w, r, http.StatusAccepted)
}

// HandleJobStatus handles GET /jobs/status: the current job snapshot as JSON.
func (h *Handlers) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, currentStatus(h.jobs))
}

// respondJob answers a job action: JSON clients get the snapshot, browsers go back to the form.
func (h *Handlers) respondJob(w http.ResponseWriter, r *http.Request, status int) {
	if wantsJSON(r) {
		renderJSON(w, status, currentStatus(h.jobs))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func currentStatus(m *job.Manager) jobStatus {
	snap := m.Snapshot()
	return jobStatus{Snapshot: snap, Percent: snap.Percent()}
}

// HandleRuns handles GET /runs: list stored runs.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	result, err := ops.ListRuns(r.Context(), h.db, ops.ListRunsInput{
		Status: status,
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "runs", RunsPageData{
		PageData: PageData{
			Title:   "Runs",
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Status:     status,
	})
}

// HandleReport handles GET /runs/{id}: a run's report.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := ops.Report(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, report)
		return
	}

	snap := h.jobs.Snapshot()
	owned := snap.State == job.StateRunning && snap.RunID == report.Run.ID

	h.renderer.renderPage(w, "report", ReportPageData{
		PageData: PageData{
			Title:   "Run " + report.Run.ID,
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Run:          report.Run,
		RenderedHTML: renderMarkdown(report.Markdown),
		Resumable:    report.Run.Status != db.RunRunning && report.Run.Status != db.RunCompleted,
		Stale:        report.Run.Status == db.RunRunning && !owned,
	})
}

// HandleResume handles POST /runs/{id}/resume: continue an interrupted run in the background.
// A run still marked running needs force=1.
func (h *Handlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	run, err := db.GetRun(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	force := r.FormValue("force") == "1"
	switch {
	case run.Status == db.RunCompleted:
		h.renderer.renderError(w, r, errors.NewConflict(fmt.Sprintf("run %s is already completed", run.ID)))
		return
	case run.Status == db.RunRunning && !force:
		h.renderer.renderError(w, r, errors.NewConflict(fmt.Sprintf("run %s is already running", run.ID)))
		return
	}

	req := job.Request{
		InputPath:  run.InputPath,
		OutputPath: run.OutputPath,
		Kind:       run.Kind,
		ResumeID:   run.ID,
		Force:      force,
	}
	if err := h.jobs.Start(req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respondJob(w, r, http.StatusAccepted)
}

// HandleRunState handles GET /runs/{id}/state: the run's checkpoint document.
func (h *Handlers) HandleRunState(w http.ResponseWriter, r *http.Request) {
	state, err := ops.Status(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, state)
}

// HandleDeleteRun handles DELETE /runs/{id}; ?force=1 deletes a run still marked running.
func (h *Handlers) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	result, err := ops.DeleteRun(r.Context(), h.db, ops.DeleteRunInput{
		ID:    r.PathValue("id"),
		Force: r.URL.Query().Get("force") == "1",
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/runs", http.StatusSeeOther)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
