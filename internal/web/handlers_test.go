package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/chemfetch/internal/compound"
	"github.com/hpungsan/chemfetch/internal/config"
	"github.com/hpungsan/chemfetch/internal/db"
	"github.com/hpungsan/chemfetch/internal/job"
	"github.com/hpungsan/chemfetch/internal/ops"
)

// tableResolver answers from a fixed table; anything else is a no-match.
type tableResolver map[string]*compound.Record

func (r tableResolver) Resolve(_ context.Context, identifier string, _ compound.Kind) (*compound.Record, error) {
	return r[identifier], nil
}

func testResolver() tableResolver {
	return tableResolver{
		"aspirin": {Name: "2-acetyloxybenzoic acid", CID: 2244},
		"ethanol": {Name: "ethanol", CID: 702},
		nitrobenzene: {Name: "nitrobenzene", CID: 7416},
	}
}

const nitrobenzene = "C1=CC=C(C=C1)[N+](=O)[O-]"

type testEnv struct {
	h   *Handlers
	dir string
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(filepath.Join(tmpDir, "home"))
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	resolver := testResolver()
	noPause := time.Duration(0)

	jobs := job.New(context.Background(), func(ctx context.Context, input ops.RunInput) (*ops.RunOutput, error) {
		input.Interval = &noPause
		return ops.Run(ctx, database, cfg, resolver, input)
	})
	t.Cleanup(func() { waitJob(t, jobs) })

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	return &testEnv{
		h: &Handlers{
			db:       database,
			cfg:      cfg,
			jobs:     jobs,
			renderer: NewRenderer(templateSub, "test", zerolog.Nop()),
		},
		dir: tmpDir,
	}
}

func waitJob(t *testing.T, m *job.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("job did not finish: %v", err)
	}
}

// writeInput writes identifiers, one per line, and returns the file path.
func (e *testEnv) writeInput(t *testing.T, ids ...string) string {
	t.Helper()
	path := filepath.Join(e.dir, "ids.txt")
	if err := os.WriteFile(path, []byte(strings.Join(ids, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func startForm(input, output, kind string) url.Values {
	return url.Values{
		"input_path":  {input},
		"output_path": {output},
		"kind":        {kind},
	}
}

func postForm(path string, form url.Values, jsonReply bool) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if jsonReply {
		req.Header.Set("Accept", "application/json")
	}
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code, body.Error.Message
}

// runBatch starts a batch through the handler and waits for it to finish.
func (e *testEnv) runBatch(t *testing.T, ids ...string) job.Snapshot {
	t.Helper()
	input := e.writeInput(t, ids...)
	output := filepath.Join(e.dir, "out.txt")

	rec := httptest.NewRecorder()
	e.h.HandleStart(rec, postForm("/jobs/start", startForm(input, output, "name"), true))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	waitJob(t, e.h.jobs)
	return e.h.jobs.Snapshot()
}

// --- HandleIndex ---

func TestHandleIndex(t *testing.T) {
	e := setupTest(t)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	e.h.HandleIndex(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"PubChem batch lookup", `value="smiles"`, "SMILES", "Idle", "Pause between identifiers: 3s"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in index page", want)
		}
	}
}

// --- HandleStart ---

func TestHandleStart_RunsBatch(t *testing.T) {
	e := setupTest(t)

	snap := e.runBatch(t, "aspirin", "unobtainium", "ethanol")

	if snap.State != job.StateCompleted {
		t.Fatalf("State = %q, want completed (error: %s)", snap.State, snap.Error)
	}
	if snap.Status != "Process completed" {
		t.Errorf("Status = %q, want %q", snap.Status, "Process completed")
	}
	if snap.Result == nil || snap.Result.Succeeded != 2 || snap.Result.Missing != 1 {
		t.Fatalf("Result = %+v, want 2 succeeded and 1 missing", snap.Result)
	}

	data, err := os.ReadFile(filepath.Join(e.dir, "out.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 2 {
		t.Errorf("output lines = %d, want 2", len(lines))
	}
}

func TestHandleStart_RedirectsBrowser(t *testing.T) {
	e := setupTest(t)
	input := e.writeInput(t, "aspirin")

	rec := httptest.NewRecorder()
	e.h.HandleStart(rec, postForm("/jobs/start", startForm(input, filepath.Join(e.dir, "out.txt"), "name"), false))
	waitJob(t, e.h.jobs)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
}

func TestHandleStart_Validation(t *testing.T) {
	e := setupTest(t)

	tests := []struct {
		name     string
		form     url.Values
		wantCode string
		wantMsg  string
	}{
		{"missing input", startForm("", "out.txt", "name"), "INVALID_REQUEST", "Please select an input file"},
		{"missing output", startForm("ids.txt", "", "name"), "INVALID_REQUEST", "Please enter an output filename"},
		{"bad kind", startForm("ids.txt", "out.txt", "inchi"), "INVALID_KIND", "inchi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.h.HandleStart(rec, postForm("/jobs/start", tt.form, true))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			code, msg := decodeError(t, rec)
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", msg, tt.wantMsg)
			}
		})
	}

	if state := e.h.jobs.Snapshot().State; state != job.StateIdle {
		t.Errorf("State = %q, want idle after rejected starts", state)
	}
}

// --- HandleCancel / HandleRestart ---

func TestHandleCancel_NoJobIsConflict(t *testing.T) {
	e := setupTest(t)

	rec := httptest.NewRecorder()
	e.h.HandleCancel(rec, postForm("/jobs/cancel", nil, true))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandleRestart_NoJobIsConflict(t *testing.T) {
	e := setupTest(t)

	rec := httptest.NewRecorder()
	e.h.HandleRestart(rec, postForm("/jobs/restart", nil, true))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	_, msg := decodeError(t, rec)
	if msg != job.StatusNoActive {
		t.Errorf("message = %q, want %q", msg, job.StatusNoActive)
	}
	if status := e.h.jobs.Snapshot().Status; status != job.StatusNoActive {
		t.Errorf("Status = %q, want %q", status, job.StatusNoActive)
	}
}

func TestHandleRestart_HTMLError(t *testing.T) {
	e := setupTest(t)

	rec := httptest.NewRecorder()
	e.h.HandleRestart(rec, postForm("/jobs/restart", nil, false))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), job.StatusNoActive) {
		t.Error("expected status message on error page")
	}
}

// --- HandleJobStatus ---

func TestHandleJobStatus(t *testing.T) {
	e := setupTest(t)
	e.runBatch(t, "aspirin", "ethanol")

	rec := httptest.NewRecorder()
	e.h.HandleJobStatus(rec, httptest.NewRequest("GET", "/jobs/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		State   string  `json:"state"`
		RunID   string  `json:"run_id"`
		Index   int     `json:"index"`
		Total   int     `json:"total"`
		Percent float64 `json:"percent"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.State != "completed" {
		t.Errorf("state = %q, want completed", body.State)
	}
	if body.RunID == "" {
		t.Error("expected run_id")
	}
	if body.Index != 2 || body.Total != 2 || body.Percent != 100 {
		t.Errorf("progress = %d/%d (%.0f%%), want 2/2 (100%%)", body.Index, body.Total, body.Percent)
	}
}

// --- HandleRuns ---

func TestHandleRuns(t *testing.T) {
	e := setupTest(t)
	snap := e.runBatch(t, "aspirin")

	rec := httptest.NewRecorder()
	e.h.HandleRuns(rec, httptest.NewRequest("GET", "/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, snap.RunID) {
		t.Error("expected run id in run list")
	}
	if !strings.Contains(body, "status-completed") {
		t.Error("expected completed status badge")
	}
}

func TestHandleRuns_Empty(t *testing.T) {
	e := setupTest(t)

	rec := httptest.NewRecorder()
	e.h.HandleRuns(rec, httptest.NewRequest("GET", "/runs?limit=bad&offset=bad", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No runs yet.") {
		t.Error("expected empty state message")
	}
}

func TestHandleRuns_JSON(t *testing.T) {
	e := setupTest(t)
	snap := e.runBatch(t, "aspirin")

	req := httptest.NewRequest("GET", "/runs?status=completed", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	e.h.HandleRuns(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out ops.ListRunsOutput
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].ID != snap.RunID {
		t.Fatalf("Items = %+v, want the one run", out.Items)
	}
	if out.Pagination.Total != 1 {
		t.Errorf("Total = %d, want 1", out.Pagination.Total)
	}
}

func TestHandleRuns_UnknownStatus(t *testing.T) {
	e := setupTest(t)

	rec := httptest.NewRecorder()
	e.h.HandleRuns(rec, httptest.NewRequest("GET", "/runs?status=paused", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- HandleReport ---

func TestHandleReport(t *testing.T) {
	e := setupTest(t)
	snap := e.runBatch(t, "aspirin", "unobtainium")

	req := httptest.NewRequest("GET", "/runs/"+snap.RunID, nil)
	req.SetPathValue("id", snap.RunID)
	rec := httptest.NewRecorder()
	e.h.HandleReport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<table>", "Resolved", "2-acetyloxybenzoic acid", "Not found", "unobtainium"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in report", want)
		}
	}
	if strings.Contains(body, "/resume") {
		t.Error("completed run should not offer resume")
	}
}

func TestHandleReport_SMILESStaysLiteral(t *testing.T) {
	e := setupTest(t)
	snap := e.runBatch(t, nitrobenzene)

	req := httptest.NewRequest("GET", "/runs/"+snap.RunID, nil)
	req.SetPathValue("id", snap.RunID)
	rec := httptest.NewRecorder()
	e.h.HandleReport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<code>"+nitrobenzene+"</code>") {
		t.Errorf("expected SMILES as inline code in report:\n%s", body)
	}
	if strings.Contains(body, `href="=O"`) {
		t.Error("bracket atoms rendered as a link")
	}
}

func TestHandleReport_NotFound(t *testing.T) {
	e := setupTest(t)

	req := httptest.NewRequest("GET", "/runs/nope", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	e.h.HandleReport(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "run not found: nope") {
		t.Error("expected not-found message on error page")
	}
}

// --- HandleResume ---

func TestHandleResume(t *testing.T) {
	e := setupTest(t)
	input := e.writeInput(t, "aspirin", "ethanol")
	output := filepath.Join(e.dir, "out.txt")

	run := &db.Run{ID: "01RESUME", InputPath: input, OutputPath: output, Kind: "name", Total: 2, Status: db.RunInterrupted}
	if err := db.CreateRun(context.Background(), e.h.db, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	req := postForm("/runs/01RESUME/resume", nil, true)
	req.SetPathValue("id", "01RESUME")
	rec := httptest.NewRecorder()
	e.h.HandleResume(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	waitJob(t, e.h.jobs)

	got, err := db.GetRun(context.Background(), e.h.db, "01RESUME")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != db.RunCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if snap := e.h.jobs.Snapshot(); snap.RunID != "01RESUME" {
		t.Errorf("RunID = %q, want the resumed run", snap.RunID)
	}
}

func TestHandleResume_CompletedIsConflict(t *testing.T) {
	e := setupTest(t)
	snap := e.runBatch(t, "aspirin")

	req := postForm("/runs/"+snap.RunID+"/resume", nil, true)
	req.SetPathValue("id", snap.RunID)
	rec := httptest.NewRecorder()
	e.h.HandleResume(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

// --- HandleRunState ---

func TestHandleRunState(t *testing.T) {
	e := setupTest(t)
	snap := e.runBatch(t, "aspirin", "ethanol", "unobtainium")

	req := httptest.NewRequest("GET", "/runs/"+snap.RunID+"/state", nil)
	req.SetPathValue("id", snap.RunID)
	rec := httptest.NewRecorder()
	e.h.HandleRunState(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var state db.BatchState
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Index != 3 {
		t.Errorf("Index = %d, want 3", state.Index)
	}
	if state.SuccessfulRequests != 2 {
		t.Errorf("SuccessfulRequests = %d, want 2", state.SuccessfulRequests)
	}
	if state.LastSavedTime <= 0 {
		t.Errorf("LastSavedTime = %v, want > 0", state.LastSavedTime)
	}
}

// --- HandleDeleteRun ---

func TestHandleDeleteRun(t *testing.T) {
	e := setupTest(t)
	snap := e.runBatch(t, "aspirin")

	req := httptest.NewRequest("DELETE", "/runs/"+snap.RunID, nil)
	req.Header.Set("Accept", "application/json")
	req.SetPathValue("id", snap.RunID)
	rec := httptest.NewRecorder()
	e.h.HandleDeleteRun(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, err := db.GetRun(context.Background(), e.h.db, snap.RunID); err == nil {
		t.Error("expected run to be gone")
	}
}

func TestStaleRunResumeAndDeleteNeedForce(t *testing.T) {
	e := setupTest(t)
	input := e.writeInput(t, "aspirin")
	// Status defaults to running: the run a crashed process leaves behind
	run := &db.Run{ID: "01STALE", InputPath: input, OutputPath: filepath.Join(e.dir, "out.txt"), Kind: "name", Total: 1}
	if err := db.CreateRun(context.Background(), e.h.db, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	req := httptest.NewRequest("GET", "/runs/01STALE", nil)
	req.SetPathValue("id", "01STALE")
	rec := httptest.NewRecorder()
	e.h.HandleReport(rec, req)
	if !strings.Contains(rec.Body.String(), "Take over") {
		t.Error("stale run should offer take over")
	}

	req = httptest.NewRequest("DELETE", "/runs/01STALE", nil)
	req.Header.Set("Accept", "application/json")
	req.SetPathValue("id", "01STALE")
	rec = httptest.NewRecorder()
	e.h.HandleDeleteRun(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete status = %d, want 409", rec.Code)
	}

	req = postForm("/runs/01STALE/resume", nil, true)
	req.SetPathValue("id", "01STALE")
	rec = httptest.NewRecorder()
	e.h.HandleResume(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("resume status = %d, want 409", rec.Code)
	}

	req = postForm("/runs/01STALE/resume", url.Values{"force": {"1"}}, true)
	req.SetPathValue("id", "01STALE")
	rec = httptest.NewRecorder()
	e.h.HandleResume(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("forced resume status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	waitJob(t, e.h.jobs)
	if got, _ := db.GetRun(context.Background(), e.h.db, "01STALE"); got.Status != db.RunCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}

	if err := db.ReopenRun(context.Background(), e.h.db, "01STALE", 1, true); err != nil {
		t.Fatalf("ReopenRun: %v", err)
	}
	req = httptest.NewRequest("DELETE", "/runs/01STALE?force=1", nil)
	req.Header.Set("Accept", "application/json")
	req.SetPathValue("id", "01STALE")
	rec = httptest.NewRecorder()
	e.h.HandleDeleteRun(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("forced delete status = %d, want 200", rec.Code)
	}
}

// --- routes ---

func TestRoutes_SecurityHeadersAndStatic(t *testing.T) {
	e := setupTest(t)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		t.Fatalf("static sub-FS: %v", err)
	}
	srv := httptest.NewServer(securityHeaders(routes(e.h, staticSub)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/static/style.css")
	if err != nil {
		t.Fatalf("GET static: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if csp := resp.Header.Get("Content-Security-Policy"); !strings.Contains(csp, "default-src 'self'") {
		t.Errorf("Content-Security-Policy = %q", csp)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}

	resp, err = http.Get(srv.URL + "/jobs/start")
	if err != nil {
		t.Fatalf("GET start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /jobs/start status = %d, want 405", resp.StatusCode)
	}
}

func TestParseIntParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/runs?limit=5&offset=x", nil)

	if got := parseIntParam(req, "limit", 20); got != 5 {
		t.Errorf("limit = %d, want 5", got)
	}
	if got := parseIntParam(req, "offset", 0); got != 0 {
		t.Errorf("offset = %d, want 0 (fallback)", got)
	}
	if got := parseIntParam(req, "missing", 7); got != 7 {
		t.Errorf("missing = %d, want 7", got)
	}
}
