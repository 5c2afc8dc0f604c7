package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/hpungsan/chemfetch/internal/batch"
	"github.com/hpungsan/chemfetch/internal/config"
	"github.com/hpungsan/chemfetch/internal/errors"
	"github.com/hpungsan/chemfetch/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	resolver batch.Resolver

	// running admits one batch_run at a time; the stdio server dispatches
	// tool calls from a worker pool.
	running sync.Mutex
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, resolver batch.Resolver) *Handlers {
	return &Handlers{db: db, cfg: cfg, resolver: resolver}
}

// Request types for each tool

// ResolveRequest represents the arguments for compound_resolve.
type ResolveRequest struct {
	Identifier string `json:"identifier"`
	Kind       string `json:"kind,omitempty"`
}

// DedupeRequest represents the arguments for file_dedupe.
type DedupeRequest struct {
	Path string `json:"path"`
}

// RunRequest represents the arguments for batch_run.
type RunRequest struct {
	InputPath  string `json:"input_path,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	Kind       string `json:"kind,omitempty"`
	ResumeID   string `json:"resume_id,omitempty"`
	IntervalMs *int   `json:"interval_ms,omitempty"`
	Force      bool   `json:"force,omitempty"`
}

// DeleteRequest represents the arguments for the batch_delete tool.
type DeleteRequest struct {
	ID    string `json:"id"`
	Force bool   `json:"force,omitempty"`
}

// RunIDRequest represents the arguments for tools addressing one run.
type RunIDRequest struct {
	ID string `json:"id"`
}

// ListRequest represents the arguments for batch_list.
type ListRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Handler implementations

// HandleResolve handles the compound_resolve tool call.
func (h *Handlers) HandleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResolveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Resolve(ctx, h.resolver, ops.ResolveInput{
		Identifier: input.Identifier,
		Kind:       input.Kind,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDedupe handles the file_dedupe tool call.
func (h *Handlers) HandleDedupe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DedupeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Dedupe(ops.DedupeInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRun handles the batch_run tool call.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	runInput := ops.RunInput{
		InputPath:  input.InputPath,
		OutputPath: input.OutputPath,
		Kind:       input.Kind,
		ResumeID:   input.ResumeID,
		Force:      input.Force,
		OnProgress: progressNotifier(ctx, req),
	}
	if input.IntervalMs != nil {
		if *input.IntervalMs < 0 {
			return errorResult(errors.NewInvalidRequest("interval_ms must not be negative")), nil
		}
		d := time.Duration(*input.IntervalMs) * time.Millisecond
		runInput.Interval = &d
	}

	if !h.running.TryLock() {
		return errorResult(errors.NewConflict("another batch is already running")), nil
	}
	defer h.running.Unlock()

	result, err := ops.Run(ctx, h.db, h.cfg, h.resolver, runInput)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleStatus handles the batch_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Status(ctx, h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleList handles the batch_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListRuns(ctx, h.db, ops.ListRunsInput{
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleReport handles the batch_report tool call.
func (h *Handlers) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Report(ctx, h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDelete handles the batch_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteRun(ctx, h.db, ops.DeleteRunInput{ID: input.ID, Force: input.Force})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// progressNotifier forwards batch progress to the client as
// notifications/progress when the request carries a progress token.
func progressNotifier(ctx context.Context, req mcp.CallToolRequest) batch.ProgressFunc {
	if req.Params.Meta == nil || req.Params.Meta.ProgressToken == nil {
		return nil
	}
	srv := server.ServerFromContext(ctx)
	if srv == nil {
		return nil
	}
	token := req.Params.Meta.ProgressToken
	log := zerolog.Ctx(ctx)

	return func(p batch.Progress) {
		err := srv.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
			"progressToken": token,
			"progress":      p.Index,
			"total":         p.Total,
			"message":       p.Status,
		})
		if err != nil {
			log.Debug().Err(err).Msg("progress notification dropped")
		}
	}
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var cErr *errors.ChemError
	if stderrors.As(err, &cErr) {
		// Keep any wrapping context ("items[2]: ...") in front of the message
		message := cErr.Message
		if full := err.Error(); full != cErr.Error() {
			message = strings.TrimSuffix(full, cErr.Error()) + cErr.Message
		}
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": message,
			"status":  cErr.Status,
		}
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
