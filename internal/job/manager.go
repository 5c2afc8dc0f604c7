// Package job owns the single background batch worker used by interactive
// shells. At most one batch runs at a time.
package job

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hpungsan/chemfetch/internal/batch"
	"github.com/hpungsan/chemfetch/internal/errors"
	"github.com/hpungsan/chemfetch/internal/ops"
)

// State is the lifecycle state of the manager's current (or last) job.
type State string

const (
	StateIdle        State = "idle"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateInterrupted State = "interrupted"
	StateFailed      State = "failed"
)

// Status texts shown outside the per-item progress lines.
const (
	StatusProcessing = "Processing..."
	StatusRestarting = "Restarting connection..."
	StatusNoActive   = "No active process to restart"
)

// Request describes a batch to start.
type Request struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Kind       string `json:"kind"`
	ResumeID   string `json:"resume_id,omitempty"`
	Force      bool   `json:"force,omitempty"` // resume a run still marked running
}

// Snapshot is a point-in-time copy of the manager's state.
type Snapshot struct {
	State   State          `json:"state"`
	RunID   string         `json:"run_id,omitempty"`
	Index   int            `json:"index"`
	Total   int            `json:"total"`
	Status  string         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Request *Request       `json:"request,omitempty"`
	Result  *ops.RunOutput `json:"result,omitempty"`
}

// Percent returns progress in [0, 100].
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		if s.State == StateCompleted {
			return 100
		}
		return 0
	}
	return float64(s.Index) * 100 / float64(s.Total)
}

// RunFunc executes one batch. ops.Run bound to a database, config and
// resolver satisfies it.
type RunFunc func(ctx context.Context, input ops.RunInput) (*ops.RunOutput, error)

// Manager runs one batch at a time on a background goroutine.
type Manager struct {
	run  RunFunc
	base context.Context

	// ctl serializes Start, Cancel and Restart. The worker never takes it.
	ctl sync.Mutex

	mu     sync.Mutex
	snap   Snapshot
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a manager. Jobs inherit values (such as the logger) from ctx
// and are cancelled when ctx is.
func New(ctx context.Context, run RunFunc) *Manager {
	return &Manager{
		run:  run,
		base: ctx,
		snap: Snapshot{State: StateIdle},
	}
}

// Start launches a batch. It fails with CONFLICT while another batch runs.
func (m *Manager) Start(req Request) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	return m.start(req)
}

func (m *Manager) start(req Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap.State == StateRunning {
		return errors.NewConflict("a batch is already running")
	}

	ctx, cancel := context.WithCancel(m.base)
	done := make(chan struct{})
	reqCopy := req
	m.snap = Snapshot{
		State:   StateRunning,
		Status:  StatusProcessing,
		Request: &reqCopy,
	}
	m.cancel = cancel
	m.done = done

	input := ops.RunInput{
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Kind:       req.Kind,
		ResumeID:   req.ResumeID,
		Force:      req.Force,
		OnStart: func(runID string, total int) {
			m.mu.Lock()
			m.snap.RunID = runID
			m.snap.Total = total
			m.mu.Unlock()
		},
		OnProgress: func(p batch.Progress) {
			m.mu.Lock()
			m.snap.Index = p.Index
			m.snap.Total = p.Total
			m.snap.Status = p.Status
			m.mu.Unlock()
		},
	}

	go m.work(ctx, cancel, done, input)
	return nil
}

func (m *Manager) work(ctx context.Context, cancel context.CancelFunc, done chan struct{}, input ops.RunInput) {
	defer close(done)
	defer cancel()

	log := zerolog.Ctx(ctx)
	out, err := m.run(ctx, input)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err != nil:
		m.snap.State = StateFailed
		m.snap.Error = err.Error()
		m.snap.Status = err.Error()
		log.Error().Err(err).Msg("batch failed")
	case out.Interrupted:
		m.snap.State = StateInterrupted
		m.snap.Status = out.Status
		m.snap.Result = out
		m.snap.RunID = out.RunID
	default:
		m.snap.State = StateCompleted
		m.snap.Status = out.Status
		m.snap.Result = out
		m.snap.RunID = out.RunID
	}
}

// Cancel asks the running batch to stop before its next identifier.
// It returns without waiting; use Wait to block until the worker exits.
// Cancelling with no running batch is a CONFLICT.
func (m *Manager) Cancel() error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.State != StateRunning {
		return errors.NewConflict("no active process to cancel")
	}
	m.cancel()
	return nil
}

// Restart cancels the running batch, waits for its worker to exit, and starts
// the same request again from the beginning as a new run. With no running
// batch it fails with CONFLICT.
func (m *Manager) Restart() error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.mu.Lock()
	if m.snap.State != StateRunning {
		m.snap.Status = StatusNoActive
		m.mu.Unlock()
		return errors.NewConflict(StatusNoActive)
	}
	req := *m.snap.Request
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	m.snap.Status = StatusRestarting
	m.mu.Unlock()

	// A restart begins from scratch, never from the interrupted checkpoint
	req.ResumeID = ""
	req.Force = false
	return m.start(req)
}

// Wait blocks until the current worker (if any) exits or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.snap
	if s.Request != nil {
		r := *s.Request
		s.Request = &r
	}
	return s
}
