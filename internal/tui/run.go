package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hpungsan/chemfetch/internal/batch"
	"github.com/hpungsan/chemfetch/internal/ops"
)

// BatchFunc runs a batch, publishing progress through onProgress.
type BatchFunc func(ctx context.Context, onProgress batch.ProgressFunc) (*ops.RunOutput, error)

type result struct {
	out *ops.RunOutput
	err error
}

// Run shows the progress view on out while fn executes on a background
// goroutine. Leaving the view cancels the batch; Run still waits for fn to
// return so the output file and checkpoint are complete.
func Run(ctx context.Context, out io.Writer, title string, fn BatchFunc) (*ops.RunOutput, error) {
	// The view outlives the batch context so it can show the final status.
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(title, cancel), tea.WithOutput(out), tea.WithContext(ctx))

	results := make(chan result, 1)
	go func() {
		o, err := fn(batchCtx, func(pr batch.Progress) {
			p.Send(ProgressMsg(pr))
		})
		results <- result{out: o, err: err}
		p.Send(DoneMsg{Output: o, Err: err})
	}()

	if _, err := p.Run(); err != nil {
		// The view failed or was killed; stop the batch and keep its result.
		cancel()
		r := <-results
		if r.err != nil {
			return nil, r.err
		}
		return r.out, nil
	}

	r := <-results
	return r.out, r.err
}
