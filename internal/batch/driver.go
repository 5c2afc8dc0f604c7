package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/chemfetch/internal/compound"
)

// Resolver resolves one identifier. *resolve.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, identifier string, kind compound.Kind) (*compound.Record, error)
}

// ItemStatus is the outcome of one identifier.
type ItemStatus string

const (
	ItemOK      ItemStatus = "ok"      // resolved, line written
	ItemMissing ItemStatus = "missing" // no match, or retries exhausted
	ItemFailed  ItemStatus = "failed"  // non-network error
)

// Item is handed to Checkpoint.Save after each processed identifier.
type Item struct {
	Index      int // 1-based position in the deduplicated list
	Identifier string
	Status     ItemStatus
	Record     *compound.Record // nil unless Status is ItemOK
	Err        error            // set when Status is ItemFailed
	Progress   Progress
}

// Checkpoint persists batch state between sessions.
type Checkpoint interface {
	// Done reports whether identifier was completed by an earlier session.
	Done(identifier string) bool
	// Save records one processed identifier.
	Save(ctx context.Context, item Item) error
}

// Progress is published after every identifier.
type Progress struct {
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	Identifier string `json:"identifier"`
	Status     string `json:"status"`
	Succeeded  int    `json:"succeeded"`
}

// ProgressFunc receives progress updates on the worker goroutine.
type ProgressFunc func(Progress)

// Result accumulates the output of one Run.
type Result struct {
	Display     []string `json:"display"` // "name: cid" per resolved compound
	Lines       []string `json:"lines"`   // tab-separated output lines
	Total       int      `json:"total"`
	Processed   int      `json:"processed"` // identifiers resolved this session
	Succeeded   int      `json:"succeeded"`
	Missing     int      `json:"missing"`
	Failed      int      `json:"failed"`
	Skipped     int      `json:"skipped"` // completed by an earlier session
	Interrupted bool     `json:"interrupted"`
	Status      string   `json:"status"`
}

// Driver runs batches. The zero value is not usable; use New.
type Driver struct {
	resolver   Resolver
	interval   time.Duration
	onProgress ProgressFunc
	checkpoint Checkpoint
}

// New creates a driver that pauses interval after each identifier.
func New(resolver Resolver, interval time.Duration) *Driver {
	return &Driver{resolver: resolver, interval: interval}
}

// WithProgress sets a progress callback.
func (d *Driver) WithProgress(fn ProgressFunc) *Driver {
	d.onProgress = fn
	return d
}

// WithCheckpoint sets the checkpoint used to skip and record items.
func (d *Driver) WithCheckpoint(cp Checkpoint) *Driver {
	d.checkpoint = cp
	return d
}

// Run resolves identifiers one at a time. Duplicates are dropped first.
// A cancelled ctx stops the loop before the next identifier; results gathered
// so far are kept and the Result is marked interrupted.
func (d *Driver) Run(ctx context.Context, identifiers []string, kind compound.Kind) *Result {
	log := zerolog.Ctx(ctx).With().Str("component", "batch").Logger()

	// Resolves and checkpoint saves ignore cancellation; it takes effect at the
	// next item boundary.
	work := context.WithoutCancel(ctx)

	ids := Unique(identifiers)
	res := &Result{
		Display: []string{},
		Lines:   []string{},
		Total:   len(ids),
	}

	for i, id := range ids {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		index := i + 1
		if d.checkpoint != nil && d.checkpoint.Done(id) {
			res.Skipped++
			d.publish(Progress{
				Index:      index,
				Total:      res.Total,
				Identifier: id,
				Status:     compound.StatusText(kind, index, res.Total, id),
				Succeeded:  res.Succeeded,
			})
			continue
		}

		rec, err := d.resolver.Resolve(work, id, kind)
		res.Processed++

		item := Item{Index: index, Identifier: id}
		switch {
		case err != nil:
			res.Failed++
			item.Status = ItemFailed
			item.Err = err
			log.Warn().Err(err).Str("identifier", id).Msg("could not retrieve compound")
		case rec == nil:
			res.Missing++
			item.Status = ItemMissing
			log.Info().Str("identifier", id).Msg("could not retrieve compound")
		default:
			res.Succeeded++
			item.Status = ItemOK
			item.Record = rec
			res.Display = append(res.Display, rec.Display())
			res.Lines = append(res.Lines, rec.Line())
			log.Debug().Str("identifier", id).Int64("cid", rec.CID).Msg("resolved")
		}

		item.Progress = Progress{
			Index:      index,
			Total:      res.Total,
			Identifier: id,
			Status:     compound.StatusText(kind, index, res.Total, id),
			Succeeded:  res.Succeeded,
		}
		if d.checkpoint != nil {
			if err := d.checkpoint.Save(work, item); err != nil {
				log.Error().Err(err).Str("identifier", id).Msg("checkpoint save failed")
			}
		}
		d.publish(item.Progress)

		if index < res.Total {
			if err := wait(ctx, d.interval); err != nil {
				res.Interrupted = true
				break
			}
		}
	}

	if ctx.Err() != nil {
		res.Interrupted = true
	}
	if res.Interrupted {
		res.Status = compound.StatusInterrupted
	} else {
		res.Status = compound.StatusCompleted
	}

	log.Info().
		Int("total", res.Total).
		Int("processed", res.Processed).
		Int("succeeded", res.Succeeded).
		Int("skipped", res.Skipped).
		Bool("interrupted", res.Interrupted).
		Msg(res.Status)

	return res
}

func (d *Driver) publish(p Progress) {
	if d.onProgress != nil {
		d.onProgress(p)
	}
}

// wait pauses for d, returning early with ctx's error if it is cancelled.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Unique returns identifiers with duplicates removed, keeping first occurrences in order.
func Unique(identifiers []string) []string {
	seen := make(map[string]struct{}, len(identifiers))
	out := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
