// Package resolve turns one identifier into a compound record, retrying
// connection-level failures with a fixed delay.
package resolve

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/chemfetch/internal/compound"
	"github.com/hpungsan/chemfetch/internal/config"
	"github.com/hpungsan/chemfetch/internal/errors"
	"github.com/hpungsan/chemfetch/internal/pubchem"
)

// Source is the compound database the resolver queries.
// *pubchem.Client implements it.
type Source interface {
	Lookup(ctx context.Context, identifier string, kind compound.Kind) ([]pubchem.Match, error)
	Synonyms(ctx context.Context, cid int64) ([]string, error)
	Properties(ctx context.Context, cid int64) (*pubchem.Properties, error)
}

// Resolver resolves identifiers against a Source.
type Resolver struct {
	source     Source
	maxRetries int
	retryDelay time.Duration
}

// New creates a resolver. maxRetries is the total attempt count and is
// clamped to at least 1.
func New(source Source, maxRetries int, retryDelay time.Duration) *Resolver {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Resolver{
		source:     source,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// FromConfig creates a resolver with the configured retry policy.
func FromConfig(source Source, cfg *config.Config) *Resolver {
	return New(source, cfg.MaxRetries, cfg.RetryDelay())
}

// Resolve looks up identifier and fetches its property set.
//
// It returns (nil, nil) when the identifier matches nothing, and also when
// every attempt failed with a network error (the failure is logged). Any other
// error, including an unrecognized kind, is returned at once without retrying.
func (r *Resolver) Resolve(ctx context.Context, identifier string, kind compound.Kind) (*compound.Record, error) {
	if !kind.Valid() {
		return nil, errors.NewInvalidKind(string(kind))
	}

	log := zerolog.Ctx(ctx).With().
		Str("component", "resolver").
		Str("identifier", identifier).
		Str("kind", string(kind)).
		Logger()

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		rec, err := r.attempt(ctx, identifier, kind)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, errors.ErrNetwork) {
			return nil, err
		}

		lastErr = err
		if attempt == r.maxRetries {
			break
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", r.retryDelay).Msg("network error, retrying")
		if err := sleep(ctx, r.retryDelay); err != nil {
			return nil, errors.NewCancelled("resolve")
		}
	}

	log.Error().Err(lastErr).Int("attempts", r.maxRetries).Msg("unable to retrieve compound info")
	return nil, nil
}

// attempt runs one lookup plus property fetch.
func (r *Resolver) attempt(ctx context.Context, identifier string, kind compound.Kind) (*compound.Record, error) {
	matches, err := r.source.Lookup(ctx, identifier, kind)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	// First match wins; ordering is PubChem's.
	first := matches[0]

	name := first.IUPACName
	if name == "" {
		synonyms, err := r.source.Synonyms(ctx, first.CID)
		if err != nil {
			return nil, err
		}
		if len(synonyms) > 0 {
			name = synonyms[0]
		}
	}

	props, err := r.source.Properties(ctx, first.CID)
	if err != nil {
		return nil, err
	}

	rec := &compound.Record{Name: name, CID: first.CID}
	if props != nil {
		rec.InChIKey = optional(props.InChIKey)
		if props.InChIKey != "" {
			rec.ShortInChIKey = optional(compound.ShortKey(props.InChIKey))
		}
		rec.MonoisotopicMass = props.MonoisotopicMass
		rec.Formula = optional(props.MolecularFormula)
		rec.CanonicalSMILES = optional(props.CanonicalSMILES)
	}
	return rec, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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
