package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/chemfetch/internal/batch"
	"github.com/hpungsan/chemfetch/internal/compound"
	"github.com/hpungsan/chemfetch/internal/errors"
)

// ResolveInput contains parameters for the Resolve operation.
type ResolveInput struct {
	Identifier string
	Kind       string // default: name
}

// ResolveOutput contains the result of the Resolve operation.
type ResolveOutput struct {
	compound.Record
	Kind string `json:"kind"`
	Line string `json:"line"`
}

// Resolve looks up a single identifier. Unlike a batch, a miss is an error.
func Resolve(ctx context.Context, resolver batch.Resolver, input ResolveInput) (*ResolveOutput, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		return nil, errors.NewInvalidRequest("identifier is required")
	}

	kind := compound.KindName
	if strings.TrimSpace(input.Kind) != "" {
		var err error
		kind, err = compound.ParseKind(input.Kind)
		if err != nil {
			return nil, err
		}
	}

	rec, err := resolver.Resolve(ctx, identifier, kind)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.NewNotFound("compound", identifier)
	}

	return &ResolveOutput{
		Record: *rec,
		Kind:   string(kind),
		Line:   rec.Line(),
	}, nil
}
