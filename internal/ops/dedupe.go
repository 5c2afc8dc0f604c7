package ops

import (
	"strings"

	"github.com/hpungsan/chemfetch/internal/errors"
	"github.com/hpungsan/chemfetch/internal/files"
)

// DedupeInput contains parameters for the Dedupe operation.
type DedupeInput struct {
	Path string
}

// DedupeOutput contains the result of the Dedupe operation.
type DedupeOutput struct {
	Path  string `json:"path"`
	Lines int    `json:"lines"`
}

// Dedupe rewrites a file keeping one copy of each line. A missing file is
// reported with zero lines.
func Dedupe(input DedupeInput) (*DedupeOutput, error) {
	path := strings.TrimSpace(input.Path)
	if path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	kept, err := files.Dedupe(path)
	if err != nil {
		return nil, err
	}
	return &DedupeOutput{Path: path, Lines: len(kept)}, nil
}
