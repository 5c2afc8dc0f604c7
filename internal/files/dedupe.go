package files

import (
	stderrors "errors"
	"os"

	"github.com/hpungsan/chemfetch/internal/errors"
)

// Dedupe rewrites path keeping one copy of each line, in first-occurrence
// order, and returns the kept lines. A missing file is left missing and
// yields no lines.
func Dedupe(path string) ([]string, error) {
	if path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if _, err := os.Stat(path); stderrors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}

	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	unique := UniqueLines(lines)
	if len(unique) == len(lines) {
		return unique, nil
	}
	if err := WriteLines(path, unique); err != nil {
		return nil, err
	}
	return unique, nil
}

// UniqueLines drops repeated lines, keeping first occurrences in order.
func UniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
