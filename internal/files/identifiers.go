// Package files reads identifier lists and writes the tab-separated output file.
package files

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hpungsan/chemfetch/internal/errors"
)

// maxLineBytes bounds a single input line. Structure strings for large
// molecules run to a few kilobytes; anything past this is not an identifier.
const maxLineBytes = 1 << 20

// ReadIdentifiers reads one identifier per line from path. Surrounding
// whitespace is stripped and blank lines are skipped. A missing file yields
// an empty list.
func ReadIdentifiers(path string) ([]string, error) {
	if path == "" {
		return nil, errors.NewInvalidRequest("input path is required")
	}
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	return ids, nil
}

// readLines returns the lines of path without their terminators. A missing
// file yields nil lines and no error.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open %s: %w", path, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if info.IsDir() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s is a directory", path))
	}

	return scanLines(f)
}

func scanLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		if stderrors.Is(err, bufio.ErrTooLong) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("line exceeds %d bytes", maxLineBytes))
		}
		return nil, errors.NewInternal(err)
	}
	return lines, nil
}
