package files

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/chemfetch/internal/errors"
)

// WriteLines replaces path with lines, one per line, each newline-terminated.
// The content goes to a temp file in the same directory which is then renamed
// over path, so a failed write leaves any existing file intact.
func WriteLines(path string, lines []string) error {
	if path == "" {
		return errors.NewInvalidRequest("output path is required")
	}

	if info, err := os.Lstat(path); err == nil {
		if info.IsDir() {
			return errors.NewInvalidRequest(fmt.Sprintf("%s is a directory", path))
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("output path must not be a symlink")
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return errors.NewInternal(err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return errors.NewInternal(err)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close output file: %w", err))
	}
	file = nil

	if err := os.Rename(tempPath, path); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to finalize output file: %w", err))
	}

	success = true
	return nil
}
