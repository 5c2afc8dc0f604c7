//go:build windows

package files

import "os"

// openFileNoFollow opens a file for writing. O_NOFOLLOW is not available on
// Windows; WriteLines still rejects a symlinked destination before writing.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}
