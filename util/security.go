package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxPathLength bounds paths accepted from the command line
const maxPathLength = 2048

var (
	// ErrPathTraversal indicates a path traversal attempt was detected
	ErrPathTraversal = errors.New("path traversal attempt detected")

	// ErrSymlinkNotAllowed indicates a symlink was detected and is not allowed
	ErrSymlinkNotAllowed = errors.New("symlink not allowed")

	// ErrNotRegularFile indicates the path names a directory or device
	ErrNotRegularFile = errors.New("not a regular file")
)

// ResolveImportPath validates a user-supplied import file path and returns its
// absolute form. The file must exist, be a regular file and not be a symlink.
// Traversal sequences are checked before filepath.Clean, which would hide them.
func ResolveImportPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}
	if len(path) > maxPathLength {
		return "", fmt.Errorf("file path too long: %d characters (max %d)", len(path), maxPathLength)
	}
	if strings.Contains(path, "..") {
		return "", ErrPathTraversal
	}
	if strings.Contains(path, "\x00") {
		return "", fmt.Errorf("null bytes not allowed in path")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}

	fi, err := os.Lstat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return "", ErrSymlinkNotAllowed
	}
	if !fi.Mode().IsRegular() {
		return "", ErrNotRegularFile
	}

	return absPath, nil
}
