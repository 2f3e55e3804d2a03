package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ErrFatal marks errors that abort a whole pipeline run: the storage
// directory cannot be created or read, or the manifest cannot be written.
var ErrFatal = errors.New("fatal knowledge base error")

// Scan ensures dir exists, creating it and any parents, and returns its
// entries in directory order.
func Scan(dir string) ([]fs.DirEntry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrFatal, dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrFatal, dir, err)
	}
	return entries, nil
}

// hidden reports whether name is a dotfile. Dotfiles are never converted or
// published; the pipeline's own temp files are among them.
func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
