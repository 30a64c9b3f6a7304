// Package storage keeps uploaded call recordings on local disk.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// RecordingsDir is the sub-directory recordings are written to. Stored paths
// are relative to the storage root and start with it.
const RecordingsDir = "call_recordings"

var ErrInvalidPath = errors.New("invalid recording path")

// Recordings stores files below a root directory
type Recordings struct {
	root string
}

func NewRecordings(root string) *Recordings {
	return &Recordings{root: root}
}

// Save writes body to call_recordings/name and returns the stored path
func (r *Recordings) Save(name string, body io.Reader) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", ErrInvalidPath
	}

	dir := filepath.Join(r.root, RecordingsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recordings dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create recording: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write recording: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close recording: %w", err)
	}

	return path.Join(RecordingsDir, name), nil
}

// Delete removes a stored recording. Missing files are not an error.
func (r *Recordings) Delete(stored string) error {
	clean := path.Clean(stored)
	if !strings.HasPrefix(clean, RecordingsDir+"/") || strings.Contains(clean, "..") {
		return ErrInvalidPath
	}

	err := os.Remove(filepath.Join(r.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete recording: %w", err)
	}

	return nil
}
