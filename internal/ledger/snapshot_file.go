package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileSnapshot stores the ledger as a single JSON file. Every SaveAll writes a
// sibling temp file and renames it over the target, so readers never observe a
// half-written snapshot.
type FileSnapshot struct {
	fs   afero.Fs
	path string
}

// NewFileSnapshot returns a FileSnapshot for path on the given filesystem.
// A nil fs means the host OS filesystem.
func NewFileSnapshot(fsys afero.Fs, path string) *FileSnapshot {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileSnapshot{fs: fsys, path: path}
}

// Path returns the snapshot file location.
func (s *FileSnapshot) Path() string { return s.path }

// LoadAll implements Snapshot. A missing file is an empty ledger.
func (s *FileSnapshot) LoadAll(_ context.Context) ([]Entry, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	return DecodeEntries(data)
}

// SaveAll implements Snapshot.
func (s *FileSnapshot) SaveAll(_ context.Context, entries []Entry) error {
	data, err := EncodeEntries(entries)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
