// Package filestore persists the library state as an indented JSON document in a single file.
//
// Saves replace the file atomically: the snapshot is written to a temporary file in the same
// directory, synced, and renamed over the old one, so a crash never leaves a half-written file behind.
package filestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// DefaultPath is the data file used when no path is configured.
const DefaultPath = "library_data.json"

const (
	defaultFileMode = fs.FileMode(0o644)

	logMsgSaved       = "library state saved to file"
	logMsgLoaded      = "library state loaded from file"
	logMsgNotFound    = "no library data file found, starting empty"
	logMsgSaveFailed  = "saving library state to file failed"
	logMsgLoadFailed  = "loading library state from file failed"
	logMsgCleanupTemp = "failed to remove temporary file"
	logAttrPath       = "path"
	logAttrBytes      = "bytes"
	logAttrError      = "error"
)

// Store is a lending.Store backed by a JSON file.
type Store struct {
	path     string
	fileMode fs.FileMode
	logger   lending.Logger
}

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// ErrEmptyPath is returned when the data file path is empty.
var ErrEmptyPath = errors.New("data file path must not be empty")

// WithFileMode sets the permissions of the data file.
func WithFileMode(mode fs.FileMode) Option {
	return func(s *Store) error {
		s.fileMode = mode
		return nil
	}
}

// WithLogger sets a logger; saves and loads are logged at debug level, failures at error level.
func WithLogger(logger lending.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			return lending.ErrNilLogger
		}

		s.logger = logger

		return nil
	}
}

// NewStore creates a Store for the file at path; the file does not need to exist yet.
func NewStore(path string, options ...Option) (*Store, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	s := &Store{path: path, fileMode: defaultFileMode}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Path returns the location of the data file.
func (s *Store) Path() string {
	return s.path
}

// Save implements lending.Store.
func (s *Store) Save(ctx context.Context, snapshot lending.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(lending.ErrSavingSnapshotFailed, err)
	}

	data, err := lending.MarshalSnapshot(snapshot)
	if err != nil {
		return s.saveFailed(err)
	}

	if err = s.writeAtomically(data); err != nil {
		return s.saveFailed(err)
	}

	s.debug(logMsgSaved, logAttrPath, s.path, logAttrBytes, len(data))

	return nil
}

func (s *Store) writeAtomically(data []byte) error {
	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()
	committed := false

	defer func() {
		if committed {
			return
		}

		if removeErr := os.Remove(tmpName); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			s.warn(logMsgCleanupTemp, logAttrPath, tmpName, logAttrError, removeErr.Error())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	if err = os.Chmod(tmpName, s.fileMode); err != nil {
		return err
	}

	if err = os.Rename(tmpName, s.path); err != nil {
		return err
	}

	committed = true

	return nil
}

// Load implements lending.Store. A missing file is reported as not found.
func (s *Store) Load(ctx context.Context) (lending.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return lending.Snapshot{}, false, errors.Join(lending.ErrLoadingSnapshotFailed, err)
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.debug(logMsgNotFound, logAttrPath, s.path)
		return lending.Snapshot{}, false, nil
	}

	if err != nil {
		return lending.Snapshot{}, false, s.loadFailed(err)
	}

	snapshot, err := lending.UnmarshalSnapshot(data)
	if err != nil {
		return lending.Snapshot{}, false, s.loadFailed(err)
	}

	s.debug(logMsgLoaded, logAttrPath, s.path, logAttrBytes, len(data))

	return snapshot, true, nil
}

func (s *Store) saveFailed(err error) error {
	if s.logger != nil {
		s.logger.Error(logMsgSaveFailed, logAttrPath, s.path, logAttrError, err.Error())
	}

	return errors.Join(lending.ErrSavingSnapshotFailed, err)
}

func (s *Store) loadFailed(err error) error {
	if s.logger != nil {
		s.logger.Error(logMsgLoadFailed, logAttrPath, s.path, logAttrError, err.Error())
	}

	return errors.Join(lending.ErrLoadingSnapshotFailed, err)
}

func (s *Store) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Store) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

var _ lending.Store = (*Store)(nil)
