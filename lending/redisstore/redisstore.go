// Package redisstore persists the library state as a JSON string in Redis.
//
// Next to the current snapshot, every save pushes the snapshot onto a capped list so the most recent
// states can be inspected with History. The snapshot and the history entry are written in one MULTI/EXEC
// transaction.
package redisstore

import (
	"context"
	"errors"
	"io"
	"net"

	"gopkg.in/redis.v5"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	// DefaultKey holds the current snapshot when WithKey is not given.
	DefaultKey = "library:snapshot"

	// DefaultHistoryLength is the number of snapshots kept in the history list.
	DefaultHistoryLength = 10

	historySuffix = ":history"
)

const (
	logMsgSaved      = "redisstore: library state saved"
	logMsgLoaded     = "redisstore: library state loaded"
	logMsgNotFound   = "redisstore: no library state found"
	logMsgSaveFailed = "redisstore: saving library state failed"
	logMsgLoadFailed = "redisstore: loading library state failed"
	logAttrKey       = "key"
	logAttrBytes     = "bytes"
	logAttrHistory   = "history_length"
	logAttrError     = "error"
)

// Errors returned by the constructor and options.
var (
	ErrNilClient             = errors.New("redis client must not be nil")
	ErrEmptyKey              = errors.New("redis key must not be empty")
	ErrNegativeHistoryLength = errors.New("history length must not be negative")
)

// Store is a lending.Store backed by Redis.
type Store struct {
	client        *redis.Client
	key           string
	historyLength int
	logger        lending.Logger
}

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// WithKey sets the key of the current snapshot. The history list lives under the same key plus ":history".
func WithKey(key string) Option {
	return func(s *Store) error {
		if key == "" {
			return ErrEmptyKey
		}

		s.key = key

		return nil
	}
}

// WithHistoryLength sets how many snapshots the history list keeps; 0 disables the history.
func WithHistoryLength(length int) Option {
	return func(s *Store) error {
		if length < 0 {
			return ErrNegativeHistoryLength
		}

		s.historyLength = length

		return nil
	}
}

// WithLogger sets the logger for the Store.
func WithLogger(logger lending.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			return lending.ErrNilLogger
		}

		s.logger = logger

		return nil
	}
}

// NewStore creates a Store on top of client.
func NewStore(client *redis.Client, options ...Option) (*Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	s := &Store{
		client:        client,
		key:           DefaultKey,
		historyLength: DefaultHistoryLength,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Key returns the key of the current snapshot.
func (s *Store) Key() string {
	return s.key
}

// HistoryKey returns the key of the history list.
func (s *Store) HistoryKey() string {
	return s.key + historySuffix
}

// Save implements lending.Store.
func (s *Store) Save(ctx context.Context, snapshot lending.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(lending.ErrSavingSnapshotFailed, err)
	}

	data, err := lending.MarshalSnapshot(snapshot)
	if err != nil {
		return errors.Join(lending.ErrSavingSnapshotFailed, err)
	}

	_, err = s.client.TxPipelined(func(pipe *redis.Pipeline) error {
		pipe.Set(s.key, data, 0)

		if s.historyLength > 0 {
			pipe.LPush(s.HistoryKey(), data)
			pipe.LTrim(s.HistoryKey(), 0, int64(s.historyLength-1))
		}

		return nil
	})
	if err != nil {
		s.logError(logMsgSaveFailed, err)
		return classify(errors.Join(lending.ErrSavingSnapshotFailed, err))
	}

	if s.logger != nil {
		s.logger.Debug(logMsgSaved, logAttrKey, s.key, logAttrBytes, len(data), logAttrHistory, s.historyLength)
	}

	return nil
}

// Load implements lending.Store. A missing key is reported as not found.
func (s *Store) Load(ctx context.Context) (lending.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return lending.Snapshot{}, false, errors.Join(lending.ErrLoadingSnapshotFailed, err)
	}

	data, err := s.client.Get(s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		if s.logger != nil {
			s.logger.Debug(logMsgNotFound, logAttrKey, s.key)
		}

		return lending.Snapshot{}, false, nil
	}

	if err != nil {
		s.logError(logMsgLoadFailed, err)
		return lending.Snapshot{}, false, classify(errors.Join(lending.ErrLoadingSnapshotFailed, err))
	}

	snapshot, err := lending.UnmarshalSnapshot(data)
	if err != nil {
		s.logError(logMsgLoadFailed, err)
		return lending.Snapshot{}, false, errors.Join(lending.ErrLoadingSnapshotFailed, err)
	}

	if s.logger != nil {
		s.logger.Debug(logMsgLoaded, logAttrKey, s.key, logAttrBytes, len(data))
	}

	return snapshot, true, nil
}

// History returns up to n of the most recently saved snapshots, newest first.
func (s *Store) History(ctx context.Context, n int) ([]lending.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(lending.ErrLoadingSnapshotFailed, err)
	}

	if n <= 0 {
		return []lending.Snapshot{}, nil
	}

	entries, err := s.client.LRange(s.HistoryKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, classify(errors.Join(lending.ErrLoadingSnapshotFailed, err))
	}

	snapshots := make([]lending.Snapshot, 0, len(entries))

	for _, entry := range entries {
		snapshot, decodeErr := lending.UnmarshalSnapshot([]byte(entry))
		if decodeErr != nil {
			return nil, errors.Join(lending.ErrLoadingSnapshotFailed, decodeErr)
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

func classify(err error) error {
	var netErr net.Error

	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Join(lending.ErrStoreUnavailable, err)
	}

	return err
}

func (s *Store) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, logAttrKey, s.key, logAttrError, err.Error())
	}
}

var _ lending.Store = (*Store)(nil)
