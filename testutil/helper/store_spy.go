package helper

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// StoreSpy is an in-memory lending.Store that records every call and can be told to fail.
type StoreSpy struct {
	mu        sync.Mutex
	snapshot  lending.Snapshot
	found     bool
	saveCalls int
	loadCalls int
	saveErrs  []error
	failSaves error
	loadErr   error
}

// NewStoreSpy creates an empty StoreSpy; Load reports not found until the first Save.
func NewStoreSpy() *StoreSpy {
	return &StoreSpy{}
}

// NewStoreSpyWith creates a StoreSpy that already holds the snapshot.
func NewStoreSpyWith(snapshot lending.Snapshot) *StoreSpy {
	return &StoreSpy{snapshot: snapshot, found: true}
}

// Save implements lending.Store.
func (s *StoreSpy) Save(_ context.Context, snapshot lending.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveCalls++

	if len(s.saveErrs) > 0 {
		err := s.saveErrs[0]
		s.saveErrs = s.saveErrs[1:]

		return err
	}

	if s.failSaves != nil {
		return s.failSaves
	}

	// round trip through the codec so the spy holds what a real store would
	data, err := lending.MarshalSnapshot(snapshot)
	if err != nil {
		return err
	}

	stored, err := lending.UnmarshalSnapshot(data)
	if err != nil {
		return err
	}

	s.snapshot = stored
	s.found = true

	return nil
}

// Load implements lending.Store.
func (s *StoreSpy) Load(_ context.Context) (lending.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadCalls++

	if s.loadErr != nil {
		return lending.Snapshot{}, false, s.loadErr
	}

	return s.snapshot, s.found, nil
}

// FailNextSaves makes the next saves return the given errors, one per call.
func (s *StoreSpy) FailNextSaves(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveErrs = append(s.saveErrs, errs...)
}

// FailAllSaves makes every following save return err; nil restores normal behavior.
func (s *StoreSpy) FailAllSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failSaves = err
}

// FailLoad makes Load return err.
func (s *StoreSpy) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadErr = err
}

// Snapshot returns the last successfully saved snapshot.
func (s *StoreSpy) Snapshot() (lending.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot, s.found
}

// SaveCalls returns how often Save was called, including failed calls.
func (s *StoreSpy) SaveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveCalls
}

// LoadCalls returns how often Load was called.
func (s *StoreSpy) LoadCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadCalls
}

var _ lending.Store = (*StoreSpy)(nil)
