package lending

import "context"

// Store persists the complete state of a library.
//
// Load is called once when an Engine is constructed. Found is false if no state was saved yet,
// which is not an error. Save is called synchronously after every successful mutation
// and must either persist the whole snapshot or return an error.
//
// Implementations should join errors that are safe to retry with ErrStoreUnavailable.
type Store interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context) (snapshot Snapshot, found bool, err error)
}
