package sync

import "errors"

var (
	// ErrAggregator wraps failures of the incremental-changes call. The cursor
	// stays at the last committed page, so the whole run is safe to retry.
	ErrAggregator = errors.New("aggregator request failed")

	// ErrPersistence wraps storage write failures. Cursor advancement for the
	// in-flight page is withheld.
	ErrPersistence = errors.New("persistence failed")

	// ErrSyncInProgress means another sync run holds the user's lease.
	ErrSyncInProgress = errors.New("sync already in progress for user")

	// ErrNotLinked means the user has no aggregator access token yet.
	ErrNotLinked = errors.New("no linked bank account for user")
)
