package sync

import (
	"context"

	"writeoff-server/src/models"
)

// RawTransaction is one added or modified record from the aggregator's change
// stream, carrying both category hints so the merge layer can apply the
// fallback chain.
type RawTransaction struct {
	TransID          string
	AccountID        string
	Date             string
	Amount           float64
	Name             string
	MerchantName     string
	DetailedCategory string
	PrimaryCategory  string
}

// ChangeSet is one page of the aggregator's incremental change stream.
type ChangeSet struct {
	Added      []RawTransaction
	Modified   []RawTransaction
	Removed    []string
	NextCursor string
	HasMore    bool
}

// Aggregator fetches one page of changes after the given cursor. An empty
// cursor means "from the beginning".
type Aggregator interface {
	Changes(ctx context.Context, accessToken, cursor string) (*ChangeSet, error)
}

// Store is the slice of the storage collaborator the coordinator needs.
// All writes are keyed, so redelivery of a page is safe.
type Store interface {
	Profile(ctx context.Context, userID int64) (*models.UserProfile, error)
	AccountCount(ctx context.Context, userID int64) (int, error)
	TransactionsByID(ctx context.Context, transIDs []string) (map[string]models.Transaction, error)
	UpsertTransactions(ctx context.Context, txns []models.Transaction) (int, error)
	DeleteTransactions(ctx context.Context, transIDs []string) error
	SaveCursor(ctx context.Context, userID int64, cursor string) error

	// AcquireSyncLock takes the per-user sync lease. It returns
	// ErrSyncInProgress when another run holds it.
	AcquireSyncLock(ctx context.Context, userID int64) (release func(), err error)
}
