package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"writeoff-server/src/classify"
	sql "writeoff-server/src/db/sql"
	"writeoff-server/src/models"
	txsync "writeoff-server/src/sync"
)

// Store adapts the pgx-backed SQL layer to the storage contracts the sync
// coordinator and classification scheduler consume. No process-wide state: the
// pool is passed in explicitly.
type Store struct {
	Pool *pgxpool.Pool
}

var (
	_ txsync.Store   = (*Store)(nil)
	_ classify.Store = (*Store)(nil)
)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) Profile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	return sql.GetUserProfile(ctx, s.Pool, userID)
}

func (s *Store) AccountCount(ctx context.Context, userID int64) (int, error) {
	return sql.CountAccounts(ctx, s.Pool, userID)
}

func (s *Store) TransactionsByID(ctx context.Context, transIDs []string) (map[string]models.Transaction, error) {
	return sql.GetTransactionsByIDs(ctx, s.Pool, transIDs)
}

func (s *Store) UpsertTransactions(ctx context.Context, txns []models.Transaction) (int, error) {
	return sql.SaveTransactions(ctx, s.Pool, txns)
}

func (s *Store) DeleteTransactions(ctx context.Context, transIDs []string) error {
	return sql.DeleteTransactionsByIDs(ctx, s.Pool, transIDs)
}

func (s *Store) SaveCursor(ctx context.Context, userID int64, cursor string) error {
	return sql.UpdateSyncCursor(ctx, s.Pool, userID, cursor)
}

// AcquireSyncLock takes a Postgres advisory lock keyed by user id, giving
// at-most-one sync run per user across every instance sharing the database.
// The lock is session-scoped, so the connection is pinned until release.
func (s *Store) AcquireSyncLock(ctx context.Context, userID int64) (func(), error) {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, userID).Scan(&locked); err != nil {
		conn.Release()
		return nil, err
	}
	if !locked {
		conn.Release()
		return nil, txsync.ErrSyncInProgress
	}

	release := func() {
		// Unlock on a fresh context: the run's context may already be done.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, userID)
		conn.Release()
	}
	return release, nil
}

func (s *Store) PendingTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	return sql.GetPendingTransactions(ctx, s.Pool, userID)
}

func (s *Store) Transaction(ctx context.Context, userID int64, transID string) (*models.Transaction, error) {
	return sql.GetTransaction(ctx, s.Pool, userID, transID)
}

func (s *Store) UpdateClassification(ctx context.Context, transID, accountID string, res *classify.Result) (int64, error) {
	return sql.UpdateClassification(ctx, s.Pool, transID, accountID, res)
}
