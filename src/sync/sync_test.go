package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"writeoff-server/src/models"
)

type fakeAggregator struct {
	pages []*ChangeSet
	errAt int // 1-based page index that fails; 0 means never
	calls int
}

func (f *fakeAggregator) Changes(ctx context.Context, accessToken, cursor string) (*ChangeSet, error) {
	f.calls++
	page := f.calls
	if f.errAt != 0 && page >= f.errAt {
		return nil, errors.New("connection reset")
	}
	if page > len(f.pages) {
		return nil, errors.New("no more pages")
	}
	return f.pages[page-1], nil
}

type fakeStore struct {
	profile     *models.UserProfile
	accounts    int
	rows        map[string]models.Transaction
	cursors     []string
	deleted     [][]string
	upsertCalls int
	upsertErr   error
	locked      bool
}

func newFakeStore(token string) *fakeStore {
	return &fakeStore{
		profile: &models.UserProfile{UserID: 1, PlaidToken: &token},
		rows:    map[string]models.Transaction{},
	}
}

func (f *fakeStore) Profile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	return f.profile, nil
}

func (f *fakeStore) AccountCount(ctx context.Context, userID int64) (int, error) {
	return f.accounts, nil
}

func (f *fakeStore) TransactionsByID(ctx context.Context, transIDs []string) (map[string]models.Transaction, error) {
	existing := map[string]models.Transaction{}
	for _, id := range transIDs {
		if txn, ok := f.rows[id]; ok {
			existing[id] = txn
		}
	}
	return existing, nil
}

func (f *fakeStore) UpsertTransactions(ctx context.Context, txns []models.Transaction) (int, error) {
	f.upsertCalls++
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	for _, txn := range txns {
		f.rows[txn.TransID] = txn
	}
	return len(txns), nil
}

func (f *fakeStore) DeleteTransactions(ctx context.Context, transIDs []string) error {
	f.deleted = append(f.deleted, transIDs)
	for _, id := range transIDs {
		delete(f.rows, id)
	}
	return nil
}

func (f *fakeStore) SaveCursor(ctx context.Context, userID int64, cursor string) error {
	f.cursors = append(f.cursors, cursor)
	return nil
}

func (f *fakeStore) AcquireSyncLock(ctx context.Context, userID int64) (func(), error) {
	if f.locked {
		return nil, ErrSyncInProgress
	}
	f.locked = true
	return func() { f.locked = false }, nil
}

func fastBackoff(t *testing.T) {
	t.Helper()
	prev := aggregatorBackoff
	aggregatorBackoff = time.Millisecond
	t.Cleanup(func() { aggregatorBackoff = prev })
}

func TestSyncCommitsEachPageBeforeAdvancing(t *testing.T) {
	store := newFakeStore("access-token")
	store.accounts = 2
	agg := &fakeAggregator{pages: []*ChangeSet{
		{
			Added:      []RawTransaction{{TransID: "txn-1", Amount: 45}, {TransID: "txn-2", Amount: 12}},
			NextCursor: "c1",
			HasMore:    true,
		},
		{
			Added:      []RawTransaction{{TransID: "txn-3", Amount: 30}},
			NextCursor: "c2",
			HasMore:    false,
		},
	}}

	result, err := NewCoordinator(store, agg).Sync(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 2, result.AccountsProcessed)
	assert.Equal(t, 3, result.TransactionsSaved)
	assert.Equal(t, []string{"c1", "c2"}, store.cursors)
	assert.Equal(t, 2, store.upsertCalls)
	assert.Len(t, store.rows, 3)
	assert.False(t, store.locked, "lock must be released after the run")
}

func TestSyncAggregatorFailureLeavesCursorAtLastCommit(t *testing.T) {
	fastBackoff(t)

	store := newFakeStore("access-token")
	agg := &fakeAggregator{
		pages: []*ChangeSet{
			{Added: []RawTransaction{{TransID: "txn-1"}}, NextCursor: "c1", HasMore: true},
		},
		errAt: 2,
	}

	_, err := NewCoordinator(store, agg).Sync(context.Background(), 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAggregator)
	// Page one committed; the failed page advanced nothing.
	assert.Equal(t, []string{"c1"}, store.cursors)
	assert.Len(t, store.rows, 1)
	assert.False(t, store.locked)
}

func TestSyncRetriesAggregatorCall(t *testing.T) {
	fastBackoff(t)

	store := newFakeStore("access-token")
	agg := &fakeAggregator{errAt: 1}

	_, err := NewCoordinator(store, agg).Sync(context.Background(), 1)

	require.Error(t, err)
	assert.Equal(t, aggregatorAttempts, agg.calls)
	assert.Empty(t, store.cursors)
}

func TestSyncPersistenceFailureWithholdsCursor(t *testing.T) {
	store := newFakeStore("access-token")
	store.upsertErr = errors.New("connection closed")
	agg := &fakeAggregator{pages: []*ChangeSet{
		{Added: []RawTransaction{{TransID: "txn-1"}}, NextCursor: "c1", HasMore: false},
	}}

	_, err := NewCoordinator(store, agg).Sync(context.Background(), 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, store.cursors)
}

func TestSyncDeletesRemovedTransactions(t *testing.T) {
	store := newFakeStore("access-token")
	store.rows["txn-old"] = models.Transaction{TransID: "txn-old"}
	agg := &fakeAggregator{pages: []*ChangeSet{
		{Removed: []string{"txn-old"}, NextCursor: "c1", HasMore: false},
	}}

	result, err := NewCoordinator(store, agg).Sync(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 0, result.TransactionsSaved)
	assert.Equal(t, [][]string{{"txn-old"}}, store.deleted)
	assert.NotContains(t, store.rows, "txn-old")
	assert.Equal(t, []string{"c1"}, store.cursors)
}

func TestSyncRedeliveryPreservesClassification(t *testing.T) {
	store := newFakeStore("access-token")
	store.rows["txn-1"] = models.Transaction{
		TransID:          "txn-1",
		Category:         "OFFICE_SUPPLIES",
		DeductibleReason: strPtr("ordinary business supply"),
		DeductionScore:   floatPtr(0.92),
	}
	agg := &fakeAggregator{pages: []*ChangeSet{
		{
			Modified:   []RawTransaction{{TransID: "txn-1", Amount: 45, DetailedCategory: "GENERAL_MERCHANDISE"}},
			NextCursor: "c1",
		},
	}}

	_, err := NewCoordinator(store, agg).Sync(context.Background(), 1)

	require.NoError(t, err)
	got := store.rows["txn-1"]
	assert.Equal(t, "OFFICE_SUPPLIES", got.Category)
	assert.Equal(t, "ordinary business supply", *got.DeductibleReason)
	assert.Equal(t, 0.92, *got.DeductionScore)
	assert.Equal(t, 45.0, got.Amount)
}

func TestSyncRejectsConcurrentRun(t *testing.T) {
	store := newFakeStore("access-token")
	store.locked = true
	agg := &fakeAggregator{}

	_, err := NewCoordinator(store, agg).Sync(context.Background(), 1)

	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Zero(t, agg.calls)
}

func TestSyncRequiresLinkedToken(t *testing.T) {
	store := newFakeStore("")
	store.profile.PlaidToken = nil

	_, err := NewCoordinator(store, &fakeAggregator{}).Sync(context.Background(), 1)

	assert.ErrorIs(t, err, ErrNotLinked)
}
