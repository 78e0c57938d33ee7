package classify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"writeoff-server/src/models"
)

type fakeClassifyStore struct {
	mu       sync.Mutex
	profile  models.UserProfile
	pending  []models.Transaction
	txns     map[string]models.Transaction
	updates  map[string]*Result
	zeroRows map[string]bool
}

func newFakeClassifyStore() *fakeClassifyStore {
	return &fakeClassifyStore{
		profile:  models.UserProfile{UserID: 1, Profession: "Freelance Designer", Income: "75k-100k", State: "CA", FilingStatus: "single"},
		txns:     map[string]models.Transaction{},
		updates:  map[string]*Result{},
		zeroRows: map[string]bool{},
	}
}

func (f *fakeClassifyStore) Profile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	return &f.profile, nil
}

func (f *fakeClassifyStore) PendingTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	return f.pending, nil
}

func (f *fakeClassifyStore) Transaction(ctx context.Context, userID int64, transID string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[transID]
	if !ok {
		return nil, errors.New("transaction not found")
	}
	return &txn, nil
}

func (f *fakeClassifyStore) UpdateClassification(ctx context.Context, transID, accountID string, res *Result) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.zeroRows[transID] {
		return 0, nil
	}
	f.updates[transID] = res
	if txn, ok := f.txns[transID]; ok {
		txn.IsDeductible = &res.IsDeductible
		txn.DeductibleReason = &res.DeductibleReason
		txn.DeductionScore = &res.DeductionScore
		txn.DeductionPercent = &res.DeductionPercent
		f.txns[transID] = txn
	}
	return 1, nil
}

type fakeClassifier struct {
	mu      sync.Mutex
	results map[string]*Result
	errs    map[string]error
	calls   []string
}

func (f *fakeClassifier) Analyze(ctx context.Context, txn models.Transaction, profile models.UserProfile) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, txn.TransID)
	f.mu.Unlock()
	if err, ok := f.errs[txn.TransID]; ok {
		return nil, err
	}
	if res, ok := f.results[txn.TransID]; ok {
		copied := *res
		return &copied, nil
	}
	return &Result{IsDeductible: true, DeductionScore: 0.9, DeductionPercent: 100, DeductibleReason: "business expense"}, nil
}

func newTestScheduler(store Store, classifier Classifier) *Scheduler {
	// High rate so tests do not wait on the limiter.
	return NewScheduler(store, classifier, 2, 10000)
}

func TestClassifyPendingAnalyzesAllEligible(t *testing.T) {
	store := newFakeClassifyStore()
	store.pending = []models.Transaction{
		{TransID: "txn-1", AccountID: "acc-1", Amount: 45, MerchantName: "Staples"},
		{TransID: "txn-2", AccountID: "acc-1", Amount: 12, MerchantName: "USPS"},
		{TransID: "txn-3", AccountID: "acc-2", Amount: 80, MerchantName: "Delta"},
	}
	classifier := &fakeClassifier{}

	result, err := newTestScheduler(store, classifier).ClassifyPending(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Analyzed)
	assert.Equal(t, 3, result.Total)
	assert.Len(t, store.updates, 3)
}

func TestClassifyPendingIsolatesFailures(t *testing.T) {
	store := newFakeClassifyStore()
	store.pending = []models.Transaction{
		{TransID: "txn-1", AccountID: "acc-1", Amount: 45},
		{TransID: "txn-2", AccountID: "acc-1", Amount: 12},
		{TransID: "txn-3", AccountID: "acc-1", Amount: 80},
	}
	classifier := &fakeClassifier{errs: map[string]error{"txn-2": ErrValidation}}

	result, err := newTestScheduler(store, classifier).ClassifyPending(context.Background(), 1)

	require.NoError(t, err, "one bad item must not abort the run")
	assert.Equal(t, 2, result.Analyzed)
	assert.Equal(t, 3, result.Total)
	assert.NotContains(t, store.updates, "txn-2", "rejected result must not be persisted")
}

func TestClassifyPendingDeduplicates(t *testing.T) {
	store := newFakeClassifyStore()
	store.pending = []models.Transaction{
		{TransID: "txn-1", AccountID: "acc-1", Amount: 45},
		{TransID: "txn-1", AccountID: "acc-1", Amount: 45},
	}
	classifier := &fakeClassifier{}

	result, err := newTestScheduler(store, classifier).ClassifyPending(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Len(t, classifier.calls, 1, "same transaction must not be submitted twice in one run")
}

func TestClassifyPendingTreatsZeroRowsAsFailure(t *testing.T) {
	store := newFakeClassifyStore()
	store.pending = []models.Transaction{
		{TransID: "txn-1", AccountID: "acc-1", Amount: 45},
		{TransID: "txn-2", AccountID: "acc-other", Amount: 12},
	}
	store.zeroRows["txn-2"] = true
	classifier := &fakeClassifier{}

	result, err := newTestScheduler(store, classifier).ClassifyPending(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Analyzed)
	assert.Equal(t, 2, result.Total)
	// The ownership mismatch is reported once, not retried.
	assert.Len(t, classifier.calls, 2)
}

func TestClassifyPendingEmptySet(t *testing.T) {
	store := newFakeClassifyStore()
	classifier := &fakeClassifier{}

	result, err := newTestScheduler(store, classifier).ClassifyPending(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Analyzed)
	assert.Equal(t, 0, result.Total)
	assert.Empty(t, classifier.calls)
}

func TestClassifyOneUpdatesTransaction(t *testing.T) {
	store := newFakeClassifyStore()
	store.txns["txn-1"] = models.Transaction{TransID: "txn-1", AccountID: "acc-1", Amount: 45, MerchantName: "Staples"}
	classifier := &fakeClassifier{results: map[string]*Result{
		"txn-1": {IsDeductible: true, DeductionScore: 0.92, DeductionPercent: 100, DeductibleReason: "ordinary business supply"},
	}}

	txn, err := newTestScheduler(store, classifier).ClassifyOne(context.Background(), 1, "txn-1")

	require.NoError(t, err)
	assert.True(t, *txn.IsDeductible)
	assert.Equal(t, 0.92, *txn.DeductionScore)
	assert.Equal(t, StatusDeductible, StatusOf(*txn))
	assert.False(t, Eligible(*txn), "a classified transaction must not be selected again")
}

func TestClassifyOneRejectsIneligible(t *testing.T) {
	store := newFakeClassifyStore()
	store.txns["classified"] = models.Transaction{TransID: "classified", Amount: 45, DeductibleReason: strPtr("supply")}
	store.txns["refund"] = models.Transaction{TransID: "refund", Amount: -120}
	classifier := &fakeClassifier{}
	scheduler := newTestScheduler(store, classifier)

	_, err := scheduler.ClassifyOne(context.Background(), 1, "classified")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = scheduler.ClassifyOne(context.Background(), 1, "refund")
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, classifier.calls, "ineligible transactions must never reach the classifier")
}

func TestApplyIncomeRuleForcesNonDeductible(t *testing.T) {
	res := &Result{IsDeductible: true, DeductionScore: 0.9, DeductionPercent: 100, DeductibleReason: "x"}

	applyIncomeRule(models.Transaction{Amount: -120}, res)

	assert.False(t, res.IsDeductible)
	assert.Equal(t, 0.0, res.DeductionPercent)
	// Confidence and reason are the classifier's to keep.
	assert.Equal(t, 0.9, res.DeductionScore)
}

func TestApplyIncomeRuleLeavesExpensesAlone(t *testing.T) {
	res := &Result{IsDeductible: true, DeductionScore: 0.9, DeductionPercent: 50, DeductibleReason: "x"}

	applyIncomeRule(models.Transaction{Amount: 45}, res)

	assert.True(t, res.IsDeductible)
	assert.Equal(t, 50.0, res.DeductionPercent)
}
