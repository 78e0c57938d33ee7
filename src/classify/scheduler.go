package classify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"writeoff-server/src/models"
)

// Store is the slice of the storage collaborator the scheduler needs. The
// classification update is scoped to (trans_id, account_id) so the row-level
// ownership check happens in storage; zero rows affected is an authorization
// failure, not a retry.
type Store interface {
	Profile(ctx context.Context, userID int64) (*models.UserProfile, error)
	PendingTransactions(ctx context.Context, userID int64) ([]models.Transaction, error)
	Transaction(ctx context.Context, userID int64, transID string) (*models.Transaction, error)
	UpdateClassification(ctx context.Context, transID, accountID string, res *Result) (int64, error)
}

// RunResult reports a classification run. Per-item failures reduce Analyzed
// relative to Total but never abort the run.
type RunResult struct {
	Analyzed int `json:"analyzed"`
	Total    int `json:"total"`
}

// Scheduler pushes pending transactions through the classifier under a bounded
// worker pool, pacing submissions with a shared token bucket.
type Scheduler struct {
	store      Store
	classifier Classifier
	workers    int
	limiter    *rate.Limiter
}

func NewScheduler(store Store, classifier Classifier, workers int, callsPerSecond float64) *Scheduler {
	if workers <= 0 {
		workers = 4
	}
	if callsPerSecond <= 0 {
		callsPerSecond = 10
	}
	return &Scheduler{
		store:      store,
		classifier: classifier,
		workers:    workers,
		limiter:    rate.NewLimiter(rate.Limit(callsPerSecond), 1),
	}
}

// ClassifyPending classifies every eligible transaction for the user. Each
// item succeeds or fails on its own; failed items stay pending and will be
// picked up by a later run.
func (s *Scheduler) ClassifyPending(ctx context.Context, userID int64) (*RunResult, error) {
	profile, err := s.store.Profile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	pending, err := s.store.PendingTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pending transactions: %w", err)
	}

	// De-duplicate within the run so a transaction is never submitted twice.
	seen := make(map[string]struct{}, len(pending))
	jobs := make([]models.Transaction, 0, len(pending))
	for _, txn := range pending {
		if _, ok := seen[txn.TransID]; ok {
			continue
		}
		seen[txn.TransID] = struct{}{}
		jobs = append(jobs, txn)
	}

	total := len(jobs)
	if total == 0 {
		return &RunResult{Analyzed: 0, Total: 0}, nil
	}

	log.Printf("INFO: Classifying %d pending transactions for user %d with %d workers", total, userID, s.workers)

	feed := make(chan models.Transaction)
	var analyzed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for txn := range feed {
				if err := s.classifyOne(ctx, txn, *profile); err != nil {
					log.Printf("ERROR: Classification failed for transaction %s (user %d): %v", txn.TransID, userID, err)
					continue
				}
				analyzed.Add(1)
			}
		}()
	}

	for _, txn := range jobs {
		select {
		case feed <- txn:
		case <-ctx.Done():
			// Stop feeding; in-flight items finish on their own terms.
			close(feed)
			wg.Wait()
			return &RunResult{Analyzed: int(analyzed.Load()), Total: total}, ctx.Err()
		}
	}
	close(feed)
	wg.Wait()

	return &RunResult{Analyzed: int(analyzed.Load()), Total: total}, nil
}

// ClassifyOne classifies a single transaction on demand, applying the same
// eligibility predicate and validation as a batch run.
func (s *Scheduler) ClassifyOne(ctx context.Context, userID int64, transID string) (*models.Transaction, error) {
	profile, err := s.store.Profile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	txn, err := s.store.Transaction(ctx, userID, transID)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if !Eligible(*txn) {
		return nil, fmt.Errorf("%w: transaction %s is not eligible for classification", ErrValidation, transID)
	}

	if err := s.classifyOne(ctx, *txn, *profile); err != nil {
		return nil, err
	}
	return s.store.Transaction(ctx, userID, transID)
}

func (s *Scheduler) classifyOne(ctx context.Context, txn models.Transaction, profile models.UserProfile) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	res, err := s.classifier.Analyze(ctx, txn, profile)
	if err != nil {
		return err
	}

	applyIncomeRule(txn, res)

	rows, err := s.store.UpdateClassification(ctx, txn.TransID, txn.AccountID, res)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: transaction %s, account %s", ErrAuthorization, txn.TransID, txn.AccountID)
	}

	log.Printf("INFO: Classified transaction %s (%s): deductible=%t score=%.2f",
		txn.TransID, txn.MerchantName, res.IsDeductible, res.DeductionScore)
	return nil
}

// applyIncomeRule forces the invariant that income (amount < 0) is never
// deductible, whatever the classifier said.
func applyIncomeRule(txn models.Transaction, res *Result) {
	if txn.Amount < 0 {
		res.IsDeductible = false
		res.DeductionPercent = 0
	}
}
