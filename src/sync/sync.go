package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"writeoff-server/src/models"
)

var (
	aggregatorAttempts = 3
	aggregatorBackoff  = 500 * time.Millisecond
)

// Result reports what a sync run accomplished.
type Result struct {
	AccountsProcessed int `json:"accounts_processed"`
	TransactionsSaved int `json:"transactions_saved"`
}

// Coordinator drives the incremental sync for one user: page the aggregator's
// change stream, merge each page against stored rows, persist it, then advance
// the cursor. The cursor is only ever written after its page committed, so an
// aborted run resumes from the last durable point.
type Coordinator struct {
	store      Store
	aggregator Aggregator
}

func NewCoordinator(store Store, aggregator Aggregator) *Coordinator {
	return &Coordinator{store: store, aggregator: aggregator}
}

func (c *Coordinator) Sync(ctx context.Context, userID int64) (*Result, error) {
	release, err := c.store.AcquireSyncLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	profile, err := c.store.Profile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load profile: %v", ErrPersistence, err)
	}
	if profile.PlaidToken == nil || *profile.PlaidToken == "" {
		return nil, ErrNotLinked
	}

	cursor := ""
	if profile.LastCursor != nil {
		cursor = *profile.LastCursor
	}

	saved := 0
	for {
		page, err := c.changes(ctx, *profile.PlaidToken, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAggregator, err)
		}

		n, err := c.commitPage(ctx, userID, page)
		saved += n
		if err != nil {
			return nil, err
		}

		cursor = page.NextCursor
		if !page.HasMore {
			break
		}
	}

	accounts, err := c.store.AccountCount(ctx, userID)
	if err != nil {
		log.Printf("ERROR: Failed to count accounts for user %d: %v", userID, err)
	}

	log.Printf("INFO: Sync complete for user %d: %d accounts, %d transactions saved", userID, accounts, saved)
	return &Result{AccountsProcessed: accounts, TransactionsSaved: saved}, nil
}

// changes fetches one page with bounded retry. Retrying is safe because the
// page is not committed yet: the aggregator replays everything after the
// cursor we send.
func (c *Coordinator) changes(ctx context.Context, accessToken, cursor string) (*ChangeSet, error) {
	var lastErr error
	for attempt := 1; attempt <= aggregatorAttempts; attempt++ {
		page, err := c.aggregator.Changes(ctx, accessToken, cursor)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
		log.Printf("ERROR: Aggregator call failed (attempt %d/%d): %v", attempt, aggregatorAttempts, err)
		if attempt < aggregatorAttempts {
			select {
			case <-time.After(time.Duration(attempt) * aggregatorBackoff):
			case <-ctx.Done():
				return nil, lastErr
			}
		}
	}
	return nil, lastErr
}

// commitPage persists one page and advances the cursor, in that order. Once
// persistence has started the page is allowed to complete even if the caller
// cancels, so a committed batch is never left without its cursor.
func (c *Coordinator) commitPage(ctx context.Context, userID int64, page *ChangeSet) (int, error) {
	ctx = context.WithoutCancel(ctx)

	if len(page.Removed) > 0 {
		if err := c.store.DeleteTransactions(ctx, page.Removed); err != nil {
			return 0, fmt.Errorf("%w: delete removed transactions: %v", ErrPersistence, err)
		}
	}

	batch := make([]RawTransaction, 0, len(page.Added)+len(page.Modified))
	batch = append(batch, page.Added...)
	batch = append(batch, page.Modified...)

	saved := 0
	if len(batch) > 0 {
		candidates := make([]models.Transaction, 0, len(batch))
		ids := make([]string, 0, len(batch))
		for _, raw := range batch {
			candidates = append(candidates, Candidate(raw))
			ids = append(ids, raw.TransID)
		}

		existing, err := c.store.TransactionsByID(ctx, ids)
		if err != nil {
			return 0, fmt.Errorf("%w: read existing transactions: %v", ErrPersistence, err)
		}

		saved, err = c.store.UpsertTransactions(ctx, Merge(candidates, existing))
		if err != nil {
			return saved, fmt.Errorf("%w: upsert transactions: %v", ErrPersistence, err)
		}
	}

	if err := c.store.SaveCursor(ctx, userID, page.NextCursor); err != nil {
		return saved, fmt.Errorf("%w: save cursor: %v", ErrPersistence, err)
	}
	return saved, nil
}
