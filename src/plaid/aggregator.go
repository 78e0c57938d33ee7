package plaid

import (
	"context"

	"github.com/plaid/plaid-go/v41/plaid"

	txsync "writeoff-server/src/sync"
)

// Aggregator adapts the Plaid transactions/sync endpoint to the change-stream
// contract the sync coordinator consumes.
type Aggregator struct {
	api *plaid.APIClient
}

var _ txsync.Aggregator = (*Aggregator)(nil)

func NewAggregator(api *plaid.APIClient) *Aggregator {
	return &Aggregator{api: api}
}

func (a *Aggregator) Changes(ctx context.Context, accessToken, cursor string) (*txsync.ChangeSet, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}

	resp, _, err := a.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return nil, err
	}

	page := &txsync.ChangeSet{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}
	for _, txn := range resp.GetAdded() {
		page.Added = append(page.Added, rawTransaction(txn))
	}
	for _, txn := range resp.GetModified() {
		page.Modified = append(page.Modified, rawTransaction(txn))
	}
	for _, removed := range resp.GetRemoved() {
		page.Removed = append(page.Removed, removed.GetTransactionId())
	}

	return page, nil
}

func rawTransaction(txn plaid.Transaction) txsync.RawTransaction {
	raw := txsync.RawTransaction{
		TransID:      txn.GetTransactionId(),
		AccountID:    txn.GetAccountId(),
		Date:         txn.GetDate(),
		Amount:       txn.GetAmount(),
		Name:         txn.GetName(),
		MerchantName: txn.GetMerchantName(),
	}
	if pfc, ok := txn.GetPersonalFinanceCategoryOk(); ok && pfc != nil {
		raw.DetailedCategory = pfc.GetDetailed()
	}
	if categories := txn.GetCategory(); len(categories) > 0 {
		raw.PrimaryCategory = categories[0]
	}
	return raw
}
