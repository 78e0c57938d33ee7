package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"writeoff-server/src/classify"
	"writeoff-server/src/models"
)

const transactionColumns = `t.trans_id, t.account_id, t.date, t.amount, t.merchant_name, t.category,
		t.is_deductible, t.deductible_reason, t.deduction_score, t.deduction_percent, t.notes`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.TransID,
		&t.AccountID,
		&t.Date,
		&t.Amount,
		&t.MerchantName,
		&t.Category,
		&t.IsDeductible,
		&t.DeductibleReason,
		&t.DeductionScore,
		&t.DeductionPercent,
		&t.Notes,
	)
	return t, err
}

func GetTransactionsSQL(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN accounts a ON t.account_id = a.account_id
		WHERE a.user_id = $1
		ORDER BY t.date DESC
	`

	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

func GetTransaction(ctx context.Context, pool *pgxpool.Pool, userID int64, transID string) (*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN accounts a ON t.account_id = a.account_id
		WHERE a.user_id = $1 AND t.trans_id = $2
	`
	t, err := scanTransaction(pool.QueryRow(ctx, query, userID, transID))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTransactionsByIDs is the batched read the merge step uses to find prior
// rows for an incoming page.
func GetTransactionsByIDs(ctx context.Context, pool *pgxpool.Pool, transIDs []string) (map[string]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		WHERE t.trans_id = ANY($1)
	`

	rows, err := pool.Query(ctx, query, transIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]models.Transaction)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		existing[t.TransID] = t
	}

	return existing, rows.Err()
}

// SaveTransactions upserts merged rows keyed on trans_id. The merge layer has
// already decided every field value, so the conflict branch overwrites all of
// them; redelivered pages therefore converge to the same stored state.
func SaveTransactions(ctx context.Context, pool *pgxpool.Pool, transactions []models.Transaction) (int, error) {
	saved := 0
	for _, txn := range transactions {
		query := `
			INSERT INTO transactions (trans_id, account_id, date, amount, merchant_name, category,
				is_deductible, deductible_reason, deduction_score, deduction_percent, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
			ON CONFLICT (trans_id) DO UPDATE SET
				account_id = $2,
				date = $3,
				amount = $4,
				merchant_name = $5,
				category = $6,
				is_deductible = $7,
				deductible_reason = $8,
				deduction_score = $9,
				deduction_percent = $10,
				notes = $11,
				updated_at = NOW()
		`

		_, err := pool.Exec(ctx, query,
			txn.TransID,
			txn.AccountID,
			txn.Date,
			txn.Amount,
			txn.MerchantName,
			txn.Category,
			txn.IsDeductible,
			txn.DeductibleReason,
			txn.DeductionScore,
			txn.DeductionPercent,
			txn.Notes,
		)
		if err != nil {
			return saved, err
		}
		saved++
	}

	return saved, nil
}

func DeleteTransactionsByIDs(ctx context.Context, pool *pgxpool.Pool, transIDs []string) error {
	query := `DELETE FROM transactions WHERE trans_id = ANY($1)`
	_, err := pool.Exec(ctx, query, transIDs)
	return err
}

// GetPendingTransactions selects the transactions eligible for classification:
// expenses that have never been given a reasoned classification.
func GetPendingTransactions(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN accounts a ON t.account_id = a.account_id
		WHERE a.user_id = $1
		  AND t.amount >= 0
		  AND t.deductible_reason IS NULL
		ORDER BY t.date DESC
	`

	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

// UpdateClassification writes a validated classifier result, scoped to
// (trans_id, account_id) so row ownership is enforced in the store. The caller
// treats zero rows affected as an authorization failure.
func UpdateClassification(ctx context.Context, pool *pgxpool.Pool, transID, accountID string, res *classify.Result) (int64, error) {
	query := `
		UPDATE transactions
		SET is_deductible = $1,
			deductible_reason = $2,
			deduction_score = $3,
			deduction_percent = $4,
			updated_at = NOW()
		WHERE trans_id = $5 AND account_id = $6
	`
	tag, err := pool.Exec(ctx, query,
		res.IsDeductible,
		res.DeductibleReason,
		res.DeductionScore,
		res.DeductionPercent,
		transID,
		accountID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateOverride applies a manual user override, including any note.
func UpdateOverride(ctx context.Context, pool *pgxpool.Pool, txn *models.Transaction) (int64, error) {
	query := `
		UPDATE transactions
		SET is_deductible = $1,
			deductible_reason = $2,
			deduction_percent = $3,
			notes = COALESCE($4, notes),
			updated_at = NOW()
		WHERE trans_id = $5 AND account_id = $6
	`
	tag, err := pool.Exec(ctx, query,
		txn.IsDeductible,
		txn.DeductibleReason,
		txn.DeductionPercent,
		txn.Notes,
		txn.TransID,
		txn.AccountID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
