package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	"writeoff-server/src/models"
)

func SaveAccounts(ctx context.Context, pool *pgxpool.Pool, userID int64, accounts []plaid.AccountBase) error {
	for _, acc := range accounts {
		query := `
			INSERT INTO accounts (account_id, user_id, name, official_name, mask, type, subtype)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (account_id) DO UPDATE SET 
				name = $3, 
				official_name = $4,
				updated_at = NOW()
		`

		_, err := pool.Exec(ctx, query,
			acc.GetAccountId(),
			userID,
			acc.GetName(),
			acc.GetOfficialName(),
			acc.GetMask(),
			acc.GetType(),
			acc.GetSubtype(),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func GetAccountsSQL(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Account, error) {
	query := `
		SELECT account_id, user_id, name, official_name, mask, type, subtype, created_at 
		FROM accounts
		WHERE user_id = $1
	`

	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		err := rows.Scan(&account.AccountID, &account.UserID, &account.Name, &account.OfficialName, &account.Mask, &account.Type, &account.Subtype, &account.CreatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func CountAccounts(ctx context.Context, pool *pgxpool.Pool, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE user_id = $1`
	var count int
	err := pool.QueryRow(ctx, query, userID).Scan(&count)
	return count, err
}
