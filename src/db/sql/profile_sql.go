package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"writeoff-server/src/models"
)

var ErrProfileNotFound = errors.New("user profile not found")

func GetUserProfile(ctx context.Context, pool *pgxpool.Pool, userID int64) (*models.UserProfile, error) {
	query := `
		SELECT user_id, profession, income, state, filing_status, plaid_token, plaid_item_id, last_cursor
		FROM user_profiles
		WHERE user_id = $1
	`
	var profile models.UserProfile
	err := pool.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.Profession,
		&profile.Income,
		&profile.State,
		&profile.FilingStatus,
		&profile.PlaidToken,
		&profile.PlaidItemID,
		&profile.LastCursor,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &profile, nil
}

func UpsertUserProfile(ctx context.Context, pool *pgxpool.Pool, profile *models.UserProfile) error {
	query := `
		INSERT INTO user_profiles (user_id, profession, income, state, filing_status, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			profession = $2,
			income = $3,
			state = $4,
			filing_status = $5,
			updated_at = NOW()
	`
	_, err := pool.Exec(ctx, query,
		profile.UserID,
		profile.Profession,
		profile.Income,
		profile.State,
		profile.FilingStatus,
	)
	return err
}

func SavePlaidCredentials(ctx context.Context, pool *pgxpool.Pool, userID int64, itemID, accessToken string) error {
	query := `
		UPDATE user_profiles
		SET plaid_token = $1, plaid_item_id = $2, updated_at = NOW()
		WHERE user_id = $3
	`
	tag, err := pool.Exec(ctx, query, accessToken, itemID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func GetUserIDByItemID(ctx context.Context, pool *pgxpool.Pool, itemID string) (int64, error) {
	query := `SELECT user_id FROM user_profiles WHERE plaid_item_id = $1`
	var userID int64
	err := pool.QueryRow(ctx, query, itemID).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("query error: %w", err)
	}
	return userID, nil
}

func UpdateSyncCursor(ctx context.Context, pool *pgxpool.Pool, userID int64, cursor string) error {
	query := `UPDATE user_profiles SET last_cursor = $1, updated_at = NOW() WHERE user_id = $2`
	tag, err := pool.Exec(ctx, query, cursor, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
