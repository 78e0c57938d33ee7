package models

// UserProfile holds the tax context gathered during profile setup plus the
// user's Plaid credentials. The sync cursor lives here because one Plaid item
// is linked per user and transactions/sync pages across all of its accounts.
type UserProfile struct {
	UserID       int64   `json:"user_id"`
	Profession   string  `json:"profession"`
	Income       string  `json:"income"`
	State        string  `json:"state"`
	FilingStatus string  `json:"filing_status"`
	PlaidToken   *string `json:"-"`
	PlaidItemID  *string `json:"-"`
	LastCursor   *string `json:"-"`
}
