package models

type Account struct {
	AccountID    string `json:"account_id"`
	UserID       int64  `json:"user_id"`
	Name         string `json:"name"`
	OfficialName string `json:"official_name"`
	Mask         string `json:"mask"`
	Type         string `json:"type"`
	Subtype      string `json:"subtype"`
	CreatedAt    string `json:"created_at"`
}
