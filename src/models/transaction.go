package models

// Transaction is keyed by the Plaid-assigned transaction id. Amount follows
// the Plaid sign convention: positive = expense, negative = income/refund.
//
// The classification fields are pointers because null means "never analyzed";
// once any of them is set the merge layer treats them as protected.
type Transaction struct {
	TransID          string   `json:"trans_id"`
	AccountID        string   `json:"account_id"`
	Date             string   `json:"date"`
	Amount           float64  `json:"amount"`
	MerchantName     string   `json:"merchant_name"`
	Category         string   `json:"category"`
	IsDeductible     *bool    `json:"is_deductible"`
	DeductibleReason *string  `json:"deductible_reason"`
	DeductionScore   *float64 `json:"deduction_score"`
	DeductionPercent *float64 `json:"deduction_percent"`
	Notes            *string  `json:"notes"`
}
