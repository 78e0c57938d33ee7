package sync

import "writeoff-server/src/models"

// CategoryOther is the sentinel category meaning "never refined". A stored
// category equal to it is not protected and may be replaced on resync.
const CategoryOther = "Other"

// Candidate derives a storable record from a raw aggregator record. The
// category falls back detailed -> primary -> "Other"; the merchant label falls
// back to the raw description. Classification fields start out null.
func Candidate(raw RawTransaction) models.Transaction {
	category := raw.DetailedCategory
	if category == "" {
		category = raw.PrimaryCategory
	}
	if category == "" {
		category = CategoryOther
	}

	merchant := raw.MerchantName
	if merchant == "" {
		merchant = raw.Name
	}

	return models.Transaction{
		TransID:      raw.TransID,
		AccountID:    raw.AccountID,
		Date:         raw.Date,
		Amount:       raw.Amount,
		MerchantName: merchant,
		Category:     category,
	}
}

// Merge reconciles incoming candidates against previously stored rows without
// regressing prior decisions. Non-protected fields (date, amount, merchant,
// account) always take the incoming value; protected fields keep the stored
// value once set. Applying the same batch twice yields identical output.
func Merge(incoming []models.Transaction, existing map[string]models.Transaction) []models.Transaction {
	merged := make([]models.Transaction, 0, len(incoming))
	for _, candidate := range incoming {
		prior, ok := existing[candidate.TransID]
		if !ok {
			merged = append(merged, candidate)
			continue
		}

		if prior.Category != "" && prior.Category != CategoryOther {
			candidate.Category = prior.Category
		}
		if prior.IsDeductible != nil {
			candidate.IsDeductible = prior.IsDeductible
		}
		if prior.DeductibleReason != nil && *prior.DeductibleReason != "" {
			candidate.DeductibleReason = prior.DeductibleReason
		}
		if prior.DeductionScore != nil {
			candidate.DeductionScore = prior.DeductionScore
		}
		if prior.DeductionPercent != nil {
			candidate.DeductionPercent = prior.DeductionPercent
		}
		if prior.Notes != nil && *prior.Notes != "" {
			candidate.Notes = prior.Notes
		}

		merged = append(merged, candidate)
	}
	return merged
}
