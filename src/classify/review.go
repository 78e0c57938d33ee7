package classify

import "writeoff-server/src/models"

// ReviewStatus is derived purely from a transaction's stored classification
// fields; it is never persisted on its own.
type ReviewStatus string

const (
	StatusUnclassified  ReviewStatus = "unclassified"
	StatusNeedsReview   ReviewStatus = "needs_review"
	StatusDeductible    ReviewStatus = "deductible"
	StatusNonDeductible ReviewStatus = "non_deductible"
)

const (
	confidentThreshold = 0.75
	reviewThreshold    = 0.20
)

// Canonical reasons written by a manual override. Because they make
// deductible_reason non-null, an overridden transaction is pinned: Eligible
// never selects it again, whatever its score.
const (
	ReasonUserBusiness = "Classified as business expense by user"
	ReasonUserPersonal = "Classified as personal expense by user"
)

// Overridden reports whether the classification was set directly by the user
// rather than by the model.
func Overridden(t models.Transaction) bool {
	if t.DeductibleReason == nil {
		return false
	}
	return *t.DeductibleReason == ReasonUserBusiness || *t.DeductibleReason == ReasonUserPersonal
}

// StatusOf partitions every (score, is_deductible, overridden) combination
// into exactly one state:
//
//	overridden or score >= 0.75      -> deductible / non_deductible
//	0.20 <= score < 0.75             -> needs_review
//	score < 0.20 or score null       -> unclassified
func StatusOf(t models.Transaction) ReviewStatus {
	if Overridden(t) {
		return confidentStatus(t)
	}
	if t.DeductionScore == nil || *t.DeductionScore < reviewThreshold {
		return StatusUnclassified
	}
	if *t.DeductionScore < confidentThreshold {
		return StatusNeedsReview
	}
	return confidentStatus(t)
}

func confidentStatus(t models.Transaction) ReviewStatus {
	if t.IsDeductible != nil && *t.IsDeductible {
		return StatusDeductible
	}
	return StatusNonDeductible
}

// Eligible is the canonical selection predicate for classification: expenses
// (amount >= 0) that have never been given a reasoned classification. It is
// deliberately independent of is_deductible and deduction_score defaults so a
// transaction is classified exactly once unless explicitly reset.
func Eligible(t models.Transaction) bool {
	return t.Amount >= 0 && t.DeductibleReason == nil
}

// Override applies the manual user transition: any state -> confident, per the
// user's choice. The canonical reason pins the transaction against future
// classification runs; any free-text context the user supplied goes into notes
// so the derived status stays canonical.
func Override(t *models.Transaction, deductible bool, note string) {
	isDeductible := deductible && t.Amount >= 0
	t.IsDeductible = &isDeductible

	reason := ReasonUserPersonal
	if isDeductible {
		reason = ReasonUserBusiness
	}
	t.DeductibleReason = &reason

	percent := 0.0
	if isDeductible {
		percent = 100
	}
	if t.Amount < 0 {
		percent = 0
	}
	t.DeductionPercent = &percent

	if note != "" {
		t.Notes = &note
	}
}
