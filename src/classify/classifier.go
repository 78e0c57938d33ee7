package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"writeoff-server/src/models"
)

// Result is a validated classifier verdict. Values are guaranteed in range:
// score in [0,1], percent in [0,100], reason non-empty.
type Result struct {
	IsDeductible     bool    `json:"is_deductible"`
	DeductionScore   float64 `json:"deduction_score"`
	DeductionPercent float64 `json:"deduction_percent"`
	DeductibleReason string  `json:"deductible_reason"`
}

// Classifier judges one transaction's tax deductibility using the user's
// profile context. Implementations must return validated results only.
type Classifier interface {
	Analyze(ctx context.Context, txn models.Transaction, profile models.UserProfile) (*Result, error)
}

const classifierSystemPrompt = "You are a tax expert specializing in business deductions. " +
	"Provide accurate, conservative analysis. Always respond with a valid JSON object in the exact format requested."

// OpenAIClassifier calls the OpenAI chat completion API with JSON response
// formatting enforced, so the reply is parsed as a whole object instead of
// being scraped out of free text.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

func NewOpenAIClassifier(apiKey string) *OpenAIClassifier {
	return &OpenAIClassifier{
		client: openai.NewClient(apiKey),
		model:  "gpt-4.1-mini",
	}
}

func (c *OpenAIClassifier) Analyze(ctx context.Context, txn models.Transaction, profile models.UserProfile) (*Result, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(txn, profile)},
		},
		MaxTokens:   300,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrValidation)
	}

	return ParseResult([]byte(resp.Choices[0].Message.Content))
}

// ParseResult strictly validates the classifier's structured reply. Every
// field must be present, correctly typed, and in range; any violation rejects
// the whole result so partial or garbage data is never persisted.
func ParseResult(raw []byte) (*Result, error) {
	var payload struct {
		IsDeductible     *bool    `json:"is_deductible"`
		DeductionScore   *float64 `json:"deduction_score"`
		DeductionPercent *float64 `json:"deduction_percent"`
		DeductibleReason *string  `json:"deductible_reason"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if payload.IsDeductible == nil {
		return nil, fmt.Errorf("%w: is_deductible must be a boolean", ErrValidation)
	}
	if payload.DeductionScore == nil || *payload.DeductionScore < 0 || *payload.DeductionScore > 1 {
		return nil, fmt.Errorf("%w: deduction_score must be a number in [0,1]", ErrValidation)
	}
	if payload.DeductionPercent == nil || *payload.DeductionPercent < 0 || *payload.DeductionPercent > 100 {
		return nil, fmt.Errorf("%w: deduction_percent must be a number in [0,100]", ErrValidation)
	}
	if payload.DeductibleReason == nil || strings.TrimSpace(*payload.DeductibleReason) == "" {
		return nil, fmt.Errorf("%w: deductible_reason must be a non-empty string", ErrValidation)
	}

	return &Result{
		IsDeductible:     *payload.IsDeductible,
		DeductionScore:   *payload.DeductionScore,
		DeductionPercent: *payload.DeductionPercent,
		DeductibleReason: strings.TrimSpace(*payload.DeductibleReason),
	}, nil
}

func buildPrompt(txn models.Transaction, profile models.UserProfile) string {
	return fmt.Sprintf(`Analyze this transaction for tax deductibility:

Transaction: %s
Amount: $%.2f
Category: %s
Date: %s

User Profile:
- Profession: %s
- Income: %s
- State: %s
- Filing Status: %s

Determine if this transaction is tax deductible for this person. Consider:
1. The user's profession and business type
2. Is it an ordinary and necessary business expense?
3. Is it directly related to business operations?
4. What percentage of the transaction amount is deductible?

IMPORTANT: If the transaction amount is negative (income/revenue), it is NOT deductible and should have deduction_percent = 0.

Respond with a JSON object in this exact format:
{"is_deductible": true, "deduction_score": 0.85, "deduction_percent": 100, "deductible_reason": "explanation"}

Where:
- is_deductible: true if deductible, false if not
- deduction_score: confidence score from 0.0 to 1.0
- deduction_percent: what percentage of the amount is deductible (0-100); e.g. 50 for a business meal
- deductible_reason: clear, concise explanation based on tax rules

Use conservative estimates and avoid over-claiming deductions.`,
		txn.MerchantName, txn.Amount, txn.Category, txn.Date,
		profile.Profession, profile.Income, profile.State, profile.FilingStatus)
}
