package model

// TokenEstimator estimates the token count of a string. The continuity
// engine never tokenizes for real; an estimator keeps history assembly
// pure and provider-independent.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens from a characters-per-token ratio.
// A ratio of ~4 works well for English text.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// Ratios <= 0 default to 4.0.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text,
// rounding up so budgets are never undershot.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text))/e.CharsPerToken) + 1
}
