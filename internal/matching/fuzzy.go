package matching

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"reconciliation-lifecycle/internal/models"
)

// Proposal is a candidate pairing from the fuzzy pass. Indexes refer to the
// slices handed to Propose, not the original run input.
type Proposal struct {
	LeftIndex   int
	RightIndex  int
	Confidence  float64
	Explanation string
}

// FuzzyMatcher proposes matches the deterministic passes could not make.
// Implementations may call out to a semantic matching service; the engine
// treats every proposal as advisory and applies its own confidence floor.
type FuzzyMatcher interface {
	Propose(ctx context.Context, left, right []models.LineItem) ([]Proposal, error)
}

// DescriptionMatcher is the built-in fuzzy matcher. It scores description
// similarity with token-level Levenshtein distance and blends in amount
// closeness, so near-miss descriptions with near-miss amounts surface for
// review without any external dependency.
type DescriptionMatcher struct{}

func (DescriptionMatcher) Propose(_ context.Context, left, right []models.LineItem) ([]Proposal, error) {
	var proposals []Proposal
	for li, l := range left {
		for ri, r := range right {
			descScore := descriptionSimilarity(l.Description, r.Description)
			amountScore := amountCloseness(l.Amount, r.Amount)
			confidence := 0.6*descScore + 0.4*amountScore
			if confidence <= 0 {
				continue
			}
			proposals = append(proposals, Proposal{
				LeftIndex:  li,
				RightIndex: ri,
				Confidence: confidence,
				Explanation: fmt.Sprintf("Description similarity %.0f%%, amount closeness %.0f%%",
					descScore*100, amountScore*100),
			})
		}
	}
	return proposals, nil
}

// descriptionSimilarity scores 0..1 by taking, for each token of the shorter
// description, its best Levenshtein similarity against the other side's
// tokens.
func descriptionSimilarity(a, b string) float64 {
	aTokens := strings.Fields(normalizeDescription(a))
	bTokens := strings.Fields(normalizeDescription(b))
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}
	if len(bTokens) < len(aTokens) {
		aTokens, bTokens = bTokens, aTokens
	}

	total := 0.0
	for _, at := range aTokens {
		best := 0.0
		for _, bt := range bTokens {
			dist := levenshtein(at, bt)
			maxLen := math.Max(float64(len(at)), float64(len(bt)))
			if maxLen == 0 {
				continue
			}
			sim := 1 - float64(dist)/maxLen
			if sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(aTokens))
}

func amountCloseness(a, b decimal.Decimal) float64 {
	base := decimal.Max(a.Abs(), b.Abs())
	if base.IsZero() {
		return 1
	}
	ratio, _ := a.Sub(b).Abs().Div(base).Float64()
	if ratio >= 1 {
		return 0
	}
	return 1 - ratio
}

func normalizeDescription(s string) string {
	s = strings.ToUpper(s)
	s = strings.NewReplacer(".", "", ",", "", "-", " ", "/", " ", "*", " ").Replace(s)
	return strings.TrimSpace(s)
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
		dp[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		dp[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			dp[i][j] = minOf(
				dp[i-1][j]+1,
				dp[i][j-1]+1,
				dp[i-1][j-1]+cost,
			)
		}
	}
	return dp[len(a)][len(b)]
}

func minOf(a, b, c int) int {
	if a < b && a < c {
		return a
	}
	if b < c {
		return b
	}
	return c
}
