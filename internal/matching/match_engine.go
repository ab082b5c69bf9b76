package matching

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"reconciliation-lifecycle/internal/models"
)

const (
	// Confidence assigned by each deterministic pass. Later passes never
	// override earlier ones, so these only order results for review.
	ExactConfidence        = 1.00
	CombinationConfidence  = 0.85
	FXConfidence           = 0.80
	MinToleranceConfidence = 0.60
)

// Config holds the engine tuning knobs.
type Config struct {
	DateWindowDays           int
	AmountTolerance          decimal.Decimal
	FeeTolerance             decimal.Decimal
	MaxCombinationSize       int
	MaxCombinationCandidates int
	FuzzyConfidenceFloor     float64
	MinFXRate                decimal.Decimal
	MaxFXRate                decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		DateWindowDays:           3,
		AmountTolerance:          decimal.NewFromFloat(0.01),
		FeeTolerance:             decimal.NewFromFloat(15.00),
		MaxCombinationSize:       3,
		MaxCombinationCandidates: 25,
		FuzzyConfidenceFloor:     0.5,
		MinFXRate:                decimal.NewFromFloat(0.5),
		MaxFXRate:                decimal.NewFromFloat(2.0),
	}
}

// Result is the partition an engine run produces. Every input item appears
// in exactly one of matched or unmatched on its side.
type Result struct {
	MatchedPairs   []models.MatchedPair   `json:"matchedPairs"`
	UnmatchedLeft  []models.UnmatchedItem `json:"unmatchedLeft"`
	UnmatchedRight []models.UnmatchedItem `json:"unmatchedRight"`
	Summary        models.Summary         `json:"summary"`
}

// Engine pairs statement-side items (left) against ledger-side items (right)
// through ordered passes: exact, tolerance/fee, combinations, FX, then an
// advisory fuzzy pass. Each pass only sees items earlier passes left
// unconsumed.
type Engine struct {
	cfg   Config
	fuzzy FuzzyMatcher
}

func NewEngine(cfg Config, fuzzy FuzzyMatcher) *Engine {
	if cfg.MaxCombinationSize < 2 {
		cfg.MaxCombinationSize = 2
	}
	return &Engine{cfg: cfg, fuzzy: fuzzy}
}

// state tracks consumption across passes by input index.
type state struct {
	left          []models.LineItem
	right         []models.LineItem
	leftConsumed  []bool
	rightConsumed []bool
	leftDates     []time.Time
	rightDates    []time.Time
	pairs         []models.MatchedPair
}

// Run executes all passes. An empty side is not an error: everything comes
// back unmatched with a zero match rate. A line item with an invalid date
// aborts the run with a ValidationError so no partial result escapes.
func (e *Engine) Run(ctx context.Context, left, right []models.LineItem) (*Result, error) {
	st, err := newState(left, right)
	if err != nil {
		return nil, err
	}

	if len(left) > 0 && len(right) > 0 {
		if err := checkDeadline(ctx); err != nil {
			return nil, err
		}
		e.exactPass(st)

		if err := checkDeadline(ctx); err != nil {
			return nil, err
		}
		e.tolerancePass(st)

		// The combination and fuzzy passes degrade to a no-op on deadline
		// pressure rather than failing a run whose deterministic passes
		// already completed.
		e.combinationPass(ctx, st)
		e.fxPass(st)
		e.fuzzyPass(ctx, st)
	}

	return e.finalize(st), nil
}

func newState(left, right []models.LineItem) (*state, error) {
	st := &state{
		left:          left,
		right:         right,
		leftConsumed:  make([]bool, len(left)),
		rightConsumed: make([]bool, len(right)),
		leftDates:     make([]time.Time, len(left)),
		rightDates:    make([]time.Time, len(right)),
	}
	for i, item := range left {
		d, err := item.ParsedDate()
		if err != nil {
			return nil, &models.ValidationError{Field: "date", Reason: fmt.Sprintf("statement item %s: %v", item.ID, err)}
		}
		st.leftDates[i] = d
	}
	for i, item := range right {
		d, err := item.ParsedDate()
		if err != nil {
			return nil, &models.ValidationError{Field: "date", Reason: fmt.Sprintf("ledger item %s: %v", item.ID, err)}
		}
		st.rightDates[i] = d
	}
	return st, nil
}

func checkDeadline(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", models.ErrEngineTimeout, ctx.Err())
	default:
		return nil
	}
}

// exactPass pairs items with identical amounts inside the date window. When
// several candidates qualify the closest date wins, then the earliest right
// item, which keeps runs deterministic for unchanged input.
func (e *Engine) exactPass(st *state) {
	for li := range st.left {
		if st.leftConsumed[li] {
			continue
		}
		best := -1
		bestDays := math.MaxInt
		for ri := range st.right {
			if st.rightConsumed[ri] {
				continue
			}
			if !sameCurrency(st.left[li], st.right[ri]) {
				continue
			}
			days := daysApart(st.leftDates[li], st.rightDates[ri])
			if days > e.cfg.DateWindowDays {
				continue
			}
			diff := st.left[li].Amount.Sub(st.right[ri].Amount).Abs()
			if diff.GreaterThan(e.cfg.AmountTolerance) {
				continue
			}
			if days < bestDays {
				best = ri
				bestDays = days
			}
		}
		if best >= 0 {
			e.consume(st, li, []int{best}, models.MatchedPair{
				Confidence:  ExactConfidence,
				MatchType:   models.MatchExact,
				Explanation: fmt.Sprintf("Amounts match exactly, dates %d day(s) apart", bestDays),
			})
		}
	}
}

// tolerancePass pairs remaining items whose amounts differ by a small delta
// explainable as a transaction fee. Confidence scales down with the delta.
func (e *Engine) tolerancePass(st *state) {
	for li := range st.left {
		if st.leftConsumed[li] {
			continue
		}
		best := -1
		bestDelta := decimal.Zero
		bestDays := math.MaxInt
		for ri := range st.right {
			if st.rightConsumed[ri] {
				continue
			}
			if !sameCurrency(st.left[li], st.right[ri]) {
				continue
			}
			days := daysApart(st.leftDates[li], st.rightDates[ri])
			if days > e.cfg.DateWindowDays {
				continue
			}
			delta := st.left[li].Amount.Sub(st.right[ri].Amount).Abs()
			if delta.GreaterThan(e.cfg.FeeTolerance) {
				continue
			}
			if best < 0 || delta.LessThan(bestDelta) || (delta.Equal(bestDelta) && days < bestDays) {
				best = ri
				bestDelta = delta
				bestDays = days
			}
		}
		if best < 0 {
			continue
		}

		matchType := models.MatchTolerance
		explanation := fmt.Sprintf("Amounts differ by %s within tolerance", bestDelta.StringFixed(2))
		// A delta beyond one percent of the amount reads as a deducted fee
		// rather than rounding noise.
		onePercent := st.left[li].Amount.Abs().Mul(decimal.NewFromFloat(0.01))
		if bestDelta.GreaterThan(onePercent) {
			matchType = models.MatchFeeAdjusted
			explanation = fmt.Sprintf("Amounts differ by %s, consistent with a transaction fee", bestDelta.StringFixed(2))
		}

		confidence := toleranceConfidence(bestDelta, e.cfg.FeeTolerance)
		e.consume(st, li, []int{best}, models.MatchedPair{
			Confidence:  confidence,
			MatchType:   matchType,
			Explanation: explanation,
		})
	}
}

func toleranceConfidence(delta, feeTolerance decimal.Decimal) float64 {
	if feeTolerance.IsZero() {
		return MinToleranceConfidence
	}
	ratio, _ := delta.Div(feeTolerance).Float64()
	confidence := 0.95 - 0.35*ratio
	if confidence < MinToleranceConfidence {
		confidence = MinToleranceConfidence
	}
	return math.Round(confidence*100) / 100
}

// combinationPass matches one statement item against 2+ ledger entries whose
// amounts sum to it (many_to_one), then one ledger entry against 2+
// statement items (one_to_many). Candidate sets are capped and the pass
// yields entirely once the run budget is exhausted.
func (e *Engine) combinationPass(ctx context.Context, st *state) {
	for li := range st.left {
		if st.leftConsumed[li] {
			continue
		}
		if checkDeadline(ctx) != nil {
			return
		}
		candidates := e.combinationCandidates(st.left[li], st.leftDates[li], st.right, st.rightDates, st.rightConsumed)
		combo := e.findCombination(st.left[li].Amount, candidates, st.right)
		if combo == nil {
			continue
		}
		e.consume(st, li, combo, models.MatchedPair{
			Confidence:  CombinationConfidence,
			MatchType:   models.MatchManyToOne,
			Explanation: fmt.Sprintf("%d ledger entries sum to the statement amount", len(combo)),
		})
	}

	for ri := range st.right {
		if st.rightConsumed[ri] {
			continue
		}
		if checkDeadline(ctx) != nil {
			return
		}
		candidates := e.combinationCandidates(st.right[ri], st.rightDates[ri], st.left, st.leftDates, st.leftConsumed)
		combo := e.findCombination(st.right[ri].Amount, candidates, st.left)
		if combo == nil {
			continue
		}
		// One ledger entry covering several statement items becomes one
		// pair per statement item, all referencing the shared entry.
		st.rightConsumed[ri] = true
		for _, li := range combo {
			st.leftConsumed[li] = true
			st.pairs = append(st.pairs, models.MatchedPair{
				LeftItem:    st.left[li],
				RightItems:  []models.LineItem{st.right[ri]},
				Confidence:  CombinationConfidence,
				MatchType:   models.MatchOneToMany,
				Explanation: fmt.Sprintf("One ledger entry covers %d statement items", len(combo)),
			})
		}
	}
}

// combinationCandidates returns unconsumed pool indexes inside the date
// window, nearest dates first, capped to keep the subset search bounded.
func (e *Engine) combinationCandidates(target models.LineItem, targetDate time.Time, pool []models.LineItem, poolDates []time.Time, consumed []bool) []int {
	var candidates []int
	for i := range pool {
		if consumed[i] {
			continue
		}
		if !sameCurrency(target, pool[i]) {
			continue
		}
		if daysApart(targetDate, poolDates[i]) > e.cfg.DateWindowDays {
			continue
		}
		candidates = append(candidates, i)
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return daysApart(targetDate, poolDates[candidates[a]]) < daysApart(targetDate, poolDates[candidates[b]])
	})
	if len(candidates) > e.cfg.MaxCombinationCandidates {
		candidates = candidates[:e.cfg.MaxCombinationCandidates]
	}
	return candidates
}

// findCombination searches for the smallest group of 2+ candidates whose
// amounts sum to the target within the amount tolerance.
func (e *Engine) findCombination(target decimal.Decimal, candidates []int, pool []models.LineItem) []int {
	for size := 2; size <= e.cfg.MaxCombinationSize && size <= len(candidates); size++ {
		if combo := e.searchCombination(target, candidates, pool, size, 0, nil, decimal.Zero); combo != nil {
			return combo
		}
	}
	return nil
}

func (e *Engine) searchCombination(target decimal.Decimal, candidates []int, pool []models.LineItem, size, start int, current []int, sum decimal.Decimal) []int {
	if size == 0 {
		if target.Sub(sum).Abs().LessThanOrEqual(e.cfg.AmountTolerance) {
			combo := make([]int, len(current))
			copy(combo, current)
			return combo
		}
		return nil
	}
	for i := start; i <= len(candidates)-size; i++ {
		idx := candidates[i]
		if combo := e.searchCombination(target, candidates, pool, size-1, i+1, append(current, idx), sum.Add(pool[idx].Amount)); combo != nil {
			return combo
		}
	}
	return nil
}

// fxPass pairs remaining cross-currency items whose implied conversion rate
// falls in a plausible range. The implied rate is recorded for review.
func (e *Engine) fxPass(st *state) {
	for li := range st.left {
		if st.leftConsumed[li] {
			continue
		}
		leftItem := st.left[li]
		if leftItem.Currency == "" || leftItem.Amount.IsZero() {
			continue
		}
		best := -1
		bestDays := math.MaxInt
		var bestRate decimal.Decimal
		for ri := range st.right {
			if st.rightConsumed[ri] {
				continue
			}
			rightItem := st.right[ri]
			if rightItem.Currency == "" || rightItem.Currency == leftItem.Currency {
				continue
			}
			if rightItem.Amount.IsZero() || rightItem.Amount.Sign() != leftItem.Amount.Sign() {
				continue
			}
			days := daysApart(st.leftDates[li], st.rightDates[ri])
			if days > e.cfg.DateWindowDays {
				continue
			}
			rate := rightItem.Amount.Div(leftItem.Amount)
			if rate.LessThan(e.cfg.MinFXRate) || rate.GreaterThan(e.cfg.MaxFXRate) {
				continue
			}
			if days < bestDays {
				best = ri
				bestDays = days
				bestRate = rate
			}
		}
		if best >= 0 {
			e.consume(st, li, []int{best}, models.MatchedPair{
				Confidence:  FXConfidence,
				MatchType:   models.MatchFXAdjusted,
				Explanation: fmt.Sprintf("%s/%s conversion at implied rate %s",
					leftItem.Currency, st.right[best].Currency, bestRate.Round(4).String()),
			})
		}
	}
}

// fuzzyPass hands whatever is left to the injected matcher. Proposals are
// advisory: anything under the confidence floor, or touching an item a
// deterministic pass already consumed, is discarded.
func (e *Engine) fuzzyPass(ctx context.Context, st *state) {
	if e.fuzzy == nil || checkDeadline(ctx) != nil {
		return
	}

	leftIdx, rightIdx := unconsumedIndexes(st.leftConsumed), unconsumedIndexes(st.rightConsumed)
	if len(leftIdx) == 0 || len(rightIdx) == 0 {
		return
	}
	leftItems := make([]models.LineItem, len(leftIdx))
	for i, li := range leftIdx {
		leftItems[i] = st.left[li]
	}
	rightItems := make([]models.LineItem, len(rightIdx))
	for i, ri := range rightIdx {
		rightItems[i] = st.right[ri]
	}

	proposals, err := e.fuzzy.Propose(ctx, leftItems, rightItems)
	if err != nil {
		// Advisory pass: a matcher failure never fails the run.
		return
	}

	sort.SliceStable(proposals, func(a, b int) bool {
		return proposals[a].Confidence > proposals[b].Confidence
	})
	for _, p := range proposals {
		if p.Confidence < e.cfg.FuzzyConfidenceFloor {
			continue
		}
		if p.LeftIndex < 0 || p.LeftIndex >= len(leftIdx) || p.RightIndex < 0 || p.RightIndex >= len(rightIdx) {
			continue
		}
		li, ri := leftIdx[p.LeftIndex], rightIdx[p.RightIndex]
		if st.leftConsumed[li] || st.rightConsumed[ri] {
			continue
		}
		e.consume(st, li, []int{ri}, models.MatchedPair{
			Confidence:  math.Round(p.Confidence*100) / 100,
			MatchType:   models.MatchAIFuzzy,
			Explanation: p.Explanation,
		})
	}
}

func (e *Engine) consume(st *state, li int, ris []int, pair models.MatchedPair) {
	st.leftConsumed[li] = true
	pair.LeftItem = st.left[li]
	pair.RightItems = make([]models.LineItem, 0, len(ris))
	for _, ri := range ris {
		st.rightConsumed[ri] = true
		pair.RightItems = append(pair.RightItems, st.right[ri])
	}
	st.pairs = append(st.pairs, pair)
}

func (e *Engine) finalize(st *state) *Result {
	result := &Result{
		MatchedPairs:   st.pairs,
		UnmatchedLeft:  []models.UnmatchedItem{},
		UnmatchedRight: []models.UnmatchedItem{},
	}
	if result.MatchedPairs == nil {
		result.MatchedPairs = []models.MatchedPair{}
	}

	for li := range st.left {
		if !st.leftConsumed[li] {
			result.UnmatchedLeft = append(result.UnmatchedLeft, suggestForStatement(st.left[li]))
		}
	}
	for ri := range st.right {
		if !st.rightConsumed[ri] {
			result.UnmatchedRight = append(result.UnmatchedRight, suggestForLedger(st.right[ri]))
		}
	}

	result.Summary = summarize(st.left, st.right, result)
	return result
}

func summarize(left, right []models.LineItem, result *Result) models.Summary {
	summary := models.Summary{
		MatchedCount:        len(result.MatchedPairs),
		UnmatchedLeftCount:  len(result.UnmatchedLeft),
		UnmatchedRightCount: len(result.UnmatchedRight),
		LeftTotal:           decimal.Zero,
		RightTotal:          decimal.Zero,
	}
	for _, item := range left {
		summary.LeftTotal = summary.LeftTotal.Add(item.Amount)
	}
	for _, item := range right {
		summary.RightTotal = summary.RightTotal.Add(item.Amount)
	}
	summary.AbsoluteDifference = summary.LeftTotal.Sub(summary.RightTotal).Abs()

	total := summary.MatchedCount + summary.UnmatchedLeftCount + summary.UnmatchedRightCount
	if total > 0 {
		summary.MatchRate = math.Round(float64(summary.MatchedCount)/float64(total)*1000) / 10
	}
	return summary
}

func sameCurrency(a, b models.LineItem) bool {
	return a.Currency == b.Currency
}

func daysApart(a, b time.Time) int {
	days := int(a.Sub(b).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

func unconsumedIndexes(consumed []bool) []int {
	var idx []int
	for i, c := range consumed {
		if !c {
			idx = append(idx, i)
		}
	}
	return idx
}
