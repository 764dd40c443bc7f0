package stats

import (
	"math"
	"sort"

	budgetModel "github.com/fatali-fataliyev/migasto/internal/budget"
	"github.com/shopspring/decimal"
)

func SummarizeGoals(goals []budgetModel.Goal) GoalSummary {
	saved := decimal.Zero
	target := decimal.Zero
	summary := GoalSummary{Count: len(goals)}

	for _, g := range goals {
		if g.Completed() {
			summary.CompletedCount++
		}
		// decimal.NewFromFloat panics on NaN and Inf
		if isFinite(g.CurrentAmount) {
			saved = saved.Add(decimal.NewFromFloat(g.CurrentAmount))
		}
		if isFinite(g.TargetAmount) {
			target = target.Add(decimal.NewFromFloat(g.TargetAmount))
		}
	}

	summary.TotalSaved = saved.InexactFloat64()
	summary.TotalTarget = target.InexactFloat64()
	if target.IsPositive() {
		summary.GlobalProgressPercent = budgetModel.RoundHalfUp(summary.TotalSaved / summary.TotalTarget * 100)
	}
	return summary
}

// TopGoals ranks goals by unclamped progress and returns at most n of them.
// n <= 0 falls back to DEFAULT_TOP_GOALS.
func TopGoals(goals []budgetModel.Goal, n int) []RankedGoal {
	if n <= 0 {
		n = DEFAULT_TOP_GOALS
	}

	ranked := make([]RankedGoal, 0, len(goals))
	for _, g := range goals {
		percent := g.ProgressPercent()
		ranked = append(ranked, RankedGoal{
			Goal:           g,
			Percent:        percent,
			DisplayPercent: clampPercent(percent),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Percent > ranked[j].Percent
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
