package stats

import (
	"math"
	"sort"
	"strings"

	budgetModel "github.com/fatali-fataliyev/migasto/internal/budget"
	"github.com/shopspring/decimal"
)

const (
	UNCATEGORIZED_LABEL = "Sin categoría"
	DEFAULT_TOP_GOALS   = 3
)

type CategoryTotal struct {
	Category string
	Total    float64
}

type GoalSummary struct {
	Count                 int
	CompletedCount        int
	TotalSaved            float64
	TotalTarget           float64
	GlobalProgressPercent int
}

type RankedGoal struct {
	Goal           budgetModel.Goal
	Percent        int
	DisplayPercent int
}

type Dashboard struct {
	TotalIncome     float64
	TotalExpense    float64
	Balance         float64
	SpendByCategory []CategoryTotal
	Goals           GoalSummary
	TopGoals        []RankedGoal
}

// TotalByKind sums the amounts of one kind. Any non-finite amount turns the
// whole total into NaN.
func TotalByKind(movements []budgetModel.Movement, kind budgetModel.MovementKind) float64 {
	total := decimal.Zero
	for _, m := range movements {
		if m.Kind != kind {
			continue
		}
		if !isFinite(m.Amount) {
			return math.NaN()
		}
		total = total.Add(decimal.NewFromFloat(m.Amount))
	}
	return total.InexactFloat64()
}

func Balance(movements []budgetModel.Movement) float64 {
	return TotalByKind(movements, budgetModel.KindIncome) - TotalByKind(movements, budgetModel.KindExpense)
}

// SpendByCategory groups expenses by category, biggest first. Equal totals
// keep the order in which the category was first seen.
func SpendByCategory(movements []budgetModel.Movement) []CategoryTotal {
	totals := map[string]decimal.Decimal{}
	poisoned := map[string]bool{}
	order := []string{}

	for _, m := range movements {
		if m.Kind != budgetModel.KindExpense {
			continue
		}
		category := m.Category
		if strings.TrimSpace(category) == "" {
			category = UNCATEGORIZED_LABEL
		}
		if _, seen := totals[category]; !seen {
			totals[category] = decimal.Zero
			order = append(order, category)
		}
		if !isFinite(m.Amount) {
			poisoned[category] = true
			continue
		}
		totals[category] = totals[category].Add(decimal.NewFromFloat(m.Amount))
	}

	result := make([]CategoryTotal, 0, len(order))
	for _, category := range order {
		total := totals[category].InexactFloat64()
		if poisoned[category] {
			total = math.NaN()
		}
		result = append(result, CategoryTotal{Category: category, Total: total})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Total > result[j].Total
	})
	return result
}

func Summarize(movements []budgetModel.Movement, goals []budgetModel.Goal, topN int) Dashboard {
	income := TotalByKind(movements, budgetModel.KindIncome)
	expense := TotalByKind(movements, budgetModel.KindExpense)
	return Dashboard{
		TotalIncome:     income,
		TotalExpense:    expense,
		Balance:         income - expense,
		SpendByCategory: SpendByCategory(movements),
		Goals:           SummarizeGoals(goals),
		TopGoals:        TopGoals(goals, topN),
	}
}
