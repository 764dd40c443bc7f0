package budget

import (
	"math"
	"strings"
)

type MovementKind string

const (
	KindExpense MovementKind = "gasto"
	KindIncome  MovementKind = "ingreso"
)

// ParseKind accepts the wire values and their English aliases.
func ParseKind(raw string) (MovementKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gasto", "expense":
		return KindExpense, true
	case "ingreso", "income":
		return KindIncome, true
	default:
		return "", false
	}
}

// REQUESTS START:

type MovementRequest struct {
	Kind        string
	Category    string
	Amount      *float64
	Date        string
	Description string
}

// MovementPatch holds the fields of a partial update. A nil field keeps
// the stored value; a non-nil zero value overwrites it.
type MovementPatch struct {
	Kind        *string
	Category    *string
	Amount      *float64
	Date        *string
	Description *string
}

type GoalRequest struct {
	Name          string
	TargetAmount  *float64
	CurrentAmount *float64
	Deadline      string
	Description   string
}

type GoalPatch struct {
	Name          *string
	TargetAmount  *float64
	CurrentAmount *float64
	Deadline      *string
	Description   *string
}

// REQUESTS END:

// MODELS:

type Movement struct {
	ID          int64
	Kind        MovementKind
	Category    string
	Amount      float64
	Date        string
	Description string
}

type Goal struct {
	ID            int64
	Name          string
	TargetAmount  float64
	CurrentAmount float64
	Deadline      string
	Description   string
}

// ProgressPercent is round(current/target*100), unclamped, or 0 without a target.
func (g Goal) ProgressPercent() int {
	if !(g.TargetAmount > 0) {
		return 0
	}
	return RoundHalfUp(g.CurrentAmount / g.TargetAmount * 100)
}

func (g Goal) Completed() bool {
	return g.TargetAmount > 0 && g.CurrentAmount >= g.TargetAmount
}

// RoundHalfUp rounds .5 towards positive infinity, the way the dashboard always has.
// Results saturate at the int32 range so huge ratios never wrap around.
func RoundHalfUp(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	rounded := math.Floor(f + 0.5)
	if rounded >= math.MaxInt32 {
		return math.MaxInt32
	}
	if rounded <= math.MinInt32 {
		return math.MinInt32
	}
	return int(rounded)
}
