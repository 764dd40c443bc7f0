package budget

import (
	"context"
	"fmt"
	"math"
	"strings"

	appErrors "github.com/fatali-fataliyev/migasto/errors"
	"github.com/fatali-fataliyev/migasto/internal/contextutil"
	"github.com/fatali-fataliyev/migasto/logging"
)

const (
	MAX_AMOUNT_LIMIT         = 999999999999999999.99
	MAX_CATEGORY_NAME_LENGTH = 255
	MAX_GOAL_NAME_LENGTH     = 255
	MAX_DATE_LENGTH          = 64
	MAX_DESCRIPTION_LENGTH   = 1000
)

type BudgetTracker struct {
	storage     Storage
	StorageType string
}

func NewBudgetTracker(s Storage) *BudgetTracker {
	return &BudgetTracker{
		storage:     s,
		StorageType: s.GetStorageType(),
	}
}

// Storage is the record store. Implementations assign ids from a
// per-collection counter that never goes back, and run the update
// callback atomically with respect to other writes.
type Storage interface {
	ListMovements(ctx context.Context) ([]Movement, error)
	SaveMovement(ctx context.Context, m Movement) (Movement, error)
	UpdateMovement(ctx context.Context, id int64, apply func(m *Movement) error) (Movement, error)
	DeleteMovement(ctx context.Context, id int64) error
	ListGoals(ctx context.Context) ([]Goal, error)
	SaveGoal(ctx context.Context, g Goal) (Goal, error)
	UpdateGoal(ctx context.Context, id int64, apply func(g *Goal) error) (Goal, error)
	DeleteGoal(ctx context.Context, id int64) error
	GetStorageType() string
}

func (bt *BudgetTracker) ListMovements(ctx context.Context) ([]Movement, error) {
	movements, err := bt.storage.ListMovements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, nil
}

func (bt *BudgetTracker) SaveMovement(ctx context.Context, req MovementRequest) (Movement, error) {
	if strings.TrimSpace(req.Kind) == "" || strings.TrimSpace(req.Category) == "" || req.Amount == nil || strings.TrimSpace(req.Date) == "" {
		return Movement{}, appErrors.New(appErrors.ErrInvalidInput, "tipo, categoria, monto y fecha son obligatorios")
	}
	kind, ok := ParseKind(req.Kind)
	if !ok {
		return Movement{}, invalidKind(req.Kind)
	}

	movement := Movement{
		Kind:        kind,
		Category:    req.Category,
		Amount:      *req.Amount,
		Date:        req.Date,
		Description: req.Description,
	}
	if err := validateMovement(movement); err != nil {
		return Movement{}, err
	}

	saved, err := bt.storage.SaveMovement(ctx, movement)
	if err != nil {
		return Movement{}, fmt.Errorf("failed to save movement: %w", err)
	}
	logging.Logger.Debugf("[TraceID=%s] | movement %d created", contextutil.TraceIDFromContext(ctx), saved.ID)
	return saved, nil
}

func (bt *BudgetTracker) UpdateMovement(ctx context.Context, id int64, patch MovementPatch) (Movement, error) {
	var kind MovementKind
	if patch.Kind != nil {
		parsed, ok := ParseKind(*patch.Kind)
		if !ok {
			return Movement{}, invalidKind(*patch.Kind)
		}
		kind = parsed
	}

	updated, err := bt.storage.UpdateMovement(ctx, id, func(m *Movement) error {
		if patch.Kind != nil {
			m.Kind = kind
		}
		if patch.Category != nil {
			m.Category = *patch.Category
		}
		if patch.Amount != nil {
			m.Amount = *patch.Amount
		}
		if patch.Date != nil {
			m.Date = *patch.Date
		}
		if patch.Description != nil {
			m.Description = *patch.Description
		}
		return validateMovement(*m)
	})
	if err != nil {
		return Movement{}, fmt.Errorf("failed to update movement %d: %w", id, err)
	}
	return updated, nil
}

func (bt *BudgetTracker) DeleteMovement(ctx context.Context, id int64) error {
	if err := bt.storage.DeleteMovement(ctx, id); err != nil {
		return fmt.Errorf("failed to delete movement %d: %w", id, err)
	}
	logging.Logger.Debugf("[TraceID=%s] | movement %d deleted", contextutil.TraceIDFromContext(ctx), id)
	return nil
}

func (bt *BudgetTracker) ListGoals(ctx context.Context) ([]Goal, error) {
	goals, err := bt.storage.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	return goals, nil
}

func (bt *BudgetTracker) SaveGoal(ctx context.Context, req GoalRequest) (Goal, error) {
	if strings.TrimSpace(req.Name) == "" || req.TargetAmount == nil {
		return Goal{}, appErrors.New(appErrors.ErrInvalidInput, "nombre y montoObjetivo son obligatorios")
	}
	if !(*req.TargetAmount > 0) {
		return Goal{}, appErrors.New(appErrors.ErrInvalidInput, "montoObjetivo debe ser mayor que 0")
	}

	goal := Goal{
		Name:         req.Name,
		TargetAmount: *req.TargetAmount,
		Deadline:     req.Deadline,
		Description:  req.Description,
	}
	if req.CurrentAmount != nil {
		goal.CurrentAmount = *req.CurrentAmount
	}
	if err := validateGoal(goal); err != nil {
		return Goal{}, err
	}

	saved, err := bt.storage.SaveGoal(ctx, goal)
	if err != nil {
		return Goal{}, fmt.Errorf("failed to save goal: %w", err)
	}
	logging.Logger.Debugf("[TraceID=%s] | goal %d created", contextutil.TraceIDFromContext(ctx), saved.ID)
	return saved, nil
}

func (bt *BudgetTracker) UpdateGoal(ctx context.Context, id int64, patch GoalPatch) (Goal, error) {
	updated, err := bt.storage.UpdateGoal(ctx, id, func(g *Goal) error {
		if patch.Name != nil {
			g.Name = *patch.Name
		}
		if patch.TargetAmount != nil {
			g.TargetAmount = *patch.TargetAmount
		}
		if patch.CurrentAmount != nil {
			g.CurrentAmount = *patch.CurrentAmount
		}
		if patch.Deadline != nil {
			g.Deadline = *patch.Deadline
		}
		if patch.Description != nil {
			g.Description = *patch.Description
		}
		return validateGoal(*g)
	})
	if err != nil {
		return Goal{}, fmt.Errorf("failed to update goal %d: %w", id, err)
	}
	return updated, nil
}

func (bt *BudgetTracker) DeleteGoal(ctx context.Context, id int64) error {
	if err := bt.storage.DeleteGoal(ctx, id); err != nil {
		return fmt.Errorf("failed to delete goal %d: %w", id, err)
	}
	logging.Logger.Debugf("[TraceID=%s] | goal %d deleted", contextutil.TraceIDFromContext(ctx), id)
	return nil
}

// Snapshot returns both collections for the dashboard.
func (bt *BudgetTracker) Snapshot(ctx context.Context) ([]Movement, []Goal, error) {
	movements, err := bt.ListMovements(ctx)
	if err != nil {
		return nil, nil, err
	}
	goals, err := bt.ListGoals(ctx)
	if err != nil {
		return nil, nil, err
	}
	return movements, goals, nil
}

func invalidKind(raw string) error {
	return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("tipo inválido: '%s', use 'gasto' o 'ingreso'", raw))
}

// validateMovement checks types and limits only. Empty strings are allowed
// here because an update may clear a field on purpose.
func validateMovement(m Movement) error {
	if m.Kind != KindExpense && m.Kind != KindIncome {
		return invalidKind(string(m.Kind))
	}
	if err := validateAmount("monto", m.Amount); err != nil {
		return err
	}
	if len(m.Category) > MAX_CATEGORY_NAME_LENGTH {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("categoria excede el máximo de %d caracteres", MAX_CATEGORY_NAME_LENGTH))
	}
	if len(m.Date) > MAX_DATE_LENGTH {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("fecha excede el máximo de %d caracteres", MAX_DATE_LENGTH))
	}
	if len(m.Description) > MAX_DESCRIPTION_LENGTH {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("descripcion excede el máximo de %d caracteres", MAX_DESCRIPTION_LENGTH))
	}
	return nil
}

func validateGoal(g Goal) error {
	if err := validateAmount("montoObjetivo", g.TargetAmount); err != nil {
		return err
	}
	if err := validateAmount("montoActual", g.CurrentAmount); err != nil {
		return err
	}
	if len(g.Name) > MAX_GOAL_NAME_LENGTH {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("nombre excede el máximo de %d caracteres", MAX_GOAL_NAME_LENGTH))
	}
	if len(g.Deadline) > MAX_DATE_LENGTH {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("fechaLimite excede el máximo de %d caracteres", MAX_DATE_LENGTH))
	}
	if len(g.Description) > MAX_DESCRIPTION_LENGTH {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("descripcion excede el máximo de %d caracteres", MAX_DESCRIPTION_LENGTH))
	}
	return nil
}

func validateAmount(field string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("%s debe ser un número", field))
	}
	if amount < 0 {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("%s no puede ser negativo", field))
	}
	if amount > MAX_AMOUNT_LIMIT {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("%s excede el límite de %.2f", field, MAX_AMOUNT_LIMIT))
	}
	return nil
}
