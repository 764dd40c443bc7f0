package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	appErrors "github.com/fatali-fataliyev/migasto/errors"
	authModel "github.com/fatali-fataliyev/migasto/internal/auth"
	budgetModel "github.com/fatali-fataliyev/migasto/internal/budget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fullStorage interface {
	budgetModel.Storage
	authModel.UserStorage
}

func backends(t *testing.T) map[string]func(t *testing.T) fullStorage {
	return map[string]func(t *testing.T) fullStorage{
		"inmemory": func(t *testing.T) fullStorage {
			return NewInMemoryStorage()
		},
		"sqlite": func(t *testing.T) fullStorage {
			db, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return NewSQLStorage(db, DialectSQLite)
		},
	}
}

func TestMovementLifecycle(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			list, err := s.ListMovements(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			first, err := s.SaveMovement(ctx, budgetModel.Movement{Kind: budgetModel.KindIncome, Category: "Sueldo", Amount: 20000, Date: "2024-05-01"})
			require.NoError(t, err)
			second, err := s.SaveMovement(ctx, budgetModel.Movement{Kind: budgetModel.KindExpense, Category: "Food", Amount: 5000, Date: "2024-05-02", Description: "super"})
			require.NoError(t, err)
			assert.Greater(t, second.ID, first.ID)

			updated, err := s.UpdateMovement(ctx, second.ID, func(m *budgetModel.Movement) error {
				m.Description = ""
				m.Amount = 0
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, second.ID, updated.ID)
			assert.Equal(t, 0.0, updated.Amount)
			assert.Equal(t, "", updated.Description)
			assert.Equal(t, "Food", updated.Category)

			list, err = s.ListMovements(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, first.ID, list[0].ID)
			assert.Equal(t, updated, list[1])

			require.NoError(t, s.DeleteMovement(ctx, second.ID))
			err = s.DeleteMovement(ctx, second.ID)
			assert.ErrorIs(t, err, appErrors.ErrNotFound)

			third, err := s.SaveMovement(ctx, budgetModel.Movement{Kind: budgetModel.KindExpense, Category: "Bus", Amount: 700, Date: "2024-05-03"})
			require.NoError(t, err)
			assert.Greater(t, third.ID, second.ID, "deleted ids must not be reused")
		})
	}
}

func TestUpdateMovementNotFound(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			_, err := s.UpdateMovement(context.Background(), 999, func(m *budgetModel.Movement) error { return nil })
			assert.ErrorIs(t, err, appErrors.ErrNotFound)
		})
	}
}

func TestUpdateRejectedLeavesRecordUnchanged(t *testing.T) {
	rejected := appErrors.New(appErrors.ErrInvalidInput, "rejected")

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			saved, err := s.SaveGoal(ctx, budgetModel.Goal{Name: "Viaje", TargetAmount: 1000, CurrentAmount: 250})
			require.NoError(t, err)

			_, err = s.UpdateGoal(ctx, saved.ID, func(g *budgetModel.Goal) error {
				g.CurrentAmount = 900
				return rejected
			})
			assert.True(t, errors.Is(err, appErrors.ErrInvalidInput))

			goals, err := s.ListGoals(ctx)
			require.NoError(t, err)
			require.Len(t, goals, 1)
			assert.Equal(t, 250.0, goals[0].CurrentAmount)
		})
	}
}

func TestGoalLifecycle(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			saved, err := s.SaveGoal(ctx, budgetModel.Goal{Name: "Viaje", TargetAmount: 1000, Deadline: "2025-01-01"})
			require.NoError(t, err)
			assert.NotZero(t, saved.ID)

			updated, err := s.UpdateGoal(ctx, saved.ID, func(g *budgetModel.Goal) error {
				g.CurrentAmount = 1000
				return nil
			})
			require.NoError(t, err)
			assert.True(t, updated.Completed())
			assert.Equal(t, "2025-01-01", updated.Deadline)

			require.NoError(t, s.DeleteGoal(ctx, saved.ID))
			assert.ErrorIs(t, s.DeleteGoal(ctx, saved.ID), appErrors.ErrNotFound)

			goals, err := s.ListGoals(ctx)
			require.NoError(t, err)
			assert.Empty(t, goals)
		})
	}
}

func TestUsers(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.GetUserByEmail(ctx, "ana@example.com")
			assert.ErrorIs(t, err, appErrors.ErrNotFound)

			saved, err := s.SaveUser(ctx, authModel.User{Name: "Ana", Email: "ana@example.com", PasswordHashed: "hash"})
			require.NoError(t, err)
			assert.NotZero(t, saved.ID)

			_, err = s.SaveUser(ctx, authModel.User{Name: "Other", Email: "ana@example.com", PasswordHashed: "hash2"})
			assert.ErrorIs(t, err, appErrors.ErrConflict)

			found, err := s.GetUserByEmail(ctx, "ana@example.com")
			require.NoError(t, err)
			assert.Equal(t, saved, found)
		})
	}
}

func TestConcurrentSavesGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStorage()

	const workers = 50
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := s.SaveMovement(ctx, budgetModel.Movement{Kind: budgetModel.KindExpense, Category: "x", Amount: 1, Date: "2024-01-01"})
			if err == nil {
				ids <- m.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}

func TestStorageType(t *testing.T) {
	assert.Equal(t, "inmemory", NewInMemoryStorage().GetStorageType())
	assert.Equal(t, DialectSQLite, NewSQLStorage(nil, DialectSQLite).GetStorageType())
}
