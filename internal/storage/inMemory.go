package storage

import (
	"context"
	"sync"

	appErrors "github.com/fatali-fataliyev/migasto/errors"
	authModel "github.com/fatali-fataliyev/migasto/internal/auth"
	budgetModel "github.com/fatali-fataliyev/migasto/internal/budget"
)

// collection keeps items in insertion order, keyed by id.
type collection[T any] struct {
	lastID int64
	order  []int64
	items  map[int64]T
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{items: make(map[int64]T)}
}

func (c *collection[T]) insert(item func(id int64) T) T {
	c.lastID++
	created := item(c.lastID)
	c.items[c.lastID] = created
	c.order = append(c.order, c.lastID)
	return created
}

func (c *collection[T]) list() []T {
	result := make([]T, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.items[id])
	}
	return result
}

func (c *collection[T]) remove(id int64) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, orderedID := range c.order {
		if orderedID == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// InMemoryStorage is process-local and lost on restart.
type InMemoryStorage struct {
	mu             sync.Mutex
	movements      *collection[budgetModel.Movement]
	goals          *collection[budgetModel.Goal]
	users          *collection[authModel.User]
	userIDsByEmail map[string]int64
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		movements:      newCollection[budgetModel.Movement](),
		goals:          newCollection[budgetModel.Goal](),
		users:          newCollection[authModel.User](),
		userIDsByEmail: make(map[string]int64),
	}
}

func (inMem *InMemoryStorage) GetStorageType() string {
	return "inmemory"
}

func (inMem *InMemoryStorage) ListMovements(ctx context.Context) ([]budgetModel.Movement, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()
	return inMem.movements.list(), nil
}

func (inMem *InMemoryStorage) SaveMovement(ctx context.Context, m budgetModel.Movement) (budgetModel.Movement, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()
	return inMem.movements.insert(func(id int64) budgetModel.Movement {
		m.ID = id
		return m
	}), nil
}

func (inMem *InMemoryStorage) UpdateMovement(ctx context.Context, id int64, apply func(m *budgetModel.Movement) error) (budgetModel.Movement, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	current, ok := inMem.movements.items[id]
	if !ok {
		return budgetModel.Movement{}, errMovementNotFound
	}
	if err := apply(&current); err != nil {
		return budgetModel.Movement{}, err
	}
	current.ID = id
	inMem.movements.items[id] = current
	return current, nil
}

func (inMem *InMemoryStorage) DeleteMovement(ctx context.Context, id int64) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()
	if !inMem.movements.remove(id) {
		return errMovementNotFound
	}
	return nil
}

func (inMem *InMemoryStorage) ListGoals(ctx context.Context) ([]budgetModel.Goal, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()
	return inMem.goals.list(), nil
}

func (inMem *InMemoryStorage) SaveGoal(ctx context.Context, g budgetModel.Goal) (budgetModel.Goal, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()
	return inMem.goals.insert(func(id int64) budgetModel.Goal {
		g.ID = id
		return g
	}), nil
}

func (inMem *InMemoryStorage) UpdateGoal(ctx context.Context, id int64, apply func(g *budgetModel.Goal) error) (budgetModel.Goal, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	current, ok := inMem.goals.items[id]
	if !ok {
		return budgetModel.Goal{}, errGoalNotFound
	}
	if err := apply(&current); err != nil {
		return budgetModel.Goal{}, err
	}
	current.ID = id
	inMem.goals.items[id] = current
	return current, nil
}

func (inMem *InMemoryStorage) DeleteGoal(ctx context.Context, id int64) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()
	if !inMem.goals.remove(id) {
		return errGoalNotFound
	}
	return nil
}

func (inMem *InMemoryStorage) SaveUser(ctx context.Context, user authModel.User) (authModel.User, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	if _, taken := inMem.userIDsByEmail[user.Email]; taken {
		return authModel.User{}, errEmailTaken
	}
	saved := inMem.users.insert(func(id int64) authModel.User {
		user.ID = id
		return user
	})
	inMem.userIDsByEmail[saved.Email] = saved.ID
	return saved, nil
}

func (inMem *InMemoryStorage) GetUserByEmail(ctx context.Context, email string) (authModel.User, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	id, ok := inMem.userIDsByEmail[email]
	if !ok {
		return authModel.User{}, appErrors.New(appErrors.ErrNotFound, "user not found")
	}
	return inMem.users.items[id], nil
}
