package storage

import (
	appErrors "github.com/fatali-fataliyev/migasto/errors"
)

var (
	errMovementNotFound = appErrors.New(appErrors.ErrNotFound, "Movimiento no encontrado")
	errGoalNotFound     = appErrors.New(appErrors.ErrNotFound, "Meta no encontrada")
	errEmailTaken       = appErrors.New(appErrors.ErrConflict, "el email ya está registrado")
)

type dbMovement struct {
	ID          int64
	Kind        string
	Category    string
	Amount      float64
	Date        string
	Description string
}

type dbGoal struct {
	ID            int64
	Name          string
	TargetAmount  float64
	CurrentAmount float64
	Deadline      string
	Description   string
}

type dbUser struct {
	ID             int64
	Name           string
	Email          string
	HashedPassword string
}
