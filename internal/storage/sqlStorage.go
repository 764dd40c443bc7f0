package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	appErrors "github.com/fatali-fataliyev/migasto/errors"
	authModel "github.com/fatali-fataliyev/migasto/internal/auth"
	budgetModel "github.com/fatali-fataliyev/migasto/internal/budget"
	"github.com/fatali-fataliyev/migasto/internal/contextutil"
	"github.com/fatali-fataliyev/migasto/logging"
	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

// --- INIT START --- //

// OpenMySQL creates the database when it is missing, waits for the server
// to answer and applies migrations.
func OpenMySQL(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	dbname := cfg.DBName
	if dbname == "" {
		return nil, fmt.Errorf("mysql dsn has no database name")
	}
	cfg.ParseTime = true

	adminCfg := cfg.Clone()
	adminCfg.DBName = ""

	logging.Logger.Info("Connecting to MySQL server for initialization...")
	adminDb, err := sql.Open("mysql", adminCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open admin mysql handle: %w", err)
	}
	defer adminDb.Close()

	connected := false
	for i := 0; i < 15; i++ {
		if err := adminDb.Ping(); err == nil {
			connected = true
			break
		}
		logging.Logger.Warnf("Database not ready, retrying... (%d/15)", i+1)
		time.Sleep(3 * time.Second)
	}
	if !connected {
		return nil, fmt.Errorf("database unreachable after multiple attempts")
	}

	createDbSql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci;", strings.ReplaceAll(dbname, "`", ""))
	if _, err := adminDb.Exec(createDbSql); err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	finalDsn := cfg.FormatDSN()
	logging.Logger.Info("Running migrations...")
	if err := runMigrations(DialectMySQL, finalDsn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sql.Open("mysql", finalDsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database handle: %w", err)
	}
	logging.Logger.Info("Connected to database successfully")
	return db, nil
}

// OpenSQLite opens (or creates) the database file and applies migrations.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := runMigrations(DialectSQLite, path); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time, sqlite would answer SQLITE_BUSY otherwise
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// --- INIT END --- //

type SQLStorage struct {
	db      *sql.DB
	dialect string
}

func NewSQLStorage(db *sql.DB, dialect string) *SQLStorage {
	return &SQLStorage{db: db, dialect: dialect}
}

func (s *SQLStorage) GetStorageType() string {
	return s.dialect
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// lockClause keeps concurrent updates of one row from overwriting each other.
func (s *SQLStorage) lockClause() string {
	if s.dialect == DialectMySQL {
		return " FOR UPDATE"
	}
	return ""
}

func (s *SQLStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func internalError(message string) error {
	return appErrors.New(appErrors.ErrInternal, message)
}

func (s *SQLStorage) ListMovements(ctx context.Context) ([]budgetModel.Movement, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, kind, category, amount, movement_date, description FROM movement ORDER BY id;"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to list movements in Storage.ListMovements() | Error: %v", traceID, err)
		return nil, internalError("Failed to get the movements.")
	}
	defer rows.Close()

	movements := []budgetModel.Movement{}
	for rows.Next() {
		var row dbMovement
		if err := rows.Scan(&row.ID, &row.Kind, &row.Category, &row.Amount, &row.Date, &row.Description); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to scan movement row in Storage.ListMovements() | Error: %v", traceID, err)
			return nil, internalError("Failed to get the movements.")
		}
		movements = append(movements, row.toModel())
	}
	if err := rows.Err(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to iterate movement rows in Storage.ListMovements() | Error: %v", traceID, err)
		return nil, internalError("Failed to get the movements.")
	}
	return movements, nil
}

func (s *SQLStorage) SaveMovement(ctx context.Context, m budgetModel.Movement) (budgetModel.Movement, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO movement (kind, category, amount, movement_date, description) VALUES (?, ?, ?, ?, ?);"
	res, err := s.db.ExecContext(ctx, query, string(m.Kind), m.Category, m.Amount, m.Date, m.Description)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to save movement in Storage.SaveMovement() | Error: %v", traceID, err)
		return budgetModel.Movement{}, internalError("Failed to save the movement, try again later.")
	}
	id, err := res.LastInsertId()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to read movement id in Storage.SaveMovement() | Error: %v", traceID, err)
		return budgetModel.Movement{}, internalError("Failed to save the movement, try again later.")
	}
	m.ID = id
	return m, nil
}

func (s *SQLStorage) UpdateMovement(ctx context.Context, id int64, apply func(m *budgetModel.Movement) error) (budgetModel.Movement, error) {
	traceID := contextutil.TraceIDFromContext(ctx)
	var updated budgetModel.Movement

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := "SELECT id, kind, category, amount, movement_date, description FROM movement WHERE id = ?" + s.lockClause() + ";"
		var row dbMovement
		err := tx.QueryRowContext(ctx, query, id).Scan(&row.ID, &row.Kind, &row.Category, &row.Amount, &row.Date, &row.Description)
		if errors.Is(err, sql.ErrNoRows) {
			return errMovementNotFound
		}
		if err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to read movement in Storage.UpdateMovement() | Error: %v", traceID, err)
			return internalError("Failed to update the movement.")
		}

		current := row.toModel()
		if err := apply(&current); err != nil {
			return err
		}
		current.ID = id

		query = "UPDATE movement SET kind = ?, category = ?, amount = ?, movement_date = ?, description = ? WHERE id = ?;"
		if _, err := tx.ExecContext(ctx, query, string(current.Kind), current.Category, current.Amount, current.Date, current.Description, id); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to update movement in Storage.UpdateMovement() | Error: %v", traceID, err)
			return internalError("Failed to update the movement.")
		}
		updated = current
		return nil
	})
	if err != nil {
		return budgetModel.Movement{}, err
	}
	return updated, nil
}

func (s *SQLStorage) DeleteMovement(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "movement", id, errMovementNotFound)
}

func (s *SQLStorage) ListGoals(ctx context.Context) ([]budgetModel.Goal, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, name, target_amount, current_amount, deadline, description FROM goal ORDER BY id;"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to list goals in Storage.ListGoals() | Error: %v", traceID, err)
		return nil, internalError("Failed to get the goals.")
	}
	defer rows.Close()

	goals := []budgetModel.Goal{}
	for rows.Next() {
		var row dbGoal
		if err := rows.Scan(&row.ID, &row.Name, &row.TargetAmount, &row.CurrentAmount, &row.Deadline, &row.Description); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to scan goal row in Storage.ListGoals() | Error: %v", traceID, err)
			return nil, internalError("Failed to get the goals.")
		}
		goals = append(goals, row.toModel())
	}
	if err := rows.Err(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to iterate goal rows in Storage.ListGoals() | Error: %v", traceID, err)
		return nil, internalError("Failed to get the goals.")
	}
	return goals, nil
}

func (s *SQLStorage) SaveGoal(ctx context.Context, g budgetModel.Goal) (budgetModel.Goal, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO goal (name, target_amount, current_amount, deadline, description) VALUES (?, ?, ?, ?, ?);"
	res, err := s.db.ExecContext(ctx, query, g.Name, g.TargetAmount, g.CurrentAmount, g.Deadline, g.Description)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to save goal in Storage.SaveGoal() | Error: %v", traceID, err)
		return budgetModel.Goal{}, internalError("Failed to save the goal, try again later.")
	}
	id, err := res.LastInsertId()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to read goal id in Storage.SaveGoal() | Error: %v", traceID, err)
		return budgetModel.Goal{}, internalError("Failed to save the goal, try again later.")
	}
	g.ID = id
	return g, nil
}

func (s *SQLStorage) UpdateGoal(ctx context.Context, id int64, apply func(g *budgetModel.Goal) error) (budgetModel.Goal, error) {
	traceID := contextutil.TraceIDFromContext(ctx)
	var updated budgetModel.Goal

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := "SELECT id, name, target_amount, current_amount, deadline, description FROM goal WHERE id = ?" + s.lockClause() + ";"
		var row dbGoal
		err := tx.QueryRowContext(ctx, query, id).Scan(&row.ID, &row.Name, &row.TargetAmount, &row.CurrentAmount, &row.Deadline, &row.Description)
		if errors.Is(err, sql.ErrNoRows) {
			return errGoalNotFound
		}
		if err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to read goal in Storage.UpdateGoal() | Error: %v", traceID, err)
			return internalError("Failed to update the goal.")
		}

		current := row.toModel()
		if err := apply(&current); err != nil {
			return err
		}
		current.ID = id

		query = "UPDATE goal SET name = ?, target_amount = ?, current_amount = ?, deadline = ?, description = ? WHERE id = ?;"
		if _, err := tx.ExecContext(ctx, query, current.Name, current.TargetAmount, current.CurrentAmount, current.Deadline, current.Description, id); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to update goal in Storage.UpdateGoal() | Error: %v", traceID, err)
			return internalError("Failed to update the goal.")
		}
		updated = current
		return nil
	})
	if err != nil {
		return budgetModel.Goal{}, err
	}
	return updated, nil
}

func (s *SQLStorage) DeleteGoal(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "goal", id, errGoalNotFound)
}

func (s *SQLStorage) deleteByID(ctx context.Context, table string, id int64, notFound error) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	result, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?;", id)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to delete from %s in Storage.deleteByID() | Error: %v", traceID, table, err)
		return internalError("Failed to delete the record.")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check %s delete status in Storage.deleteByID() | Error: %v", traceID, table, err)
		return internalError("Failed to delete the record.")
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func (s *SQLStorage) SaveUser(ctx context.Context, user authModel.User) (authModel.User, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO app_user (name, email, hashed_password) VALUES (?, ?, ?);"
	res, err := s.db.ExecContext(ctx, query, user.Name, user.Email, user.PasswordHashed)
	if err != nil {
		if isDuplicateKey(err) {
			return authModel.User{}, errEmailTaken
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to save user in Storage.SaveUser() | Error: %v", traceID, err)
		return authModel.User{}, internalError("Registration failed, try again later.")
	}
	id, err := res.LastInsertId()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to read user id in Storage.SaveUser() | Error: %v", traceID, err)
		return authModel.User{}, internalError("Registration failed, try again later.")
	}
	user.ID = id
	return user, nil
}

func (s *SQLStorage) GetUserByEmail(ctx context.Context, email string) (authModel.User, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, name, email, hashed_password FROM app_user WHERE email = ?;"
	var row dbUser
	err := s.db.QueryRowContext(ctx, query, email).Scan(&row.ID, &row.Name, &row.Email, &row.HashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return authModel.User{}, appErrors.New(appErrors.ErrNotFound, "user not found")
	}
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to get user by email in Storage.GetUserByEmail() | Error: %v", traceID, err)
		return authModel.User{}, internalError("Failed to check the user, try again later.")
	}
	return authModel.User{
		ID:             row.ID,
		Name:           row.Name,
		Email:          row.Email,
		PasswordHashed: row.HashedPassword,
	}, nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func (row dbMovement) toModel() budgetModel.Movement {
	return budgetModel.Movement{
		ID:          row.ID,
		Kind:        budgetModel.MovementKind(row.Kind),
		Category:    row.Category,
		Amount:      row.Amount,
		Date:        row.Date,
		Description: row.Description,
	}
}

func (row dbGoal) toModel() budgetModel.Goal {
	return budgetModel.Goal{
		ID:            row.ID,
		Name:          row.Name,
		TargetAmount:  row.TargetAmount,
		CurrentAmount: row.CurrentAmount,
		Deadline:      row.Deadline,
		Description:   row.Description,
	}
}
