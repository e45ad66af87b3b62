package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"finance-tracker/internal/models"

	"github.com/shopspring/decimal"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Sentinel errors returned by the store.
var (
	// ErrDuplicateUsername is returned when a username is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidDate is returned when an expense date is not strict ISO YYYY-MM-DD.
	ErrInvalidDate = errors.New("date must be in YYYY-MM-DD format")
	// ErrInvalidAmount is returned when an expense amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := RunMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser creates a new user with the given username and password hash.
// Uniqueness is enforced by the users.username constraint; a violation is
// reported as ErrDuplicateUsername.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, passwordHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return db.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?",
		id,
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by username. The lookup is case-sensitive.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// CreateExpense inserts a new expense for a user and returns the stored record.
// The date must be strict ISO YYYY-MM-DD: month-prefix and range filters rely
// on lexicographic comparison, so malformed dates are rejected here rather
// than silently dropping out of every report.
func (db *DB) CreateExpense(ctx context.Context, userID int64, amount decimal.Decimal, category, description, date string) (*models.Expense, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, ErrInvalidDate
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO expenses (user_id, amount, category, description, date) VALUES (?, ?, ?, ?, ?)",
		userID, amount.String(), category, description, date,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetExpense(ctx, id)
}

// GetExpense retrieves a single expense by ID.
func (db *DB) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, user_id, amount, category, description, date FROM expenses WHERE id = ?",
		id,
	)
	e, err := scanExpense(row)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ExpensesByOwner retrieves all expenses for a user, ordered by date
// descending with newest-entered first among same-date rows.
func (db *DB) ExpensesByOwner(ctx context.Context, userID int64) ([]models.Expense, error) {
	return db.queryExpenses(ctx,
		"SELECT id, user_id, amount, category, description, date FROM expenses WHERE user_id = ? ORDER BY date DESC, id DESC",
		userID,
	)
}

// RecentExpenses retrieves the most recent expenses for a user, ordered by
// date descending, ties broken by id descending, truncated to limit.
func (db *DB) RecentExpenses(ctx context.Context, userID int64, limit int) ([]models.Expense, error) {
	return db.queryExpenses(ctx,
		"SELECT id, user_id, amount, category, description, date FROM expenses WHERE user_id = ? ORDER BY date DESC, id DESC LIMIT ?",
		userID, limit,
	)
}

// ExpensesByMonth retrieves a user's expenses whose date carries the given
// YYYY-MM prefix, in date then insertion order.
func (db *DB) ExpensesByMonth(ctx context.Context, userID int64, month string) ([]models.Expense, error) {
	return db.queryExpenses(ctx,
		"SELECT id, user_id, amount, category, description, date FROM expenses WHERE user_id = ? AND date LIKE ? ORDER BY date, id",
		userID, month+"%",
	)
}

// ExpensesInRange retrieves a user's expenses with from <= date <= to,
// ordered by date descending with insertion order preserved within a date.
// This is the feed order the reporting engine's tie-break rules depend on.
func (db *DB) ExpensesInRange(ctx context.Context, userID int64, from, to string) ([]models.Expense, error) {
	return db.queryExpenses(ctx,
		"SELECT id, user_id, amount, category, description, date FROM expenses WHERE user_id = ? AND date BETWEEN ? AND ? ORDER BY date DESC, id",
		userID, from, to,
	)
}

func (db *DB) queryExpenses(ctx context.Context, query string, args ...any) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (models.Expense, error) {
	var e models.Expense
	var amount string
	if err := row.Scan(&e.ID, &e.UserID, &amount, &e.Category, &e.Description, &e.Date); err != nil {
		return models.Expense{}, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return models.Expense{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	e.Amount = dec
	return e, nil
}

// CreateSession creates a new session for a user. Timestamps are stored in
// UTC so comparisons against CURRENT_TIMESTAMP behave in any server timezone.
func (db *DB) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, userID, expiresAt.UTC(), time.Now().UTC(),
	)
	return err
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// ValidateSession checks if a session token is valid and returns the associated user.
func (db *DB) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	info, err := db.ValidateSessionWithInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	return info.User, nil
}

// ValidateSessionWithInfo checks if a session token is valid and returns session details.
func (db *DB) ValidateSessionWithInfo(ctx context.Context, token string) (*SessionInfo, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.password_hash, u.created_at, s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > CURRENT_TIMESTAMP
	`, token)

	var u models.User
	var lastActivity, expiresAt time.Time
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &lastActivity, &expiresAt); err != nil {
		return nil, err
	}
	return &SessionInfo{
		User:         &u,
		LastActivity: lastActivity,
		ExpiresAt:    expiresAt,
	}, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		time.Now().UTC(), newExpiresAt.UTC(), token,
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions.
func (db *DB) CleanExpiredSessions(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= CURRENT_TIMESTAMP")
	return err
}
