package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense represents a financial expense record. The date is kept as a plain
// ISO YYYY-MM-DD string; the storage layer rejects anything else on write, so
// lexicographic range and month-prefix filters stay sound.
type Expense struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
}

// MonthPrefix returns the YYYY-MM portion of the expense date.
func (e Expense) MonthPrefix() string {
	if len(e.Date) < 7 {
		return e.Date
	}
	return e.Date[:7]
}

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents a user session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
