// Package reports computes read-side spending aggregates over a user's
// expense history. It never mutates the store, and it trusts the user ID it
// is given; ownership is enforced at the HTTP boundary. Missing data yields
// zero or empty results, never an error.
package reports

import (
	"context"
	"sort"
	"time"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

const (
	// DefaultRecentLimit is the number of items RecentExpenses returns when
	// no limit is given.
	DefaultRecentLimit = 10
	// HistoryWindowDays is the default lookback window for MonthlyHistory.
	HistoryWindowDays = 365
	// ComparisonMonths is the default number of MonthlyComparison entries.
	ComparisonMonths = 6

	// Monthly averages divide by a fixed 30 days, not the month's actual day
	// count. February still divides by 30. Callers and views display it as
	// "per day" with that understanding.
	averageDayDivisor = 30

	// Comparison entries step back in fixed 30-day hops rather than calendar
	// months, so a label can occasionally repeat or skip near month edges.
	comparisonStepDays = 30
)

// Engine computes aggregates from fresh reads of the expense store.
type Engine struct {
	store *storage.DB
	now   func() time.Time
}

// NewEngine creates an aggregation engine backed by the given store.
func NewEngine(store *storage.DB) *Engine {
	return &Engine{store: store, now: time.Now}
}

// CategoryTotal is one category's slice of a month's spending.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// MonthSummary is the current month's spending overview.
type MonthSummary struct {
	Total      decimal.Decimal
	ByCategory map[string]decimal.Decimal
}

// Categories returns the summary's category totals ordered by descending
// total (category name ascending among equals) for deterministic rendering.
func (s MonthSummary) Categories() []CategoryTotal {
	out := make([]CategoryTotal, 0, len(s.ByCategory))
	for category, total := range s.ByCategory {
		out = append(out, CategoryTotal{Category: category, Total: total})
	}
	sortByTotalDesc(out)
	return out
}

// MonthStats describes one month inside a MonthlyHistory window.
type MonthStats struct {
	// Month is the YYYY-MM label.
	Month            string
	Total            decimal.Decimal
	AveragePerDay    decimal.Decimal
	Largest          decimal.Decimal
	MostUsedCategory string
	Expenses         []models.Expense
}

// History is the result of MonthlyHistory: per-month stats plus totals
// across the whole window.
type History struct {
	// Months is ordered newest first.
	Months            []MonthStats
	TotalSpent        decimal.Decimal
	TotalTransactions int
}

// DailyPoint is one day's total inside DailySeries.
type DailyPoint struct {
	Date  string
	Total decimal.Decimal
}

// MonthTotal is one entry of MonthlyComparison.
type MonthTotal struct {
	// Month is a display label such as "March 2024".
	Month string
	Total decimal.Decimal
}

// CurrentMonthSummary sums the user's expenses carrying the current YYYY-MM
// date prefix, in total and per category.
func (e *Engine) CurrentMonthSummary(ctx context.Context, userID int64) (MonthSummary, error) {
	expenses, err := e.store.ExpensesByMonth(ctx, userID, e.currentMonth())
	if err != nil {
		return MonthSummary{}, err
	}
	return summarize(expenses), nil
}

// RecentExpenses returns the user's most recent expenses, date descending
// with most recently entered first among same-date items. A non-positive
// limit falls back to DefaultRecentLimit.
func (e *Engine) RecentExpenses(ctx context.Context, userID int64, limit int) ([]models.Expense, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return e.store.RecentExpenses(ctx, userID, limit)
}

// MonthlyHistory groups the user's expenses from the past windowDays days by
// calendar month and computes per-month statistics. A non-positive window
// falls back to HistoryWindowDays.
func (e *Engine) MonthlyHistory(ctx context.Context, userID int64, windowDays int) (History, error) {
	if windowDays <= 0 {
		windowDays = HistoryWindowDays
	}
	now := e.now()
	from := now.AddDate(0, 0, -windowDays).Format("2006-01-02")
	to := now.Format("2006-01-02")

	expenses, err := e.store.ExpensesInRange(ctx, userID, from, to)
	if err != nil {
		return History{}, err
	}
	return buildHistory(expenses), nil
}

// CategoryBreakdown returns the current month's per-category totals and
// counts, ordered by descending total.
func (e *Engine) CategoryBreakdown(ctx context.Context, userID int64) ([]CategoryTotal, error) {
	expenses, err := e.store.ExpensesByMonth(ctx, userID, e.currentMonth())
	if err != nil {
		return nil, err
	}
	return breakdown(expenses), nil
}

// DailySeries returns the current month's per-day totals, date ascending,
// one point per day that has at least one expense.
func (e *Engine) DailySeries(ctx context.Context, userID int64) ([]DailyPoint, error) {
	expenses, err := e.store.ExpensesByMonth(ctx, userID, e.currentMonth())
	if err != nil {
		return nil, err
	}
	return dailySeries(expenses), nil
}

// MonthlyComparison returns exactly monthsBack entries, most recent first.
// Entry i takes its month from now minus 30*i days and sums expenses whose
// stored month prefix matches; months with no expenses contribute zero.
// A non-positive monthsBack falls back to ComparisonMonths.
func (e *Engine) MonthlyComparison(ctx context.Context, userID int64, monthsBack int) ([]MonthTotal, error) {
	if monthsBack <= 0 {
		monthsBack = ComparisonMonths
	}

	now := e.now()
	out := make([]MonthTotal, 0, monthsBack)
	for i := 0; i < monthsBack; i++ {
		month := now.AddDate(0, 0, -comparisonStepDays*i)

		expenses, err := e.store.ExpensesByMonth(ctx, userID, month.Format("2006-01"))
		if err != nil {
			return nil, err
		}

		total := decimal.Zero
		for _, exp := range expenses {
			total = total.Add(exp.Amount)
		}
		out = append(out, MonthTotal{Month: month.Format("January 2006"), Total: total})
	}
	return out, nil
}

func (e *Engine) currentMonth() string {
	return e.now().Format("2006-01")
}

func summarize(expenses []models.Expense) MonthSummary {
	s := MonthSummary{Total: decimal.Zero, ByCategory: make(map[string]decimal.Decimal)}
	for _, exp := range expenses {
		s.Total = s.Total.Add(exp.Amount)
		s.ByCategory[exp.Category] = s.ByCategory[exp.Category].Add(exp.Amount)
	}
	return s
}

// buildHistory expects expenses ordered date descending: month buckets come
// out newest first, and the most-used-category tie-break ("first category to
// reach the top count") is applied in that feed order.
func buildHistory(expenses []models.Expense) History {
	h := History{TotalSpent: decimal.Zero}

	byMonth := make(map[string]int)
	for _, exp := range expenses {
		month := exp.MonthPrefix()
		idx, ok := byMonth[month]
		if !ok {
			idx = len(h.Months)
			byMonth[month] = idx
			h.Months = append(h.Months, MonthStats{
				Month:   month,
				Total:   decimal.Zero,
				Largest: decimal.Zero,
			})
		}

		m := &h.Months[idx]
		m.Total = m.Total.Add(exp.Amount)
		if exp.Amount.GreaterThan(m.Largest) {
			m.Largest = exp.Amount
		}
		m.Expenses = append(m.Expenses, exp)

		h.TotalSpent = h.TotalSpent.Add(exp.Amount)
		h.TotalTransactions++
	}

	for i := range h.Months {
		m := &h.Months[i]
		m.AveragePerDay = m.Total.Div(decimal.NewFromInt(averageDayDivisor))
		m.MostUsedCategory = mostUsedCategory(m.Expenses)
	}
	return h
}

// mostUsedCategory returns the category with the highest occurrence count,
// ties going to whichever category reached that count first in input order.
func mostUsedCategory(expenses []models.Expense) string {
	counts := make(map[string]int)
	best := ""
	bestCount := 0
	for _, exp := range expenses {
		counts[exp.Category]++
		if counts[exp.Category] > bestCount {
			best = exp.Category
			bestCount = counts[exp.Category]
		}
	}
	return best
}

func breakdown(expenses []models.Expense) []CategoryTotal {
	byCategory := make(map[string]int)
	var out []CategoryTotal
	for _, exp := range expenses {
		idx, ok := byCategory[exp.Category]
		if !ok {
			idx = len(out)
			byCategory[exp.Category] = idx
			out = append(out, CategoryTotal{Category: exp.Category, Total: decimal.Zero})
		}
		out[idx].Total = out[idx].Total.Add(exp.Amount)
		out[idx].Count++
	}
	sortByTotalDesc(out)
	return out
}

func sortByTotalDesc(items []CategoryTotal) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Total.Equal(items[j].Total) {
			return items[i].Total.GreaterThan(items[j].Total)
		}
		return items[i].Category < items[j].Category
	})
}

func dailySeries(expenses []models.Expense) []DailyPoint {
	byDate := make(map[string]int)
	var out []DailyPoint
	for _, exp := range expenses {
		idx, ok := byDate[exp.Date]
		if !ok {
			idx = len(out)
			byDate[exp.Date] = idx
			out = append(out, DailyPoint{Date: exp.Date, Total: decimal.Zero})
		}
		out[idx].Total = out[idx].Total.Add(exp.Amount)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
