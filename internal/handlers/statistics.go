package handlers

import (
	"net/http"

	"finance-tracker/internal/models"
	"finance-tracker/internal/reports"

	"github.com/shopspring/decimal"
)

// DashboardViewModel is the data passed to the dashboard template.
type DashboardViewModel struct {
	Username   string
	Total      decimal.Decimal
	Categories []reports.CategoryTotal
	Recent     []models.Expense
}

// Dashboard renders the current-month summary and the most recent expenses.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	summary, err := h.reports.CurrentMonthSummary(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("current month summary failed", "error", err, "user_id", user.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	recent, err := h.reports.RecentExpenses(r.Context(), user.ID, reports.DefaultRecentLimit)
	if err != nil {
		h.logger.Error("recent expenses failed", "error", err, "user_id", user.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, "dashboard.html", DashboardViewModel{
		Username:   user.Username,
		Total:      summary.Total,
		Categories: summary.Categories(),
		Recent:     recent,
	})
}

// HistoryViewModel is the data passed to the history template.
type HistoryViewModel struct {
	History reports.History
}

// History renders per-month statistics over the last twelve months.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	history, err := h.reports.MonthlyHistory(r.Context(), user.ID, reports.HistoryWindowDays)
	if err != nil {
		h.logger.Error("monthly history failed", "error", err, "user_id", user.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, "history.html", HistoryViewModel{History: history})
}

// AnalyticsViewModel is the data passed to the analytics template.
type AnalyticsViewModel struct {
	Categories []reports.CategoryTotal
	Daily      []reports.DailyPoint
	Comparison []reports.MonthTotal
}

// Analytics renders the current month's category and daily breakdowns plus
// the six-month comparison.
func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	categories, err := h.reports.CategoryBreakdown(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("category breakdown failed", "error", err, "user_id", user.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	daily, err := h.reports.DailySeries(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("daily series failed", "error", err, "user_id", user.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	comparison, err := h.reports.MonthlyComparison(r.Context(), user.ID, reports.ComparisonMonths)
	if err != nil {
		h.logger.Error("monthly comparison failed", "error", err, "user_id", user.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, "analytics.html", AnalyticsViewModel{
		Categories: categories,
		Daily:      daily,
		Comparison: comparison,
	})
}
