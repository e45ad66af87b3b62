package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"finance-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// ExpenseFormViewModel is the data passed to the add-expense form. On a
// validation failure the submitted values come back so the user does not
// retype them.
type ExpenseFormViewModel struct {
	Error       string
	Amount      string
	Category    string
	Description string
	Date        string
}

// AddExpenseForm renders the form to record a new expense.
func (h *Handlers) AddExpenseForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, "add_expense.html", ExpenseFormViewModel{
		Date: time.Now().Format("2006-01-02"),
	})
}

// AddExpense handles the expense form submission. Malformed input re-renders
// the form with a message instead of failing the request.
func (h *Handlers) AddExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.render(w, "add_expense.html", ExpenseFormViewModel{Error: "Invalid form submission"})
		return
	}

	vm := ExpenseFormViewModel{
		Amount:      strings.TrimSpace(r.FormValue("amount")),
		Category:    strings.TrimSpace(r.FormValue("category")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Date:        strings.TrimSpace(r.FormValue("date")),
	}

	amount, err := decimal.NewFromString(vm.Amount)
	if err != nil || !amount.IsPositive() {
		vm.Error = "Amount must be a positive number"
		h.render(w, "add_expense.html", vm)
		return
	}
	if vm.Category == "" {
		vm.Error = "Category is required"
		h.render(w, "add_expense.html", vm)
		return
	}
	if _, err := time.Parse("2006-01-02", vm.Date); err != nil {
		vm.Error = "Date must be in YYYY-MM-DD format"
		h.render(w, "add_expense.html", vm)
		return
	}

	if _, err := h.db.CreateExpense(r.Context(), user.ID, amount, vm.Category, vm.Description, vm.Date); err != nil {
		h.logger.Error("failed to create expense", "error", err, "user_id", user.ID)
		vm.Error = "An error occurred. Please try again."
		h.render(w, "add_expense.html", vm)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// APIExpenses returns all of the caller's expenses as JSON, newest first.
func (h *Handlers) APIExpenses(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	expenses, err := h.db.ExpensesByOwner(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list expenses", "error", err, "user_id", user.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(expenses); err != nil {
		h.logger.Error("failed to encode expenses", "error", err)
	}
}
