package reports

import (
	"context"
	"testing"
	"time"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ReportsTestSuite runs the aggregation engine against an in-memory store
// with the clock pinned to 2024-03-15.
type ReportsTestSuite struct {
	suite.Suite
	ctx    context.Context
	db     *storage.DB
	engine *Engine
	user   *models.User
}

func (suite *ReportsTestSuite) SetupTest() {
	suite.ctx = context.Background()

	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db

	suite.engine = NewEngine(db)
	suite.engine.now = func() time.Time {
		return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	}

	user, err := db.CreateUser(suite.ctx, "alice", "hash")
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

func (suite *ReportsTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *ReportsTestSuite) add(amount, category, date string) {
	_, err := suite.db.CreateExpense(suite.ctx, suite.user.ID, decimal.RequireFromString(amount), category, "", date)
	require.NoError(suite.T(), err, "failed to create expense")
}

func (suite *ReportsTestSuite) addFor(userID int64, amount, category, date string) {
	_, err := suite.db.CreateExpense(suite.ctx, userID, decimal.RequireFromString(amount), category, "", date)
	require.NoError(suite.T(), err, "failed to create expense")
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (suite *ReportsTestSuite) TestCurrentMonthSummary_Scenario() {
	suite.add("10", "food", "2024-03-01")
	suite.add("20", "food", "2024-03-02")
	suite.add("5", "transit", "2024-03-02")

	summary, err := suite.engine.CurrentMonthSummary(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)

	assert.True(suite.T(), summary.Total.Equal(dec("35")), "total = %s", summary.Total)
	require.Len(suite.T(), summary.ByCategory, 2)
	assert.True(suite.T(), summary.ByCategory["food"].Equal(dec("30")))
	assert.True(suite.T(), summary.ByCategory["transit"].Equal(dec("5")))

	// Ordered view for rendering: descending total
	ordered := summary.Categories()
	require.Len(suite.T(), ordered, 2)
	assert.Equal(suite.T(), "food", ordered[0].Category)
	assert.Equal(suite.T(), "transit", ordered[1].Category)
}

func (suite *ReportsTestSuite) TestCurrentMonthSummary_ExcludesOtherMonthsAndOwners() {
	other, err := suite.db.CreateUser(suite.ctx, "bob", "hash")
	require.NoError(suite.T(), err)

	suite.add("10", "food", "2024-03-10")
	suite.add("99", "food", "2024-02-28") // previous month
	suite.addFor(other.ID, "50", "food", "2024-03-10")

	summary, err := suite.engine.CurrentMonthSummary(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), summary.Total.Equal(dec("10")), "total = %s", summary.Total)
}

func (suite *ReportsTestSuite) TestCurrentMonthSummary_Empty() {
	summary, err := suite.engine.CurrentMonthSummary(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), summary.Total.IsZero())
	assert.Empty(suite.T(), summary.ByCategory)
}

func (suite *ReportsTestSuite) TestRecentExpenses_LimitAndOrder() {
	suite.add("1", "food", "2024-03-01")
	suite.add("2", "food", "2024-03-03")
	suite.add("3", "food", "2024-03-03")
	suite.add("4", "food", "2024-03-02")

	recent, err := suite.engine.RecentExpenses(suite.ctx, suite.user.ID, 3)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), recent, 3)

	// date desc, id desc within 2024-03-03
	assert.True(suite.T(), recent[0].Amount.Equal(dec("3")))
	assert.True(suite.T(), recent[1].Amount.Equal(dec("2")))
	assert.True(suite.T(), recent[2].Amount.Equal(dec("4")))

	// Non-positive limit falls back to the default of 10
	all, err := suite.engine.RecentExpenses(suite.ctx, suite.user.ID, 0)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), all, 4)
}

func (suite *ReportsTestSuite) TestMonthlyHistory_Stats() {
	// February: 3 food, 1 transit; total 90, largest 50
	suite.add("10", "transit", "2024-02-05")
	suite.add("50", "food", "2024-02-10")
	suite.add("20", "food", "2024-02-15")
	suite.add("10", "food", "2024-02-20")
	// March: single expense
	suite.add("30", "rent", "2024-03-01")

	history, err := suite.engine.MonthlyHistory(suite.ctx, suite.user.ID, 365)
	require.NoError(suite.T(), err)

	require.Len(suite.T(), history.Months, 2)
	assert.Equal(suite.T(), "2024-03", history.Months[0].Month, "months should be newest first")
	assert.Equal(suite.T(), "2024-02", history.Months[1].Month)

	feb := history.Months[1]
	assert.True(suite.T(), feb.Total.Equal(dec("90")))
	assert.True(suite.T(), feb.Largest.Equal(dec("50")))
	assert.Equal(suite.T(), "food", feb.MostUsedCategory)
	// Always total/30, even though February 2024 has 29 days
	assert.True(suite.T(), feb.AveragePerDay.Equal(dec("90").Div(decimal.NewFromInt(30))),
		"averagePerDay = %s", feb.AveragePerDay)
	assert.True(suite.T(), feb.AveragePerDay.Equal(dec("3")))

	assert.True(suite.T(), history.TotalSpent.Equal(dec("120")))
	assert.Equal(suite.T(), 5, history.TotalTransactions)
}

func (suite *ReportsTestSuite) TestMonthlyHistory_MostUsedCategoryTieBreak() {
	// Two categories with two occurrences each. The feed order is date
	// descending, so "transit" (2024-02-20, 2024-02-15) reaches count 2
	// before "food" (2024-02-10, 2024-02-05) does.
	suite.add("1", "food", "2024-02-05")
	suite.add("1", "food", "2024-02-10")
	suite.add("1", "transit", "2024-02-15")
	suite.add("1", "transit", "2024-02-20")

	history, err := suite.engine.MonthlyHistory(suite.ctx, suite.user.ID, 365)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), history.Months, 1)
	assert.Equal(suite.T(), "transit", history.Months[0].MostUsedCategory)
}

func (suite *ReportsTestSuite) TestMonthlyHistory_WindowExcludesOldExpenses() {
	suite.add("10", "food", "2024-03-01")
	suite.add("99", "food", "2022-01-01") // far outside any window

	history, err := suite.engine.MonthlyHistory(suite.ctx, suite.user.ID, 365)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), history.Months, 1)
	assert.True(suite.T(), history.TotalSpent.Equal(dec("10")))
	assert.Equal(suite.T(), 1, history.TotalTransactions)
}

func (suite *ReportsTestSuite) TestMonthlyHistory_Empty() {
	history, err := suite.engine.MonthlyHistory(suite.ctx, suite.user.ID, 365)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), history.Months)
	assert.True(suite.T(), history.TotalSpent.IsZero())
	assert.Zero(suite.T(), history.TotalTransactions)
}

func (suite *ReportsTestSuite) TestCategoryBreakdown_Scenario() {
	suite.add("10", "food", "2024-03-01")
	suite.add("20", "food", "2024-03-02")
	suite.add("5", "transit", "2024-03-02")

	categories, err := suite.engine.CategoryBreakdown(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), categories, 2)

	assert.Equal(suite.T(), "food", categories[0].Category)
	assert.True(suite.T(), categories[0].Total.Equal(dec("30")))
	assert.Equal(suite.T(), 2, categories[0].Count)

	assert.Equal(suite.T(), "transit", categories[1].Category)
	assert.True(suite.T(), categories[1].Total.Equal(dec("5")))
	assert.Equal(suite.T(), 1, categories[1].Count)
}

func (suite *ReportsTestSuite) TestDailySeries_AscendingOnePointPerDay() {
	suite.add("5", "food", "2024-03-10")
	suite.add("10", "food", "2024-03-02")
	suite.add("20", "transit", "2024-03-02")

	series, err := suite.engine.DailySeries(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), series, 2)

	assert.Equal(suite.T(), "2024-03-02", series[0].Date)
	assert.True(suite.T(), series[0].Total.Equal(dec("30")))
	assert.Equal(suite.T(), "2024-03-10", series[1].Date)
	assert.True(suite.T(), series[1].Total.Equal(dec("5")))
}

func (suite *ReportsTestSuite) TestMonthlyComparison_SixEntriesWithZeros() {
	suite.add("40", "food", "2024-03-10")
	suite.add("25", "food", "2024-01-20")

	comparison, err := suite.engine.MonthlyComparison(suite.ctx, suite.user.ID, 6)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), comparison, 6, "always exactly monthsBack entries")

	// Walking back 30 days at a time from 2024-03-15
	labels := make([]string, len(comparison))
	for i, m := range comparison {
		labels[i] = m.Month
	}
	assert.Equal(suite.T(), []string{
		"March 2024", "February 2024", "January 2024",
		"December 2023", "November 2023", "October 2023",
	}, labels)

	assert.True(suite.T(), comparison[0].Total.Equal(dec("40")))
	assert.True(suite.T(), comparison[1].Total.IsZero(), "empty months contribute zero")
	assert.True(suite.T(), comparison[2].Total.Equal(dec("25")))
	for _, m := range comparison[3:] {
		assert.True(suite.T(), m.Total.IsZero())
	}
}

func (suite *ReportsTestSuite) TestMonthlyComparison_DefaultMonths() {
	comparison, err := suite.engine.MonthlyComparison(suite.ctx, suite.user.ID, 0)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), comparison, ComparisonMonths)
}

func TestReportsSuite(t *testing.T) {
	suite.Run(t, new(ReportsTestSuite))
}

func TestMostUsedCategory_FirstToReachMaxWins(t *testing.T) {
	expenses := []models.Expense{
		{Category: "a"},
		{Category: "b"},
		{Category: "b"},
		{Category: "a"},
	}
	// Both reach 2, but "b" got there first
	assert.Equal(t, "b", mostUsedCategory(expenses))
	assert.Equal(t, "", mostUsedCategory(nil))
}
