package balance

import (
	"github.com/shopspring/decimal"

	"tripvault/db/db"
	"tripvault/libs/money"
)

type CategoryStat struct {
	Total      float64
	Count      int
	Percentage float64
}

type Statistics struct {
	Budget           float64
	Currency         string
	TotalExpenses    float64
	RemainingBudget  float64
	BudgetPercentage float64
	// Only categories with at least one expense are present.
	CategoryBreakdown map[db.Category]CategoryStat
}

// ComputeStatistics summarizes spending against the trip budget.
func ComputeStatistics(trip *db.Trip, expenses []db.Expense) Statistics {
	total := decimal.Zero
	perCategory := make(map[db.Category]decimal.Decimal)
	counts := make(map[db.Category]int)

	for _, e := range expenses {
		amount := decimal.NewFromFloat(e.Amount)
		total = total.Add(amount)
		perCategory[e.Category] = perCategory[e.Category].Add(amount)
		counts[e.Category]++
	}

	budget := decimal.NewFromFloat(trip.Budget.Total)
	totalExpenses := total.InexactFloat64()

	breakdown := make(map[db.Category]CategoryStat, len(perCategory))
	for category, sum := range perCategory {
		categoryTotal := sum.InexactFloat64()
		breakdown[category] = CategoryStat{
			Total:      categoryTotal,
			Count:      counts[category],
			Percentage: money.PercentOf(categoryTotal, totalExpenses),
		}
	}

	currency := trip.Budget.Currency
	if currency == "" {
		currency = db.DefaultCurrency
	}
	return Statistics{
		Budget:            trip.Budget.Total,
		Currency:          currency,
		TotalExpenses:     totalExpenses,
		RemainingBudget:   budget.Sub(total).InexactFloat64(),
		BudgetPercentage:  money.PercentOf(totalExpenses, trip.Budget.Total),
		CategoryBreakdown: breakdown,
	}
}
