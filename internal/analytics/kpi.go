package analytics

import (
	"fmt"
	"quickcommerce/internal/model"
	"strconv"
)

type KPI struct {
	Title string
	Value string
}

func rupees(v float64) string {
	return "₹" + strconv.FormatFloat(v, 'f', -1, 64)
}

// SummaryKPIs renders the regular dashboard tiles.
func SummaryKPIs(s model.Summary) []KPI {
	budget := "Not set"
	if s.Budget != nil && s.Budget.Set != 0 {
		budget = fmt.Sprintf("%s (%s%%)", rupees(s.Budget.Set), strconv.FormatFloat(s.Budget.Percent, 'f', -1, 64))
	}
	return []KPI{
		{Title: "Total this month", Value: rupees(s.TotalSpend)},
		{Title: "Avg order", Value: rupees(s.AvgOrderValue)},
		{Title: "Budget", Value: budget},
	}
}

// DemoKPIs renders the showcase tiles.
func DemoKPIs(week DemoWeek) []KPI {
	n := CalculateNutrition(week.Purchases)
	return []KPI{
		{Title: "Weekly Spend", Value: rupees(week.Spend)},
		{Title: "Budget Left", Value: rupees(week.BudgetRemaining)},
		{Title: "Calories", Value: fmt.Sprintf("%.1fk", float64(n.Calories)/1000)},
		{Title: "Protein", Value: fmt.Sprintf("%dg", n.Protein)},
	}
}
