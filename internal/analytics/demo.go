package analytics

import (
	"strings"
	"time"
)

// DemoEmail is the showcase account that gets the demo dashboard.
const DemoEmail = "Kanishkmehto6518@gmail.com"

func IsDemoUser(email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), DemoEmail)
}

type DemoProfile struct {
	Name               string
	WeeklyBudget       float64
	HealthGoals        string
	DietaryPreferences []string
}

type DemoWeek struct {
	Profile         DemoProfile
	Spend           float64
	BudgetRemaining float64
	Purchases       []Purchase
}

// Demo returns the showcase week with purchase dates counted back from now.
func Demo(now time.Time) DemoWeek {
	day := func(back int) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -back)
	}

	return DemoWeek{
		Profile: DemoProfile{
			Name:               "Kanishk",
			WeeklyBudget:       1500,
			HealthGoals:        "Fitness & Nutrition",
			DietaryPreferences: []string{"high-protein", "balanced"},
		},
		Spend:           1420,
		BudgetRemaining: 80,
		Purchases: []Purchase{
			{Name: "eggs", Quantity: 12, Amount: 96, Date: day(0)},
			{Name: "milk", Quantity: 2000, Amount: 120, Date: day(0)},
			{Name: "chicken", Quantity: 500, Amount: 350, Date: day(1)},
			{Name: "bread", Quantity: 14, Amount: 70, Date: day(1)},
			{Name: "rice", Quantity: 1000, Amount: 80, Date: day(2)},
			{Name: "bananas", Quantity: 6, Amount: 48, Date: day(0)},
			{Name: "yogurt", Quantity: 500, Amount: 60, Date: day(1)},
		},
	}
}
