package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

const (
	WeeklyCalorieGoal = 17500
	WeeklyProteinGoal = 455
)

type Purchase struct {
	Name     string
	Quantity float64
	Amount   float64
	Date     time.Time
}

type Expiry struct {
	Purchase
	Known      bool
	ExpiresAt  time.Time
	DaysUntil  int
	Urgency    Urgency
	Suggestion string
}

func UrgencyFor(daysLeft int) Urgency {
	switch {
	case daysLeft <= 2:
		return UrgencyHigh
	case daysLeft <= 5:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// PredictExpiry estimates when each purchase goes off. Items missing from the
// catalogue are returned with Known unset.
func PredictExpiry(purchases []Purchase, now time.Time) []Expiry {
	out := make([]Expiry, 0, len(purchases))
	for _, p := range purchases {
		it, ok := Lookup(p.Name)
		if !ok {
			out = append(out, Expiry{Purchase: p})
			continue
		}

		bought := p.Date
		if bought.IsZero() {
			bought = now
		}
		expires := bought.AddDate(0, 0, it.ShelfLifeDays)
		days := int(math.Ceil(expires.Sub(now).Hours() / 24))

		out = append(out, Expiry{
			Purchase:   p,
			Known:      true,
			ExpiresAt:  expires,
			DaysUntil:  days,
			Urgency:    UrgencyFor(days),
			Suggestion: Suggestion(p.Name, days),
		})
	}
	return out
}

var suggestions = map[string]map[Urgency]string{
	"eggs": {
		UrgencyHigh:   "Use today! Make omelette or boiled eggs",
		UrgencyMedium: "Perfect for breakfast or baking this week",
		UrgencyLow:    "Stock is fresh, plan for next week",
	},
	"milk": {
		UrgencyHigh:   "Use today in smoothies, coffee or cereal",
		UrgencyMedium: "Good for daily use - cereals, tea, coffee",
		UrgencyLow:    "Fresh stock, no immediate need",
	},
	"chicken": {
		UrgencyHigh:   "Cook today! Great for curry or grilled dishes",
		UrgencyMedium: "Perfect for meals in next 2-3 days",
		UrgencyLow:    "Fresh chicken, plan meals accordingly",
	},
	"bread": {
		UrgencyHigh:   "Use today! Make toast, sandwiches or croutons",
		UrgencyMedium: "Good for lunches and snacks this week",
		UrgencyLow:    "Fresh bread available",
	},
	"bananas": {
		UrgencyHigh:   "Eat today! Perfect for smoothies or banana bread",
		UrgencyMedium: "Good for snacks or smoothies this week",
		UrgencyLow:    "Fresh bananas available",
	},
	"yogurt": {
		UrgencyHigh:   "Consume today! Great with fruits or in smoothies",
		UrgencyMedium: "Good for breakfast or snacks this week",
		UrgencyLow:    "Fresh yogurt, no rush",
	},
}

func Suggestion(name string, daysLeft int) string {
	if s, ok := suggestions[strings.ToLower(name)][UrgencyFor(daysLeft)]; ok {
		return s
	}
	return fmt.Sprintf("Use within %d days for best quality", daysLeft)
}

// ExpiringWithin keeps known items that expire in at most days.
func ExpiringWithin(items []Expiry, days int) []Expiry {
	var out []Expiry
	for _, it := range items {
		if it.Known && it.DaysUntil <= days {
			out = append(out, it)
		}
	}
	return out
}

type Nutrition struct {
	Calories    int
	Protein     int
	CalorieGoal int
	ProteinGoal int
}

func (n Nutrition) CalorieProgress() float64 {
	return float64(n.Calories) / float64(n.CalorieGoal) * 100
}

func (n Nutrition) ProteinProgress() float64 {
	return float64(n.Protein) / float64(n.ProteinGoal) * 100
}

func CalculateNutrition(purchases []Purchase) Nutrition {
	var calories, protein float64
	for _, p := range purchases {
		it, ok := Lookup(p.Name)
		if !ok || p.Quantity == 0 {
			continue
		}
		s := it.servings(p.Quantity)
		calories += it.CaloriesPerUnit * s
		protein += it.ProteinPerUnit * s
	}
	return Nutrition{
		Calories:    int(math.Round(calories)),
		Protein:     int(math.Round(protein)),
		CalorieGoal: WeeklyCalorieGoal,
		ProteinGoal: WeeklyProteinGoal,
	}
}

type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

type CartItem struct {
	Item     string
	Quantity float64
	Unit     string
	Priority Priority
	Reason   string
}

var weeklyNeeds = []struct {
	item   string
	amount float64
	unit   string
}{
	{"eggs", 14, "units"},
	{"milk", 3500, "ml"},
	{"bread", 21, "units"},
	{"chicken", 700, "g"},
	{"rice", 1050, "g"},
	{"bananas", 7, "units"},
	{"yogurt", 700, "g"},
}

// SmartCart lists what to buy this week given recent purchases. Items that
// are fully stocked are left out.
func SmartCart(history []Purchase) []CartItem {
	var cart []CartItem
	for _, need := range weeklyNeeds {
		toBuy := math.Max(0, need.amount-EstimateStock(need.item, history))
		if toBuy == 0 {
			continue
		}
		priority := PriorityLow
		if toBuy > need.amount*0.3 {
			priority = PriorityHigh
		}
		cart = append(cart, CartItem{
			Item:     need.item,
			Quantity: toBuy,
			Unit:     need.unit,
			Priority: priority,
			Reason:   "Based on your typical weekly usage",
		})
	}
	return cart
}

// EstimateStock assumes half of the latest purchase of name is left.
func EstimateStock(name string, history []Purchase) float64 {
	for _, p := range history {
		if strings.EqualFold(p.Name, name) {
			return math.Floor(p.Quantity * 0.5)
		}
	}
	return 0
}
