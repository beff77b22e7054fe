// Package analytics computes the food dashboard numbers: expiry, nutrition
// and a suggested weekly cart.
package analytics

import "strings"

type UnitType string

const (
	UnitPiece UnitType = "piece"
	UnitSlice UnitType = "slice"
	UnitML    UnitType = "ml"
	UnitGram  UnitType = "g"
)

// Item describes a known grocery. Calories and protein are per serving:
// one piece or slice, 250 ml, or 100 g.
type Item struct {
	ShelfLifeDays   int
	DailyUse        float64
	WeeklyUse       float64
	CaloriesPerUnit float64
	ProteinPerUnit  float64
	Category        string
	Unit            UnitType
}

var Catalogue = map[string]Item{
	"eggs":    {ShelfLifeDays: 21, DailyUse: 2, WeeklyUse: 14, CaloriesPerUnit: 70, ProteinPerUnit: 6, Category: "dairy", Unit: UnitPiece},
	"milk":    {ShelfLifeDays: 7, DailyUse: 250, WeeklyUse: 1750, CaloriesPerUnit: 60, ProteinPerUnit: 8, Category: "dairy", Unit: UnitML},
	"bread":   {ShelfLifeDays: 5, DailyUse: 4, WeeklyUse: 28, CaloriesPerUnit: 80, ProteinPerUnit: 3, Category: "bakery", Unit: UnitSlice},
	"chicken": {ShelfLifeDays: 3, DailyUse: 150, WeeklyUse: 1050, CaloriesPerUnit: 165, ProteinPerUnit: 31, Category: "meat", Unit: UnitGram},
	"rice":    {ShelfLifeDays: 365, DailyUse: 150, WeeklyUse: 1050, CaloriesPerUnit: 130, ProteinPerUnit: 2.7, Category: "grains", Unit: UnitGram},
	"bananas": {ShelfLifeDays: 7, DailyUse: 1, WeeklyUse: 7, CaloriesPerUnit: 105, ProteinPerUnit: 1.3, Category: "fruits", Unit: UnitPiece},
	"yogurt":  {ShelfLifeDays: 14, DailyUse: 100, WeeklyUse: 700, CaloriesPerUnit: 59, ProteinPerUnit: 10, Category: "dairy", Unit: UnitGram},
}

func Lookup(name string) (Item, bool) {
	it, ok := Catalogue[strings.ToLower(strings.TrimSpace(name))]
	return it, ok
}

// servings converts a purchased quantity to catalogue servings.
func (it Item) servings(quantity float64) float64 {
	switch it.Unit {
	case UnitML:
		return quantity / 250
	case UnitGram:
		return quantity / 100
	default:
		return quantity
	}
}
