package model

import "encoding/json"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ErrorBody is the error envelope used by every endpoint.
type ErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

type UploadResult struct {
	Message  string          `json:"message"`
	Inserted int             `json:"inserted"`
	Skipped  int             `json:"skipped"`
	Errors   []string        `json:"errors"`
	Summary  json.RawMessage `json:"summary,omitempty"`
}

type Budget struct {
	Set     float64 `json:"set"`
	Percent float64 `json:"percent"`
}

type Summary struct {
	TotalSpend    float64 `json:"total_spend"`
	AvgOrderValue float64 `json:"avg_order_value"`
	Budget        *Budget `json:"budget,omitempty"`
}

// Heatmap holds spend per weekday (rows, Monday first) and hour (columns).
type Heatmap struct {
	Matrix [][]float64 `json:"matrix"`
}

type TrendPoint struct {
	Period string  `json:"period"`
	Spend  float64 `json:"spend"`
}

type Trends struct {
	Points []TrendPoint `json:"points"`
}

type Profile struct {
	ID                 UserID   `json:"id,omitempty"`
	Email              string   `json:"email,omitempty"`
	Name               string   `json:"name,omitempty"`
	WeeklyBudget       float64  `json:"weekly_budget,omitempty"`
	HealthGoals        string   `json:"health_goals,omitempty"`
	DietaryPreferences []string `json:"dietary_preferences,omitempty"`
}
