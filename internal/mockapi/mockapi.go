// Package mockapi answers API calls in-process when api.use_mock is set.
//
// It is an http.RoundTripper so the real client protocol, including the 401
// refresh-and-replay path, runs unchanged against canned data.
package mockapi

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"golang.org/x/exp/slices"
	"io"
	"log/slog"
	"net/http"
	"quickcommerce/internal/model"
	"quickcommerce/internal/token"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	WrongEmail   = "wrong@example.com"
	TestEmail    = "test@example.com"
	DefaultDelay = 500 * time.Millisecond
)

var DefaultUser = model.User{ID: "1", Name: "Test", Email: TestEmail}

var protectedPaths = []string{
	"/insights/summary",
	"/insights/heatmap",
	"/insights/trends",
	"/settings/profile",
	"/purchases/upload-csv",
}

type account struct {
	user     model.User
	password string
}

type Transport struct {
	log    *slog.Logger
	tokens *token.JWTManager
	delay  time.Duration

	mu       sync.Mutex
	accounts map[string]account
	profiles map[model.UserID]model.Profile
	nextID   int
	uploaded int
}

type Option func(*Transport)

func WithDelay(d time.Duration) Option {
	return func(t *Transport) { t.delay = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(t *Transport) { t.log = log }
}

func New(tokens *token.JWTManager, opts ...Option) *Transport {
	t := &Transport{
		log:      slog.Default(),
		tokens:   tokens,
		delay:    DefaultDelay,
		accounts: map[string]account{TestEmail: {user: DefaultUser}},
		profiles: make(map[model.UserID]model.Profile),
		nextID:   2,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := sleep(req.Context(), t.delay); err != nil {
		return nil, err
	}

	t.log.Debug("mock api handling request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path))

	path := req.URL.Path
	switch {
	case req.Method == http.MethodPost && path == "/auth/login":
		return t.login(req)
	case req.Method == http.MethodPost && path == "/auth/register":
		return t.register(req)
	case req.Method == http.MethodPost && path == "/auth/refresh":
		return t.refresh(req)
	case slices.Contains(protectedPaths, path):
		user, ok := t.authorize(req)
		if !ok {
			return errorResponse(req, http.StatusUnauthorized, "Token expired or invalid"), nil
		}
		return t.protected(req, user)
	}

	return jsonResponse(req, http.StatusOK, map[string]string{
		"message": "Mock response - not specifically handled",
		"path":    path,
		"method":  req.Method,
	}), nil
}

func (t *Transport) login(req *http.Request) (*http.Response, error) {
	var in model.LoginRequest
	if err := decodeBody(req, &in); err != nil {
		return errorResponse(req, http.StatusBadRequest, "Invalid request body"), nil
	}
	if strings.EqualFold(in.Email, WrongEmail) {
		return errorResponse(req, http.StatusUnauthorized, "Invalid credentials"), nil
	}

	user := DefaultUser
	t.mu.Lock()
	acc, ok := t.accounts[strings.ToLower(in.Email)]
	t.mu.Unlock()
	if ok {
		if acc.password != "" && acc.password != in.Password {
			return errorResponse(req, http.StatusUnauthorized, "Invalid credentials"), nil
		}
		user = acc.user
	}

	return t.issue(req, user, "")
}

func (t *Transport) register(req *http.Request) (*http.Response, error) {
	var in model.RegisterRequest
	if err := decodeBody(req, &in); err != nil {
		return errorResponse(req, http.StatusBadRequest, "Invalid request body"), nil
	}
	if in.Email == "" || in.Password == "" {
		return errorResponse(req, http.StatusBadRequest, "Email and password are required"), nil
	}

	key := strings.ToLower(in.Email)

	t.mu.Lock()
	if _, exists := t.accounts[key]; exists {
		t.mu.Unlock()
		return errorResponse(req, http.StatusConflict, "User already exists"), nil
	}
	user := model.User{ID: model.UserID(strconv.Itoa(t.nextID)), Name: in.Name, Email: in.Email}
	t.nextID++
	t.accounts[key] = account{user: user, password: in.Password}
	t.mu.Unlock()

	return t.issue(req, user, "Mock register success")
}

func (t *Transport) refresh(req *http.Request) (*http.Response, error) {
	claims, err := t.tokens.VerifyRefreshToken(bearer(req))
	if err != nil {
		t.log.Debug("mock refresh rejected", slog.String("error", err.Error()))
		return errorResponse(req, http.StatusUnauthorized, "Invalid refresh token"), nil
	}

	user := token.UserFromClaims(claims)
	access, err := t.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("mockapi.refresh: %w", err)
	}
	return jsonResponse(req, http.StatusOK, model.AuthResponse{AccessToken: access, User: &user}), nil
}

func (t *Transport) issue(req *http.Request, user model.User, message string) (*http.Response, error) {
	const op = "mockapi.issue"

	access, err := t.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	refresh, err := t.tokens.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return jsonResponse(req, http.StatusOK, model.AuthResponse{
		Message:      message,
		AccessToken:  access,
		RefreshToken: refresh,
		User:         &user,
	}), nil
}

func (t *Transport) authorize(req *http.Request) (model.User, bool) {
	claims, err := t.tokens.VerifyAccessToken(bearer(req))
	if err != nil {
		return model.User{}, false
	}
	return token.UserFromClaims(claims), true
}

func (t *Transport) protected(req *http.Request, user model.User) (*http.Response, error) {
	switch req.URL.Path {
	case "/insights/summary":
		return jsonResponse(req, http.StatusOK, map[string]any{
			"total_spend":     4250.5,
			"avg_order_value": 354.21,
			"orders":          12,
			"budget":          map[string]any{"set": 6000, "percent": 71},
		}), nil
	case "/insights/heatmap":
		return jsonResponse(req, http.StatusOK, model.Heatmap{Matrix: Heatmap()}), nil
	case "/insights/trends":
		return jsonResponse(req, http.StatusOK, model.Trends{Points: []model.TrendPoint{
			{Period: "W1", Spend: 980},
			{Period: "W2", Spend: 1120},
			{Period: "W3", Spend: 1045},
			{Period: "W4", Spend: 1105.5},
		}}), nil
	case "/settings/profile":
		return t.profile(req, user)
	case "/purchases/upload-csv":
		return t.upload(req)
	}
	return errorResponse(req, http.StatusNotFound, "Not found"), nil
}

func (t *Transport) profile(req *http.Request, user model.User) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.profiles[user.ID]
	if !ok {
		current = model.Profile{ID: user.ID, Email: user.Email, Name: user.Name, WeeklyBudget: 1500}
	}

	switch req.Method {
	case http.MethodGet:
		return jsonResponse(req, http.StatusOK, current), nil
	case http.MethodPut:
		var in model.Profile
		if err := decodeBody(req, &in); err != nil {
			return errorResponse(req, http.StatusBadRequest, "Invalid request body"), nil
		}
		in.ID, in.Email = current.ID, current.Email
		if in.Name == "" {
			in.Name = current.Name
		}
		t.profiles[user.ID] = in
		return jsonResponse(req, http.StatusOK, in), nil
	}
	return errorResponse(req, http.StatusMethodNotAllowed, "Method not allowed"), nil
}

func (t *Transport) upload(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost {
		return errorResponse(req, http.StatusMethodNotAllowed, "Method not allowed"), nil
	}

	file, _, err := req.FormFile("file")
	if err != nil {
		return errorResponse(req, http.StatusBadRequest, "CSV file is required"), nil
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return errorResponse(req, http.StatusBadRequest, "CSV parse error"), nil
	}
	if len(records) == 0 {
		return errorResponse(req, http.StatusBadRequest, "CSV file is empty"), nil
	}

	header := records[0]
	result := model.UploadResult{Message: "Upload processed", Errors: []string{}}
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			result.Skipped++
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d: expected %d fields, got %d", i+2, len(header), len(rec)))
			continue
		}
		result.Inserted++
	}

	t.mu.Lock()
	t.uploaded += result.Inserted
	total := t.uploaded
	t.mu.Unlock()

	summary, _ := json.Marshal(map[string]int{"rows": len(records) - 1, "total_uploaded": total})
	result.Summary = summary
	return jsonResponse(req, http.StatusOK, result), nil
}

// Heatmap returns a fixed 7x24 spend matrix with evening and weekend peaks.
func Heatmap() [][]float64 {
	matrix := make([][]float64, 7)
	for day := range matrix {
		matrix[day] = make([]float64, 24)
		for hour := range matrix[day] {
			v := float64((day*37+hour*53)%120) + 20
			if hour >= 18 && hour <= 22 {
				v += 300
			}
			if day >= 5 {
				v += 120
			}
			matrix[day][hour] = v
		}
	}
	return matrix
}

func bearer(req *http.Request) string {
	return strings.TrimSpace(strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer "))
}

func decodeBody(req *http.Request, v any) error {
	if req.Body == nil {
		return errors.New("empty body")
	}
	defer req.Body.Close()
	return json.NewDecoder(req.Body).Decode(v)
}

func jsonResponse(req *http.Request, status int, v any) *http.Response {
	body, err := json.Marshal(v)
	if err != nil {
		body = []byte(`{"error":"mock encode failure"}`)
		status = http.StatusInternalServerError
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func errorResponse(req *http.Request, status int, message string) *http.Response {
	return jsonResponse(req, status, model.ErrorBody{Error: message, Status: status})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
