//go:build pact
// +build pact

package consumer_test

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quickcommerce/internal/client"
	"quickcommerce/internal/model"
	"quickcommerce/internal/services/auth"
	"quickcommerce/internal/services/insights"
	"quickcommerce/internal/session"
	"quickcommerce/internal/storage/memory"

	pactconsumer "github.com/pact-foundation/pact-go/v2/consumer"
	pactlog "github.com/pact-foundation/pact-go/v2/log"
	"github.com/pact-foundation/pact-go/v2/matchers"
	"github.com/stretchr/testify/require"
)

const (
	consumerName = "quickcommerce-cli"
	providerName = "quickcommerce-api"

	loginAccess  = "login-access"
	loginRefresh = "login-refresh"
	staleAccess  = "stale-access"
	freshAccess  = "fresh-access"
)

func pactDir(t *testing.T) string {
	t.Helper()
	if dir := os.Getenv("PACT_DIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Join(wd, "..", "pacts")
}

func TestInsightsAPIContract(t *testing.T) {
	pactlog.SetLogLevel("INFO")

	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: consumerName,
		Provider: providerName,
		PactDir:  pactDir(t),
		LogDir:   t.TempDir(),
	})
	require.NoError(t, err)

	jsonContentType := matchers.Regex("application/json; charset=utf-8", "application\\/json(?:;\\s?charset=utf-8)?")
	userMatcher := matchers.Map{
		"id":    matchers.Like("1"),
		"name":  matchers.Like("Test"),
		"email": matchers.Like("test@example.com"),
	}

	pact.AddInteraction().
		Given("user test@example.com exists").
		UponReceiving("a login with valid credentials").
		WithRequest("POST", auth.LoginPath, func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{
				"email":    matchers.S("test@example.com"),
				"password": matchers.S("secret"),
			})
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"access_token":  matchers.Like(loginAccess),
				"refresh_token": matchers.Like(loginRefresh),
				"user":          userMatcher,
			})
		})

	pact.AddInteraction().
		Given("user test@example.com has orders").
		UponReceiving("a summary request with a valid access token").
		WithRequest("GET", insights.SummaryPath, func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Authorization", matchers.S("Bearer "+loginAccess))
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"total_spend":     matchers.Like(4250.5),
				"avg_order_value": matchers.Like(354.21),
			})
		})

	pact.AddInteraction().
		Given("the access token has expired").
		UponReceiving("a trends request with an expired access token").
		WithRequest("GET", insights.TrendsPath, func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Authorization", matchers.S("Bearer "+staleAccess))
		}).
		WillRespondWith(http.StatusUnauthorized, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{"error": matchers.Like("Token expired or invalid")})
		})

	pact.AddInteraction().
		Given("the refresh token is valid").
		UponReceiving("a token refresh").
		WithRequest("POST", client.RefreshPath, func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Authorization", matchers.S("Bearer "+loginRefresh))
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"access_token": matchers.S(freshAccess),
				"user":         userMatcher,
			})
		})

	pact.AddInteraction().
		Given("user test@example.com has orders").
		UponReceiving("a trends request with a refreshed access token").
		WithRequest("GET", insights.TrendsPath, func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Authorization", matchers.S("Bearer "+freshAccess))
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"points": matchers.EachLike(matchers.Map{
					"period": matchers.Like("W1"),
					"spend":  matchers.Like(980.0),
				}, 1),
			})
		})

	err = pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		host := config.Host
		if host == "" {
			host = "localhost"
		}

		sessions := session.New(memory.New())
		api, err := client.New(fmt.Sprintf("http://%s:%d", host, config.Port), sessions,
			client.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := auth.New(api, sessions, nil).Login(ctx, "test@example.com", "secret"); err != nil {
			return fmt.Errorf("login: %w", err)
		}

		svc := insights.New(api, nil)
		if _, err := svc.Summary(ctx); err != nil {
			return fmt.Errorf("summary: %w", err)
		}

		if err := sessions.SetTokens(ctx, model.TokenPair{Access: staleAccess, Refresh: loginRefresh}); err != nil {
			return err
		}
		trends, err := svc.Trends(ctx)
		if err != nil {
			return fmt.Errorf("trends: %w", err)
		}
		if len(trends.Points) == 0 {
			return fmt.Errorf("expected trend points")
		}
		if got := sessions.Tokens(ctx); got == nil || got.Access != freshAccess || got.Refresh != loginRefresh {
			return fmt.Errorf("unexpected tokens after refresh: %+v", got)
		}
		return nil
	})
	require.NoError(t, err)
}
