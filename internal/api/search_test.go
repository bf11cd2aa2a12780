package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	jwtv4 "github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/leadscout/internal/config"
	"github.com/careloop/leadscout/internal/exa"
	"github.com/careloop/leadscout/internal/llm"
	"github.com/careloop/leadscout/internal/models"
	"github.com/careloop/leadscout/internal/notify"
	"github.com/careloop/leadscout/internal/parser"
	"github.com/careloop/leadscout/internal/ratelimit"
	"github.com/careloop/leadscout/internal/store"
)

type mockProvider struct {
	results   []exa.Result
	items     []exa.WebsetItem
	searchErr error
	itemsErr  error
	lastQuery string
}

func (m *mockProvider) Search(_ context.Context, query string) ([]exa.Result, error) {
	m.lastQuery = query
	return m.results, m.searchErr
}

func (m *mockProvider) ListItems(_ context.Context, _ string) ([]exa.WebsetItem, error) {
	return m.items, m.itemsErr
}

type identityExpander struct{}

func (identityExpander) Expand(_ context.Context, rawQuery string) string { return rawQuery }

type fixedScorer struct {
	scores map[int64]llm.ScoreResult
}

func (f fixedScorer) Score(_ context.Context, _ []llm.LeadSummary, _ string) map[int64]llm.ScoreResult {
	return f.scores
}

type testEnv struct {
	srv      *Server
	app      *fiber.App
	mock     sqlmock.Sqlmock
	provider *mockProvider
	sink     *notify.MockSink
	redis    *miniredis.Miniredis
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{}
	cfg.Search = config.SearchConfig{
		RateLimit:          10,
		RateLimitWindow:    time.Minute,
		DefaultCreditLimit: 10,
	}
	cfg.JWT.Secret = "test-secret"

	provider := &mockProvider{}
	sink := &notify.MockSink{}

	srv := &Server{
		cfg:       cfg,
		store:     store.New(sqlx.NewDb(mockDB, "sqlmock")),
		limiter:   ratelimit.New(rdb, cfg.Search.RateLimit, cfg.Search.RateLimitWindow),
		provider:  provider,
		expander:  identityExpander{},
		scorer:    fixedScorer{},
		extractor: parser.NewExaWebsetExtractor(),
		notifier:  notify.NewNotifier(sink),
	}

	app := fiber.New()
	app.Post("/api/search", authAs("user-1"), srv.handleSearch)
	app.Post("/api/webhooks/exa", srv.handleExaWebhook)
	srv.app = app

	return &testEnv{srv: srv, app: app, mock: mock, provider: provider, sink: sink, redis: mr}
}

// authAs stands in for the JWT middleware, which stores the parsed token on
// the request context.
func authAs(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", &jwtv4.Token{Claims: jwtv4.MapClaims{"sub": userID}})
		return c.Next()
	}
}

func postJSON(t *testing.T, app *fiber.App, path string, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func subscriptionRows(limit, used int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "plan", "credits_limit", "credits_used", "created_at", "updated_at"}).
		AddRow("sub-1", "user-1", "pro", limit, used, now, now)
}

func profileResult(i int, name string) exa.Result {
	return exa.Result{
		ID:    fmt.Sprintf("res_%d", i),
		URL:   fmt.Sprintf("https://www.linkedin.com/in/profile-%d", i),
		Title: name + " | ICU Nurse at Mercy Hospital",
		Text:  "Critical care RN with BLS and ACLS.",
		Score: 0.9,
	}
}

func TestSearchStopsAtCreditBudget(t *testing.T) {
	env := setupTestServer(t)

	// 3 credits left, 5 parseable results: exactly 3 leads may be written.
	env.provider.results = []exa.Result{
		profileResult(1, "Amy Chen"),
		profileResult(2, "Ben Diaz"),
		profileResult(3, "Cara Evans"),
		profileResult(4, "Dan Fox"),
		profileResult(5, "Eve Gray"),
	}

	env.mock.ExpectQuery(`SELECT .+ FROM subscriptions`).
		WithArgs("user-1").
		WillReturnRows(subscriptionRows(5, 2))
	for i := 1; i <= 3; i++ {
		env.mock.ExpectQuery(`INSERT INTO leads`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(i)))
	}
	env.mock.ExpectQuery(`UPDATE subscriptions SET credits_used`).
		WithArgs(3, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits_used"}).AddRow(5))
	env.mock.ExpectExec(`INSERT INTO credit_usage`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp := postJSON(t, env.app, "/api/search", `{"query":"ICU nurse in Denver"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["leads_found"])
	assert.Equal(t, float64(0), body["leads_skipped"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestSearchDeduplicatesWithinCampaign(t *testing.T) {
	env := setupTestServer(t)
	campaignID := uuid.New()

	env.provider.results = []exa.Result{profileResult(1, "Amy Chen")}

	env.mock.ExpectQuery(`SELECT .+ FROM subscriptions`).
		WithArgs("user-1").
		WillReturnRows(subscriptionRows(100, 0))
	env.mock.ExpectExec(`UPDATE campaigns SET status`).
		WithArgs(models.CampaignStatusSearching, campaignID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Rediscovery: the campaign-scoped lookup hits, so the row is updated in
	// place instead of inserted.
	now := time.Now()
	env.mock.ExpectQuery(`SELECT .+ FROM leads WHERE .+ linkedin_url`).
		WithArgs("user-1", campaignID, "https://www.linkedin.com/in/profile-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "campaign_id", "name", "title", "company", "location",
			"industry", "email", "linkedin_url", "profile_data", "status", "created_at", "updated_at",
		}).AddRow(
			int64(7), "user-1", campaignID.String(), "Amy Chen", "Nurse", "Mercy", "",
			"", nil, "https://www.linkedin.com/in/profile-1", []byte(`{}`), "contacted", now, now,
		))
	env.mock.ExpectExec(`UPDATE leads SET name`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	env.mock.ExpectQuery(`UPDATE subscriptions SET credits_used`).
		WithArgs(1, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits_used"}).AddRow(1))
	env.mock.ExpectExec(`INSERT INTO credit_usage`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectExec(`UPDATE campaigns SET lead_count`).
		WithArgs(campaignID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectExec(`UPDATE campaigns SET status`).
		WithArgs(models.CampaignStatusActive, campaignID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp := postJSON(t, env.app, "/api/search", fmt.Sprintf(`{"query":"ICU nurse","campaignId":%q}`, campaignID))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["leads_found"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestSearchWithoutSubscriptionUsesDefaultBudget(t *testing.T) {
	env := setupTestServer(t)

	// 5 parseable profiles plus 2 noise results.
	env.provider.results = []exa.Result{
		profileResult(1, "Amy Chen"),
		profileResult(2, "Ben Diaz"),
		{ID: "res_x", URL: "https://www.linkedin.com/jobs/view/1", Title: "ICU Jobs"},
		profileResult(3, "Cara Evans"),
		profileResult(4, "Dan Fox"),
		{ID: "res_y", URL: "https://example.com/blog", Title: "Hiring nurses"},
		profileResult(5, "Eve Gray"),
	}

	env.mock.ExpectQuery(`SELECT .+ FROM subscriptions`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)
	for i := 1; i <= 5; i++ {
		env.mock.ExpectQuery(`INSERT INTO leads`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(i)))
	}
	env.mock.ExpectQuery(`UPDATE subscriptions SET credits_used`).
		WithArgs(5, "user-1").
		WillReturnError(sql.ErrNoRows)
	env.mock.ExpectExec(`INSERT INTO credit_usage`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp := postJSON(t, env.app, "/api/search", `{"query":"ICU nurse in Denver"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(5), body["leads_found"])
	assert.Equal(t, float64(2), body["leads_skipped"])
	assert.NoError(t, env.mock.ExpectationsWereMet())

	require.Len(t, env.sink.Events, 1)
	assert.Equal(t, notify.EventLeadsFound, env.sink.Events[0].Type)
	assert.Equal(t, "user-1", env.sink.Events[0].UserID)
	assert.Equal(t, float64(5), env.sink.Events[0].Data["count"])
}

func TestSearchPersistsScores(t *testing.T) {
	env := setupTestServer(t)
	env.srv.scorer = fixedScorer{scores: map[int64]llm.ScoreResult{
		1: {MatchScore: 85, LicenseMatch: true, CertMatch: true, ExperienceMatch: true, LocationMatch: false, Notes: "strong"},
	}}

	env.provider.results = []exa.Result{profileResult(1, "Amy Chen")}

	env.mock.ExpectQuery(`SELECT .+ FROM subscriptions`).
		WithArgs("user-1").
		WillReturnRows(subscriptionRows(100, 0))
	env.mock.ExpectQuery(`INSERT INTO leads`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	env.mock.ExpectExec(`UPDATE leads SET profile_data`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectQuery(`UPDATE subscriptions SET credits_used`).
		WithArgs(1, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits_used"}).AddRow(1))
	env.mock.ExpectExec(`INSERT INTO credit_usage`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp := postJSON(t, env.app, "/api/search", `{"query":"ICU nurse in Denver"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestSearchSkipsDoNotContactEmails(t *testing.T) {
	env := setupTestServer(t)

	result := profileResult(1, "Amy Chen")
	result.Text = "Critical care RN. Contact amy@example.com for travel contracts."
	env.provider.results = []exa.Result{result}

	env.mock.ExpectQuery(`SELECT .+ FROM subscriptions`).
		WithArgs("user-1").
		WillReturnRows(subscriptionRows(100, 0))
	env.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("user-1", "amy@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	resp := postJSON(t, env.app, "/api/search", `{"query":"ICU nurse in Denver"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(0), body["leads_found"])
	assert.Equal(t, float64(1), body["leads_skipped"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
	assert.Empty(t, env.sink.Events, "empty batches must not notify or spend credits")
}

func TestSearchRequiresAuthentication(t *testing.T) {
	env := setupTestServer(t)

	app := fiber.New()
	app.Post("/api/search", env.srv.handleSearch)

	resp := postJSON(t, app, "/api/search", `{"query":"ICU nurse"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSearchRejectsBadQueries(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty query", `{"query":"   "}`},
		{"overlong query", fmt.Sprintf(`{"query":%q}`, strings.Repeat("a", 501))},
		{"invalid campaign id", `{"query":"ICU nurse","campaignId":"not-a-uuid"}`},
		{"malformed body", `{"query":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, env.app, "/api/search", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSearchRejectsExhaustedCredits(t *testing.T) {
	env := setupTestServer(t)

	env.mock.ExpectQuery(`SELECT .+ FROM subscriptions`).
		WithArgs("user-1").
		WillReturnRows(subscriptionRows(50, 50))

	resp := postJSON(t, env.app, "/api/search", `{"query":"ICU nurse"}`)
	require.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "NO_CREDITS", body["error"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestSearchRateLimitReturnsRetryAfter(t *testing.T) {
	env := setupTestServer(t)
	env.srv.limiter = ratelimit.New(
		redis.NewClient(&redis.Options{Addr: env.redis.Addr()}), 0, time.Minute)

	resp := postJSON(t, env.app, "/api/search", `{"query":"ICU nurse"}`)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestSearchSurfacesProviderFailure(t *testing.T) {
	env := setupTestServer(t)
	env.provider.searchErr = fmt.Errorf("exa unavailable")

	env.mock.ExpectQuery(`SELECT .+ FROM subscriptions`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)

	resp := postJSON(t, env.app, "/api/search", `{"query":"ICU nurse"}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestSearchNotifiesOnLowCredits(t *testing.T) {
	env := setupTestServer(t)
	env.provider.results = []exa.Result{profileResult(1, "Amy Chen")}

	// limit 100, 95 used after the increment: remaining 5 <= 10% of the limit.
	env.mock.ExpectQuery(`SELECT .+ FROM subscriptions`).
		WithArgs("user-1").
		WillReturnRows(subscriptionRows(100, 94))
	env.mock.ExpectQuery(`INSERT INTO leads`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	env.mock.ExpectQuery(`UPDATE subscriptions SET credits_used`).
		WithArgs(1, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits_used"}).AddRow(95))
	env.mock.ExpectExec(`INSERT INTO credit_usage`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp := postJSON(t, env.app, "/api/search", `{"query":"ICU nurse"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, env.sink.Events, 2)
	assert.Equal(t, notify.EventLeadsFound, env.sink.Events[0].Type)
	assert.Equal(t, notify.EventLowCredits, env.sink.Events[1].Type)
	assert.Equal(t, float64(5), env.sink.Events[1].Data["remaining"])
}
