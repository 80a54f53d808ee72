package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/internal/model/jurisdiction"
	"github.com/zhouzirui/med-assist/backend/internal/service/ai"
	chatService "github.com/zhouzirui/med-assist/backend/internal/service/chat"
	"github.com/zhouzirui/med-assist/backend/internal/service/dashboard"
	"github.com/zhouzirui/med-assist/backend/internal/service/ratelimit"
)

func newTestRouter(origins ...string) http.Handler {
	store := jurisdiction.NewMemoryStore(jurisdiction.Seed(), "IN")
	limiter := ratelimit.New(ratelimit.Options{Window: time.Minute, MaxRequests: 100})
	builder := ai.NewPromptBuilder(config.AIConfig{ContextTurns: 3, MaxTokens: 500, EmergencyMaxTokens: 250})
	svc := chatService.NewService(limiter, builder, nil, nil, store, chatService.Options{})

	return NewRouter(Dependencies{
		Server:         config.ServerConfig{AllowedOrigins: origins},
		Chat:           svc,
		Dashboards:     dashboard.NewService(nil, config.DashboardConfig{}),
		Jurisdictions:  store,
		StreamInterval: time.Second,
	})
}

func serve(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequestWithContext(context.Background(), method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterRoutes(t *testing.T) {
	r := newTestRouter("*")
	origin := map[string]string{"Origin": "https://app.example.org"}

	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/jurisdictions", "", http.StatusOK},
		{http.MethodGet, "/api/jurisdictions", "", http.StatusOK},
		{http.MethodPost, "/chat", `{"question":""}`, http.StatusBadRequest},
		{http.MethodPost, "/api/chat", `{"question":""}`, http.StatusBadRequest},
		// no completer configured
		{http.MethodPost, "/chat", `{"question":"I have a cough"}`, http.StatusInternalServerError},
		// logging disabled
		{http.MethodGet, "/admin/dashboard", "", http.StatusServiceUnavailable},
		{http.MethodGet, "/admin/chats", "", http.StatusServiceUnavailable},
		{http.MethodGet, "/missing", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		rec := serve(r, tc.method, tc.path, tc.body, origin)

		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), "%s %s", tc.method, tc.path)
	}
}

func TestRouterCORSAllowList(t *testing.T) {
	r := newTestRouter("https://app.example.org")

	rec := serve(r, http.MethodGet, "/healthz", "", map[string]string{"Origin": "https://app.example.org"})
	assert.Equal(t, "https://app.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Values("Vary"), "Origin")

	rec = serve(r, http.MethodGet, "/healthz", "", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterCORSPreflight(t *testing.T) {
	r := newTestRouter()

	rec := serve(r, http.MethodOptions, "/chat", "", map[string]string{
		"Origin":                         "https://app.example.org",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPost, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rec.Body.String())
}

func TestRouterPlainOptionsIsNotPreflight(t *testing.T) {
	r := newTestRouter("*")

	rec := serve(r, http.MethodOptions, "/chat", "", map[string]string{"Origin": "https://app.example.org"})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
