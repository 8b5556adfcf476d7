package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Im-Vestor/im-vestor-full-sub002/config"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/testutil"
)

type stubVerifier map[string]string

func (s stubVerifier) Verify(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func testConfig() *config.Config {
	return &config.Config{
		Env:            config.EnvTest,
		Port:           "8080",
		AppURL:         "http://localhost:3000",
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimit:      config.RateLimitSettings{RPS: 100, Burst: 100},
		Hypertrain:     config.HypertrainSettings{RotationPeriod: time.Minute},
	}
}

func mustRouter(t *testing.T, cfg *config.Config, verifier stubVerifier) http.Handler {
	t.Helper()
	r, err := newRouter(cfg, verifier)
	require.NoError(t, err)
	return r
}

func serve(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRouter(t *testing.T) {
	db := testutil.SetupDB(t)
	investor := testutil.CreateUser(t, db, models.UserTypeInvestor)
	founder := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	r := mustRouter(t, testConfig(), stubVerifier{
		"investor": investor.ClerkID,
		"founder":  founder.ClerkID,
	})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
	}{
		{"health check", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"public areas", http.MethodGet, "/api/areas", "", "", http.StatusOK},
		{"public hypertrain", http.MethodGet, "/api/hypertrain", "", "", http.StatusOK},
		{"me without session", http.MethodGet, "/api/users/me", "", "", http.StatusUnauthorized},
		{"me with session", http.MethodGet, "/api/users/me", "investor", "", http.StatusOK},
		{"investor cannot create projects", http.MethodPost, "/api/projects", "investor", `{"name":"x"}`, http.StatusForbidden},
		{"founder cannot upsert investor profile", http.MethodPut, "/api/investors/me", "founder", `{}`, http.StatusForbidden},
		{"founder lists own projects", http.MethodGet, "/api/projects/mine", "founder", "", http.StatusOK},
		{"notifications are mounted", http.MethodGet, "/api/notifications/unread-count", "founder", "", http.StatusOK},
		{"referrals are mounted", http.MethodGet, "/api/referrals", "founder", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRouter_WebhooksRejectUnsigned(t *testing.T) {
	testutil.SetupDB(t)
	cfg := testConfig()
	cfg.Stripe.WebhookSecret = "whsec_test"
	cfg.Clerk.WebhookSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"
	r := mustRouter(t, cfg, stubVerifier{})

	w := serve(r, http.MethodPost, "/webhooks/stripe", "", `{"type":"checkout.session.completed"}`)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = serve(r, http.MethodPost, "/webhooks/clerk", "", `{"type":"user.deleted"}`)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestRouter_ForwardedForDoesNotEscapeRateLimit(t *testing.T) {
	testutil.SetupDB(t)
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitSettings{RPS: 0.001, Burst: 1}
	r := mustRouter(t, cfg, stubVerifier{})

	var limited int
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/email/verify", strings.NewReader(`{"token":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		r.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 9, limited)
}

func TestRouter_TrustedProxyForwardsClientIP(t *testing.T) {
	testutil.SetupDB(t)
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitSettings{RPS: 0.001, Burst: 1}
	cfg.TrustedProxies = []string{"192.0.2.0/24"}
	r := mustRouter(t, cfg, stubVerifier{})

	// httptest requests come from 192.0.2.1, so each forwarded client gets its own bucket
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/email/verify", strings.NewReader(`{"token":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		r.ServeHTTP(w, req)
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
	}
}

func TestNewRouter_RejectsBadTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.TrustedProxies = []string{"not-an-ip"}
	_, err := newRouter(cfg, stubVerifier{})
	assert.Error(t, err)
}
