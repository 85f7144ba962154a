package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
)

func testJWTConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: minutes}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWTConfig(10), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWTConfig(10), nil)(okHandler())

	for _, header := range []string{"Bearer invalid", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401 got %d", header, resp.Code)
		}
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := testJWTConfig(60)
	want := auth.Identity{ID: uuid.New(), Email: "Dana@Example.test", DisplayName: "Dana"}
	token, err := auth.MintAccessToken(cfg, time.Now(), want)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var got auth.Identity
	var userID string
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		userID = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got.ID != want.ID || got.DisplayName != "Dana" {
		t.Fatalf("unexpected identity %+v", got)
	}
	if userID != want.ID.String() {
		t.Fatalf("expected user id %s got %s", want.ID, userID)
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig(1)
	token, err := auth.MintAccessToken(cfg, time.Now().Add(-time.Hour), auth.Identity{ID: uuid.New(), Email: "a@example.test"})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	Auth(cfg, nil)(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":    "abc",
		"bearer  abc ":  "abc",
		"abc":           "abc",
		"":              "",
		"Token abc def": "Token abc def",
	}
	for header, want := range tests {
		if got := bearerToken(header); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
