package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/chimera/config"
)

var testSecret = []byte("test-secret")

func guarded(t *testing.T, mw ...echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		sub, _ := SubjectFromContext(c.Request().Context())
		return c.String(http.StatusOK, sub)
	}, mw...)
	return e
}

func call(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	e := guarded(t, EchoAuthMiddleware(testSecret))

	tok, err := SignJWT("ops", testSecret, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec := call(e, tok)
	if rec.Code != http.StatusOK || rec.Body.String() != "ops" {
		t.Fatalf("expected 200 ops, got %d %q", rec.Code, rec.Body.String())
	}

	if rec := call(e, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", rec.Code)
	}
	wrong, _ := SignJWT("ops", []byte("other"), time.Minute)
	if rec := call(e, wrong); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rec.Code)
	}
	expired, _ := SignJWT("ops", testSecret, -time.Minute)
	if rec := call(e, expired); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired: expected 401, got %d", rec.Code)
	}
}

func TestAuthRejectsOtherAlgorithms(t *testing.T) {
	e := guarded(t, EchoAuthMiddleware(testSecret))
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if rec := call(e, tok); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireScopes(t *testing.T) {
	e := guarded(t, EchoAuthMiddleware(testSecret), RequireScopes(ScopeKnowledge))
	cases := []struct {
		name   string
		scopes []string
		want   int
	}{
		{"granted", []string{ScopeKnowledge}, http.StatusOK},
		{"admin", []string{ScopeAdmin}, http.StatusOK},
		{"other", []string{ScopeAudit}, http.StatusForbidden},
		{"none", nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok, err := SignJWT("ops", testSecret, time.Minute, tc.scopes...)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if rec := call(e, tok); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestLoadJWTSecret(t *testing.T) {
	if _, err := LoadJWTSecret(&config.Config{}); err != ErrNoJWTSecret {
		t.Fatalf("expected ErrNoJWTSecret, got %v", err)
	}
	cfg := &config.Config{Server: config.ServerConfig{JWTSecret: " s3cret "}}
	got, err := LoadJWTSecret(cfg)
	if err != nil || string(got) != "s3cret" {
		t.Fatalf("unexpected secret %q %v", got, err)
	}
}
