package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	manager := NewTokenManager("test-secret")

	token, err := manager.GenerateClientToken("dashboard", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.Role != RoleClient {
		t.Errorf("Expected role %s, got %s", RoleClient, claims.Role)
	}
	if claims.Subject != "dashboard" {
		t.Errorf("Expected subject dashboard, got %s", claims.Subject)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	manager := NewTokenManager("test-secret")

	other, _ := NewTokenManager("other-secret").GenerateClientToken("x", time.Hour)
	if _, err := manager.ValidateToken(other); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for foreign signature, got %v", err)
	}

	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := manager.GenerateClientToken("x", time.Hour)
	manager.now = time.Now
	if _, err := manager.ValidateToken(expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := manager.ValidateToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}

	if _, err := manager.GenerateClientToken("", time.Hour); err == nil {
		t.Error("Expected error for empty subject")
	}
}

func TestMiddleware(t *testing.T) {
	manager := NewTokenManager("test-secret")
	valid, _ := manager.GenerateClientToken("dashboard", time.Hour)

	wrongRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{
		Role: "device",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))

	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		if ClaimsFrom(c) == nil {
			t.Error("Expected claims in context")
		}
		return c.NoContent(http.StatusNoContent)
	}, Middleware(manager, zap.NewNop()))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "bearer", header: "Bearer " + valid, want: http.StatusNoContent},
		{name: "query", query: "?token=" + valid, want: http.StatusNoContent},
		{name: "invalid", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer " + wrongRole, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
