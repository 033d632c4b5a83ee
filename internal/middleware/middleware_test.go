//go:build !integration

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"garageBooking/domain"
	"garageBooking/pkg/utils"

	"github.com/labstack/echo/v4"
)

type fakeSessions struct {
	tokens map[string]uint
}

func (f fakeSessions) ValidateToken(_ context.Context, token string) (uint, error) {
	id, ok := f.tokens[token]
	if !ok {
		return 0, errors.New("token not found")
	}
	return id, nil
}

func serve(t *testing.T, mw []echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, domain.Actor) {
	t.Helper()
	e := echo.New()
	var seen domain.Actor
	e.GET("/private", func(c echo.Context) error {
		seen, _ = ActorFrom(c)
		return c.NoContent(http.StatusNoContent)
	}, mw...)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthMiddleware(t *testing.T) {
	jwt := utils.NewJWTManager("secret", time.Hour)
	live, err := jwt.GenerateJWT(strconv.Itoa(7), string(domain.RoleGarageOwner))
	if err != nil {
		t.Fatal(err)
	}
	revoked, err := jwt.GenerateJWT("8", string(domain.RoleCustomer))
	if err != nil {
		t.Fatal(err)
	}
	stolen, err := jwt.GenerateJWT("9", string(domain.RoleAdmin))
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := utils.NewJWTManager("other", time.Hour).GenerateJWT("7", "admin")
	if err != nil {
		t.Fatal(err)
	}
	sessions := fakeSessions{tokens: map[string]uint{live: 7, stolen: 3}}
	mw := []echo.MiddlewareFunc{AuthMiddleware(jwt, sessions)}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + foreign, http.StatusUnauthorized},
		{"revoked session", "Bearer " + revoked, http.StatusUnauthorized},
		{"session of another user", "Bearer " + stolen, http.StatusUnauthorized},
		{"live session", "Bearer " + live, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, actor := serve(t, mw, tt.header)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && (actor.ID != 7 || actor.Role != domain.RoleGarageOwner) {
				t.Fatalf("actor = %+v", actor)
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	jwt := utils.NewJWTManager("secret", time.Hour)
	customer, _ := jwt.GenerateJWT("8", string(domain.RoleCustomer))
	superAdmin, _ := jwt.GenerateJWT("9", string(domain.RoleSuperAdmin))
	sessions := fakeSessions{tokens: map[string]uint{customer: 8, superAdmin: 9}}
	mw := []echo.MiddlewareFunc{AuthMiddleware(jwt, sessions), AdminOnly()}

	if rec, _ := serve(t, mw, "Bearer "+customer); rec.Code != http.StatusForbidden {
		t.Fatalf("customer status = %d", rec.Code)
	}
	if rec, _ := serve(t, mw, "Bearer "+superAdmin); rec.Code != http.StatusNoContent {
		t.Fatalf("super admin status = %d", rec.Code)
	}
	if rec, _ := serve(t, []echo.MiddlewareFunc{AdminOnly()}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	jwt := utils.NewJWTManager("secret", time.Hour)
	token, _ := jwt.GenerateJWT("7", string(domain.RoleGarageOwner))
	mw := []echo.MiddlewareFunc{OptionalAuth(jwt, fakeSessions{tokens: map[string]uint{token: 7}})}

	rec, actor := serve(t, mw, "")
	if rec.Code != http.StatusNoContent || actor.ID != 0 {
		t.Fatalf("anonymous: status=%d actor=%+v", rec.Code, actor)
	}
	rec, actor = serve(t, mw, "Bearer "+token)
	if rec.Code != http.StatusNoContent || actor.ID != 7 {
		t.Fatalf("authenticated: status=%d actor=%+v", rec.Code, actor)
	}
	if rec, _ := serve(t, mw, "Bearer nonsense"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status=%d", rec.Code)
	}
}
