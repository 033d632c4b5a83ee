package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"garageBooking/domain"
	"garageBooking/pkg/logger"
	jsonres "garageBooking/pkg/response"
	"garageBooking/pkg/utils"

	"github.com/labstack/echo/v4"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextToken  = "token"
	ContextActor  = "actor"
)

// TokenParser verifies the JWT signature and expiry.
type TokenParser interface {
	ParseJWT(token string) (*utils.Claims, error)
}

// TokenValidator confirms the token is still the live session in Redis.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uint, error)
}

// AuthMiddleware requires a bearer JWT that is also the current session
// for its user. Logout and password changes revoke the session.
func AuthMiddleware(parser TokenParser, sessions TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Missing or malformed authorization header", nil,
				))
			}

			claims, err := parser.ParseJWT(tokenString)
			if err != nil {
				logger.Debug("rejected jwt", "error", err)
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Invalid or expired token", nil,
				))
			}

			userID, err := strconv.ParseUint(claims.UserID, 10, 64)
			if err != nil {
				logger.Warn("invalid user id in token", "error", err)
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Invalid token", nil,
				))
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			sessionUserID, err := sessions.ValidateToken(ctx, tokenString)
			if err != nil {
				logger.Debug("token is not a live session", "error", err, "user_id", userID)
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Session expired or revoked", nil,
				))
			}

			if sessionUserID != uint(userID) {
				logger.Warn("user id mismatch between jwt and session", "jwt_user_id", userID, "session_user_id", sessionUserID)
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Invalid token", nil,
				))
			}

			role := domain.Role(claims.Role)
			c.Set(ContextUserID, uint(userID))
			c.Set(ContextRole, role)
			c.Set(ContextToken, tokenString)
			c.Set(ContextActor, domain.Actor{ID: uint(userID), Role: role})

			return next(c)
		}
	}
}

// RequireRoles must run after AuthMiddleware.
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "User not authenticated", nil,
				))
			}

			for _, role := range roles {
				if actor.Role == role {
					return next(c)
				}
			}

			return c.JSON(http.StatusForbidden, jsonres.Error(
				"FORBIDDEN", "You do not have access to this resource", nil,
			))
		}
	}
}

func AdminOnly() echo.MiddlewareFunc {
	return RequireRoles(domain.RoleAdmin, domain.RoleSuperAdmin)
}

func ActorFrom(c echo.Context) (domain.Actor, bool) {
	actor, ok := c.Get(ContextActor).(domain.Actor)
	return actor, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// OptionalAuth authenticates when an Authorization header is present and
// lets anonymous requests through.
func OptionalAuth(parser TokenParser, sessions TokenValidator) echo.MiddlewareFunc {
	required := AuthMiddleware(parser, sessions)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		authenticated := required(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				return next(c)
			}
			return authenticated(c)
		}
	}
}
