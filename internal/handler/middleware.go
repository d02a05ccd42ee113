package handler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// UserResolver resolves a user ID from a bearer API key.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

// APIKeyAuth validates the bearer API key and stores the resolved user in
// the request context. With auth disabled, the caller-declared X-User-ID
// header is trusted (local/dev deployments).
func APIKeyAuth(resolver UserResolver, enabled bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !enabled {
				user := c.Request().Header.Get("X-User-ID")
				if user == "" {
					user = "default"
				}
				c.Set(userIDKey, user)
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" || token == header {
				return writeError(c, errUnauthorized)
			}

			user, err := resolver.ResolveUser(c.Request().Context(), token)
			if err != nil || user == "" {
				return writeError(c, errUnauthorized)
			}

			c.Set(userIDKey, user)
			return next(c)
		}
	}
}

func requestUser(c echo.Context) string {
	user, _ := c.Get(userIDKey).(string)
	return user
}

// RequestLogger logs one line per request at debug level.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug("request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration", time.Since(start),
			)
			return err
		}
	}
}
