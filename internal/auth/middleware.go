package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const claimsKey = "auth.claims"

// Middleware requires a client bearer token. Websocket upgrades may pass the
// token as the token query parameter since browsers cannot set headers there.
func Middleware(manager *TokenManager, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				token = c.QueryParam("token")
			}

			if token == "" {
				logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
				return echo.NewHTTPError(http.StatusUnauthorized, "JWT token is required in Authorization header")
			}

			claims, err := manager.ValidateToken(token)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired JWT token")
			}

			if claims.Role != RoleClient {
				logger.Warn("Request rejected: invalid role", zap.String("role", claims.Role))
				return echo.NewHTTPError(http.StatusForbidden, "Only client tokens are allowed")
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by Middleware, if any
func ClaimsFrom(c echo.Context) *JWTClaims {
	claims, _ := c.Get(claimsKey).(*JWTClaims)
	return claims
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
