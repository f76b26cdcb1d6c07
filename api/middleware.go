package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todotrack-api/domain"
)

const currentUserKey = "currentUser"

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", domain.AuthError("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", domain.AuthError("bad authorization header")
	}
	tok := strings.TrimSpace(parts[1])
	if strings.Count(tok, ".") != 2 {
		return "", domain.AuthError("bad authorization header")
	}
	return tok, nil
}

// requireAuth verifies the access token on every request and stashes the
// account in the request context. Tokens are re-checked per call; sockets
// get the sweep instead.
func requireAuth(accounts Accounts, logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return respondError(c, logger, err)
			}
			user, _, err := accounts.Authenticate(c.Request().Context(), tok)
			if err != nil {
				return respondError(c, logger, err)
			}
			c.Set(currentUserKey, user)
			return next(c)
		}
	}
}

// currentUser returns the authenticated account set by requireAuth.
func currentUser(c echo.Context) *domain.User {
	user, _ := c.Get(currentUserKey).(*domain.User)
	return user
}

// securityHeaders sets conventional hardening headers on every response.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			return next(c)
		}
	}
}
