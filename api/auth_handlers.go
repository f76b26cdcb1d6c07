package api

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todotrack-api/domain"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/api/auth"

	authBodyMaxSize = 16 * 1024 // 16 KiB
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

// authResponse is the body of register/login/refresh. The refresh token
// travels only in the httpOnly cookie.
type authResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"accessToken"`
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, authBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ValidationError("invalid body")
	}
	return nil
}

func setRefreshCookie(c echo.Context, token string, ttl time.Duration, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func postRegister(accounts Accounts, logger *log.Logger, cookieTTL time.Duration, secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, logger, err)
		}
		res, err := accounts.Register(c.Request().Context(), req.Username, req.Email, req.Password)
		if err != nil {
			return respondError(c, logger, err)
		}
		setRefreshCookie(c, res.Pair.RefreshToken, cookieTTL, secure)
		return c.JSON(http.StatusCreated, authResponse{User: res.User, AccessToken: res.Pair.AccessToken})
	}
}

func postLogin(accounts Accounts, logger *log.Logger, cookieTTL time.Duration, secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, logger, err)
		}
		res, err := accounts.Login(c.Request().Context(), req.Email, req.Password)
		if err != nil {
			return respondError(c, logger, err)
		}
		setRefreshCookie(c, res.Pair.RefreshToken, cookieTTL, secure)
		return c.JSON(http.StatusOK, authResponse{User: res.User, AccessToken: res.Pair.AccessToken})
	}
}

// postRefresh rotates the refresh token from the cookie. Every verification
// failure clears the cookie so clients stop retrying a dead token.
func postRefresh(accounts Accounts, logger *log.Logger, cookieTTL time.Duration, secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(refreshCookieName)
		if err != nil || cookie.Value == "" {
			clearRefreshCookie(c, secure)
			return respondError(c, logger, domain.AuthError("missing refresh token"))
		}
		res, err := accounts.Refresh(c.Request().Context(), cookie.Value)
		if err != nil {
			clearRefreshCookie(c, secure)
			return respondError(c, logger, err)
		}
		setRefreshCookie(c, res.Pair.RefreshToken, cookieTTL, secure)
		return c.JSON(http.StatusOK, authResponse{User: res.User, AccessToken: res.Pair.AccessToken})
	}
}

func postLogout(accounts Accounts, logger *log.Logger, secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
			if err := accounts.Logout(c.Request().Context(), user.ID, cookie.Value); err != nil {
				return respondError(c, logger, err)
			}
		}
		clearRefreshCookie(c, secure)
		return c.NoContent(http.StatusNoContent)
	}
}

func postLogoutAll(accounts Accounts, logger *log.Logger, secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		if err := accounts.LogoutAll(c.Request().Context(), user.ID); err != nil {
			return respondError(c, logger, err)
		}
		clearRefreshCookie(c, secure)
		return c.NoContent(http.StatusNoContent)
	}
}

func getMe() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, currentUser(c))
	}
}

func putMe(accounts Accounts, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req profileRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, logger, err)
		}
		user, err := accounts.UpdateProfile(c.Request().Context(), currentUser(c).ID, req.Username, req.Email)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, user)
	}
}

func deleteMe(accounts Accounts, logger *log.Logger, secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := accounts.DeleteAccount(c.Request().Context(), currentUser(c).ID); err != nil {
			return respondError(c, logger, err)
		}
		clearRefreshCookie(c, secure)
		return c.NoContent(http.StatusNoContent)
	}
}
