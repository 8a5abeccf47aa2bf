package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sokolovdm/socialnet/internal/repo"
	"github.com/sokolovdm/socialnet/internal/service"
	"github.com/sokolovdm/socialnet/internal/tokens"
)

const authContextKey = "auth"

// RotatedTokenHeader carries an access token minted during a
// refresh-fallback authorization back to the caller.
const RotatedTokenHeader = "X-New-Access-Token"

// AuthResult is the per-request authorization outcome threaded to the
// handler. NewAccessToken is set only when the request authenticated on a
// refresh token and a fresh access token was rotated in.
type AuthResult struct {
	Claims         *tokens.Claims
	NewAccessToken string
}

func (r *AuthResult) UserID() (uint, error) {
	return r.Claims.UserID()
}

// Guard authorizes protected requests. With AllowRefresh set, a request
// without a bearer token may authenticate on the refresh token in its
// body, transparently rotating in a new access token.
type Guard struct {
	Codec        *tokens.Codec
	Repo         *repo.GormRepo
	Svc          *service.AuthService
	AllowRefresh bool
}

func (g *Guard) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, err := g.Authenticate(c)
		if err != nil {
			return err
		}
		c.Set(authContextKey, res)
		if res.NewAccessToken != "" {
			c.Response().Header().Set(RotatedTokenHeader, res.NewAccessToken)
		}
		return next(c)
	}
}

// CurrentAuth returns the AuthResult attached by RequireAuth, or nil on
// unguarded routes.
func CurrentAuth(c echo.Context) *AuthResult {
	if res, ok := c.Get(authContextKey).(*AuthResult); ok {
		return res
	}
	return nil
}

func (g *Guard) Authenticate(c echo.Context) (*AuthResult, error) {
	ctx := c.Request().Context()

	if raw := bearerToken(c.Request()); raw != "" {
		claims, err := g.Codec.Parse(raw)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired access token")
		}

		stored, err := g.Repo.FindAccessToken(ctx, raw)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "token lookup failed")
		}
		if stored == nil {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Access token not found")
		}

		return &AuthResult{Claims: claims}, nil
	}

	if !g.AllowRefresh {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Missing tokens")
	}

	refreshToken, err := refreshTokenFromBody(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if refreshToken == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Missing tokens")
	}

	newAccess, claims, err := g.Svc.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Refresh token not found")
		}
		if errors.Is(err, tokens.ErrInvalidToken) {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired refresh token")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "refresh failed")
	}

	return &AuthResult{Claims: claims, NewAccessToken: newAccess}, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// refreshTokenFromBody peeks at the JSON body for a refresh_token field
// and restores the body so downstream binding still works.
func refreshTokenFromBody(c echo.Context) (string, error) {
	req := c.Request()
	if req.Body == nil {
		return "", nil
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		return "", err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))

	if len(data) == 0 {
		return "", nil
	}

	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", err
	}
	return payload.RefreshToken, nil
}
