package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/streamvault/auth-service/internal/models"
	"github.com/streamvault/auth-service/internal/repo"
	"github.com/streamvault/auth-service/internal/tokens"
)

type principalKey struct{}

const userContextKey = "auth_user"

type Auth struct {
	Repo         *repo.GormRepo
	AccessSecret []byte
}

func NewAuth(r *repo.GormRepo, accessSecret []byte) *Auth {
	return &Auth{Repo: r, AccessSecret: accessSecret}
}

// RequireAuth gates identity-dependent routes. The access token comes from
// the accessToken cookie or an Authorization: Bearer header; a verified
// token whose subject no longer exists gets the same 401 as a bad token.
func (m *Auth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractToken(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
		}

		claims, err := tokens.AccessClaimsFromToken(token, m.AccessSecret)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		user, err := m.Repo.FindByID(c.Request().Context(), userID)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		principal := user.Sanitized()
		c.Set(userContextKey, principal)
		req := c.Request().WithContext(IntoContext(c.Request().Context(), principal))
		c.SetRequest(req)

		return next(c)
	}
}

func extractToken(c echo.Context) string {
	if cookie, err := c.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// CurrentUser returns the authenticated principal set by RequireAuth.
func CurrentUser(c echo.Context) (*models.User, bool) {
	user, ok := c.Get(userContextKey).(*models.User)
	return user, ok
}

func IntoContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, principalKey{}, user)
}

func FromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(principalKey{}).(*models.User)
	return user, ok
}
