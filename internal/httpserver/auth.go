package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streamvault/auth-service/internal/logging"
	"github.com/streamvault/auth-service/internal/media"
	"github.com/streamvault/auth-service/internal/middleware"
	"github.com/streamvault/auth-service/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

type sessionPayload struct {
	User         any    `json:"user,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register accepts multipart form data: the account fields plus a required
// avatar file and an optional coverImage file.
func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	in := service.RegisterInput{
		FullName: c.FormValue("fullname"),
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
	}

	avatar, closeAvatar, err := formFile(c, "avatar")
	if err == nil {
		defer closeAvatar()
		in.Avatar = avatar
	}

	// The cover image is attached only when the form really carried one;
	// a missing part means no cover, not an error.
	cover, closeCover, err := formFile(c, "coverImage")
	if err == nil {
		defer closeCover()
		in.CoverImage = cover
	}

	user, err := h.Svc.Register(ctx, in)
	if err != nil {
		l.Warn("register_failed", "error", err)
		return httpError(err)
	}

	return respond(c, http.StatusCreated, user, "user registered successfully")
}

func formFile(c echo.Context, name string) (*media.File, func(), error) {
	fh, err := c.FormFile(name)
	if err != nil {
		return nil, nil, err
	}
	src, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &media.File{Name: fh.Filename, Content: src}, func() { _ = src.Close() }, nil
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		l.Warn("login_failed", "error", err)
		return httpError(err)
	}

	c.SetCookie(CreateCookie(accessCookieName, res.AccessToken, "/", res.AccessExp))
	c.SetCookie(CreateCookie(refreshCookieName, res.RefreshToken, "/", res.RefreshExp))

	return respond(c, http.StatusOK, sessionPayload{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}, "user logged in successfully")
}

// Refresh exchanges the presented refresh token, taken from the cookie or
// the request body, for a rotated pair.
func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	presented := ""
	if cookie, err := c.Cookie(refreshCookieName); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := c.Bind(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	res, err := h.Svc.Refresh(ctx, presented)
	if err != nil {
		l.Warn("refresh_failed", "error", err)
		return httpError(err)
	}

	c.SetCookie(CreateCookie(accessCookieName, res.AccessToken, "/", res.AccessExp))
	c.SetCookie(CreateCookie(refreshCookieName, res.RefreshToken, "/", res.RefreshExp))

	return respond(c, http.StatusOK, sessionPayload{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}, "access token refreshed successfully")
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	if err := h.Svc.Logout(ctx, user.ID); err != nil {
		c.SetCookie(DeleteCookie(accessCookieName, "/"))
		c.SetCookie(DeleteCookie(refreshCookieName, "/"))
		l.Error("logout_failed", "error", err)
		return httpError(err)
	}

	c.SetCookie(DeleteCookie(accessCookieName, "/"))
	c.SetCookie(DeleteCookie(refreshCookieName, "/"))

	return respond(c, http.StatusOK, nil, "user logged out")
}
