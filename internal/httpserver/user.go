package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streamvault/auth-service/internal/logging"
	"github.com/streamvault/auth-service/internal/middleware"
)

func (h *AuthHTTP) Me(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	return respond(c, http.StatusOK, user, "current user fetched successfully")
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_change_password")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.ChangePassword(ctx, user.ID, req.OldPassword, req.NewPassword); err != nil {
		l.Warn("change_password_failed", "error", err)
		return httpError(err)
	}

	return respond(c, http.StatusOK, nil, "password changed successfully")
}

func (h *AuthHTTP) UpdateAccount(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_update_account")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	var req struct {
		FullName string `json:"fullname"`
		Email    string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	updated, err := h.Svc.UpdateAccount(ctx, user.ID, req.FullName, req.Email)
	if err != nil {
		l.Warn("update_account_failed", "error", err)
		return httpError(err)
	}

	return respond(c, http.StatusOK, updated, "account details updated successfully")
}

func (h *AuthHTTP) UpdateAvatar(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_update_avatar")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	file, closeFn, err := formFile(c, "avatar")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is missing")
	}
	defer closeFn()

	updated, err := h.Svc.UpdateAvatar(ctx, user.ID, *file)
	if err != nil {
		l.Warn("update_avatar_failed", "error", err)
		return httpError(err)
	}

	return respond(c, http.StatusOK, updated, "avatar updated successfully")
}

func (h *AuthHTTP) UpdateCoverImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_update_cover_image")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	file, closeFn, err := formFile(c, "coverImage")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is missing")
	}
	defer closeFn()

	updated, err := h.Svc.UpdateCoverImage(ctx, user.ID, *file)
	if err != nil {
		l.Warn("update_cover_image_failed", "error", err)
		return httpError(err)
	}

	return respond(c, http.StatusOK, updated, "cover image updated successfully")
}
