package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streamvault/auth-service/internal/middleware"
)

type Deps struct {
	AuthHandler *AuthHTTP
	AuthMW      *middleware.Auth
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	users := e.Group("/api/v1/users")

	users.POST("/register", d.AuthHandler.Register)
	users.POST("/login", d.AuthHandler.Login)
	users.POST("/refresh-token", d.AuthHandler.Refresh)

	private := users.Group("")
	private.Use(d.AuthMW.RequireAuth)

	private.POST("/logout", d.AuthHandler.Logout)
	private.GET("/me", d.AuthHandler.Me)
	private.POST("/change-password", d.AuthHandler.ChangePassword)
	private.PATCH("/me", d.AuthHandler.UpdateAccount)
	private.PATCH("/avatar", d.AuthHandler.UpdateAvatar)
	private.PATCH("/cover-image", d.AuthHandler.UpdateCoverImage)
}
