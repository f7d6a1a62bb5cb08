package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streamvault/auth-service/internal/service"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c echo.Context, code int, data any, message string) error {
	return c.JSON(code, Response{
		StatusCode: code,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// httpError maps a service error kind to its status code. The message sent
// to the client is the sentinel's own text; internal detail never crosses
// this boundary.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidOldPassword):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrMissingAccessToken),
		errors.Is(err, service.ErrInvalidAccessToken),
		errors.Is(err, service.ErrMissingRefreshToken),
		errors.Is(err, service.ErrExpiredRefreshToken),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrUsedRefreshToken):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, service.ErrInternal.Error())
	}
}

// ErrorHandler renders every error through the same envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := service.ErrInternal.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
	}

	_ = c.JSON(code, Response{
		StatusCode: code,
		Message:    message,
		Success:    false,
	})
}
