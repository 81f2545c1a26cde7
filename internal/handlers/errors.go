package handlers

import (
	"errors"
	"net/http"
	"strings"

	"servicecrm/internal/common"
	"servicecrm/internal/middleware"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorHandler renders every error in the standard envelope. Domain errors
// map to their status codes; anything unrecognised is a logged 500 with a
// generic message.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := renderError(err)
		if status >= http.StatusInternalServerError {
			log.Error("Request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Warn("Failed to write error response", zap.Error(err))
		}
	}
}

func renderError(err error) (int, *common.ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, common.CreateErrorResponse(httpErrorCode(he.Code), msg, nil)
	}

	var verr *common.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity, common.CreateErrorResponse("VALIDATION_FAILED", "Validation failed", verr.Fields)
	}

	status := middleware.StatusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		msg = "Internal server error"
	case http.StatusServiceUnavailable:
		msg = common.ErrStoreUnavailable.Error()
	}
	return status, common.CreateErrorResponse(middleware.ErrorCode(err), msg, nil)
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "CLIENT_ERROR"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}
