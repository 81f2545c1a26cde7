package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"servicecrm/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestAudit logs one structured entry per request. Reads of health and
// metrics endpoints are skipped; failed and mutating requests log at a
// higher level than plain reads.
func RequestAudit(log *zap.Logger) echo.MiddlewareFunc {
	log = log.Named("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			if shouldSkipLogging(req.Method, req.URL.Path) {
				return err
			}

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = StatusFor(err)
				}
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
			}
			ctx := req.Context()
			if userID, ok := common.GetUserIDFromContext(ctx); ok {
				fields = append(fields, zap.Stringer("user_id", userID))
			}
			if centerID, ok := common.GetTenantIDFromContext(ctx); ok {
				fields = append(fields, zap.Stringer("service_center_id", centerID))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			if ce := log.Check(auditLevel(req.Method, status), "request"); ce != nil {
				ce.Write(fields...)
			}
			return err
		}
	}
}

func auditLevel(method string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case method != http.MethodGet && method != http.MethodHead:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func shouldSkipLogging(method, path string) bool {
	if method != http.MethodGet {
		return false
	}
	return path == "/metrics" || strings.HasPrefix(path, "/health")
}
