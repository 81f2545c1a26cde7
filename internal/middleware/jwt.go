package middleware

import (
	"context"
	"net/http"
	"time"

	"servicecrm/internal/common"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const tokenContextKey = "user"

// NewJWKS fetches the key set at url and keeps it refreshed until ctx is done.
func NewJWKS(ctx context.Context, url string, log *zap.Logger) (*keyfunc.JWKS, error) {
	return keyfunc.Get(url, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warn("Failed to refresh JWKS", zap.String("url", url), zap.Error(err))
		},
	})
}

// NewJWTConfig verifies tokens with jwks when it is non-nil and with the
// shared HS256 secret otherwise.
func NewJWTConfig(secret string, jwks *keyfunc.JWKS) echojwt.Config {
	cfg := echojwt.Config{
		ContextKey: tokenContextKey,
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	}
	if jwks != nil {
		cfg.KeyFunc = jwks.Keyfunc
	} else {
		cfg.SigningKey = []byte(secret)
		cfg.SigningMethod = echojwt.AlgorithmHS256
	}
	return cfg
}

// Authenticate validates the bearer token and stores its subject as the
// current user id in the request context.
func Authenticate(cfg echojwt.Config) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(userFromToken(next))
	}
}

func userFromToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := c.Get(tokenContextKey).(*jwt.Token)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing user_id in token")
		}

		userID, err := uuid.Parse(sub)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid user_id format")
		}

		c.SetRequest(c.Request().WithContext(common.WithUserID(c.Request().Context(), userID)))
		return next(c)
	}
}
