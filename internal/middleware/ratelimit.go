package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"servicecrm/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter counts requests per key inside a fixed window.
type RateLimiter interface {
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LocalRateLimiter keeps a token bucket per key in process memory. Limits are
// per instance only.
type LocalRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{buckets: make(map[string]*rate.Limiter)}
}

// IsRateLimited refills limit tokens evenly over window. The first call for a
// key fixes its bucket shape.
func (l *LocalRateLimiter) IsRateLimited(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return !b.Allow(), nil
}

type fallbackRateLimiter struct {
	primary  RateLimiter
	fallback RateLimiter
	log      *zap.Logger
	warn     rate.Sometimes
}

// WithFallback consults fallback whenever primary fails.
func WithFallback(primary, fallback RateLimiter, log *zap.Logger) RateLimiter {
	return &fallbackRateLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
		warn:     rate.Sometimes{Interval: time.Minute},
	}
}

func (f *fallbackRateLimiter) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	limited, err := f.primary.IsRateLimited(ctx, key, limit, window)
	if err == nil {
		return limited, nil
	}
	f.warn.Do(func() {
		f.log.Warn("Primary rate limiter failed, using local limits", zap.Error(err))
	})
	return f.fallback.IsRateLimited(ctx, key, limit, window)
}

// RateLimit allows each user limit requests to the named operation per
// window. A limiter failure lets the request through.
func RateLimit(limiter RateLimiter, name string, limit int, window time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limit <= 0 {
				return next(c)
			}
			ctx := c.Request().Context()
			userID, ok := common.GetUserIDFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}

			limited, err := limiter.IsRateLimited(ctx, name+":"+userID.String(), limit, window)
			if err != nil {
				log.Warn("Rate limiter unavailable", zap.String("operation", name), zap.Error(err))
				return next(c)
			}
			if limited {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			}
			return next(c)
		}
	}
}
