package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"servicecrm/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyPrefix namespaces every key this service writes.
const KeyPrefix = "servicecrm:"

type CacheService interface {
	// Analytics caching
	GetAnalytics(ctx context.Context, centerID uuid.UUID, period string) (*models.AnalyticsResult, error)
	// AnalyticsGeneration returns a counter that InvalidateAnalytics bumps.
	AnalyticsGeneration(ctx context.Context, centerID uuid.UUID) (int64, error)
	// SetAnalytics stores result only while the generation still equals
	// generation, and reports whether it did.
	SetAnalytics(ctx context.Context, centerID uuid.UUID, period string, result *models.AnalyticsResult, ttl time.Duration, generation int64) (bool, error)
	InvalidateAnalytics(ctx context.Context, centerID uuid.UUID) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Generic string operations for session state
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client redis.UniversalClient
	log    *zap.Logger
}

// NewRedisClient builds a client for addr, which may carry a redis:// or
// rediss:// scheme. A failed initial ping is logged, not fatal.
func NewRedisClient(addr, password string, db int, log *zap.Logger) *redis.Client {
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis ping failed on initialization", zap.String("addr", parsedAddr), zap.Error(err))
	} else {
		log.Debug("redis connection established", zap.String("addr", parsedAddr))
	}
	return client
}

func NewRedisCacheService(client redis.UniversalClient, log *zap.Logger) CacheService {
	return &redisCacheService{client: client, log: log.Named("cache")}
}

func analyticsKey(centerID uuid.UUID, period string) string {
	return fmt.Sprintf("%sanalytics:%s:%s", KeyPrefix, centerID, period)
}

func analyticsGenKey(centerID uuid.UUID) string {
	return fmt.Sprintf("%sanalytics_gen:%s", KeyPrefix, centerID)
}

// KEYS[1] generation, KEYS[2] entry; ARGV expected generation, payload, ttl in ms.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

func (r *redisCacheService) AnalyticsGeneration(ctx context.Context, centerID uuid.UUID) (int64, error) {
	gen, err := r.client.Get(ctx, analyticsGenKey(centerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *redisCacheService) GetAnalytics(ctx context.Context, centerID uuid.UUID, period string) (*models.AnalyticsResult, error) {
	data, err := r.client.Get(ctx, analyticsKey(centerID, period)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var result models.AnalyticsResult
	if err := json.Unmarshal(data, &result); err != nil {
		// A payload we cannot decode is treated as a miss and overwritten later.
		r.log.Warn("discarding undecodable analytics entry", zap.String("service_center_id", centerID.String()), zap.Error(err))
		return nil, nil
	}
	return &result, nil
}

func (r *redisCacheService) SetAnalytics(ctx context.Context, centerID uuid.UUID, period string, result *models.AnalyticsResult, ttl time.Duration, generation int64) (bool, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return false, err
	}
	stored, err := setIfGeneration.Run(ctx, r.client,
		[]string{analyticsGenKey(centerID), analyticsKey(centerID, period)},
		strconv.FormatInt(generation, 10), data, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// InvalidateAnalytics drops both periods and bumps the generation so that
// results computed before the call are not written back.
func (r *redisCacheService) InvalidateAnalytics(ctx context.Context, centerID uuid.UUID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, analyticsGenKey(centerID))
		pipe.Del(ctx,
			analyticsKey(centerID, models.PeriodMonth),
			analyticsKey(centerID, models.PeriodYear),
		)
		return nil
	})
	return err
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := KeyPrefix + "ratelimit:" + key
	count, err := r.client.Incr(ctx, cacheKey).Result()
	if err != nil {
		return true, err
	}
	// Set expiry on first request
	if count == 1 {
		if err := r.client.Expire(ctx, cacheKey, window).Err(); err != nil {
			r.log.Warn("failed to set rate limit expiry", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return count > int64(limit), nil
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil // cache miss
		}
		return "", err
	}
	return val, nil
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
