// Package session keeps each user's active service center in Redis.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servicecrm/internal/caching"
	"servicecrm/internal/common"
	"servicecrm/internal/repositories"
	"servicecrm/internal/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long an unused selection is remembered.
const DefaultTTL = 30 * 24 * time.Hour

// KeyValueStore is the subset of the cache the resolver needs.
type KeyValueStore interface {
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// TenantResolver resolves and updates the active service center of a user.
type TenantResolver struct {
	store   KeyValueStore
	tenants repositories.TenantRepository
	access  *services.AccessChecker
	ttl     time.Duration
	log     *zap.Logger
}

func NewTenantResolver(store KeyValueStore, tenants repositories.TenantRepository, access *services.AccessChecker, ttl time.Duration, log *zap.Logger) *TenantResolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TenantResolver{store: store, tenants: tenants, access: access, ttl: ttl, log: log.Named("session")}
}

func activeTenantKey(userID uuid.UUID) string {
	return fmt.Sprintf("%sactive_tenant:%s", caching.KeyPrefix, userID)
}

// ResolveActiveTenant returns the user's active service center. A stored
// selection the user can no longer access is replaced by the first
// accessible center, or cleared when there is none.
func (r *TenantResolver) ResolveActiveTenant(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error) {
	stored, err := r.store.GetString(ctx, activeTenantKey(userID))
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("read active service center: %w", err)
	}

	if centerID, parseErr := uuid.Parse(stored); parseErr == nil {
		ok, err := r.canAccess(ctx, userID, centerID)
		if err != nil {
			return uuid.Nil, false, err
		}
		if ok {
			return centerID, true, nil
		}
		r.log.Debug("stored service center no longer accessible",
			zap.Stringer("user_id", userID), zap.Stringer("service_center_id", centerID))
	}

	return r.fallback(ctx, userID, uuid.Nil)
}

// SetActiveTenant records centerID as the user's active service center.
func (r *TenantResolver) SetActiveTenant(ctx context.Context, userID, centerID uuid.UUID) error {
	return r.store.SetString(ctx, activeTenantKey(userID), centerID.String(), r.ttl)
}

// ReleaseTenant moves the user off centerID when it is the active one.
func (r *TenantResolver) ReleaseTenant(ctx context.Context, userID, centerID uuid.UUID) error {
	stored, err := r.store.GetString(ctx, activeTenantKey(userID))
	if err != nil {
		return fmt.Errorf("read active service center: %w", err)
	}
	if stored != centerID.String() {
		return nil
	}
	_, _, err = r.fallback(ctx, userID, centerID)
	return err
}

func (r *TenantResolver) canAccess(ctx context.Context, userID, centerID uuid.UUID) (bool, error) {
	center, membership, err := r.access.Load(ctx, userID, centerID)
	if errors.Is(err, common.ErrTenantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return services.CanAccess(userID, center, membership), nil
}

// fallback selects the newest accessible center other than exclude.
func (r *TenantResolver) fallback(ctx context.Context, userID, exclude uuid.UUID) (uuid.UUID, bool, error) {
	centers, err := r.tenants.ListForUser(ctx, userID)
	if err != nil {
		return uuid.Nil, false, err
	}
	for _, c := range centers {
		if c.ID == exclude {
			continue
		}
		if err := r.SetActiveTenant(ctx, userID, c.ID); err != nil {
			return uuid.Nil, false, fmt.Errorf("store active service center: %w", err)
		}
		return c.ID, true, nil
	}
	if err := r.store.Delete(ctx, activeTenantKey(userID)); err != nil {
		return uuid.Nil, false, fmt.Errorf("clear active service center: %w", err)
	}
	return uuid.Nil, false, nil
}
