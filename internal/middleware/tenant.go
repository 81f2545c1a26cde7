package middleware

import (
	"context"
	"net/http"

	"servicecrm/internal/common"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ServiceCenterHeader selects the active service center for one request.
const ServiceCenterHeader = "X-Service-Center"

// ActiveTenantResolver returns the stored active service center of a user.
type ActiveTenantResolver interface {
	ResolveActiveTenant(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error)
}

// ActiveTenant puts the active service center id into the request context.
// The header wins over the stored selection; access is checked by the
// services, not here. Requests without any selection pass through untouched,
// and so do requests whose stored selection cannot be read.
func ActiveTenant(resolver ActiveTenantResolver, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID, ok := common.GetUserIDFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}

			if header := c.Request().Header.Get(ServiceCenterHeader); header != "" {
				centerID, err := common.ValidateUUID(header, ServiceCenterHeader)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, err.Error())
				}
				c.SetRequest(c.Request().WithContext(common.WithTenantID(ctx, centerID)))
				return next(c)
			}

			centerID, found, err := resolver.ResolveActiveTenant(ctx, userID)
			if err != nil {
				log.Warn("Active service center unavailable, continuing without one",
					zap.Stringer("user_id", userID), zap.Error(err))
				return next(c)
			}
			if found {
				c.SetRequest(c.Request().WithContext(common.WithTenantID(ctx, centerID)))
			}
			return next(c)
		}
	}
}
