package handlers

import (
	"context"
	"net/http"

	"servicecrm/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AnalyticsReader serves analytics of a service center.
type AnalyticsReader interface {
	Get(ctx context.Context, actorID, centerID uuid.UUID, period string) (*models.AnalyticsResult, error)
}

type AnalyticsHandlers struct {
	analytics AnalyticsReader
}

func NewAnalyticsHandlers(analytics AnalyticsReader) *AnalyticsHandlers {
	return &AnalyticsHandlers{analytics: analytics}
}

// GetAnalytics handles GET /analytics?period=month|year
func (h *AnalyticsHandlers) GetAnalytics(c echo.Context) error {
	userID, centerID, err := activeCenter(c)
	if err != nil {
		return err
	}

	result, err := h.analytics.Get(c.Request().Context(), userID, centerID, c.QueryParam("period"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
