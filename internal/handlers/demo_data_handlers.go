package handlers

import (
	"net/http"

	"servicecrm/internal/common"
	"servicecrm/internal/services"

	"github.com/labstack/echo/v4"
)

type DemoDataHandlers struct {
	demoData services.DemoDataService
}

func NewDemoDataHandlers(demoData services.DemoDataService) *DemoDataHandlers {
	return &DemoDataHandlers{demoData: demoData}
}

// DemoDataRequest sets how many orders to generate
type DemoDataRequest struct {
	Count int `json:"count"`
}

// GenerateDemoData handles POST /demo-data
func (h *DemoDataHandlers) GenerateDemoData(c echo.Context) error {
	userID, centerID, err := activeCenter(c)
	if err != nil {
		return err
	}

	var req DemoDataRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	orders, err := h.demoData.Generate(c.Request().Context(), userID, centerID, req.Count)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"created": len(orders),
	})
}

// ClearDemoData handles DELETE /demo-data. It removes every order of the
// active service center.
func (h *DemoDataHandlers) ClearDemoData(c echo.Context) error {
	userID, centerID, err := activeCenter(c)
	if err != nil {
		return err
	}

	deleted, err := h.demoData.Clear(c.Request().Context(), userID, centerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	})
}
