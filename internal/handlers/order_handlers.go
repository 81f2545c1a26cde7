package handlers

import (
	"net/http"
	"strconv"

	"servicecrm/internal/common"
	"servicecrm/internal/models"
	"servicecrm/internal/services"

	"github.com/labstack/echo/v4"
)

// OrderHandlers handles HTTP requests for orders of the active service center
type OrderHandlers struct {
	orderService  services.OrderService
	exportService services.ExportService
}

func NewOrderHandlers(orderService services.OrderService, exportService services.ExportService) *OrderHandlers {
	return &OrderHandlers{
		orderService:  orderService,
		exportService: exportService,
	}
}

// parseOrderFilter reads q, status, sort, page and page_size.
func parseOrderFilter(c echo.Context) (models.OrderSearchFilter, error) {
	filter := models.OrderSearchFilter{
		Query: c.QueryParam("q"),
		Sort:  c.QueryParam("sort"),
	}
	verr := &common.ValidationError{}

	if status := c.QueryParam("status"); status != "" {
		parsed, err := models.ParseOrderStatus(status)
		if err != nil {
			verr.Add("status", err.Error())
		} else {
			filter.Status = &parsed
		}
	}
	if page := c.QueryParam("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil {
			verr.Add("page", "page must be a number")
		}
		filter.Page = n
	}
	if size := c.QueryParam("page_size"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			verr.Add("page_size", "page_size must be a number")
		}
		filter.PageSize = n
	}
	return filter, verr.OrNil()
}

// ListOrders handles GET /orders
func (h *OrderHandlers) ListOrders(c echo.Context) error {
	userID, centerID, err := activeCenter(c)
	if err != nil {
		return err
	}
	filter, err := parseOrderFilter(c)
	if err != nil {
		return err
	}

	page, err := h.orderService.List(c.Request().Context(), userID, centerID, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// GetOrder handles GET /orders/:id
func (h *OrderHandlers) GetOrder(c echo.Context) error {
	userID, centerID, err := activeCenter(c)
	if err != nil {
		return err
	}
	orderID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orderService.Get(c.Request().Context(), userID, centerID, orderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

// CreateOrder handles POST /orders
func (h *OrderHandlers) CreateOrder(c echo.Context) error {
	userID, centerID, err := activeCenter(c)
	if err != nil {
		return err
	}

	var draft models.OrderDraft
	if err := c.Bind(&draft); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	order, err := h.orderService.Create(c.Request().Context(), userID, centerID, &draft)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, order)
}

// UpdateOrder handles PUT /orders/:id
func (h *OrderHandlers) UpdateOrder(c echo.Context) error {
	userID, centerID, err := activeCenter(c)
	if err != nil {
		return err
	}
	orderID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var patch models.OrderPatch
	if err := c.Bind(&patch); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	order, err := h.orderService.Update(c.Request().Context(), userID, centerID, orderID, &patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

// DeleteOrder handles DELETE /orders/:id
func (h *OrderHandlers) DeleteOrder(c echo.Context) error {
	userID, centerID, err := activeCenter(c)
	if err != nil {
		return err
	}
	orderID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.orderService.Delete(c.Request().Context(), userID, centerID, orderID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ExportOrders handles POST /orders/export with the list query parameters
func (h *OrderHandlers) ExportOrders(c echo.Context) error {
	userID, centerID, err := activeCenter(c)
	if err != nil {
		return err
	}
	filter, err := parseOrderFilter(c)
	if err != nil {
		return err
	}

	result, err := h.exportService.Export(c.Request().Context(), userID, centerID, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}
