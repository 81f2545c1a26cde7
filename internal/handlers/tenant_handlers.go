package handlers

import (
	"net/http"

	"servicecrm/internal/common"
	"servicecrm/internal/services"

	"github.com/labstack/echo/v4"
)

// ServiceCenterHandlers handles service center and membership requests
type ServiceCenterHandlers struct {
	tenantService services.TenantService
}

func NewServiceCenterHandlers(tenantService services.TenantService) *ServiceCenterHandlers {
	return &ServiceCenterHandlers{tenantService: tenantService}
}

// ServiceCenterRequest is the create and rename payload
type ServiceCenterRequest struct {
	Name string `json:"name"`
}

// AddMemberRequest names the user to add
type AddMemberRequest struct {
	UserID string `json:"user_id"`
}

// ListServiceCenters handles GET /service-centers
func (h *ServiceCenterHandlers) ListServiceCenters(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	centers, err := h.tenantService.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	active, _ := common.GetTenantIDFromContext(c.Request().Context())
	items := make([]map[string]interface{}, 0, len(centers))
	for _, center := range centers {
		items = append(items, map[string]interface{}{
			"id":         center.ID,
			"name":       center.Name,
			"admin_id":   center.AdminID,
			"created_at": center.CreatedAt,
			"role":       center.Role(userID),
			"active":     center.ID == active,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"service_centers": items})
}

// CreateServiceCenter handles POST /service-centers
func (h *ServiceCenterHandlers) CreateServiceCenter(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req ServiceCenterRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	center, err := h.tenantService.CreateTenant(c.Request().Context(), userID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, center)
}

// GetServiceCenter handles GET /service-centers/:id
func (h *ServiceCenterHandlers) GetServiceCenter(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	centerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	center, err := h.tenantService.Get(c.Request().Context(), userID, centerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, center)
}

// RenameServiceCenter handles PUT /service-centers/:id
func (h *ServiceCenterHandlers) RenameServiceCenter(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	centerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req ServiceCenterRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	center, err := h.tenantService.Rename(c.Request().Context(), userID, centerID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, center)
}

// DeleteServiceCenter handles DELETE /service-centers/:id
func (h *ServiceCenterHandlers) DeleteServiceCenter(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	centerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.tenantService.Delete(c.Request().Context(), userID, centerID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SelectServiceCenter handles POST /service-centers/:id/select
func (h *ServiceCenterHandlers) SelectServiceCenter(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	centerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	center, err := h.tenantService.Select(c.Request().Context(), userID, centerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, center)
}

// ListMembers handles GET /service-centers/:id/members
func (h *ServiceCenterHandlers) ListMembers(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	centerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	members, err := h.tenantService.ListMembers(c.Request().Context(), userID, centerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"members": members})
}

// AddMember handles POST /service-centers/:id/members
func (h *ServiceCenterHandlers) AddMember(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	centerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req AddMemberRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	memberID, err := common.ValidateUUID(req.UserID, "user_id")
	if err != nil {
		return common.SendValidationError(c, map[string]string{"user_id": err.Error()})
	}

	member, err := h.tenantService.AddMember(c.Request().Context(), userID, centerID, memberID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, member)
}

// RemoveMember handles DELETE /service-centers/:id/members/:user_id
func (h *ServiceCenterHandlers) RemoveMember(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	centerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	targetID, err := pathUUID(c, "user_id")
	if err != nil {
		return err
	}

	if err := h.tenantService.RemoveMember(c.Request().Context(), userID, centerID, targetID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// LeaveServiceCenter handles POST /service-centers/:id/leave
func (h *ServiceCenterHandlers) LeaveServiceCenter(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	centerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.tenantService.Leave(c.Request().Context(), userID, centerID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
