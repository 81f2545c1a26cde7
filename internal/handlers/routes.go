package handlers

import (
	"github.com/labstack/echo/v4"
)

// Handlers groups the API handlers mounted under /v1.
type Handlers struct {
	ServiceCenters *ServiceCenterHandlers
	Orders         *OrderHandlers
	Analytics      *AnalyticsHandlers
	DemoData       *DemoDataHandlers
}

// Register mounts the authenticated routes on g. expensive wraps the export
// and demo data endpoints, typically with a rate limit.
func (h *Handlers) Register(g *echo.Group, expensive ...echo.MiddlewareFunc) {
	centers := g.Group("/service-centers")
	centers.GET("", h.ServiceCenters.ListServiceCenters)
	centers.POST("", h.ServiceCenters.CreateServiceCenter)
	centers.GET("/:id", h.ServiceCenters.GetServiceCenter)
	centers.PUT("/:id", h.ServiceCenters.RenameServiceCenter)
	centers.DELETE("/:id", h.ServiceCenters.DeleteServiceCenter)
	centers.POST("/:id/select", h.ServiceCenters.SelectServiceCenter)
	centers.POST("/:id/leave", h.ServiceCenters.LeaveServiceCenter)
	centers.GET("/:id/members", h.ServiceCenters.ListMembers)
	centers.POST("/:id/members", h.ServiceCenters.AddMember)
	centers.DELETE("/:id/members/:user_id", h.ServiceCenters.RemoveMember)

	g.GET("/orders", h.Orders.ListOrders)
	g.POST("/orders", h.Orders.CreateOrder)
	g.POST("/orders/export", h.Orders.ExportOrders, expensive...)
	g.GET("/orders/:id", h.Orders.GetOrder)
	g.PUT("/orders/:id", h.Orders.UpdateOrder)
	g.DELETE("/orders/:id", h.Orders.DeleteOrder)

	g.GET("/analytics", h.Analytics.GetAnalytics)
	g.POST("/demo-data", h.DemoData.GenerateDemoData, expensive...)
	g.DELETE("/demo-data", h.DemoData.ClearDemoData, expensive...)
}
