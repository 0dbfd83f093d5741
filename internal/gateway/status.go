package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/svcgw/apigateway/internal/router"
)

// ServiceName identifies the gateway in health responses.
const ServiceName = "api-gateway"

// HealthStatus is the liveness response body. It reflects only the
// gateway itself, never backend state.
type HealthStatus struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceInfo describes a registered backend service.
type ServiceInfo struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
	Status string `json:"status"`
}

// GatewayStatus is the status endpoint response body.
type GatewayStatus struct {
	Status   string        `json:"status"`
	Version  string        `json:"version"`
	Services []ServiceInfo `json:"services"`
}

// statusHandler serves the gateway-owned endpoints.
type statusHandler struct {
	table   *router.Table
	version string
}

// newStatusHandler creates the handler over an immutable route table.
func newStatusHandler(table *router.Table, version string) *statusHandler {
	return &statusHandler{table: table, version: version}
}

// health handles GET /health. It must respond without touching any
// backend.
func (h *statusHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthStatus{
		Status:    "healthy",
		Service:   ServiceName,
		Version:   h.version,
		Timestamp: time.Now().UTC(),
	})
}

// status handles GET /api/gateway/status.
func (h *statusHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, GatewayStatus{
		Status:   "running",
		Version:  h.version,
		Services: h.listServices(),
	})
}

// services handles GET /api/gateway/services.
func (h *statusHandler) services(c *gin.Context) {
	c.JSON(http.StatusOK, h.listServices())
}

// listServices builds the ServiceInfo list in route order.
func (h *statusHandler) listServices() []ServiceInfo {
	routes := h.table.Routes()
	infos := make([]ServiceInfo, 0, len(routes))
	for _, route := range routes {
		infos = append(infos, ServiceInfo{
			Name:   route.Name,
			Prefix: route.Prefix,
			Status: "configured",
		})
	}
	return infos
}
