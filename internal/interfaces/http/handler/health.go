package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erp/dealbridge/internal/interfaces/http/dto"
)

const healthCheckTimeout = 2 * time.Second

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// HealthHandler serves GET /health
type HealthHandler struct {
	service   string
	version   string
	startTime time.Time
	names     []string
	checks    map[string]CheckFunc
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(service, version string) *HealthHandler {
	return &HealthHandler{
		service:   service,
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
}

// WithCheck adds a dependency probe. A failing probe turns the response
// into 503.
func (h *HealthHandler) WithCheck(name string, check CheckFunc) *HealthHandler {
	if _, exists := h.checks[name]; !exists {
		h.names = append(h.names, name)
		sort.Strings(h.names)
	}
	h.checks[name] = check
	return h
}

// RegisterRoutes implements router.RouteRegistrar
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}

// Health reports liveness and the result of every registered probe
func (h *HealthHandler) Health(c *gin.Context) {
	data := dto.HealthData{
		Status:  "ok",
		Service: h.service,
		Version: h.version,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	}

	if len(h.names) > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		data.Checks = make(map[string]string, len(h.names))
		for _, name := range h.names {
			if err := h.checks[name](ctx); err != nil {
				data.Status = "degraded"
				data.Checks[name] = err.Error()
				continue
			}
			data.Checks[name] = "ok"
		}
	}

	if data.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: data})
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}
