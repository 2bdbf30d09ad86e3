package routing

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/saaj376/SafeTrace/internal/fusion"
	"github.com/saaj376/SafeTrace/internal/geo"
	"github.com/saaj376/SafeTrace/internal/logging"
	"github.com/saaj376/SafeTrace/internal/metrics"
	"github.com/saaj376/SafeTrace/internal/network"
	"github.com/saaj376/SafeTrace/internal/validation"
)

// Handler provides HTTP endpoints for route computation.
type Handler struct {
	finder *Finder
}

// NewHandler creates a new routing handler.
func NewHandler(finder *Finder) *Handler {
	return &Handler{finder: finder}
}

// RegisterRoutes sets up routing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/route/:mode", h.ComputeRoute)
}

// RouteRequest is the request body for route computation.
type RouteRequest struct {
	Origin      *geo.Coordinate `json:"origin" binding:"required"`
	Destination *geo.Coordinate `json:"destination" binding:"required"`
}

// ComputeRoute handles POST /v1/route/:mode
func (h *Handler) ComputeRoute(c *gin.Context) {
	mode, err := fusion.ParseMode(c.Param("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_mode",
			"message": "mode must be one of: safe, balanced, stealth, escort",
		})
		return
	}

	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "origin and destination are required",
		})
		return
	}
	if errs := validation.Validate(
		validation.ValidLatitude("origin.lat", req.Origin.Lat),
		validation.ValidLongitude("origin.lon", req.Origin.Lon),
		validation.ValidLatitude("destination.lat", req.Destination.Lat),
		validation.ValidLongitude("destination.lon", req.Destination.Lon),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
		})
		return
	}

	start := time.Now()
	route, err := h.finder.Route(c.Request.Context(), *req.Origin, *req.Destination, mode)
	metrics.RouteComputeDuration.With(prometheus.Labels{"mode": string(mode)}).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, network.ErrOutOfCoverage):
		metrics.RoutesComputedTotal.With(prometheus.Labels{"mode": string(mode), "result": "out_of_coverage"}).Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "out_of_coverage",
			"message": "origin or destination is outside the covered area",
		})
		return
	case errors.Is(err, ErrNoPath):
		metrics.RoutesComputedTotal.With(prometheus.Labels{"mode": string(mode), "result": "no_path"}).Inc()
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "no_path",
			"message": "no route exists between origin and destination",
		})
		return
	case err != nil:
		logging.L(c.Request.Context()).Error("route computation failed", "mode", mode, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "route computation failed",
		})
		return
	}

	metrics.RoutesComputedTotal.With(prometheus.Labels{"mode": string(mode), "result": "ok"}).Inc()
	c.JSON(http.StatusOK, route)
}
