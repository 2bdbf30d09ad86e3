package monitor

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/saaj376/SafeTrace/internal/fusion"
	"github.com/saaj376/SafeTrace/internal/geo"
	"github.com/saaj376/SafeTrace/internal/logging"
	"github.com/saaj376/SafeTrace/internal/metrics"
	"github.com/saaj376/SafeTrace/internal/network"
	"github.com/saaj376/SafeTrace/internal/routing"
	"github.com/saaj376/SafeTrace/internal/validation"
)

// Handler provides HTTP endpoints for route monitoring.
type Handler struct {
	service *Service
	finder  *routing.Finder
}

// NewHandler creates a new monitor handler. The finder powers rerouting.
func NewHandler(service *Service, finder *routing.Finder) *Handler {
	return &Handler{service: service, finder: finder}
}

// RegisterRoutes sets up monitoring routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/alerts/check-status", h.CheckStatus)
	r.POST("/alerts/reroute", h.Reroute)
}

// CheckStatusRequest is the request body for a route status check.
type CheckStatusRequest struct {
	CurrentLocation *geo.Coordinate `json:"current_location" binding:"required"`
	RemainingNodes  []int64         `json:"remaining_nodes" binding:"required"`
}

// CheckStatus handles POST /v1/alerts/check-status
func (h *Handler) CheckStatus(c *gin.Context) {
	var req CheckStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "current_location and remaining_nodes are required",
		})
		return
	}
	if errs := validation.Validate(
		validation.ValidLatitude("current_location.lat", req.CurrentLocation.Lat),
		validation.ValidLongitude("current_location.lon", req.CurrentLocation.Lon),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
		})
		return
	}

	alert := h.service.CheckStatus(c.Request.Context(), *req.CurrentLocation, req.RemainingNodes)
	if alert.ActionRequired {
		label := "deviation"
		if alert.Type == AlertHazardAhead {
			label = "hazard_ahead"
		}
		metrics.AlertsTotal.With(prometheus.Labels{"type": label}).Inc()
	}
	c.JSON(http.StatusOK, alert)
}

// RerouteRequest is the request body for recomputing a route mid-journey.
type RerouteRequest struct {
	CurrentLocation *geo.Coordinate `json:"current_location" binding:"required"`
	Destination     *geo.Coordinate `json:"destination" binding:"required"`
	Mode            string          `json:"mode"`
}

// Reroute handles POST /v1/alerts/reroute
func (h *Handler) Reroute(c *gin.Context) {
	var req RerouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "current_location, destination, and mode are required",
		})
		return
	}
	if errs := validation.Validate(
		validation.Required("mode", req.Mode),
		validation.ValidLatitude("current_location.lat", req.CurrentLocation.Lat),
		validation.ValidLongitude("current_location.lon", req.CurrentLocation.Lon),
		validation.ValidLatitude("destination.lat", req.Destination.Lat),
		validation.ValidLongitude("destination.lon", req.Destination.Lon),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
		})
		return
	}
	mode, err := fusion.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_mode",
			"message": "mode must be one of: safe, balanced, stealth, escort",
		})
		return
	}

	route, err := h.finder.Route(c.Request.Context(), *req.CurrentLocation, *req.Destination, mode)
	switch {
	case errors.Is(err, network.ErrOutOfCoverage):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "out_of_coverage",
			"message": "current location or destination is outside the covered area",
		})
		return
	case errors.Is(err, routing.ErrNoPath):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "no_path",
			"message": "no route exists from the current location",
		})
		return
	case err != nil:
		logging.L(c.Request.Context()).Error("reroute failed", "mode", mode, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "reroute failed",
		})
		return
	}

	metrics.RoutesComputedTotal.With(prometheus.Labels{"mode": string(mode), "result": "ok"}).Inc()
	c.JSON(http.StatusOK, route)
}
