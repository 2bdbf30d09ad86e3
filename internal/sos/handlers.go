package sos

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saaj376/SafeTrace/internal/geo"
	"github.com/saaj376/SafeTrace/internal/logging"
	"github.com/saaj376/SafeTrace/internal/validation"
)

// Handler provides HTTP endpoints for SOS sessions.
type Handler struct {
	service *Service
}

// NewHandler creates a new SOS handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up SOS routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sos/activate", h.Activate)
	r.POST("/sos/location-update", h.UpdateLocation)
	r.GET("/sos/status/:token", h.Status)
	r.POST("/sos/alert", h.ReportAlert)
	r.POST("/sos/deactivate", h.Deactivate)
}

// ActivateRequest is the request body for starting an SOS session.
type ActivateRequest struct {
	Location *geo.Coordinate `json:"location" binding:"required"`
}

// Activate handles POST /v1/sos/activate
func (h *Handler) Activate(c *gin.Context) {
	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "a valid location is required",
		})
		return
	}
	if errs := validation.Validate(
		validation.ValidLatitude("location.lat", req.Location.Lat),
		validation.ValidLongitude("location.lon", req.Location.Lon),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
		})
		return
	}

	session, err := h.service.Activate(c.Request.Context(), *req.Location)
	if err != nil {
		logging.L(c.Request.Context()).Error("sos activation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "could not activate sos session",
		})
		return
	}
	c.JSON(http.StatusCreated, session)
}

// UpdateLocationRequest is the request body for a session location update.
type UpdateLocationRequest struct {
	Token    string          `json:"token" binding:"required"`
	Location *geo.Coordinate `json:"location" binding:"required"`
}

// UpdateLocation handles POST /v1/sos/location-update
func (h *Handler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "token and a valid location are required",
		})
		return
	}
	if errs := validation.Validate(
		validation.ValidLatitude("location.lat", req.Location.Lat),
		validation.ValidLongitude("location.lon", req.Location.Lon),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
		})
		return
	}

	session, err := h.service.UpdateLocation(c.Request.Context(), req.Token, *req.Location)
	if h.writeSessionError(c, err, "sos location update failed") {
		return
	}
	c.JSON(http.StatusOK, session)
}

// Status handles GET /v1/sos/status/:token
func (h *Handler) Status(c *gin.Context) {
	session, err := h.service.Status(c.Request.Context(), c.Param("token"))
	if h.writeSessionError(c, err, "sos status lookup failed") {
		return
	}
	c.JSON(http.StatusOK, session)
}

// AlertRequest is the request body for forwarding a safety alert to guardians.
type AlertRequest struct {
	Token string                 `json:"token" binding:"required"`
	Alert map[string]interface{} `json:"alert" binding:"required"`
}

// ReportAlert handles POST /v1/sos/alert
func (h *Handler) ReportAlert(c *gin.Context) {
	var req AlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "token and alert are required",
		})
		return
	}

	// Guardian clients render the alert message verbatim; cap and clean it.
	if msg, ok := req.Alert["message"].(string); ok {
		if errs := validation.Validate(
			validation.MaxLength("alert.message", msg, validation.MaxStringLength),
		); len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": errs.Error(),
			})
			return
		}
		req.Alert["message"] = validation.SanitizeString(msg, validation.MaxStringLength)
	}

	err := h.service.ReportAlert(c.Request.Context(), req.Token, req.Alert)
	if h.writeSessionError(c, err, "sos alert forwarding failed") {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "forwarded"})
}

// DeactivateRequest is the request body for ending a session.
type DeactivateRequest struct {
	Token string `json:"token" binding:"required"`
}

// Deactivate handles POST /v1/sos/deactivate
func (h *Handler) Deactivate(c *gin.Context) {
	var req DeactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "token is required",
		})
		return
	}

	session, err := h.service.Deactivate(c.Request.Context(), req.Token)
	if h.writeSessionError(c, err, "sos deactivation failed") {
		return
	}
	c.JSON(http.StatusOK, session)
}

// writeSessionError maps service errors onto HTTP responses. Returns true
// when a response was written.
func (h *Handler) writeSessionError(c *gin.Context, err error, logMsg string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "session_not_found",
			"message": "no active session for that token",
		})
	case errors.Is(err, ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "session_ended",
			"message": "the session has already ended",
		})
	default:
		logging.L(c.Request.Context()).Error(logMsg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "sos operation failed",
		})
	}
	return true
}
