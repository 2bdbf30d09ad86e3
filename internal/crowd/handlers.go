package crowd

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/saaj376/SafeTrace/internal/validation"
)

// Handler provides HTTP endpoints for crowd tracking.
type Handler struct {
	tracker *Tracker
}

// NewHandler creates a new crowd handler.
func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

// RegisterRoutes sets up crowd routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/visits", h.RecordVisit)
	r.GET("/crowd/segments/:id", h.GetScore)
}

// VisitRequest is the request body for recording a segment visit.
type VisitRequest struct {
	SegmentID *int64 `json:"segment_id" binding:"required"`
}

// RecordVisit handles POST /v1/visits
func (h *Handler) RecordVisit(c *gin.Context) {
	var req VisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "segment_id is required",
		})
		return
	}
	if errs := validation.Validate(
		validation.NonNegativeID("segment_id", *req.SegmentID),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
		})
		return
	}

	h.tracker.RecordVisit(*req.SegmentID)
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

// GetScore handles GET /v1/crowd/segments/:id
func (h *Handler) GetScore(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "segment id must be an integer",
		})
		return
	}
	if errs := validation.Validate(
		validation.NonNegativeID("segment_id", id),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"segment_id":   id,
		"shadow_score": h.tracker.Score(id),
	})
}
