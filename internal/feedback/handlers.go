package feedback

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/saaj376/SafeTrace/internal/validation"
)

// Handler provides HTTP endpoints for segment feedback.
type Handler struct {
	service *Service
}

// NewHandler creates a new feedback handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up feedback routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/feedback/route-review", h.SubmitRouteReview)
	r.GET("/feedback/segments/:id", h.GetSegment)
}

// SegmentRating is one rated segment in a route review.
type SegmentRating struct {
	SegmentID int64 `json:"segment_id"`
	Rating    int   `json:"rating" binding:"required"`
}

// RouteReviewRequest is the request body for post-trip route feedback.
type RouteReviewRequest struct {
	SegmentFeedback []SegmentRating `json:"segment_feedback" binding:"required,dive"`
}

// SubmitRouteReview handles POST /v1/feedback/route-review
func (h *Handler) SubmitRouteReview(c *gin.Context) {
	var req RouteReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	for _, sr := range req.SegmentFeedback {
		if errs := validation.Validate(
			validation.NonNegativeID("segment_id", sr.SegmentID),
			validation.ValidRating("rating", sr.Rating),
		); len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": errs.Error(),
			})
			return
		}
	}

	updated := 0
	for _, sr := range req.SegmentFeedback {
		if _, err := h.service.Submit(c.Request.Context(), sr.SegmentID, sr.Rating); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": err.Error(),
			})
			return
		}
		updated++
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"updated_segments": updated,
	})
}

// GetSegment handles GET /v1/feedback/segments/:id
func (h *Handler) GetSegment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "segment id must be an integer",
		})
		return
	}

	fb, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if err == ErrSegmentNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No feedback recorded for this segment",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"segment": fb})
}
