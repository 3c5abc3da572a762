package scoring

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fintechlab/riskintel/internal/feature"
	"github.com/fintechlab/riskintel/internal/pagination"
)

// MaxBatchSize caps records per batch request.
const MaxBatchSize = 1000

// Handler provides HTTP endpoints for the scoring pipeline.
type Handler struct {
	service *Service
}

// NewHandler creates a new scoring handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up scoring routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/score", h.Score)
	r.POST("/score/batch", h.ScoreBatch)
	r.GET("/model", h.ModelInfo)
	r.GET("/assessments", h.ListAssessments)
	r.GET("/assessments/:id", h.GetAssessment)
}

// BatchRequest wraps the records of a batch scoring request.
type BatchRequest struct {
	Transactions []feature.Record `json:"transactions" binding:"required"`
}

// Score handles POST /score.
func (h *Handler) Score(c *gin.Context) {
	var rec feature.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, serr := h.service.ScoreOne(c.Request.Context(), rec)
	if serr != nil {
		c.JSON(statusFor(serr.Kind), gin.H{
			"error":   string(serr.Kind),
			"message": serr.Message,
			"stage":   serr.Stage,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": result,
	})
}

// ScoreBatch handles POST /score/batch.
func (h *Handler) ScoreBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Batch must contain at least one transaction",
		})
		return
	}
	if len(req.Transactions) > MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "batch_too_large",
			"message": "Batch exceeds " + strconv.Itoa(MaxBatchSize) + " transactions",
		})
		return
	}

	items, serr := h.service.ScoreBatch(c.Request.Context(), req.Transactions)
	if serr != nil {
		c.JSON(statusFor(serr.Kind), gin.H{
			"error":   string(serr.Kind),
			"message": serr.Message,
			"stage":   serr.Stage,
		})
		return
	}

	completed := 0
	for _, item := range items {
		if item.Stage == StageCompleted {
			completed++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results":   items,
		"count":     len(items),
		"completed": completed,
		"failed":    len(items) - completed,
	})
}

// ModelInfo handles GET /model.
func (h *Handler) ModelInfo(c *gin.Context) {
	meta := h.service.Metadata()
	schema := h.service.Schema()

	c.JSON(http.StatusOK, gin.H{
		"model": gin.H{
			"version":           meta.Version,
			"type":              meta.Type,
			"trained_at":        meta.TrainedAt,
			"optimal_threshold": meta.OptimalThreshold,
			"metrics":           meta.Metrics,
		},
		"schema": gin.H{
			"version":     schema.Version,
			"fingerprint": schema.Fingerprint(),
			"features":    schema.Names(),
		},
		"thresholds": gin.H{
			"low":  h.service.Thresholds().Low,
			"high": h.service.Thresholds().High,
		},
	})
}

// ListAssessments handles GET /assessments.
func (h *Handler) ListAssessments(c *gin.Context) {
	if h.service.store == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "audit_disabled",
			"message": "Assessment audit trail is not configured",
		})
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	cursor := c.Query("cursor")
	if _, err := pagination.Decode(cursor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "Malformed pagination cursor",
		})
		return
	}

	opts := ListOptions{
		Limit:       limit,
		Band:        Band(c.Query("band")),
		UserID:      c.Query("user_id"),
		AfterCursor: cursor,
	}

	assessments, err := h.service.store.List(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Could not list assessments",
		})
		return
	}

	page, next, hasMore := pagination.ComputePage(assessments, limit, func(a *Assessment) (time.Time, string) {
		return a.CreatedAt, a.ID
	})

	c.JSON(http.StatusOK, gin.H{
		"assessments": page,
		"count":       len(page),
		"next_cursor": next,
		"has_more":    hasMore,
	})
}

// GetAssessment handles GET /assessments/:id.
func (h *Handler) GetAssessment(c *gin.Context) {
	if h.service.store == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "audit_disabled",
			"message": "Assessment audit trail is not configured",
		})
		return
	}

	a, err := h.service.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrAssessmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Assessment not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "get_failed",
			"message": "Could not load assessment",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assessment": a})
}

// statusFor maps error kinds to HTTP status codes: bad data is the
// caller's fault, deployment faults are ours.
func statusFor(kind ErrorKind) int {
	switch kind {
	case KindSchemaViolation:
		return http.StatusBadRequest
	case KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
