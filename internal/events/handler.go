package events

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agendamentos/backend/internal/middleware"
	"github.com/agendamentos/backend/internal/models"
	"github.com/agendamentos/backend/pkg/response"
)

// CreateRequest is the body for POST /admin/events.
type CreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Date        string `json:"date" binding:"required"` // YYYY-MM-DD
	Time        string `json:"time" binding:"required"` // HH:MM
	Location    string `json:"location"`
	GateOpens   string `json:"gate_opens"`
	TotalSeats  int    `json:"total_seats" binding:"required,min=1"`
	Notes       string `json:"notes"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// ListAvailable handles GET /events. The listing is annotated with the
// caller's booking state.
func (h *Handler) ListAvailable(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(int64)
	list, err := h.repo.ListAvailableForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to load event", zap.Error(err))
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, ErrNotFound.Error())
		return
	}
	response.OK(c, e)
}

// ListAll handles GET /admin/events.
func (h *Handler) ListAll(c *gin.Context) {
	list, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		response.BadRequest(c, "invalid date, expected YYYY-MM-DD")
		return
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		response.BadRequest(c, "invalid time, expected HH:MM")
		return
	}
	if req.GateOpens != "" {
		if _, err := time.Parse("15:04", req.GateOpens); err != nil {
			response.BadRequest(c, "invalid gate_opens, expected HH:MM")
			return
		}
	}

	e := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Date:        date,
		Time:        req.Time,
		Location:    req.Location,
		GateOpens:   req.GateOpens,
		TotalSeats:  req.TotalSeats,
		Notes:       req.Notes,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("failed to create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// Update handles PATCH /admin/events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch EventPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if patch.Date != nil {
		if _, err := time.Parse("2006-01-02", *patch.Date); err != nil {
			response.BadRequest(c, "invalid date, expected YYYY-MM-DD")
			return
		}
	}
	if patch.Time != nil {
		if _, err := time.Parse("15:04", *patch.Time); err != nil {
			response.BadRequest(c, "invalid time, expected HH:MM")
			return
		}
	}
	if patch.Status != nil && *patch.Status != models.EventActive && *patch.Status != models.EventInactive {
		response.BadRequest(c, "invalid status")
		return
	}

	e, err := h.repo.Apply(c.Request.Context(), id, patch)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to update event", zap.Error(err))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /admin/events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.repo.Delete(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to delete event", zap.Error(err))
		response.Internal(c, "failed to delete event")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

// Statistics handles GET /admin/events/:id/stats.
func (h *Handler) Statistics(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	stats, err := h.repo.Statistics(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to load event statistics", zap.Error(err))
		response.Internal(c, "failed to load event statistics")
		return
	}
	response.OK(c, stats)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
