package reservations

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agendamentos/backend/internal/middleware"
	"github.com/agendamentos/backend/internal/models"
	"github.com/agendamentos/backend/internal/reliability"
	"github.com/agendamentos/backend/pkg/response"
)

// CreateRequest is the body for POST /reservations.
type CreateRequest struct {
	EventID int64 `json:"event_id" binding:"required"`
}

// CancelRequest is the body for POST /reservations/:id/cancel.
type CancelRequest struct {
	Justification string `json:"justification"`
}

// AbsenceResetter clears a user's consecutive-absence counter after an
// attended event. Implemented by the user repository over the reliability
// tracker.
type AbsenceResetter interface {
	ResetConsecutiveAbsences(ctx context.Context, userID int64) error
}

// Handler handles booking HTTP endpoints.
type Handler struct {
	service  *Service
	absences AbsenceResetter
	logger   *zap.Logger
}

// NewHandler creates a reservations handler.
func NewHandler(service *Service, absences AbsenceResetter, logger *zap.Logger) *Handler {
	return &Handler{service: service, absences: absences, logger: logger}
}

// Create handles POST /reservations.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)

	r, err := h.service.Create(c.Request.Context(), userID, req.EventID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, r)
}

// Cancel handles POST /reservations/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)
	role := models.Role(c.GetString(middleware.ContextUserRole))

	if err := h.service.Cancel(c.Request.Context(), id, userID, role, req.Justification); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, gin.H{"cancelled": true})
}

// Get handles GET /reservations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)
	role := models.Role(c.GetString(middleware.ContextUserRole))

	detail, err := h.service.Get(c.Request.Context(), id, userID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, detail)
}

// ListMine handles GET /reservations.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(int64)
	list, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, list)
}

// Stats handles GET /stats.
func (h *Handler) Stats(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(int64)
	stats, err := h.service.UserStatistics(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, stats)
}

// MarkPresent handles POST /admin/reservations/:id/presence.
func (h *Handler) MarkPresent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.service.RecordPresence(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	// Attending resets the user's consecutive-absence streak. The reset lives
	// outside the booking transaction; losing it only delays a lockout by one
	// absence, so a failure is logged rather than failing the check-in.
	if h.absences != nil {
		if err := h.absences.ResetConsecutiveAbsences(c.Request.Context(), r.UserID); err != nil {
			h.logger.Warn("failed to reset absence streak", zap.Int64("user_id", r.UserID), zap.Error(err))
		}
	}
	response.OK(c, r)
}

// MarkAbsent handles POST /admin/reservations/:id/absence.
func (h *Handler) MarkAbsent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.RecordAbsence(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, gin.H{"absent": true})
}

// respondError maps domain errors to HTTP responses. Anything unrecognised is
// a storage failure: logged, surfaced as a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var lockErr *reliability.AccountLockedError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrEventNotFound), errors.Is(err, ErrUserNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrDuplicateActive), errors.Is(err, ErrNoCapacity):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrMissingJustification):
		response.BadRequest(c, err.Error())
	case errors.As(err, &lockErr):
		response.Forbidden(c, lockErr.Error())
	default:
		h.logger.Error("reservation operation failed", zap.Error(err))
		response.Internal(c, "operation failed, please try again")
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
