package reports

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agendamentos/backend/internal/middleware"
	"github.com/agendamentos/backend/pkg/queue"
	"github.com/agendamentos/backend/pkg/response"
	"github.com/agendamentos/backend/pkg/storage"
)

// ExportRequest is the body for POST /admin/reports/export.
type ExportRequest struct {
	Kind    string `json:"kind" binding:"required"`
	EventID int64  `json:"event_id"`
}

// Handler handles report HTTP endpoints.
type Handler struct {
	repo   *Repository
	queue  *queue.Queue
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a reports handler.
func NewHandler(repo *Repository, q *queue.Queue, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, queue: q, s3: s3, logger: logger}
}

// Reservations handles GET /admin/reports/reservations.
func (h *Handler) Reservations(c *gin.Context) {
	eventID, ok := queryEventID(c)
	if !ok {
		return
	}
	rows, err := h.repo.Reservations(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("failed to build reservations report", zap.Error(err))
		response.Internal(c, "failed to build report")
		return
	}
	response.OK(c, rows)
}

// Users handles GET /admin/reports/users.
func (h *Handler) Users(c *gin.Context) {
	rows, err := h.repo.Users(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to build users report", zap.Error(err))
		response.Internal(c, "failed to build report")
		return
	}
	response.OK(c, rows)
}

// Presence handles GET /admin/reports/presence/:id, the check-in sheet for
// one event.
func (h *Handler) Presence(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return
	}
	rows, err := h.repo.Presence(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to build presence sheet", zap.Error(err))
		response.Internal(c, "failed to build report")
		return
	}
	response.OK(c, rows)
}

// Export handles POST /admin/reports/export: queues a CSV export and returns
// its id for polling.
func (h *Handler) Export(c *gin.Context) {
	// Without object storage the worker has nowhere to put the file.
	if h.s3 == nil {
		response.ServiceUnavailable(c, "exports are disabled, object storage is not configured")
		return
	}
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	switch req.Kind {
	case queue.ExportReservations, queue.ExportUsers, queue.ExportPresence:
	default:
		response.BadRequest(c, "invalid kind")
		return
	}
	if req.Kind == queue.ExportPresence && req.EventID <= 0 {
		response.BadRequest(c, "event_id is required for presence exports")
		return
	}

	payload := queue.ExportPayload{
		ExportID:    uuid.New(),
		Kind:        req.Kind,
		EventID:     req.EventID,
		RequestedBy: c.MustGet(middleware.ContextUserID).(int64),
	}
	if err := h.queue.EnqueueExport(c.Request.Context(), payload); err != nil {
		h.logger.Error("failed to enqueue export", zap.Error(err))
		response.Internal(c, "failed to queue export")
		return
	}
	c.JSON(http.StatusAccepted, response.Body{Success: true, Data: gin.H{"export_id": payload.ExportID}})
}

// ExportStatus handles GET /admin/reports/export/:id: pending until the
// worker has uploaded the file, then a presigned download link.
func (h *Handler) ExportStatus(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "exports are disabled, object storage is not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export id")
		return
	}
	key := storage.ExportKey(id.String())
	if !h.s3.ObjectExists(c.Request.Context(), h.s3.ExportsBucket(), key) {
		response.OK(c, gin.H{"status": "pending"})
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.ExportsBucket(), key, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("failed to presign export", zap.Error(err))
		response.Internal(c, "failed to build download link")
		return
	}
	response.OK(c, gin.H{"status": "ready", "url": url})
}

func queryEventID(c *gin.Context) (int64, bool) {
	raw := c.Query("event_id")
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid event_id")
		return 0, false
	}
	return id, true
}
