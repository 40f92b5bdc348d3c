package history

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agendamentos/backend/internal/middleware"
	"github.com/agendamentos/backend/pkg/database"
	"github.com/agendamentos/backend/pkg/response"
)

// Handler serves the audit trail.
type Handler struct {
	db     database.Querier
	logger *zap.Logger
}

// NewHandler creates a history handler.
func NewHandler(db database.Querier, logger *zap.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// ListMine handles GET /history. An optional limit query caps the page.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(int64)
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := ListByUser(c.Request.Context(), h.db, userID, limit)
	if err != nil {
		h.logger.Error("failed to list history", zap.Error(err))
		response.Internal(c, "failed to list history")
		return
	}
	response.OK(c, list)
}

// ListForUser handles GET /admin/users/:id/history.
func (h *Handler) ListForUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := ListByUser(c.Request.Context(), h.db, id, limit)
	if err != nil {
		h.logger.Error("failed to list history", zap.Error(err))
		response.Internal(c, "failed to list history")
		return
	}
	response.OK(c, list)
}
