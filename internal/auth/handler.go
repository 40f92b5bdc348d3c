package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agendamentos/backend/internal/models"
	"github.com/agendamentos/backend/internal/reliability"
	"github.com/agendamentos/backend/pkg/response"
	"github.com/agendamentos/backend/pkg/utils"
)

const passwordRule = "password must have at least 8 characters including a letter, a digit and a special character"

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest is the body for PUT /auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// UpdateProfileRequest is the body for PUT /auth/profile.
type UpdateProfileRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

// Handler handles auth and user-management HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !utils.ValidPassword(req.Password) {
		response.BadRequest(c, passwordRule)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Name, req.Email, req.Phone, hash)
	if errors.Is(err, ErrEmailTaken) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login. A lock past its expiry is lifted here
// before the credential check result is returned.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to load user", zap.Error(err))
		response.Internal(c, "login failed, please try again")
		return
	}
	if user == nil || !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if err := h.repo.EnsureUnlocked(c.Request.Context(), user, time.Now()); err != nil {
		var lockErr *reliability.AccountLockedError
		if errors.As(err, &lockErr) {
			response.Forbidden(c, fmt.Sprintf(
				"account locked for repeated absences, try again in %d day(s)", lockErr.RemainingDays))
			return
		}
		h.logger.Error("failed to lift expired lock", zap.Int64("user_id", user.ID), zap.Error(err))
		response.Internal(c, "login failed, please try again")
		return
	}

	if err := h.repo.TouchLastAccess(c.Request.Context(), user.ID, time.Now()); err != nil {
		h.logger.Warn("failed to stamp last access", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	c.JSON(http.StatusOK, response.Body{Success: true, Data: TokenResponse{Token: token, User: user.ToPublic()}})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(ContextUserID).(int64)
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load user", zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	if user == nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}

// UpdateProfile handles PUT /auth/profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(ContextUserID).(int64)
	if err := h.repo.UpdateProfile(c.Request.Context(), userID, req.Name, req.Phone); err != nil {
		h.logger.Error("failed to update profile", zap.Error(err))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// ChangePassword handles PUT /auth/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !utils.ValidPassword(req.NewPassword) {
		response.BadRequest(c, passwordRule)
		return
	}

	userID := c.MustGet(ContextUserID).(int64)
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		response.Internal(c, "failed to load profile")
		return
	}
	if !utils.CheckPassword(req.CurrentPassword, user.Password) {
		response.Unauthorized(c, "current password does not match")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	if err := h.repo.UpdatePassword(c.Request.Context(), userID, hash); err != nil {
		h.logger.Error("failed to update password", zap.Error(err))
		response.Internal(c, "failed to update password")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// List handles GET /admin/users.
func (h *Handler) List(c *gin.Context) {
	users, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, users)
}

// Patch handles PATCH /admin/users/:id.
func (h *Handler) Patch(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return
	}
	var patch UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if patch.Role != nil && *patch.Role != models.RoleAdmin && *patch.Role != models.RoleUser {
		response.BadRequest(c, "invalid role")
		return
	}
	user, err := h.repo.Apply(c.Request.Context(), id, patch)
	if errors.Is(err, ErrUserNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to patch user", zap.Error(err))
		response.Internal(c, "failed to update user")
		return
	}
	response.OK(c, user.ToPublic())
}

// Unlock handles POST /admin/users/:id/unlock.
func (h *Handler) Unlock(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return
	}
	if err := h.repo.Unlock(c.Request.Context(), id); err != nil {
		h.logger.Error("failed to unlock user", zap.Error(err))
		response.Internal(c, "failed to unlock user")
		return
	}
	response.OK(c, gin.H{"unlocked": true})
}
