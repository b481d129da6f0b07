package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/clockbill/clockbill/internal/domain/user"
	"github.com/clockbill/clockbill/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AdminUsersStore interface {
	List(ctx context.Context) ([]user.User, error)
	SetRoleAndActive(ctx context.Context, id int64, role string, active bool) (user.User, error)
}

type AdminHandler struct {
	users AdminUsersStore
	log   *slog.Logger
}

func NewAdminHandler(users AdminUsersStore, log *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, log: log}
}

func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	users, err := h.users.List(ctx.Request.Context())

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": users})
}

// UpdateUser toggles role and active. An administrator can neither strip
// their own admin role nor deactivate their own account; either one would
// lock the acting admin out on their next request.
func (h *AdminHandler) UpdateUser(ctx *gin.Context) {
	actorID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	id, ok := pathID(ctx, "userId")
	if !ok {
		return
	}

	var req user.AdminUpdateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if id == actorID && (req.Role != user.RoleAdmin || !*req.Active) {
		RespondConflict(ctx, "cannot_demote_self", "Administrators cannot demote or deactivate themselves")
		return
	}

	u, err := h.users.SetRoleAndActive(ctx.Request.Context(), id, req.Role, *req.Active)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	h.log.Info("user updated by admin", "admin_id", actorID, "user_id", u.ID, "role", u.Role, "active", u.Active)

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}
