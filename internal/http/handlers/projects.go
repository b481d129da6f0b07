package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/clockbill/clockbill/internal/cache"
	"github.com/clockbill/clockbill/internal/domain/project"
	"github.com/clockbill/clockbill/internal/http/middlewares"
	"github.com/clockbill/clockbill/internal/observability"
	"github.com/gin-gonic/gin"
)

type ProjectsStore interface {
	Create(ctx context.Context, userID, customerID int64, req project.CreateProjectRequest) (project.Project, bool, error)
	List(ctx context.Context, userID, customerID int64, withTasks bool) ([]project.Project, error)
	GetByID(ctx context.Context, userID, customerID, projectID int64) (project.Project, error)
	Update(ctx context.Context, userID, customerID, projectID int64, req project.UpdateProjectRequest) (project.Project, error)
	Delete(ctx context.Context, userID, customerID, projectID int64) error
}

type ProjectsHandler struct {
	store ProjectsStore
	cache *cache.Cache
	prom  *observability.Prom
	log   *slog.Logger
}

func NewProjectsHandler(store ProjectsStore, c *cache.Cache, prom *observability.Prom, log *slog.Logger) *ProjectsHandler {
	return &ProjectsHandler{store: store, cache: c, prom: prom, log: log}
}

// project mutations also invalidate the cached customer listings, which may
// embed projects
func (h *ProjectsHandler) invalidate(userID int64) {
	if h.cache != nil {
		h.cache.DeletePrefix(customerCachePrefix(userID))
	}
}

func (h *ProjectsHandler) scope(ctx *gin.Context) (userID, customerID int64, ok bool) {
	userID, ok = middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return 0, 0, false
	}

	customerID, ok = pathID(ctx, "customerId")
	if !ok {
		return 0, 0, false
	}

	return userID, customerID, true
}

func (h *ProjectsHandler) List(ctx *gin.Context) {
	userID, customerID, ok := h.scope(ctx)
	if !ok {
		return
	}

	withTasks := ctx.Query("include") == "tasks"

	projects, err := h.store.List(ctx.Request.Context(), userID, customerID, withTasks)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Create adds a project under the customer. Unless the request carries its
// own invoice number, one is drawn from the owner's sequence.
func (h *ProjectsHandler) Create(ctx *gin.Context) {
	userID, customerID, ok := h.scope(ctx)
	if !ok {
		return
	}

	var req project.CreateProjectRequest

	if !BindJSON(ctx, &req) {
		return
	}

	p, allocated, err := h.store.Create(ctx.Request.Context(), userID, customerID, req)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	if allocated && h.prom != nil {
		h.prom.NumbersAllocated.Inc()
	}

	h.invalidate(userID)

	ctx.JSON(http.StatusCreated, gin.H{"project": p})
}

func (h *ProjectsHandler) Get(ctx *gin.Context) {
	userID, customerID, ok := h.scope(ctx)
	if !ok {
		return
	}

	projectID, ok := pathID(ctx, "projectId")
	if !ok {
		return
	}

	p, err := h.store.GetByID(ctx.Request.Context(), userID, customerID, projectID)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"project": p})
}

func (h *ProjectsHandler) Update(ctx *gin.Context) {
	userID, customerID, ok := h.scope(ctx)
	if !ok {
		return
	}

	projectID, ok := pathID(ctx, "projectId")
	if !ok {
		return
	}

	var req project.UpdateProjectRequest

	if !BindJSON(ctx, &req) {
		return
	}

	p, err := h.store.Update(ctx.Request.Context(), userID, customerID, projectID, req)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	h.invalidate(userID)

	ctx.JSON(http.StatusOK, gin.H{"project": p})
}

// Delete removes the project and its tasks.
func (h *ProjectsHandler) Delete(ctx *gin.Context) {
	userID, customerID, ok := h.scope(ctx)
	if !ok {
		return
	}

	projectID, ok := pathID(ctx, "projectId")
	if !ok {
		return
	}

	if err := h.store.Delete(ctx.Request.Context(), userID, customerID, projectID); err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	h.invalidate(userID)

	ctx.Status(http.StatusNoContent)
}
