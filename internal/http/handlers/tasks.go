package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/clockbill/clockbill/internal/domain/task"
	"github.com/clockbill/clockbill/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type TasksStore interface {
	Create(ctx context.Context, userID, customerID, projectID int64, req task.CreateTaskRequest) (task.Task, error)
	List(ctx context.Context, userID, customerID, projectID int64) ([]task.Task, error)
	Update(ctx context.Context, userID, customerID, projectID, taskID int64, req task.UpdateTaskRequest) (task.Task, error)
	Delete(ctx context.Context, userID, customerID, projectID, taskID int64) error
	Reorder(ctx context.Context, userID, customerID, projectID int64, items []task.ReorderItem) ([]int64, error)
}

type TasksHandler struct {
	store TasksStore
	log   *slog.Logger
}

func NewTasksHandler(store TasksStore, log *slog.Logger) *TasksHandler {
	return &TasksHandler{store: store, log: log}
}

func (h *TasksHandler) scope(ctx *gin.Context) (userID, customerID, projectID int64, ok bool) {
	userID, ok = middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return 0, 0, 0, false
	}

	customerID, ok = pathID(ctx, "customerId")
	if !ok {
		return 0, 0, 0, false
	}

	projectID, ok = pathID(ctx, "projectId")
	if !ok {
		return 0, 0, 0, false
	}

	return userID, customerID, projectID, true
}

func (h *TasksHandler) List(ctx *gin.Context) {
	userID, customerID, projectID, ok := h.scope(ctx)
	if !ok {
		return
	}

	tasks, err := h.store.List(ctx.Request.Context(), userID, customerID, projectID)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TasksHandler) Create(ctx *gin.Context) {
	userID, customerID, projectID, ok := h.scope(ctx)
	if !ok {
		return
	}

	var req task.CreateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	t, err := h.store.Create(ctx.Request.Context(), userID, customerID, projectID, req)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"task": t})
}

func (h *TasksHandler) Update(ctx *gin.Context) {
	userID, customerID, projectID, ok := h.scope(ctx)
	if !ok {
		return
	}

	taskID, ok := pathID(ctx, "taskId")
	if !ok {
		return
	}

	var req task.UpdateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	t, err := h.store.Update(ctx.Request.Context(), userID, customerID, projectID, taskID, req)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": t})
}

func (h *TasksHandler) Delete(ctx *gin.Context) {
	userID, customerID, projectID, ok := h.scope(ctx)
	if !ok {
		return
	}

	taskID, ok := pathID(ctx, "taskId")
	if !ok {
		return
	}

	if err := h.store.Delete(ctx.Request.Context(), userID, customerID, projectID, taskID); err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// Reorder applies a batch of display ranks. Items that no longer belong to
// the project are skipped and reported, not fatal; callers reconcile with the
// returned list.
func (h *TasksHandler) Reorder(ctx *gin.Context) {
	userID, customerID, projectID, ok := h.scope(ctx)
	if !ok {
		return
	}

	var req task.ReorderRequest

	if !BindJSON(ctx, &req) {
		return
	}

	skipped, err := h.store.Reorder(ctx.Request.Context(), userID, customerID, projectID, req.Items)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	if skipped == nil {
		skipped = []int64{}
	}

	tasks, err := h.store.List(ctx.Request.Context(), userID, customerID, projectID)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"tasks":      tasks,
		"skippedIds": skipped,
	})
}
