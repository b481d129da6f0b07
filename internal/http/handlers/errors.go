package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/clockbill/clockbill/internal/domain/customer"
	"github.com/clockbill/clockbill/internal/domain/project"
	"github.com/clockbill/clockbill/internal/domain/task"
	"github.com/clockbill/clockbill/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// respondStoreError translates storage errors into the API envelope. Missing
// rows and rows owned by another user both arrive as a domain not-found, so
// the response never reveals whether the id exists at all.
func respondStoreError(ctx *gin.Context, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, customer.ErrNotFound):
		RespondNotFound(ctx, "Customer not found")
	case errors.Is(err, project.ErrNotFound):
		RespondNotFound(ctx, "Project not found")
	case errors.Is(err, task.ErrNotFound):
		RespondNotFound(ctx, "Task not found")
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, context.DeadlineExceeded):
		RespondError(ctx, 504, "timeout", "The request took too long", nil)
	default:
		if log != nil {
			log.Error("storage failure", "error", err, "path", ctx.FullPath())
		}
		RespondInternal(ctx, "Something went wrong")
	}
}
