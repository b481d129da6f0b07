package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/clockbill/clockbill/internal/domain/customer"
	"github.com/clockbill/clockbill/internal/domain/project"
	"github.com/clockbill/clockbill/internal/domain/task"
	"github.com/clockbill/clockbill/internal/domain/user"
	"github.com/clockbill/clockbill/internal/http/middlewares"
	"github.com/clockbill/clockbill/internal/invoice"
	"github.com/clockbill/clockbill/internal/observability"
	"github.com/clockbill/clockbill/internal/render"
	"github.com/clockbill/clockbill/internal/security"
	"github.com/gin-gonic/gin"
)

type InvoiceProjectsStore interface {
	MaterializeInvoice(ctx context.Context, userID, customerID, projectID int64) (project.Project, bool, error)
}

type InvoiceTasksStore interface {
	List(ctx context.Context, userID, customerID, projectID int64) ([]task.Task, error)
}

type InvoiceCustomersStore interface {
	GetByID(ctx context.Context, userID, id int64) (customer.Customer, error)
}

type InvoiceUsersStore interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

// InvoicesHandler assembles the computed invoice view. The first preview of a
// project freezes its invoice date and, if needed, draws an invoice number;
// every later preview reproduces the same header.
type InvoicesHandler struct {
	projects  InvoiceProjectsStore
	tasks     InvoiceTasksStore
	customers InvoiceCustomersStore
	users     InvoiceUsersStore
	ibans     *security.IBANCipher
	prom      *observability.Prom
	log       *slog.Logger
}

func NewInvoicesHandler(
	projects InvoiceProjectsStore,
	tasks InvoiceTasksStore,
	customers InvoiceCustomersStore,
	users InvoiceUsersStore,
	ibans *security.IBANCipher,
	prom *observability.Prom,
	log *slog.Logger,
) *InvoicesHandler {
	return &InvoicesHandler{
		projects:  projects,
		tasks:     tasks,
		customers: customers,
		users:     users,
		ibans:     ibans,
		prom:      prom,
		log:       log,
	}
}

func (h *InvoicesHandler) Preview(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	customerID, ok := pathID(ctx, "customerId")
	if !ok {
		return
	}

	projectID, ok := pathID(ctx, "projectId")
	if !ok {
		return
	}

	rctx := ctx.Request.Context()

	p, allocated, err := h.projects.MaterializeInvoice(rctx, userID, customerID, projectID)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	tasks, err := h.tasks.List(rctx, userID, customerID, projectID)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	c, err := h.customers.GetByID(rctx, userID, customerID)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	u, err := h.users.GetByID(rctx, userID)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	iban := ""

	if u.IBANCipher != "" {
		iban, err = h.ibans.Decrypt(u.IBANCipher, u.IBANIV, u.IBANTag)

		if err != nil {
			// render without bank details rather than failing the invoice
			h.log.Warn("iban decrypt failed", "user_id", u.ID, "error", err)
			iban = ""
		}
	}

	view := invoice.Compute(invoice.Input{
		User:     u,
		Customer: c,
		Project:  p,
		Tasks:    tasks,
		IBAN:     iban,
	})

	if h.prom != nil {
		h.prom.InvoicesPreviewed.WithLabelValues(p.PricingType).Inc()

		if allocated {
			h.prom.NumbersAllocated.Inc()
		}
	}

	if ctx.Query("format") == "html" {
		html, err := render.Invoice(view)

		if err != nil {
			h.log.Error("invoice render failed", "project_id", p.ID, "error", err)
			RespondInternal(ctx, "Something went wrong")
			return
		}

		ctx.Data(http.StatusOK, "text/html; charset=utf-8", html)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"invoice": view})
}
