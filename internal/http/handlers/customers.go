package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/clockbill/clockbill/internal/cache"
	"github.com/clockbill/clockbill/internal/domain/customer"
	"github.com/clockbill/clockbill/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type CustomersStore interface {
	Create(ctx context.Context, userID int64, req customer.CreateCustomerRequest) (customer.Customer, error)
	List(ctx context.Context, userID int64, withProjects bool) ([]customer.Customer, error)
	GetByID(ctx context.Context, userID, id int64) (customer.Customer, error)
	Update(ctx context.Context, userID, id int64, req customer.UpdateCustomerRequest) (customer.Customer, error)
	Delete(ctx context.Context, userID, id int64) error
}

type CustomersHandler struct {
	store CustomersStore
	cache *cache.Cache
	log   *slog.Logger
}

func NewCustomersHandler(store CustomersStore, c *cache.Cache, log *slog.Logger) *CustomersHandler {
	return &CustomersHandler{store: store, cache: c, log: log}
}

func customerCachePrefix(userID int64) string {
	return fmt.Sprintf("customers:%d:", userID)
}

func (h *CustomersHandler) invalidate(userID int64) {
	if h.cache != nil {
		h.cache.DeletePrefix(customerCachePrefix(userID))
	}
}

func (h *CustomersHandler) List(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	withProjects := ctx.Query("include") == "projects"
	key := fmt.Sprintf("%sprojects=%t", customerCachePrefix(userID), withProjects)

	if h.cache != nil {
		if v, hit := h.cache.Get(key); hit {
			if customers, ok := v.([]customer.Customer); ok {
				ctx.JSON(http.StatusOK, gin.H{"customers": customers})
				return
			}
		}
	}

	customers, err := h.store.List(ctx.Request.Context(), userID, withProjects)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	if h.cache != nil {
		h.cache.Set(key, customers)
	}

	ctx.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (h *CustomersHandler) Create(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	var req customer.CreateCustomerRequest

	if !BindJSON(ctx, &req) {
		return
	}

	c, err := h.store.Create(ctx.Request.Context(), userID, req)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	h.invalidate(userID)

	ctx.JSON(http.StatusCreated, gin.H{"customer": c})
}

func (h *CustomersHandler) Get(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	id, ok := pathID(ctx, "customerId")
	if !ok {
		return
	}

	c, err := h.store.GetByID(ctx.Request.Context(), userID, id)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"customer": c})
}

func (h *CustomersHandler) Update(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	id, ok := pathID(ctx, "customerId")
	if !ok {
		return
	}

	var req customer.UpdateCustomerRequest

	if !BindJSON(ctx, &req) {
		return
	}

	c, err := h.store.Update(ctx.Request.Context(), userID, id, req)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	h.invalidate(userID)

	ctx.JSON(http.StatusOK, gin.H{"customer": c})
}

// Delete removes the customer together with all of its projects and tasks.
func (h *CustomersHandler) Delete(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	id, ok := pathID(ctx, "customerId")
	if !ok {
		return
	}

	if err := h.store.Delete(ctx.Request.Context(), userID, id); err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	h.invalidate(userID)

	ctx.Status(http.StatusNoContent)
}
