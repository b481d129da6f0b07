package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/clockbill/clockbill/internal/cache"
	"github.com/clockbill/clockbill/internal/domain/customer"
	"github.com/gin-gonic/gin"
)

type fakeCustomersStore struct {
	createFn func(ctx context.Context, userID int64, req customer.CreateCustomerRequest) (customer.Customer, error)
	listFn   func(ctx context.Context, userID int64, withProjects bool) ([]customer.Customer, error)
	getFn    func(ctx context.Context, userID, id int64) (customer.Customer, error)
	updateFn func(ctx context.Context, userID, id int64, req customer.UpdateCustomerRequest) (customer.Customer, error)
	deleteFn func(ctx context.Context, userID, id int64) error
}

func (f *fakeCustomersStore) Create(ctx context.Context, userID int64, req customer.CreateCustomerRequest) (customer.Customer, error) {
	return f.createFn(ctx, userID, req)
}

func (f *fakeCustomersStore) List(ctx context.Context, userID int64, withProjects bool) ([]customer.Customer, error) {
	return f.listFn(ctx, userID, withProjects)
}

func (f *fakeCustomersStore) GetByID(ctx context.Context, userID, id int64) (customer.Customer, error) {
	return f.getFn(ctx, userID, id)
}

func (f *fakeCustomersStore) Update(ctx context.Context, userID, id int64, req customer.UpdateCustomerRequest) (customer.Customer, error) {
	return f.updateFn(ctx, userID, id, req)
}

func (f *fakeCustomersStore) Delete(ctx context.Context, userID, id int64) error {
	return f.deleteFn(ctx, userID, id)
}

func customersRouter(store CustomersStore, c *cache.Cache) *gin.Engine {
	h := NewCustomersHandler(store, c, testLogger())

	r := gin.New()
	r.Use(asUser(1, "user"))
	r.GET("/customers", h.List)
	r.POST("/customers", h.Create)
	r.GET("/customers/:customerId", h.Get)
	r.PUT("/customers/:customerId", h.Update)
	r.DELETE("/customers/:customerId", h.Delete)

	return r
}

func TestCustomersListScopedToActor(t *testing.T) {
	var gotUserID int64
	var gotInclude bool

	store := &fakeCustomersStore{
		listFn: func(_ context.Context, userID int64, withProjects bool) ([]customer.Customer, error) {
			gotUserID = userID
			gotInclude = withProjects
			return []customer.Customer{{ID: 10, Name: "Acme"}}, nil
		},
	}

	r := customersRouter(store, nil)

	rec := performJSON(t, r, http.MethodGet, "/customers?include=projects", nil)
	wantStatus(t, rec, http.StatusOK)

	if gotUserID != 1 {
		t.Errorf("store queried for user %d, want 1", gotUserID)
	}

	if !gotInclude {
		t.Error("include=projects was not passed through")
	}

	body := decodeBody(t, rec)
	customers, ok := body["customers"].([]any)

	if !ok || len(customers) != 1 {
		t.Fatalf("customers = %v, want one entry", body["customers"])
	}
}

func TestCustomersListCacheHitSkipsStore(t *testing.T) {
	calls := 0

	store := &fakeCustomersStore{
		listFn: func(_ context.Context, _ int64, _ bool) ([]customer.Customer, error) {
			calls++
			return []customer.Customer{{ID: 10, Name: "Acme"}}, nil
		},
	}

	r := customersRouter(store, cache.New(time.Minute))

	wantStatus(t, performJSON(t, r, http.MethodGet, "/customers", nil), http.StatusOK)
	wantStatus(t, performJSON(t, r, http.MethodGet, "/customers", nil), http.StatusOK)

	if calls != 1 {
		t.Errorf("store hit %d times, want 1 (second read should come from cache)", calls)
	}
}

func TestCustomersMutationInvalidatesCache(t *testing.T) {
	listCalls := 0

	store := &fakeCustomersStore{
		listFn: func(_ context.Context, _ int64, _ bool) ([]customer.Customer, error) {
			listCalls++
			return nil, nil
		},
		deleteFn: func(_ context.Context, _, _ int64) error {
			return nil
		},
	}

	r := customersRouter(store, cache.New(time.Minute))

	wantStatus(t, performJSON(t, r, http.MethodGet, "/customers", nil), http.StatusOK)
	wantStatus(t, performJSON(t, r, http.MethodDelete, "/customers/10", nil), http.StatusNoContent)
	wantStatus(t, performJSON(t, r, http.MethodGet, "/customers", nil), http.StatusOK)

	if listCalls != 2 {
		t.Errorf("store hit %d times, want 2 (delete should drop the cached listing)", listCalls)
	}
}

func TestCustomersCreateValidation(t *testing.T) {
	store := &fakeCustomersStore{
		createFn: func(_ context.Context, userID int64, req customer.CreateCustomerRequest) (customer.Customer, error) {
			return customer.Customer{ID: 11, UserID: userID, Name: req.Name}, nil
		},
	}

	r := customersRouter(store, nil)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"valid", gin.H{"name": "Acme"}, http.StatusCreated},
		{"missing name", gin.H{"address": "Main St 1"}, http.StatusBadRequest},
		{"bad contact email", gin.H{"name": "Acme", "contactEmail": "nope"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := performJSON(t, r, http.MethodPost, "/customers", tt.body)
			wantStatus(t, rec, tt.wantStatus)
		})
	}
}

func TestCustomersGetHidesForeignRows(t *testing.T) {
	store := &fakeCustomersStore{
		getFn: func(_ context.Context, _, _ int64) (customer.Customer, error) {
			return customer.Customer{}, customer.ErrNotFound
		},
	}

	r := customersRouter(store, nil)

	rec := performJSON(t, r, http.MethodGet, "/customers/99", nil)
	wantStatus(t, rec, http.StatusNotFound)

	if code := errorCode(t, rec); code != "not_found" {
		t.Errorf("error code = %q, want not_found", code)
	}
}

func TestCustomersBadPathParam(t *testing.T) {
	r := customersRouter(&fakeCustomersStore{}, nil)

	rec := performJSON(t, r, http.MethodGet, "/customers/banana", nil)
	wantStatus(t, rec, http.StatusBadRequest)
}
