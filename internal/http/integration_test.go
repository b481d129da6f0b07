package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/clockbill/clockbill/internal/auth"
	"github.com/clockbill/clockbill/internal/config"
	"github.com/clockbill/clockbill/internal/db"
	clockhttp "github.com/clockbill/clockbill/internal/http"
	"github.com/clockbill/clockbill/internal/observability"
	"github.com/clockbill/clockbill/internal/security"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// End-to-end round trip against a real database. Gated on TEST_DATABASE_URL;
// the schema is migrated up before and torn down after the run, so point it
// at a throwaway database.
func setupIntegration(t *testing.T) (*httptest.Server, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if err := db.RunMigrations(dsn, "../../db/migrations"); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	pool, err := db.NewPool(dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}

	t.Cleanup(pool.Close)

	ctx := t.Context()

	for _, table := range []string{"refresh_tokens", "tasks", "projects", "customers", "users"} {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}

	reg := prometheus.NewRegistry()
	ibans, err := security.NewIBANCipher("")
	if err != nil {
		t.Fatal(err)
	}

	router := clockhttp.NewRouter(clockhttp.Deps{
		Cfg:    config.Config{Env: "test"},
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Pool:   pool,
		Prom:   observability.NewProm(reg),
		JWT:    auth.NewManager("integration-secret", 15*time.Minute, 24*time.Hour),
		IBANs:  ibans,
		PromRg: reg,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv, pool
}

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (c *apiClient) do(method, path string, body any) (*http.Response, map[string]any) {
	c.t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatal(err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatal(err)
	}

	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}

	return resp, decoded
}

func (c *apiClient) must(method, path string, body any, wantStatus int) map[string]any {
	c.t.Helper()

	resp, decoded := c.do(method, path, body)

	if resp.StatusCode != wantStatus {
		c.t.Fatalf("%s %s = %d, want %d (%v)", method, path, resp.StatusCode, wantStatus, decoded)
	}

	return decoded
}

func registerAndLogin(t *testing.T, srv *httptest.Server, pool *pgxpool.Pool, email string) *apiClient {
	t.Helper()

	c := &apiClient{t: t, base: srv.URL}

	c.must(http.MethodPost, "/auth/register", map[string]any{
		"email":    email,
		"password": "integration-pass",
		"name":     "Integration",
	}, http.StatusCreated)

	// accounts start inactive; flip the switch the way an admin would
	if _, err := pool.Exec(t.Context(), "UPDATE users SET active = TRUE WHERE email = $1", email); err != nil {
		t.Fatal(err)
	}

	resp := c.must(http.MethodPost, "/auth/login", map[string]any{
		"email":    email,
		"password": "integration-pass",
	}, http.StatusOK)

	token, _ := resp["accessToken"].(string)
	if token == "" {
		t.Fatal("login returned no access token")
	}

	c.token = token

	return c
}

func objID(t *testing.T, resp map[string]any, key string) int64 {
	t.Helper()

	obj, _ := resp[key].(map[string]any)
	id, ok := obj["id"].(float64)

	if !ok {
		t.Fatalf("%s has no id: %v", key, resp)
	}

	return int64(id)
}

func TestAPIFullRoundTrip(t *testing.T) {
	srv, pool := setupIntegration(t)

	c := registerAndLogin(t, srv, pool, "roundtrip@example.com")

	// profile with VAT so invoice totals are interesting
	c.must(http.MethodPut, "/auth/profile", map[string]any{
		"name":        "Integration",
		"companyName": "Integration GmbH",
		"vatPercent":  19,
		"iban":        "DE89370400440532013000",
	}, http.StatusOK)

	created := c.must(http.MethodPost, "/customers", map[string]any{
		"name": "Acme", "city": "Berlin", "zip": "10115",
	}, http.StatusCreated)
	customerID := objID(t, created, "customer")

	base := fmt.Sprintf("/customers/%d", customerID)

	created = c.must(http.MethodPost, base+"/projects", map[string]any{
		"name": "Relaunch", "pricingType": "FIXED", "fixedPrice": 500,
	}, http.StatusCreated)
	projectID := objID(t, created, "project")

	// first project draws the first number of a fresh sequence
	proj, _ := created["project"].(map[string]any)
	if proj["invoiceNumber"] != "00001" {
		t.Errorf("invoiceNumber = %v, want 00001", proj["invoiceNumber"])
	}

	projBase := fmt.Sprintf("%s/projects/%d", base, projectID)

	created = c.must(http.MethodPost, projBase+"/tasks", map[string]any{
		"name": "Design", "estimatedHours": 3, "order": 1,
	}, http.StatusCreated)
	taskA := objID(t, created, "task")

	created = c.must(http.MethodPost, projBase+"/tasks", map[string]any{
		"name": "Build", "estimatedHours": 2, "order": 0,
	}, http.StatusCreated)
	taskB := objID(t, created, "task")

	// listing follows sort_order
	listing := c.must(http.MethodGet, projBase+"/tasks", nil, http.StatusOK)
	tasks, _ := listing["tasks"].([]any)
	if len(tasks) != 2 {
		t.Fatalf("tasks = %v, want two", listing["tasks"])
	}
	first, _ := tasks[0].(map[string]any)
	if first["name"] != "Build" {
		t.Errorf("first task = %v, want Build (order 0)", first["name"])
	}

	// reorder leniently, one unknown id
	reorder := c.must(http.MethodPatch, projBase+"/tasks/order", map[string]any{
		"items": []map[string]any{
			{"id": taskA, "order": 0},
			{"id": taskB, "order": 1},
			{"id": 999999, "order": 2},
		},
	}, http.StatusOK)
	skipped, _ := reorder["skippedIds"].([]any)
	if len(skipped) != 1 {
		t.Errorf("skippedIds = %v, want one entry", reorder["skippedIds"])
	}

	var stampBefore time.Time
	if err := pool.QueryRow(t.Context(), "SELECT updated_at FROM projects WHERE id = $1", projectID).Scan(&stampBefore); err != nil {
		t.Fatal(err)
	}

	// invoice preview: totals and a frozen header
	inv := c.must(http.MethodPost, "/invoices"+projBase+"/preview", nil, http.StatusOK)
	view, _ := inv["invoice"].(map[string]any)

	// freezing the date counts as a mutation
	var stampAfter time.Time
	if err := pool.QueryRow(t.Context(), "SELECT updated_at FROM projects WHERE id = $1", projectID).Scan(&stampAfter); err != nil {
		t.Fatal(err)
	}
	if !stampAfter.After(stampBefore) {
		t.Error("first preview did not stamp updated_at")
	}

	if view["subtotal"] != 500.0 || view["vatAmount"] != 95.0 || view["total"] != 595.0 {
		t.Errorf("totals = %v/%v/%v, want 500/95/595", view["subtotal"], view["vatAmount"], view["total"])
	}

	again := c.must(http.MethodPost, "/invoices"+projBase+"/preview", nil, http.StatusOK)
	viewAgain, _ := again["invoice"].(map[string]any)

	if view["invoiceDate"] != viewAgain["invoiceDate"] || view["invoiceNumber"] != viewAgain["invoiceNumber"] {
		t.Errorf("invoice header changed between previews: %v vs %v", view, viewAgain)
	}

	// cascade: deleting the customer removes the whole subtree
	c.must(http.MethodDelete, base, nil, http.StatusNoContent)
	c.must(http.MethodGet, projBase, nil, http.StatusNotFound)
	c.must(http.MethodGet, base, nil, http.StatusNotFound)

	var orphans int
	if err := pool.QueryRow(t.Context(), "SELECT COUNT(*) FROM tasks").Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Errorf("%d orphaned tasks after cascade delete", orphans)
	}
}

func TestAPIOwnershipIsolation(t *testing.T) {
	srv, pool := setupIntegration(t)

	alice := registerAndLogin(t, srv, pool, "alice@example.com")
	mallory := registerAndLogin(t, srv, pool, "mallory@example.com")

	created := alice.must(http.MethodPost, "/customers", map[string]any{"name": "Secret Client"}, http.StatusCreated)
	customerID := objID(t, created, "customer")

	path := fmt.Sprintf("/customers/%d", customerID)

	// a foreign row answers exactly like a missing one
	mallory.must(http.MethodGet, path, nil, http.StatusNotFound)
	mallory.must(http.MethodPut, path, map[string]any{"name": "Hijacked"}, http.StatusNotFound)
	mallory.must(http.MethodDelete, path, nil, http.StatusNotFound)
	mallory.must(http.MethodPost, path+"/projects", map[string]any{"name": "Sneaky"}, http.StatusNotFound)

	// and the listing never leaks it
	listing := mallory.must(http.MethodGet, "/customers", nil, http.StatusOK)
	if customers, _ := listing["customers"].([]any); len(customers) != 0 {
		t.Errorf("foreign customers leaked into listing: %v", customers)
	}

	// alice still sees her row untouched
	got := alice.must(http.MethodGet, path, nil, http.StatusOK)
	obj, _ := got["customer"].(map[string]any)
	if obj["name"] != "Secret Client" {
		t.Errorf("customer mutated by foreign request: %v", obj)
	}
}

func TestAPIInvoiceNumberSequencePerUser(t *testing.T) {
	srv, pool := setupIntegration(t)

	alice := registerAndLogin(t, srv, pool, "seq-alice@example.com")
	bob := registerAndLogin(t, srv, pool, "seq-bob@example.com")

	created := alice.must(http.MethodPost, "/customers", map[string]any{"name": "A"}, http.StatusCreated)
	aliceBase := fmt.Sprintf("/customers/%d/projects", objID(t, created, "customer"))

	created = bob.must(http.MethodPost, "/customers", map[string]any{"name": "B"}, http.StatusCreated)
	bobBase := fmt.Sprintf("/customers/%d/projects", objID(t, created, "customer"))

	number := func(resp map[string]any) any {
		p, _ := resp["project"].(map[string]any)
		return p["invoiceNumber"]
	}

	first := alice.must(http.MethodPost, aliceBase, map[string]any{"name": "P1"}, http.StatusCreated)
	second := alice.must(http.MethodPost, aliceBase, map[string]any{"name": "P2"}, http.StatusCreated)

	if number(first) != "00001" || number(second) != "00002" {
		t.Errorf("alice's numbers = %v, %v, want 00001, 00002", number(first), number(second))
	}

	// manual number does not advance the sequence
	manual := alice.must(http.MethodPost, aliceBase, map[string]any{"name": "P3", "invoiceNumber": "INV-9999"}, http.StatusCreated)
	if number(manual) != "INV-9999" {
		t.Errorf("manual number = %v, want INV-9999", number(manual))
	}

	third := alice.must(http.MethodPost, aliceBase, map[string]any{"name": "P4"}, http.StatusCreated)
	if number(third) != "00003" {
		t.Errorf("number after manual insert = %v, want 00003", number(third))
	}

	// sequences are fully independent between users
	bobFirst := bob.must(http.MethodPost, bobBase, map[string]any{"name": "P1"}, http.StatusCreated)
	if number(bobFirst) != "00001" {
		t.Errorf("bob's first number = %v, want 00001", number(bobFirst))
	}
}
