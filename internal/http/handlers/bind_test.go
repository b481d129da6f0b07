package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

type bindProbe struct {
	Email string      `json:"email" binding:"required,email"`
	Count int         `json:"count" binding:"gte=0"`
	Items []bindEntry `json:"items" binding:"omitempty,dive"`
}

type bindEntry struct {
	ID int64 `json:"id" binding:"required"`
}

func bindRouter() *gin.Engine {
	r := gin.New()
	r.POST("/probe", func(c *gin.Context) {
		var probe bindProbe
		if !BindJSON(c, &probe) {
			return
		}
		c.Status(http.StatusNoContent)
	})

	return r
}

func fieldErrors(t *testing.T, body map[string]any) []any {
	t.Helper()

	errObj, _ := body["error"].(map[string]any)
	details, _ := errObj["details"].(map[string]any)
	fields, ok := details["fields"].([]any)

	if !ok {
		t.Fatalf("no field errors in %v", body)
	}

	return fields
}

func TestBindJSONReportsJSONFieldNames(t *testing.T) {
	rec := performJSON(t, bindRouter(), http.MethodPost, "/probe", gin.H{"count": 1})
	wantStatus(t, rec, http.StatusBadRequest)

	fields := fieldErrors(t, decodeBody(t, rec))

	found := false
	for _, f := range fields {
		m, _ := f.(map[string]any)
		if m["field"] == "email" && m["rule"] == "required" {
			found = true
		}
	}

	if !found {
		t.Errorf("expected a required error on \"email\", got %v", fields)
	}
}

func TestBindJSONNestedFieldPath(t *testing.T) {
	body := gin.H{"email": "jo@example.com", "items": []gin.H{{"id": 1}, {}}}

	rec := performJSON(t, bindRouter(), http.MethodPost, "/probe", body)
	wantStatus(t, rec, http.StatusBadRequest)

	fields := fieldErrors(t, decodeBody(t, rec))

	found := false
	for _, f := range fields {
		m, _ := f.(map[string]any)
		if m["field"] == "items[1].id" {
			found = true
		}
	}

	if !found {
		t.Errorf("expected an error on items[1].id, got %v", fields)
	}
}

func TestBindJSONTypeMismatch(t *testing.T) {
	rec := performJSON(t, bindRouter(), http.MethodPost, "/probe", gin.H{"email": "jo@example.com", "count": "three"})
	wantStatus(t, rec, http.StatusBadRequest)

	body := decodeBody(t, rec)
	errObj, _ := body["error"].(map[string]any)
	details, _ := errObj["details"].(map[string]any)

	if details["json"] != "invalid_json_type" {
		t.Errorf("details = %v, want invalid_json_type", details)
	}

	if details["field"] != "count" {
		t.Errorf("field = %v, want count", details["field"])
	}
}

func TestBindJSONMalformedBody(t *testing.T) {
	r := bindRouter()

	rec := performJSON(t, r, http.MethodPost, "/probe", nil)
	wantStatus(t, rec, http.StatusBadRequest)
}
