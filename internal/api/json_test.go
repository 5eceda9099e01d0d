package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hookrelay/internal/store"
)

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	body := `{"eventType":"meeting.created","data":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rr := httptest.NewRecorder()
	var v map[string]any
	if decodeJSON(rr, httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body)), &v) {
		t.Fatal("oversized body accepted")
	}
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rr.Code)
	}
	var p Problem
	_ = json.Unmarshal(rr.Body.Bytes(), &p)
	if p.Type != "body-too-large" || rr.Header().Get("Content-Type") != "application/problem+json" {
		t.Fatalf("unexpected problem %+v (%s)", p, rr.Header().Get("Content-Type"))
	}
}

func TestStoreStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		ok     bool
	}{
		{fmt.Errorf("load: %w", store.ErrNotFound), http.StatusNotFound, true},
		{store.ErrInvalidURL, http.StatusBadRequest, true},
		{store.ErrNoEvents, http.StatusBadRequest, true},
		{store.ErrInvalidCursor, http.StatusBadRequest, true},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError, false},
	}
	for _, c := range cases {
		status, _, ok := storeStatus(c.err)
		if status != c.status || ok != c.ok {
			t.Errorf("storeStatus(%v) = %d,%v want %d,%v", c.err, status, ok, c.status, c.ok)
		}
	}
}
