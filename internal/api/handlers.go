package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hookrelay/internal/buildinfo"
	"hookrelay/internal/model"
	"hookrelay/internal/store"
)

// SubscriptionsHandler handles /v1/subscriptions (list, create).
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	org := orgID(r)
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.OrganizationID = org
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			s.writeStoreError(w, r, "Create subscription failed", err)
			return
		}
		// The secret is only ever shown here and on rotation.
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := queryInt(r, "limit", 100)
		items, next, err := s.Store.ListSubscriptions(r.Context(), org, cursor, limit)
		if err != nil {
			s.writeStoreError(w, r, "List subscriptions failed", err)
			return
		}
		out := make([]model.Subscription, 0, len(items))
		for _, it := range items {
			out = append(out, it.Redacted())
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles /v1/subscriptions/{id}[/action].
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	org := orgID(r)
	ctx := r.Context()

	switch {
	case action == "" && r.Method == http.MethodGet:
		sub, ok := s.ownedSubscription(w, r, org, id)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, sub.Redacted())
	case action == "" && r.Method == http.MethodDelete:
		if err := s.Store.DeleteSubscription(ctx, org, id); err != nil {
			s.writeStoreError(w, r, "Delete subscription failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case action == "test" && r.Method == http.MethodPost:
		if _, ok := s.ownedSubscription(w, r, org, id); !ok {
			return
		}
		out, err := s.Dispatcher.TestDeliver(ctx, id)
		if err != nil {
			s.writeStoreError(w, r, "Test delivery failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      out.Success,
			"statusCode":   out.StatusCode,
			"errorMessage": out.ErrorMessage,
			"durationMs":   out.Duration.Milliseconds(),
		})
	case action == "deliveries" && r.Method == http.MethodGet:
		if _, ok := s.ownedSubscription(w, r, org, id); !ok {
			return
		}
		recs, err := s.Log.List(ctx, id, queryInt(r, "limit", store.DefaultListLimit))
		if err != nil {
			s.writeStoreError(w, r, "List deliveries failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": recs})
	case action == "rotate-secret" && r.Method == http.MethodPost:
		sub, err := s.Store.RotateSecret(ctx, org, id)
		if err != nil {
			s.writeStoreError(w, r, "Rotate secret failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": sub.ID, "secret": sub.Secret})
	case (action == "enable" || action == "disable") && r.Method == http.MethodPost:
		sub, err := s.Store.SetActive(ctx, org, id, action == "enable")
		if err != nil {
			s.writeStoreError(w, r, "Update subscription failed", err)
			return
		}
		writeJSON(w, http.StatusOK, sub.Redacted())
	case action == "" || action == "test" || action == "deliveries" || action == "rotate-secret" || action == "enable" || action == "disable":
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// EventsHandler raises an event for the calling organization. Delivery is
// asynchronous; the response only acknowledges acceptance.
func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var ev model.EventMessage
	if !decodeJSON(w, r, &ev) {
		return
	}
	if strings.TrimSpace(ev.EventType) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid event", "eventType is required", r.URL.Path)
		return
	}
	if len(ev.Data) == 0 {
		ev.Data = json.RawMessage("null")
	}
	s.Dispatcher.Raise(orgID(r), ev.EventType, ev.Data)
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "eventType": ev.EventType})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check backing services when they are remote
	type pinger interface {
		Ping(ctx context.Context) error
	}
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	for _, dep := range []any{s.Store, s.Log} {
		if p, ok := dep.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) DebugInfoHandler(w http.ResponseWriter, r *http.Request) {
	c := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":             c.Port,
			"hasDatabaseUrl":   c.DatabaseURL != "",
			"hasRedisUrl":      c.RedisURL != "",
			"hasNatsUrl":       c.NATSURL != "",
			"natsSubject":      c.NATSSubject,
			"timeout":          c.Webhooks.Timeout.String(),
			"maxInFlight":      c.Webhooks.MaxInFlight,
			"failureThreshold": c.Webhooks.FailureThreshold,
			"logRetention":     c.Webhooks.LogRetention,
			"rateRps":          c.Rate.RPS,
		},
	})
}

// ownedSubscription loads id and hides subscriptions of other organizations.
func (s *Server) ownedSubscription(w http.ResponseWriter, r *http.Request, org, id string) (model.Subscription, bool) {
	sub, err := s.Store.GetByID(r.Context(), id)
	if err == nil && sub.OrganizationID != org {
		err = store.ErrNotFound
	}
	if err != nil {
		s.writeStoreError(w, r, "Load subscription failed", err)
		return model.Subscription{}, false
	}
	return sub, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, title string, err error) {
	status, clientTitle, ok := storeStatus(err)
	if !ok {
		s.Logger.Error(title, "path", r.URL.Path, "err", err)
		writeProblem(w, status, title, err.Error(), r.URL.Path)
		return
	}
	detail := err.Error()
	if status == http.StatusNotFound {
		detail = "subscription not found"
	}
	writeProblem(w, status, clientTitle, detail, r.URL.Path)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
