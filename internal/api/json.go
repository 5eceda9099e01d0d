package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"hookrelay/internal/store"
)

// maxBodyBytes caps admin request bodies. Event data rides in these bodies,
// so the cap is generous.
const maxBodyBytes = 1 << 20

// Problem is an RFC 7807 error body. Type is a stable slug clients can match
// on; Title is for humans.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     problemType(status),
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

func problemType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid-request"
	case http.StatusNotFound:
		return "not-found"
	case http.StatusRequestEntityTooLarge:
		return "body-too-large"
	case http.StatusTooManyRequests:
		return "rate-limited"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "about:blank"
	}
}

// decodeJSON reads one JSON value from the request body into v. It writes the
// problem response itself and returns false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Body too large", fmt.Sprintf("limit is %d bytes", tooBig.Limit), r.URL.Path)
		return false
	}
	writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
	return false
}

// storeStatus maps store errors to an HTTP status and title. ok is false for
// errors that are not the caller's fault.
func storeStatus(err error) (status int, title string, ok bool) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not Found", true
	case errors.Is(err, store.ErrInvalidURL), errors.Is(err, store.ErrNoEvents):
		return http.StatusBadRequest, "Invalid subscription", true
	case errors.Is(err, store.ErrInvalidCursor):
		return http.StatusBadRequest, "Invalid cursor", true
	}
	return http.StatusInternalServerError, "", false
}
