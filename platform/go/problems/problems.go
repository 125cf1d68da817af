// Package problems renders RFC 7807 problem+json error responses. Handlers
// use it so every error body shares the same shape.
package problems

import (
	"encoding/json"
	"net/http"
)

const (
	TypeValidation = "https://gradnet.io/problems/validation-error"
	TypeNotFound   = "https://gradnet.io/problems/not-found"
	TypeConflict   = "https://gradnet.io/problems/conflict"
	TypeForbidden  = "https://gradnet.io/problems/forbidden"
	TypeInternal   = "https://gradnet.io/problems/internal-error"
)

// ProblemDetails is the RFC 7807 response body.
type ProblemDetails struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// Render writes the problem as application/problem+json.
func Render(w http.ResponseWriter, p ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// Validation renders a 400 validation problem.
func Validation(w http.ResponseWriter, detail string, errs map[string][]string) {
	Render(w, ProblemDetails{Type: TypeValidation, Title: "Invalid request", Status: http.StatusBadRequest, Detail: detail, Errors: errs})
}

// NotFound renders a 404 problem.
func NotFound(w http.ResponseWriter, detail string) {
	Render(w, ProblemDetails{Type: TypeNotFound, Title: "Not found", Status: http.StatusNotFound, Detail: detail})
}

// Conflict renders a 409 problem.
func Conflict(w http.ResponseWriter, detail string) {
	Render(w, ProblemDetails{Type: TypeConflict, Title: "Conflict", Status: http.StatusConflict, Detail: detail})
}

// Forbidden renders a 403 problem.
func Forbidden(w http.ResponseWriter, detail string) {
	Render(w, ProblemDetails{Type: TypeForbidden, Title: "Forbidden", Status: http.StatusForbidden, Detail: detail})
}

// Internal renders a 500 problem without leaking the underlying error.
func Internal(w http.ResponseWriter) {
	Render(w, ProblemDetails{Type: TypeInternal, Title: "Internal error", Status: http.StatusInternalServerError, Detail: "internal error"})
}
