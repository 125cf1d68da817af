package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradnet-io/gradnet/domains/memberships/be/repo"
	"github.com/gradnet-io/gradnet/domains/memberships/be/service"
	platformauth "github.com/gradnet-io/gradnet/platform/go/auth"
	"github.com/gradnet-io/gradnet/platform/go/problems"
)

// Handler exposes membership operations over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("memberships service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

type membershipResponse struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	Status      string    `json:"status"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

type memberResponse struct {
	ID           uuid.UUID `json:"id"`
	GlobalUserID uuid.UUID `json:"global_user_id"`
	Email        string    `json:"email"`
	DisplayName  *string   `json:"display_name,omitempty"`
	Role         string    `json:"role"`
	JoinedAt     time.Time `json:"joined_at"`
}

type grantRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name,omitempty"`
	Role        string    `json:"role,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
}

// ListMine implements GET /me/memberships.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	principal, ok := platformauth.PrincipalFromContext(r.Context())
	if !ok || principal == nil {
		problems.Forbidden(w, "authentication required")
		return
	}

	views, err := h.svc.ListMine(r.Context(), principal.ID)
	if err != nil {
		h.renderError(w, err)
		return
	}

	items := make([]membershipResponse, 0, len(views))
	for _, v := range views {
		items = append(items, membershipResponse(v))
	}
	h.renderJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ListMembers implements GET /members against the active tenant partition.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Members(r.Context())
	if err != nil {
		h.renderError(w, err)
		return
	}

	items := make([]memberResponse, 0, len(members))
	for _, m := range members {
		items = append(items, memberResponse(m))
	}
	h.renderJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Grant implements POST /members.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problems.Validation(w, "invalid request body", nil)
		return
	}

	member, err := h.svc.Grant(r.Context(), service.GrantInput{
		UserID:      req.UserID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Permissions: req.Permissions,
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.renderJSON(w, http.StatusCreated, memberResponse(member))
}

// Revoke implements DELETE /members/{userID}.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		problems.Validation(w, "invalid user id", nil)
		return
	}

	if err := h.svc.Revoke(r.Context(), userID); err != nil {
		h.renderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) renderError(w http.ResponseWriter, err error) {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		problems.Validation(w, "validation error", validation.Fields)
	case errors.Is(err, service.ErrNotFound):
		problems.NotFound(w, "membership not found")
	case errors.Is(err, repo.ErrNoSession):
		h.logger.Error("membership operation outside tenancy pipeline", zap.Error(err))
		problems.Internal(w)
	default:
		h.logger.Error("membership operation failed", zap.Error(err))
		problems.Internal(w)
	}
}

func (h *Handler) renderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response encoding failed", zap.Error(err))
	}
}
