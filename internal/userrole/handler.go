package userrole

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/identity-management/internal/auth"
	"github.com/frahmantamala/identity-management/internal/transport"
	"github.com/go-chi/chi"
)

type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Service:     service,
	}
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

type setRolesRequest struct {
	Roles []string `json:"roles"`
}

// GetUserRoles handles GET /users/{id}/roles.
func (h *Handler) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	assignments, err := h.Service.GetUserRoles(r.Context(), userID)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"assignments": assignments})
}

// AssignRole handles POST /users/{id}/roles.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req assignRoleRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.Assign(r.Context(), actorID(r), userID, req.Role); err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, map[string]string{"status": "assigned"})
}

// SetRoles handles PUT /users/{id}/roles.
func (h *Handler) SetRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req setRolesRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	changes, err := h.Service.SetRoles(r.Context(), actorID(r), userID, req.Roles)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, changes)
}

// RevokeRole handles DELETE /users/{id}/roles/{name}.
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	if name == "" {
		h.WriteError(w, http.StatusBadRequest, "missing role name")
		return
	}

	if err := h.Service.Revoke(r.Context(), actorID(r), userID, name); err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func actorID(r *http.Request) *int64 {
	if principal, ok := auth.UserFromContext(r.Context()); ok && principal != nil {
		return &principal.ID
	}
	return nil
}
