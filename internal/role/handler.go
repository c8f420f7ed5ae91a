package role

import (
	"log/slog"
	"net/http"

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

type createRoleRequest struct {
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// ListRoles handles GET /roles.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	defs := h.Service.ListRoles(r.Context())
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"roles": defs})
}

// CreateRole handles POST /roles.
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	def, err := h.Service.AddRole(r.Context(), actorID(r), req.Name, req.Label, req.Description)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, def)
}

// DeleteRole handles DELETE /roles/{name}.
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		h.WriteError(w, http.StatusBadRequest, "missing role name")
		return
	}

	if err := h.Service.RemoveRole(r.Context(), actorID(r), name); err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func actorID(r *http.Request) *int64 {
	if principal, ok := auth.UserFromContext(r.Context()); ok && principal != nil {
		return &principal.ID
	}
	return nil
}
