package catalog

import (
	"context"
	"net/http"

	"github.com/frahmantamala/access-control/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateModule(ctx context.Context, dto ModuleDTO) (*Module, error)
	ListModules(ctx context.Context) ([]*Module, error)
	GetModule(ctx context.Context, id string) (*Module, error)
	UpdateModule(ctx context.Context, id string, dto ModuleDTO) (*Module, error)
	DeleteModule(ctx context.Context, id string) error

	CreateFeature(ctx context.Context, dto FeatureDTO) (*Feature, error)
	ListFeatures(ctx context.Context, moduleID string) ([]*Feature, error)
	GetFeature(ctx context.Context, id string) (*Feature, error)
	UpdateFeature(ctx context.Context, id string, dto FeatureDTO) (*Feature, error)
	DeleteFeature(ctx context.Context, id string) error

	CreatePermissionType(ctx context.Context, dto PermissionTypeDTO) (*PermissionType, error)
	ListPermissionTypes(ctx context.Context) ([]*PermissionType, error)
	GetPermissionType(ctx context.Context, id string) (*PermissionType, error)
	UpdatePermissionType(ctx context.Context, id string, dto PermissionTypeDTO) (*PermissionType, error)
	DeletePermissionType(ctx context.Context, id string) error
	SetupDefaultPermissionTypes(ctx context.Context) (*SetupDefaultsResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) CreateModule(w http.ResponseWriter, r *http.Request) {
	var dto ModuleDTO
	if appErr := h.ReadJSON(r, &dto); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	module, err := h.Service.CreateModule(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, module)
}

func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.Service.ListModules(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ModulesResponse{Modules: modules})
}

func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	module, err := h.Service.GetModule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, module)
}

func (h *Handler) UpdateModule(w http.ResponseWriter, r *http.Request) {
	var dto ModuleDTO
	if appErr := h.ReadJSON(r, &dto); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	module, err := h.Service.UpdateModule(r.Context(), chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, module)
}

func (h *Handler) DeleteModule(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteModule(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateFeature(w http.ResponseWriter, r *http.Request) {
	var dto FeatureDTO
	if appErr := h.ReadJSON(r, &dto); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	feature, err := h.Service.CreateFeature(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, feature)
}

// ListFeatures accepts an optional ?moduleId= filter.
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := h.Service.ListFeatures(r.Context(), r.URL.Query().Get("moduleId"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, FeaturesResponse{Features: features})
}

func (h *Handler) GetFeature(w http.ResponseWriter, r *http.Request) {
	feature, err := h.Service.GetFeature(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, feature)
}

func (h *Handler) UpdateFeature(w http.ResponseWriter, r *http.Request) {
	var dto FeatureDTO
	if appErr := h.ReadJSON(r, &dto); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	feature, err := h.Service.UpdateFeature(r.Context(), chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, feature)
}

func (h *Handler) DeleteFeature(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteFeature(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreatePermissionType(w http.ResponseWriter, r *http.Request) {
	var dto PermissionTypeDTO
	if appErr := h.ReadJSON(r, &dto); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	pt, err := h.Service.CreatePermissionType(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, pt)
}

func (h *Handler) ListPermissionTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Service.ListPermissionTypes(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, PermissionTypesResponse{PermissionTypes: types})
}

func (h *Handler) GetPermissionType(w http.ResponseWriter, r *http.Request) {
	pt, err := h.Service.GetPermissionType(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, pt)
}

func (h *Handler) UpdatePermissionType(w http.ResponseWriter, r *http.Request) {
	var dto PermissionTypeDTO
	if appErr := h.ReadJSON(r, &dto); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	pt, err := h.Service.UpdatePermissionType(r.Context(), chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, pt)
}

func (h *Handler) DeletePermissionType(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeletePermissionType(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetupDefaultPermissionTypes(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Service.SetupDefaultPermissionTypes(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	h.WriteJSON(w, status, resp)
}
