package leavetype

import (
	"context"
	"net/http"

	"github.com/frahmantamala/leave-management/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, includeInactive bool) ([]*LeaveType, error)
	GetByID(ctx context.Context, id int64) (*LeaveType, error)
	Create(ctx context.Context, dto CreateLeaveTypeDTO) (*LeaveType, error)
	Update(ctx context.Context, id int64, dto UpdateLeaveTypeDTO) (*LeaveType, error)
	Deactivate(ctx context.Context, id int64) error
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

// GetLeaveTypes handles GET /leave-types. ?all=true includes inactive types.
func (h *Handler) GetLeaveTypes(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("all") == "true"
	types, err := h.Service.List(r.Context(), includeInactive)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, LeaveTypesResponse{LeaveTypes: types})
}

func (h *Handler) GetLeaveType(w http.ResponseWriter, r *http.Request) {
	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	t, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var dto CreateLeaveTypeDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}
	t, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) UpdateLeaveType(w http.ResponseWriter, r *http.Request) {
	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	var dto UpdateLeaveTypeDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}
	t, err := h.Service.Update(r.Context(), id, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteLeaveType(w http.ResponseWriter, r *http.Request) {
	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	if err := h.Service.Deactivate(r.Context(), id); err != nil {
		h.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
