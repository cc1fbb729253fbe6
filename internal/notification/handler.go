package notification

import (
	"context"
	"net/http"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/frahmantamala/leave-management/internal/transport"
)

type ServiceAPI interface {
	ListMine(ctx context.Context, employeeID int64) ([]*Notification, error)
	ListUnread(ctx context.Context, employeeID int64) ([]*Notification, error)
	MarkRead(ctx context.Context, id, employeeID int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: baseHandler, Service: service}
}

type NotificationsResponse struct {
	Notifications []*Notification `json:"notifications"`
	Count         int             `json:"count"`
}

// GetMyNotifications handles GET /notifications/my
func (h *Handler) GetMyNotifications(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListMine)
}

// GetUnreadNotifications handles GET /notifications/unread
func (h *Handler) GetUnreadNotifications(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListUnread)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, int64) ([]*Notification, error)) {
	current, ok := employee.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}

	list, err := fetch(r.Context(), current.ID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NotificationsResponse{Notifications: list, Count: len(list)})
}

// MarkAsRead handles PUT /notifications/{id}/read
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	current, ok := employee.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}

	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	if err := h.Service.MarkRead(r.Context(), id, current.ID); err != nil {
		h.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
