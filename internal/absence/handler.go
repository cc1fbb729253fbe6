package absence

import (
	"context"
	"net/http"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/frahmantamala/leave-management/internal/transport"
)

type ServiceAPI interface {
	ListMine(ctx context.Context, employeeID int64) ([]*Absence, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: baseHandler, Service: service}
}

// GetMyAbsences handles GET /absences/my
func (h *Handler) GetMyAbsences(w http.ResponseWriter, r *http.Request) {
	current, ok := employee.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}

	list, err := h.Service.ListMine(r.Context(), current.ID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"absences": list})
}
