package ledger

import (
	"context"
	"net/http"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/frahmantamala/leave-management/internal/transport"
	"github.com/shopspring/decimal"
)

type ServiceAPI interface {
	MyBalances(ctx context.Context, employeeID int64) ([]*Balance, error)
	TotalDisposable(ctx context.Context, employeeID int64) (decimal.Decimal, error)
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

type BalancesResponse struct {
	Balances []*Balance `json:"balances"`
}

type TotalResponse struct {
	EmployeeID int64           `json:"employee_id"`
	Total      decimal.Decimal `json:"total"`
}

// GetMyBalances handles GET /balances/my
func (h *Handler) GetMyBalances(w http.ResponseWriter, r *http.Request) {
	current, ok := employee.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}

	balances, err := h.Service.MyBalances(r.Context(), current.ID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, BalancesResponse{Balances: balances})
}

// GetMyTotal handles GET /balances/my/total
func (h *Handler) GetMyTotal(w http.ResponseWriter, r *http.Request) {
	current, ok := employee.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}

	total, err := h.Service.TotalDisposable(r.Context(), current.ID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, TotalResponse{EmployeeID: current.ID, Total: total})
}
