package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/frahmantamala/leave-management/internal/transport"
	"github.com/frahmantamala/leave-management/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	tokens, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}
	if dto.RefreshToken == "" {
		h.WriteAppError(w, internal.NewValidationFieldError("refresh_token", "refresh_token is required", internal.ErrCodeValidationFailed))
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), dto.RefreshToken)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// AuthMiddleware resolves the bearer token into the current employee record
// and stores it on the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteAppError(w, internal.NewUnauthorizedError("missing bearer token", internal.ErrCodeInvalidToken))
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.WriteAppError(w, err)
			return
		}

		current, err := h.Service.CurrentEmployee(r.Context(), claims.EmployeeID)
		if err != nil {
			h.WriteAppError(w, err)
			return
		}

		ctx := employee.NewContext(r.Context(), current)
		ctx = logger.With(ctx, "employee_id", current.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles lets the request through when the authenticated employee holds
// one of roles.
func (h *Handler) RequireRoles(roles ...employee.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current, ok := employee.FromContext(r.Context())
			if !ok {
				h.WriteAppError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
				return
			}
			if !current.HasRole(roles...) {
				h.Logger.Warn("access denied: missing role",
					"employee_id", current.ID,
					"role", current.Role,
					"required_roles", roles)
				h.WriteAppError(w, internal.ErrNotAuthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
