package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/leave-management/internal/absence"
	"github.com/frahmantamala/leave-management/internal/auth"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/frahmantamala/leave-management/internal/leaverequest"
	"github.com/frahmantamala/leave-management/internal/leavetype"
	"github.com/frahmantamala/leave-management/internal/ledger"
	"github.com/frahmantamala/leave-management/internal/notification"
	"github.com/frahmantamala/leave-management/internal/transport/middleware"
	"github.com/frahmantamala/leave-management/internal/transport/swagger"
	"github.com/go-chi/chi"
)

// Handlers groups the HTTP handlers mounted under /api/v1. A nil handler
// leaves its routes out.
type Handlers struct {
	Auth         *auth.Handler
	Employee     *employee.Handler
	LeaveRequest *leaverequest.Handler
	LeaveType    *leavetype.Handler
	Ledger       *ledger.Handler
	Absence      *absence.Handler
	Notification *notification.Handler
}

// Options holds the router-wide settings.
type Options struct {
	AllowedOrigins string
	OpenAPIPath    string

	// Validate, when set, checks requests against the API document.
	Validate func(http.Handler) http.Handler

	// Metrics, when set, is served at MetricsPath (default /metrics).
	Metrics     http.Handler
	MetricsPath string
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, handlers Handlers, opts Options, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, opts.Metrics)
	}

	if opts.OpenAPIPath != "" {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, opts.OpenAPIPath)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if opts.Validate != nil {
			r.Use(opts.Validate)
		}

		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if handlers.Auth == nil {
			return
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", handlers.Auth.Login)
			ar.Post("/refresh", handlers.Auth.RefreshToken)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(handlers.Auth.AuthMiddleware)
			registerProtected(pr, handlers)
		})
	})
}

func registerProtected(r chi.Router, h Handlers) {
	if h.Employee != nil {
		r.Get("/employees/me", h.Employee.GetCurrentEmployee)
		r.Get("/employees/me/team", h.Employee.GetTeam)
	}

	if h.LeaveRequest != nil {
		r.Route("/leave-requests", func(lr chi.Router) {
			lr.Post("/", h.LeaveRequest.SubmitLeaveRequest)
			lr.Get("/my", h.LeaveRequest.GetMyLeaveRequests)
			lr.Get("/modifiable", h.LeaveRequest.GetModifiableLeaveRequests)
			lr.Get("/team", h.LeaveRequest.GetTeamLeaveRequests)
			lr.Get("/queue/{stage}", h.LeaveRequest.GetQueue)
			lr.Get("/{id}", h.LeaveRequest.GetLeaveRequest)
			lr.Put("/{id}", h.LeaveRequest.ModifyLeaveRequest)
			lr.Delete("/{id}", h.LeaveRequest.CancelLeaveRequest)
			lr.Get("/{id}/justification", h.LeaveRequest.DownloadJustification)
			lr.Put("/{id}/stages/{stage}", h.LeaveRequest.DecideStage)
		})
	}

	if h.Ledger != nil {
		r.Get("/balances/my", h.Ledger.GetMyBalances)
		r.Get("/balances/my/total", h.Ledger.GetMyTotal)
	}

	if h.Absence != nil {
		r.Get("/absences/my", h.Absence.GetMyAbsences)
	}

	if h.LeaveType != nil {
		r.Route("/leave-types", func(tr chi.Router) {
			tr.Get("/", h.LeaveType.GetLeaveTypes)
			tr.Get("/{id}", h.LeaveType.GetLeaveType)

			tr.Group(func(hr chi.Router) {
				hr.Use(h.Auth.RequireRoles(employee.RoleHR, employee.RoleAdmin))
				hr.Post("/", h.LeaveType.CreateLeaveType)
				hr.Put("/{id}", h.LeaveType.UpdateLeaveType)
				hr.Delete("/{id}", h.LeaveType.DeleteLeaveType)
			})
		})
	}

	if h.Notification != nil {
		r.Route("/notifications", func(nr chi.Router) {
			nr.Get("/my", h.Notification.GetMyNotifications)
			nr.Get("/unread", h.Notification.GetUnreadNotifications)
			nr.Put("/{id}/read", h.Notification.MarkAsRead)
		})
	}
}
