package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	notificationDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/notification"
)

type Notification struct {
	ID             int64     `json:"id"`
	EmployeeID     int64     `json:"employee_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Read           bool      `json:"read"`
	LeaveRequestID *int64    `json:"leave_request_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func FromDataModel(n *notificationDatamodel.Notification) *Notification {
	return &Notification{
		ID:             n.ID,
		EmployeeID:     n.EmployeeID,
		Title:          n.Title,
		Message:        n.Message,
		Read:           n.Read,
		LeaveRequestID: n.LeaveRequestID,
		CreatedAt:      n.CreatedAt,
	}
}

type RepositoryAPI interface {
	Create(ctx context.Context, n *notificationDatamodel.Notification) error
	ListByEmployee(ctx context.Context, employeeID int64, unreadOnly bool) ([]*notificationDatamodel.Notification, error)
	// MarkRead reports false when no notification with id belongs to employeeID.
	MarkRead(ctx context.Context, id, employeeID int64) (bool, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, employeeID int64, title, message string, leaveRequestID int64) error {
	row := &notificationDatamodel.Notification{
		EmployeeID: employeeID,
		Title:      title,
		Message:    message,
	}
	if leaveRequestID > 0 {
		row.LeaveRequestID = &leaveRequestID
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return err
	}
	return nil
}

func (s *Service) ListMine(ctx context.Context, employeeID int64) ([]*Notification, error) {
	return s.list(ctx, employeeID, false)
}

func (s *Service) ListUnread(ctx context.Context, employeeID int64) ([]*Notification, error) {
	return s.list(ctx, employeeID, true)
}

func (s *Service) list(ctx context.Context, employeeID int64, unreadOnly bool) ([]*Notification, error) {
	rows, err := s.repo.ListByEmployee(ctx, employeeID, unreadOnly)
	if err != nil {
		return nil, err
	}
	out := make([]*Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, id, employeeID int64) error {
	found, err := s.repo.MarkRead(ctx, id, employeeID)
	if err != nil {
		return err
	}
	if !found {
		return internal.ErrNotificationNotFound
	}
	return nil
}
