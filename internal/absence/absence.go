package absence

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	absenceDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/absence"
)

// Absence is a short approved leave kept outside the balance ledger.
type Absence struct {
	ID             int64     `json:"id"`
	EmployeeID     int64     `json:"employee_id"`
	LeaveRequestID *int64    `json:"leave_request_id,omitempty"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Days           int       `json:"days"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func FromDataModel(a *absenceDatamodel.Absence) *Absence {
	return &Absence{
		ID:             a.ID,
		EmployeeID:     a.EmployeeID,
		LeaveRequestID: a.LeaveRequestID,
		StartDate:      a.StartDate,
		EndDate:        a.EndDate,
		Days:           a.Days,
		Reason:         a.Reason,
		CreatedAt:      a.CreatedAt,
	}
}

type RepositoryAPI interface {
	// Create stores a; a second absence for the same leave request is ignored.
	Create(ctx context.Context, a *absenceDatamodel.Absence) (bool, error)
	ListByEmployee(ctx context.Context, employeeID int64) ([]*absenceDatamodel.Absence, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record registers a short leave for an approved request.
func (s *Service) Record(ctx context.Context, employeeID, requestID int64, start, end time.Time, reason string) error {
	start, end = internal.DateOf(start), internal.DateOf(end)
	row := &absenceDatamodel.Absence{
		EmployeeID:     employeeID,
		LeaveRequestID: &requestID,
		StartDate:      start,
		EndDate:        end,
		Days:           int(end.Sub(start).Hours()/24) + 1,
		Reason:         reason,
	}
	created, err := s.repo.Create(ctx, row)
	if err != nil {
		s.logger.Error("failed to record absence", "error", err, "employee_id", employeeID, "leave_request_id", requestID)
		return err
	}
	if created {
		s.logger.Info("short absence recorded", "employee_id", employeeID, "leave_request_id", requestID, "days", row.Days)
	}
	return nil
}

func (s *Service) ListMine(ctx context.Context, employeeID int64) ([]*Absence, error) {
	rows, err := s.repo.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	out := make([]*Absence, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}
