package employee

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/leave-management/internal"
)

// Directory is the read side of the employee records.
type Directory interface {
	FindByID(ctx context.Context, id int64) (*Employee, error)
	FindByEmail(ctx context.Context, email string) (*Employee, error)
	ListByRole(ctx context.Context, role Role, enterpriseID *int64) ([]*Employee, error)
	ListDirectReports(ctx context.Context, managerID int64) ([]*Employee, error)
}

// ActivationStore flips the active flag. SetActive reports whether the row
// changed so callers can count real transitions.
type ActivationStore interface {
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
}

type RepositoryAPI interface {
	Directory
	ActivationStore
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) GetProfile(ctx context.Context, id int64) (*Employee, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to load employee", "error", err, "employee_id", id)
		return nil, err
	}
	if e == nil {
		return nil, internal.ErrEmployeeNotFound
	}
	return e, nil
}

func (s *Service) DirectReports(ctx context.Context, managerID int64) ([]*Employee, error) {
	reports, err := s.repo.ListDirectReports(ctx, managerID)
	if err != nil {
		s.logger.Error("failed to list direct reports", "error", err, "manager_id", managerID)
		return nil, err
	}
	return reports, nil
}
