package leavetype

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/core/common/validation"
	leaveTypeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leavetype"
)

type RepositoryAPI interface {
	List(ctx context.Context, includeInactive bool) ([]*leaveTypeDatamodel.LeaveType, error)
	GetByID(ctx context.Context, id int64) (*leaveTypeDatamodel.LeaveType, error)
	GetByName(ctx context.Context, name string) (*leaveTypeDatamodel.LeaveType, error)
	Create(ctx context.Context, t *leaveTypeDatamodel.LeaveType) error
	Update(ctx context.Context, t *leaveTypeDatamodel.LeaveType) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]*LeaveType, error) {
	rows, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		s.logger.Error("failed to list leave types", "error", err)
		return nil, err
	}

	out := make([]*LeaveType, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

// ListActive is the set of types a fresh ledger year is seeded from.
func (s *Service) ListActive(ctx context.Context) ([]*LeaveType, error) {
	return s.List(ctx, false)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*LeaveType, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to load leave type", "error", err, "leave_type_id", id)
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrLeaveTypeNotFound
	}
	return FromDataModel(row), nil
}

// GetActive is GetByID restricted to types that can still be requested.
func (s *Service) GetActive(ctx context.Context, id int64) (*LeaveType, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, internal.ErrLeaveTypeNotFound.WithMessage("Leave type %q is no longer active", t.Name)
	}
	return t, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*LeaveType, error) {
	row, err := s.repo.GetByName(ctx, name)
	if err != nil {
		s.logger.Error("failed to load leave type", "error", err, "name", name)
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrLeaveTypeNotFound.WithMessage("Leave type %q not found", name)
	}
	return FromDataModel(row), nil
}

func (s *Service) Create(ctx context.Context, dto CreateLeaveTypeDTO) (*LeaveType, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(dto.Name)
	existing, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, internal.ErrLeaveTypeExists
	}

	t := NewLeaveType(name, dto.Description, dto.MaxDays, dto.RequiresJustification)
	row := ToDataModel(t)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create leave type", "error", err, "name", name)
		return nil, err
	}

	s.logger.Info("leave type created", "leave_type_id", row.ID, "name", row.Name)
	return FromDataModel(row), nil
}

func (s *Service) Update(ctx context.Context, id int64, dto UpdateLeaveTypeDTO) (*LeaveType, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}

	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil {
		name := strings.TrimSpace(*dto.Name)
		if !strings.EqualFold(name, t.Name) {
			existing, err := s.repo.GetByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != id {
				return nil, internal.ErrLeaveTypeExists
			}
		}
		t.Name = name
	}
	if dto.Description != nil {
		t.Description = *dto.Description
	}
	if dto.ClearMaxDays {
		t.MaxDays = nil
	} else if dto.MaxDays != nil {
		t.MaxDays = dto.MaxDays
	}
	if dto.RequiresJustification != nil {
		t.RequiresJustification = *dto.RequiresJustification
	}
	if dto.Active != nil {
		t.Active = *dto.Active
	}

	row := ToDataModel(t)
	if err := s.repo.Update(ctx, row); err != nil {
		s.logger.Error("failed to update leave type", "error", err, "leave_type_id", id)
		return nil, err
	}
	return FromDataModel(row), nil
}

// Deactivate hides the type from new requests. Rows are kept because past
// requests and ledger entries reference them.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !t.Active {
		return nil
	}
	t.Deactivate()
	if err := s.repo.Update(ctx, ToDataModel(t)); err != nil {
		s.logger.Error("failed to deactivate leave type", "error", err, "leave_type_id", id)
		return err
	}
	s.logger.Info("leave type deactivated", "leave_type_id", id)
	return nil
}
