package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/leave-management/internal/core/database"
	leaveTypeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leavetype"
	"github.com/frahmantamala/leave-management/internal/leavetype"
	"gorm.io/gorm"
)

type LeaveTypeRepository struct {
	db *gorm.DB
}

func NewLeaveTypeRepository(db *gorm.DB) leavetype.RepositoryAPI {
	return &LeaveTypeRepository{db: db}
}

func (r *LeaveTypeRepository) List(ctx context.Context, includeInactive bool) ([]*leaveTypeDatamodel.LeaveType, error) {
	var types []*leaveTypeDatamodel.LeaveType
	q := database.Conn(ctx, r.db).Order("name ASC")
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	err := q.Find(&types).Error
	return types, err
}

func (r *LeaveTypeRepository) GetByID(ctx context.Context, id int64) (*leaveTypeDatamodel.LeaveType, error) {
	var t leaveTypeDatamodel.LeaveType
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *LeaveTypeRepository) GetByName(ctx context.Context, name string) (*leaveTypeDatamodel.LeaveType, error) {
	var t leaveTypeDatamodel.LeaveType
	err := database.Conn(ctx, r.db).Where("LOWER(name) = LOWER(?)", name).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *LeaveTypeRepository) Create(ctx context.Context, t *leaveTypeDatamodel.LeaveType) error {
	return database.Conn(ctx, r.db).Create(t).Error
}

func (r *LeaveTypeRepository) Update(ctx context.Context, t *leaveTypeDatamodel.LeaveType) error {
	return database.Conn(ctx, r.db).Save(t).Error
}
