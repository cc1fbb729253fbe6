package postgres

import (
	"context"

	"github.com/frahmantamala/leave-management/internal/absence"
	"github.com/frahmantamala/leave-management/internal/core/database"
	absenceDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/absence"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AbsenceRepository struct {
	db *gorm.DB
}

func NewAbsenceRepository(db *gorm.DB) absence.RepositoryAPI {
	return &AbsenceRepository{db: db}
}

func (r *AbsenceRepository) Create(ctx context.Context, a *absenceDatamodel.Absence) (bool, error) {
	res := database.Conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "leave_request_id"}}, DoNothing: true}).
		Create(a)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AbsenceRepository) ListByEmployee(ctx context.Context, employeeID int64) ([]*absenceDatamodel.Absence, error) {
	var rows []*absenceDatamodel.Absence
	err := database.Conn(ctx, r.db).
		Where("employee_id = ?", employeeID).
		Order("start_date DESC").
		Find(&rows).Error
	return rows, err
}
