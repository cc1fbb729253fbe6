package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/core/database"
	leaveRequestDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leaverequest"
	"github.com/frahmantamala/leave-management/internal/leaverequest"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeaveRequestRepository struct {
	db *gorm.DB
}

func NewLeaveRequestRepository(db *gorm.DB) leaverequest.RepositoryAPI {
	return &LeaveRequestRepository{db: db}
}

func toDomain(rows []*leaveRequestDatamodel.LeaveRequest) []*leaverequest.LeaveRequest {
	out := make([]*leaverequest.LeaveRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, leaverequest.FromDataModel(row))
	}
	return out
}

func (r *LeaveRequestRepository) Create(ctx context.Context, req *leaverequest.LeaveRequest) error {
	row := leaverequest.ToDataModel(req)
	if err := database.Conn(ctx, r.db).Create(row).Error; err != nil {
		return err
	}
	req.ID = row.ID
	req.CreatedAt = row.CreatedAt
	req.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *LeaveRequestRepository) get(q *gorm.DB, id int64) (*leaverequest.LeaveRequest, error) {
	var row leaveRequestDatamodel.LeaveRequest
	if err := q.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrLeaveRequestNotFound
		}
		return nil, err
	}
	return leaverequest.FromDataModel(&row), nil
}

func (r *LeaveRequestRepository) GetByID(ctx context.Context, id int64) (*leaverequest.LeaveRequest, error) {
	return r.get(database.Conn(ctx, r.db), id)
}

// GetForUpdate locks the request row until the surrounding transaction ends,
// so two decisions on the same request are applied one after the other.
func (r *LeaveRequestRepository) GetForUpdate(ctx context.Context, id int64) (*leaverequest.LeaveRequest, error) {
	return r.get(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *LeaveRequestRepository) Update(ctx context.Context, req *leaverequest.LeaveRequest) error {
	row := leaverequest.ToDataModel(req)
	if err := database.Conn(ctx, r.db).Save(row).Error; err != nil {
		return err
	}
	req.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *LeaveRequestRepository) Delete(ctx context.Context, id int64) error {
	res := database.Conn(ctx, r.db).Delete(&leaveRequestDatamodel.LeaveRequest{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrLeaveRequestNotFound
	}
	return nil
}

func (r *LeaveRequestRepository) ListByEmployee(ctx context.Context, employeeID int64) ([]*leaverequest.LeaveRequest, error) {
	var rows []*leaveRequestDatamodel.LeaveRequest
	err := database.Conn(ctx, r.db).
		Where("employee_id = ?", employeeID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomain(rows), nil
}

func (r *LeaveRequestRepository) withEmployees(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db).
		Model(&leaveRequestDatamodel.LeaveRequest{}).
		Select("leave_requests.*").
		Joins("JOIN employees ON employees.id = leave_requests.employee_id")
}

func (r *LeaveRequestRepository) ListByManager(ctx context.Context, managerID int64) ([]*leaverequest.LeaveRequest, error) {
	var rows []*leaveRequestDatamodel.LeaveRequest
	err := r.withEmployees(ctx).
		Where("employees.manager_id = ?", managerID).
		Order("leave_requests.created_at DESC").Order("leave_requests.id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomain(rows), nil
}

// ListQueue returns the requests waiting at stage for one enterprise, oldest
// first.
func (r *LeaveRequestRepository) ListQueue(ctx context.Context, stage leaverequest.Stage, enterpriseID *int64) ([]*leaverequest.LeaveRequest, error) {
	q := r.withEmployees(ctx)
	switch stage {
	case leaverequest.StageHR:
		q = q.Where("leave_requests.manager_status = ?", leaverequest.StatusApproved)
	case leaverequest.StageDeptHead:
		q = q.Where("leave_requests.hr_status = ? AND leave_requests.dept_head_status = ?",
			leaverequest.StatusValidated, leaverequest.StatusPending)
	case leaverequest.StageExec:
		q = q.Where("leave_requests.dept_head_status = ? AND leave_requests.exec_status = ?",
			leaverequest.StatusValidated, leaverequest.StatusPending)
	default:
		return nil, internal.ErrInvalidStage
	}

	if enterpriseID == nil {
		q = q.Where("employees.enterprise_id IS NULL")
	} else {
		q = q.Where("employees.enterprise_id = ?", *enterpriseID)
	}

	var rows []*leaveRequestDatamodel.LeaveRequest
	if err := q.Order("leave_requests.created_at ASC").Order("leave_requests.id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomain(rows), nil
}

// HasValidatedOverlap reports whether the employee holds an HR-validated
// request sharing a day with [start, end], other than excludeID.
func (r *LeaveRequestRepository) HasValidatedOverlap(ctx context.Context, employeeID int64, start, end time.Time, excludeID int64) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).
		Model(&leaveRequestDatamodel.LeaveRequest{}).
		Where("employee_id = ? AND hr_status = ? AND id <> ?", employeeID, leaverequest.StatusValidated, excludeID).
		Where("start_date <= ? AND end_date >= ?", end, start).
		Count(&count).Error
	return count > 0, err
}

// HasPendingDepartmentOverlap reports whether another request of the same
// department, still waiting for its manager, shares a day with [start, end].
func (r *LeaveRequestRepository) HasPendingDepartmentOverlap(ctx context.Context, departmentID int64, start, end time.Time, excludeID int64) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).
		Model(&leaveRequestDatamodel.LeaveRequest{}).
		Joins("JOIN employees ON employees.id = leave_requests.employee_id").
		Where("employees.department_id = ?", departmentID).
		Where("leave_requests.manager_status = ? AND leave_requests.id <> ?", leaverequest.StatusPending, excludeID).
		Where("leave_requests.start_date <= ? AND leave_requests.end_date >= ?", end, start).
		Count(&count).Error
	return count > 0, err
}
