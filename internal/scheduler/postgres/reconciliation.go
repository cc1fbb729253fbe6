package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/leave-management/internal/leaverequest"
	"github.com/frahmantamala/leave-management/internal/scheduler"
	"github.com/jmoiron/sqlx"
)

var validated = string(leaverequest.StatusValidated)

// ReconciliationStore runs the scheduler queries as plain SQL; they are read
// only and span the request and employee tables.
type ReconciliationStore struct {
	sql *sqlx.DB
}

func NewReconciliationStore(sqlDB *sqlx.DB) scheduler.Store {
	return &ReconciliationStore{sql: sqlDB}
}

const selectActiveStarting = `
SELECT DISTINCT lr.employee_id
FROM leave_requests lr
JOIN employees e ON e.id = lr.employee_id
WHERE lr.exec_status = ? AND lr.start_date = ? AND e.active = ?
ORDER BY lr.employee_id`

const selectInactiveEnded = `
SELECT DISTINCT lr.employee_id
FROM leave_requests lr
JOIN employees e ON e.id = lr.employee_id
WHERE lr.exec_status = ? AND lr.end_date < ? AND e.active = ?
ORDER BY lr.employee_id`

const countLeavesEndingFrom = `
SELECT COUNT(*)
FROM leave_requests
WHERE employee_id = ? AND exec_status = ? AND end_date >= ?`

func (s *ReconciliationStore) ActiveStartingOn(ctx context.Context, day time.Time) ([]int64, error) {
	var ids []int64
	if err := s.sql.SelectContext(ctx, &ids, s.sql.Rebind(selectActiveStarting), validated, day, true); err != nil {
		return nil, fmt.Errorf("failed to query leaves starting: %w", err)
	}
	return ids, nil
}

func (s *ReconciliationStore) InactiveEndedBefore(ctx context.Context, day time.Time) ([]int64, error) {
	var ids []int64
	if err := s.sql.SelectContext(ctx, &ids, s.sql.Rebind(selectInactiveEnded), validated, day, false); err != nil {
		return nil, fmt.Errorf("failed to query ended leaves: %w", err)
	}
	return ids, nil
}

func (s *ReconciliationStore) HasLeaveEndingFrom(ctx context.Context, employeeID int64, day time.Time) (bool, error) {
	var count int64
	if err := s.sql.GetContext(ctx, &count, s.sql.Rebind(countLeavesEndingFrom), employeeID, validated, day); err != nil {
		return false, fmt.Errorf("failed to count remaining leaves: %w", err)
	}
	return count > 0, nil
}
