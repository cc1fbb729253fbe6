package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/leave-management/internal/core/database"
	employeeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/employee"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

type employeeRow struct {
	ID             int64          `db:"id"`
	FirstName      string         `db:"first_name"`
	LastName       string         `db:"last_name"`
	Email          string         `db:"email"`
	PasswordHash   sql.NullString `db:"password_hash"`
	Role           string         `db:"role"`
	Position       sql.NullString `db:"position"`
	Matricule      sql.NullString `db:"matricule"`
	DepartmentID   sql.NullInt64  `db:"department_id"`
	DepartmentName sql.NullString `db:"department_name"`
	ManagerID      sql.NullInt64  `db:"manager_id"`
	EnterpriseID   sql.NullInt64  `db:"enterprise_id"`
	Active         bool           `db:"active"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r employeeRow) toDomain() *employee.Employee {
	e := &employee.Employee{
		ID:             r.ID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		PasswordHash:   r.PasswordHash.String,
		Role:           employee.Role(r.Role),
		Position:       r.Position.String,
		Matricule:      r.Matricule.String,
		DepartmentName: r.DepartmentName.String,
		Active:         r.Active,
		CreatedAt:      r.CreatedAt,
	}
	if r.DepartmentID.Valid {
		id := r.DepartmentID.Int64
		e.DepartmentID = &id
	}
	if r.ManagerID.Valid {
		id := r.ManagerID.Int64
		e.ManagerID = &id
	}
	if r.EnterpriseID.Valid {
		id := r.EnterpriseID.Int64
		e.EnterpriseID = &id
	}
	return e
}

const selectEmployee = `
SELECT e.id, e.first_name, e.last_name, e.email, e.password_hash, e.role, e.position, e.matricule,
       e.department_id, d.name AS department_name, e.manager_id, e.enterprise_id, e.active, e.created_at
FROM employees e
LEFT JOIN departments d ON d.id = e.department_id`

// EmployeeRepository reads the directory with hand written SQL through sqlx
// and writes the active flag through GORM so it can join a transaction.
type EmployeeRepository struct {
	db  *gorm.DB
	sql *sqlx.DB
}

func NewEmployeeRepository(db *gorm.DB, sqlDB *sqlx.DB) employee.RepositoryAPI {
	return &EmployeeRepository{db: db, sql: sqlDB}
}

func (r *EmployeeRepository) get(ctx context.Context, where string, args ...interface{}) (*employee.Employee, error) {
	var row employeeRow
	query := r.sql.Rebind(selectEmployee + " WHERE " + where)
	if err := r.sql.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query employee: %w", err)
	}
	return row.toDomain(), nil
}

func (r *EmployeeRepository) list(ctx context.Context, where string, args ...interface{}) ([]*employee.Employee, error) {
	var rows []employeeRow
	query := r.sql.Rebind(selectEmployee + " WHERE " + where + " ORDER BY e.last_name, e.first_name, e.id")
	if err := r.sql.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	out := make([]*employee.Employee, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *EmployeeRepository) FindByID(ctx context.Context, id int64) (*employee.Employee, error) {
	return r.get(ctx, "e.id = ?", id)
}

func (r *EmployeeRepository) FindByEmail(ctx context.Context, email string) (*employee.Employee, error) {
	return r.get(ctx, "LOWER(e.email) = LOWER(?)", email)
}

func (r *EmployeeRepository) ListByRole(ctx context.Context, role employee.Role, enterpriseID *int64) ([]*employee.Employee, error) {
	if enterpriseID == nil {
		return r.list(ctx, "e.role = ? AND e.enterprise_id IS NULL", string(role))
	}
	return r.list(ctx, "e.role = ? AND e.enterprise_id = ?", string(role), *enterpriseID)
}

func (r *EmployeeRepository) ListDirectReports(ctx context.Context, managerID int64) ([]*employee.Employee, error) {
	return r.list(ctx, "e.manager_id = ?", managerID)
}

func (r *EmployeeRepository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&employeeDatamodel.Employee{}).
		Where("id = ? AND active <> ?", id, active).
		Updates(map[string]interface{}{
			"active":     active,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update employee %d active flag: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
