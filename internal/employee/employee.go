package employee

import (
	"time"

	employeeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/employee"
)

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleHR       Role = "HR"
	RoleDeptHead Role = "DEPT_HEAD"
	RoleExec     Role = "EXEC"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleHR, RoleDeptHead, RoleExec, RoleAdmin:
		return true
	}
	return false
}

// Employee is the directory view of a person: identity, hierarchy and the
// active flag toggled around leave periods.
type Employee struct {
	ID             int64     `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	Position       string    `json:"position,omitempty"`
	Matricule      string    `json:"matricule,omitempty"`
	DepartmentID   *int64    `json:"department_id,omitempty"`
	DepartmentName string    `json:"department_name,omitempty"`
	ManagerID      *int64    `json:"manager_id,omitempty"`
	EnterpriseID   *int64    `json:"enterprise_id,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

func (e *Employee) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if e.Role == r {
			return true
		}
	}
	return false
}

// IsManagerOf reports whether e is the direct manager of other.
func (e *Employee) IsManagerOf(other *Employee) bool {
	return other != nil && other.ManagerID != nil && *other.ManagerID == e.ID
}

// SameEnterprise treats a missing enterprise on either side as the single
// default tenant.
func (e *Employee) SameEnterprise(other *Employee) bool {
	if e.EnterpriseID == nil || other.EnterpriseID == nil {
		return e.EnterpriseID == nil && other.EnterpriseID == nil
	}
	return *e.EnterpriseID == *other.EnterpriseID
}

// HasTenure reports whether the employee has been with the company at least
// the given number of months on day.
func (e *Employee) HasTenure(months int, day time.Time) bool {
	return !e.CreatedAt.AddDate(0, months, 0).After(day)
}

func ToDataModel(e *Employee) *employeeDatamodel.Employee {
	return &employeeDatamodel.Employee{
		ID:           e.ID,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		Role:         string(e.Role),
		Position:     e.Position,
		Matricule:    e.Matricule,
		DepartmentID: e.DepartmentID,
		ManagerID:    e.ManagerID,
		EnterpriseID: e.EnterpriseID,
		Active:       e.Active,
		CreatedAt:    e.CreatedAt,
	}
}

func FromDataModel(e *employeeDatamodel.Employee) *Employee {
	return &Employee{
		ID:           e.ID,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		Role:         Role(e.Role),
		Position:     e.Position,
		Matricule:    e.Matricule,
		DepartmentID: e.DepartmentID,
		ManagerID:    e.ManagerID,
		EnterpriseID: e.EnterpriseID,
		Active:       e.Active,
		CreatedAt:    e.CreatedAt,
	}
}
