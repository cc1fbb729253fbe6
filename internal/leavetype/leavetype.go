package leavetype

import (
	"time"

	leaveTypeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leavetype"
)

// LeaveType is catalog reference data. MaxDays nil means unbounded.
type LeaveType struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	Description           string    `json:"description"`
	MaxDays               *int      `json:"max_days,omitempty"`
	RequiresJustification bool      `json:"requires_justification"`
	Active                bool      `json:"active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Grant is the yearly allotment seeded into a fresh ledger row.
func (t *LeaveType) Grant() int {
	if t.MaxDays == nil {
		return 0
	}
	return *t.MaxDays
}

func (t *LeaveType) Deactivate() {
	t.Active = false
	t.UpdatedAt = time.Now()
}

func NewLeaveType(name, description string, maxDays *int, requiresJustification bool) *LeaveType {
	now := time.Now()
	return &LeaveType{
		Name:                  name,
		Description:           description,
		MaxDays:               maxDays,
		RequiresJustification: requiresJustification,
		Active:                true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func ToDataModel(t *LeaveType) *leaveTypeDatamodel.LeaveType {
	return &leaveTypeDatamodel.LeaveType{
		ID:                    t.ID,
		Name:                  t.Name,
		Description:           t.Description,
		MaxDays:               t.MaxDays,
		RequiresJustification: t.RequiresJustification,
		Active:                t.Active,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

func FromDataModel(t *leaveTypeDatamodel.LeaveType) *LeaveType {
	return &LeaveType{
		ID:                    t.ID,
		Name:                  t.Name,
		Description:           t.Description,
		MaxDays:               t.MaxDays,
		RequiresJustification: t.RequiresJustification,
		Active:                t.Active,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}
