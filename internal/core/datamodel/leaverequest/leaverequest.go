package leaverequest

import "time"

// LeaveRequest stores the four approval stages as column groups. The domain
// package rebuilds the ordered stage list from them.
type LeaveRequest struct {
	ID                 int64     `gorm:"primaryKey"`
	EmployeeID         int64     `gorm:"column:employee_id;not null;index"`
	LeaveTypeID        int64     `gorm:"column:leave_type_id;not null"`
	StartDate          time.Time `gorm:"column:start_date;type:date;not null"`
	EndDate            time.Time `gorm:"column:end_date;type:date;not null"`
	Reason             *string   `gorm:"column:reason"`
	JustificationToken *string   `gorm:"column:justification_token"`
	JustificationName  *string   `gorm:"column:justification_name"`

	ManagerStatus    string     `gorm:"column:manager_status;not null;default:PENDING"`
	ManagerComment   *string    `gorm:"column:manager_comment"`
	ManagerDecidedAt *time.Time `gorm:"column:manager_decided_at"`
	ManagerDecidedBy *int64     `gorm:"column:manager_decided_by"`

	HRStatus    string     `gorm:"column:hr_status;not null;default:PENDING"`
	HRComment   *string    `gorm:"column:hr_comment"`
	HRDecidedAt *time.Time `gorm:"column:hr_decided_at"`
	HRDecidedBy *int64     `gorm:"column:hr_decided_by"`

	DeptHeadStatus    string     `gorm:"column:dept_head_status;not null;default:PENDING"`
	DeptHeadComment   *string    `gorm:"column:dept_head_comment"`
	DeptHeadDecidedAt *time.Time `gorm:"column:dept_head_decided_at"`
	DeptHeadDecidedBy *int64     `gorm:"column:dept_head_decided_by"`

	ExecStatus    string     `gorm:"column:exec_status;not null;default:PENDING"`
	ExecComment   *string    `gorm:"column:exec_comment"`
	ExecDecidedAt *time.Time `gorm:"column:exec_decided_at"`
	ExecDecidedBy *int64     `gorm:"column:exec_decided_by"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (LeaveRequest) TableName() string {
	return "leave_requests"
}
