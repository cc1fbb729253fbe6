package leaverequest

import (
	"io"
	"time"

	"github.com/frahmantamala/leave-management/internal"
)

type SubmitDTO struct {
	LeaveTypeID int64  `json:"leave_type_id" validate:"required,gt=0"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason      string `json:"reason" validate:"max=1000"`
}

// ModifyDTO changes only the fields that are set.
type ModifyDTO struct {
	LeaveTypeID *int64  `json:"leave_type_id,omitempty" validate:"omitempty,gt=0"`
	StartDate   *string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Reason      *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

type DecideDTO struct {
	Decision string `json:"decision" validate:"required"`
	Comment  string `json:"comment" validate:"max=1000"`
}

// Upload is a justification file attached to a submit or modify call.
type Upload struct {
	Name   string
	Reader io.Reader
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, internal.NewValidationFieldError("date", "dates use the YYYY-MM-DD format", internal.ErrCodeInvalidDateRange)
	}
	return t, nil
}

type EmailStatus string

const (
	EmailSent      EmailStatus = "SENT"
	EmailFailed    EmailStatus = "FAILED"
	EmailNoManager EmailStatus = "NO_MANAGER"
	EmailSkipped   EmailStatus = "SKIPPED"
)

// StageView is one stage as returned to clients.
type StageView struct {
	Stage string `json:"stage"`
	Decision
}

// View is a request with everything a client renders resolved up front.
type View struct {
	ID                int64       `json:"id"`
	EmployeeID        int64       `json:"employee_id"`
	EmployeeName      string      `json:"employee_name"`
	LeaveTypeID       int64       `json:"leave_type_id"`
	LeaveTypeName     string      `json:"leave_type_name"`
	StartDate         string      `json:"start_date"`
	EndDate           string      `json:"end_date"`
	DurationDays      int         `json:"duration_days"`
	Reason            string      `json:"reason,omitempty"`
	HasJustification  bool        `json:"has_justification"`
	JustificationName string      `json:"justification_name,omitempty"`
	ManagerStatus     Status      `json:"manager_status"`
	HRStatus          Status      `json:"hr_status"`
	DeptHeadStatus    Status      `json:"dept_head_status"`
	ExecStatus        Status      `json:"exec_status"`
	Stages            []StageView `json:"stages"`
	CurrentStage      string      `json:"current_stage"`
	HasOverlap        bool        `json:"has_overlap"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Result is returned by every mutation. The email fields are advisory and
// never change the outcome of the call.
type Result struct {
	Request     *View       `json:"request,omitempty"`
	Message     string      `json:"message,omitempty"`
	EmailStatus EmailStatus `json:"email_status"`
	EmailError  string      `json:"email_error,omitempty"`
}

type ListResponse struct {
	Requests []*View `json:"requests"`
	Count    int     `json:"count"`
}
