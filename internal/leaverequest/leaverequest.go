package leaverequest

import (
	"strings"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	leaveRequestDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leaverequest"
	"github.com/frahmantamala/leave-management/internal/employee"
)

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusApproved      Status = "APPROVED"
	StatusValidated     Status = "VALIDATED"
	StatusRejected      Status = "REJECTED"
	StatusNeedsMoreInfo Status = "NEEDS_MORE_INFO"
)

// Stage is a position in the approval chain. Stages are decided in order.
type Stage int

const (
	StageManager Stage = iota
	StageHR
	StageDeptHead
	StageExec

	stageCount = 4
)

var stageNames = [stageCount]string{"manager", "hr", "dept-head", "exec"}

func (s Stage) String() string {
	if s < 0 || s >= stageCount {
		return "unknown"
	}
	return stageNames[s]
}

func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(name, n) {
			return Stage(i), nil
		}
	}
	return 0, internal.ErrInvalidStage.WithMessage("Unknown approval stage %q", name)
}

// ApprovedStatus is the status that unlocks the next stage. The manager
// approves; every later stage validates.
func (s Stage) ApprovedStatus() Status {
	if s == StageManager {
		return StatusApproved
	}
	return StatusValidated
}

// Role is the role an actor needs to decide s. The manager stage is decided
// by the requester's direct manager instead.
func (s Stage) Role() employee.Role {
	switch s {
	case StageHR:
		return employee.RoleHR
	case StageDeptHead:
		return employee.RoleDeptHead
	case StageExec:
		return employee.RoleExec
	default:
		return employee.RoleManager
	}
}

// ParseDecision maps a requested decision onto the status s records.
// APPROVED and VALIDATED are accepted interchangeably.
func (s Stage) ParseDecision(raw string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusApproved, StatusValidated:
		return s.ApprovedStatus(), nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusNeedsMoreInfo:
		return StatusNeedsMoreInfo, nil
	}
	return "", internal.ErrInvalidDecision.WithMessage("Decision %q is not valid for the %s stage", raw, s)
}

// Decision is what one stage recorded.
type Decision struct {
	Status    Status     `json:"status"`
	Comment   string     `json:"comment,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	DecidedBy *int64     `json:"decided_by,omitempty"`
}

type LeaveRequest struct {
	ID                 int64
	EmployeeID         int64
	LeaveTypeID        int64
	StartDate          time.Time
	EndDate            time.Time
	Reason             string
	JustificationToken string
	JustificationName  string
	Stages             [stageCount]Decision
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func New(employeeID, leaveTypeID int64, start, end time.Time, reason string) (*LeaveRequest, error) {
	start, end = internal.DateOf(start), internal.DateOf(end)
	if start.After(end) {
		return nil, internal.ErrInvalidDateRange
	}
	r := &LeaveRequest{
		EmployeeID:  employeeID,
		LeaveTypeID: leaveTypeID,
		StartDate:   start,
		EndDate:     end,
		Reason:      strings.TrimSpace(reason),
	}
	for i := range r.Stages {
		r.Stages[i].Status = StatusPending
	}
	return r, nil
}

func (r *LeaveRequest) Stage(s Stage) Decision {
	return r.Stages[s]
}

func (r *LeaveRequest) approved(s Stage) bool {
	return r.Stages[s].Status == s.ApprovedStatus()
}

// DurationDays counts calendar days, both ends included.
func (r *LeaveRequest) DurationDays() int {
	return int(r.EndDate.Sub(r.StartDate).Hours()/24) + 1
}

// CurrentStage is the first stage that has not approved yet. ok is false
// once every stage has approved.
func (r *LeaveRequest) CurrentStage() (Stage, bool) {
	for s := StageManager; s < stageCount; s++ {
		if !r.approved(s) {
			return s, true
		}
	}
	return StageExec, false
}

// FullyApproved reports whether the final stage validated the request.
func (r *LeaveRequest) FullyApproved() bool {
	_, pending := r.CurrentStage()
	return !pending
}

// Editable is true while the requester may still change or withdraw the
// request: the manager has not approved or rejected it and HR has not acted.
func (r *LeaveRequest) Editable() bool {
	m := r.Stages[StageManager].Status
	return (m == StatusPending || m == StatusNeedsMoreInfo) && r.Stages[StageHR].Status == StatusPending
}

// Decide records status on stage s and returns the status it replaces.
// A stage can act only after its predecessor approved, and can only move away
// from approval while its successor is still pending. Final validation is
// terminal: once the executive validated, only a repeated validation is
// accepted.
func (r *LeaveRequest) Decide(s Stage, status Status, comment string, actorID int64, at time.Time) (Status, error) {
	if s < 0 || s >= stageCount {
		return "", internal.ErrInvalidStage
	}
	if s > StageManager && !r.approved(s-1) {
		return "", internal.ErrInvalidTransition.WithMessage(
			"The %s stage cannot act before the %s stage approves", s, s-1)
	}
	if s < StageExec && r.Stages[s+1].Status != StatusPending && status != s.ApprovedStatus() {
		return "", internal.ErrInvalidTransition.WithMessage(
			"The %s stage already acted on this request", s+1)
	}
	if s == StageExec && r.approved(s) && status != s.ApprovedStatus() {
		return "", internal.ErrInvalidTransition.WithMessage("The request is already validated")
	}

	previous := r.Stages[s].Status
	decidedAt := at
	decidedBy := actorID
	r.Stages[s] = Decision{
		Status:    status,
		Comment:   strings.TrimSpace(comment),
		DecidedAt: &decidedAt,
		DecidedBy: &decidedBy,
	}
	return previous, nil
}

// Overlaps reports whether the request shares at least one day with
// [start, end].
func (r *LeaveRequest) Overlaps(start, end time.Time) bool {
	return !r.StartDate.After(internal.DateOf(end)) && !r.EndDate.Before(internal.DateOf(start))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ToDataModel(r *LeaveRequest) *leaveRequestDatamodel.LeaveRequest {
	m, hr, dh, ex := r.Stages[StageManager], r.Stages[StageHR], r.Stages[StageDeptHead], r.Stages[StageExec]
	return &leaveRequestDatamodel.LeaveRequest{
		ID:                 r.ID,
		EmployeeID:         r.EmployeeID,
		LeaveTypeID:        r.LeaveTypeID,
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		Reason:             optional(r.Reason),
		JustificationToken: optional(r.JustificationToken),
		JustificationName:  optional(r.JustificationName),

		ManagerStatus:    string(m.Status),
		ManagerComment:   optional(m.Comment),
		ManagerDecidedAt: m.DecidedAt,
		ManagerDecidedBy: m.DecidedBy,

		HRStatus:    string(hr.Status),
		HRComment:   optional(hr.Comment),
		HRDecidedAt: hr.DecidedAt,
		HRDecidedBy: hr.DecidedBy,

		DeptHeadStatus:    string(dh.Status),
		DeptHeadComment:   optional(dh.Comment),
		DeptHeadDecidedAt: dh.DecidedAt,
		DeptHeadDecidedBy: dh.DecidedBy,

		ExecStatus:    string(ex.Status),
		ExecComment:   optional(ex.Comment),
		ExecDecidedAt: ex.DecidedAt,
		ExecDecidedBy: ex.DecidedBy,

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func FromDataModel(d *leaveRequestDatamodel.LeaveRequest) *LeaveRequest {
	r := &LeaveRequest{
		ID:                 d.ID,
		EmployeeID:         d.EmployeeID,
		LeaveTypeID:        d.LeaveTypeID,
		StartDate:          internal.DateOf(d.StartDate),
		EndDate:            internal.DateOf(d.EndDate),
		Reason:             deref(d.Reason),
		JustificationToken: deref(d.JustificationToken),
		JustificationName:  deref(d.JustificationName),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	r.Stages[StageManager] = Decision{Status(d.ManagerStatus), deref(d.ManagerComment), d.ManagerDecidedAt, d.ManagerDecidedBy}
	r.Stages[StageHR] = Decision{Status(d.HRStatus), deref(d.HRComment), d.HRDecidedAt, d.HRDecidedBy}
	r.Stages[StageDeptHead] = Decision{Status(d.DeptHeadStatus), deref(d.DeptHeadComment), d.DeptHeadDecidedAt, d.DeptHeadDecidedBy}
	r.Stages[StageExec] = Decision{Status(d.ExecStatus), deref(d.ExecComment), d.ExecDecidedAt, d.ExecDecidedBy}
	for i := range r.Stages {
		if r.Stages[i].Status == "" {
			r.Stages[i].Status = StatusPending
		}
	}
	return r
}
