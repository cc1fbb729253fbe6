package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeLeaveSubmitted       = "leave.submitted"
	EventTypeLeaveStageDecided    = "leave.stage_decided"
	EventTypeLeaveManagerApproved = "leave.manager_approved"
)

// Recipient is a resolved notification target.
type Recipient struct {
	EmployeeID int64  `json:"employee_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

// LeaveSummary is the part of a request every leave notification renders.
type LeaveSummary struct {
	RequestID    int64     `json:"request_id"`
	EmployeeID   int64     `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	LeaveType    string    `json:"leave_type"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Days         int       `json:"days"`
	Reason       string    `json:"reason,omitempty"`
}

func newBase(eventType string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// LeaveSubmittedEvent goes to the requester's manager.
type LeaveSubmittedEvent struct {
	BaseEvent
	Leave   LeaveSummary `json:"leave"`
	Manager Recipient    `json:"manager"`
}

func NewLeaveSubmittedEvent(leave LeaveSummary, manager Recipient) *LeaveSubmittedEvent {
	return &LeaveSubmittedEvent{
		BaseEvent: newBase(EventTypeLeaveSubmitted),
		Leave:     leave,
		Manager:   manager,
	}
}

// LeaveStageDecidedEvent tells the requester about a decision on one stage.
type LeaveStageDecidedEvent struct {
	BaseEvent
	Leave     LeaveSummary `json:"leave"`
	Employee  Recipient    `json:"employee"`
	Stage     string       `json:"stage"`
	Decision  string       `json:"decision"`
	Comment   string       `json:"comment,omitempty"`
	DecidedBy string       `json:"decided_by"`
}

func NewLeaveStageDecidedEvent(leave LeaveSummary, employee Recipient, stage, decision, comment, decidedBy string) *LeaveStageDecidedEvent {
	return &LeaveStageDecidedEvent{
		BaseEvent: newBase(EventTypeLeaveStageDecided),
		Leave:     leave,
		Employee:  employee,
		Stage:     stage,
		Decision:  decision,
		Comment:   comment,
		DecidedBy: decidedBy,
	}
}

// LeaveManagerApprovedEvent fans out to every HR officer of the enterprise.
type LeaveManagerApprovedEvent struct {
	BaseEvent
	Leave      LeaveSummary `json:"leave"`
	HROfficers []Recipient  `json:"hr_officers"`
}

func NewLeaveManagerApprovedEvent(leave LeaveSummary, hr []Recipient) *LeaveManagerApprovedEvent {
	return &LeaveManagerApprovedEvent{
		BaseEvent:  newBase(EventTypeLeaveManagerApproved),
		Leave:      leave,
		HROfficers: hr,
	}
}
