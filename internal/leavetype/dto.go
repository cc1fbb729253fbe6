package leavetype

type CreateLeaveTypeDTO struct {
	Name                  string `json:"name" validate:"required,min=2,max=100"`
	Description           string `json:"description" validate:"max=500"`
	MaxDays               *int   `json:"max_days" validate:"omitempty,min=0,max=366"`
	RequiresJustification bool   `json:"requires_justification"`
}

type UpdateLeaveTypeDTO struct {
	Name                  *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description           *string `json:"description" validate:"omitempty,max=500"`
	MaxDays               *int    `json:"max_days" validate:"omitempty,min=0,max=366"`
	ClearMaxDays          bool    `json:"clear_max_days"`
	RequiresJustification *bool   `json:"requires_justification"`
	Active                *bool   `json:"active"`
}

type LeaveTypesResponse struct {
	LeaveTypes []*LeaveType `json:"leave_types"`
}
