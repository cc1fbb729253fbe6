package leavetype

import "time"

type LeaveType struct {
	ID                    int64     `gorm:"primaryKey"`
	Name                  string    `gorm:"column:name;uniqueIndex;not null"`
	Description           string    `gorm:"column:description"`
	MaxDays               *int      `gorm:"column:max_days"`
	RequiresJustification bool      `gorm:"column:requires_justification;not null;default:false"`
	Active                bool      `gorm:"column:active;not null"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (LeaveType) TableName() string {
	return "leave_types"
}
