package absence

import "time"

type Absence struct {
	ID             int64     `gorm:"primaryKey"`
	EmployeeID     int64     `gorm:"column:employee_id;not null;index"`
	LeaveRequestID *int64    `gorm:"column:leave_request_id;uniqueIndex"`
	StartDate      time.Time `gorm:"column:start_date;type:date;not null"`
	EndDate        time.Time `gorm:"column:end_date;type:date;not null"`
	Days           int       `gorm:"column:days;not null"`
	Reason         string    `gorm:"column:reason"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Absence) TableName() string {
	return "absences"
}
