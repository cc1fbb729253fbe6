package notification

import "time"

type Notification struct {
	ID             int64     `gorm:"primaryKey"`
	EmployeeID     int64     `gorm:"column:employee_id;not null;index"`
	Title          string    `gorm:"column:title;not null"`
	Message        string    `gorm:"column:message;not null"`
	Read           bool      `gorm:"column:read;not null;default:false"`
	LeaveRequestID *int64    `gorm:"column:leave_request_id"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}
