package employee

import "time"

type Employee struct {
	ID           int64     `gorm:"primaryKey"`
	FirstName    string    `gorm:"column:first_name;not null"`
	LastName     string    `gorm:"column:last_name;not null"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash"`
	Role         string    `gorm:"column:role;not null;default:EMPLOYEE"`
	Position     string    `gorm:"column:position"`
	Matricule    string    `gorm:"column:matricule"`
	DepartmentID *int64    `gorm:"column:department_id;index"`
	ManagerID    *int64    `gorm:"column:manager_id;index"`
	EnterpriseID *int64    `gorm:"column:enterprise_id;index"`
	Active       bool      `gorm:"column:active;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Employee) TableName() string {
	return "employees"
}

type Department struct {
	ID           int64  `gorm:"primaryKey"`
	Name         string `gorm:"column:name;not null"`
	EnterpriseID *int64 `gorm:"column:enterprise_id"`
}

func (Department) TableName() string {
	return "departments"
}

type Enterprise struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"column:name;not null"`
}

func (Enterprise) TableName() string {
	return "enterprises"
}
