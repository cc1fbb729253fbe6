package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerEntry struct {
	ID          int64           `gorm:"primaryKey"`
	EmployeeID  int64           `gorm:"column:employee_id;not null;uniqueIndex:idx_balance_owner"`
	LeaveTypeID int64           `gorm:"column:leave_type_id;not null;uniqueIndex:idx_balance_owner"`
	Year        int             `gorm:"column:year;not null;uniqueIndex:idx_balance_owner"`
	Acquired    decimal.Decimal `gorm:"column:acquired;type:numeric(7,2);not null"`
	Used        decimal.Decimal `gorm:"column:used;type:numeric(7,2);not null"`
	Remaining   decimal.Decimal `gorm:"column:remaining;type:numeric(7,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (LedgerEntry) TableName() string {
	return "leave_balances"
}
