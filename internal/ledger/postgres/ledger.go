package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/leave-management/internal/core/database"
	ledgerDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/ledger"
	"github.com/frahmantamala/leave-management/internal/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) ledger.RepositoryAPI {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) ListYear(ctx context.Context, employeeID int64, year int) ([]*ledgerDatamodel.LedgerEntry, error) {
	var rows []*ledgerDatamodel.LedgerEntry
	err := database.Conn(ctx, r.db).
		Where("employee_id = ? AND year = ?", employeeID, year).
		Order("leave_type_id ASC").
		Find(&rows).Error
	return rows, err
}

// LockYear reads the rows of one employee/year with FOR UPDATE so that two
// deductions for the same employee are serialised. It must run inside a
// transaction.
func (r *LedgerRepository) LockYear(ctx context.Context, employeeID int64, year int) ([]*ledgerDatamodel.LedgerEntry, error) {
	var rows []*ledgerDatamodel.LedgerEntry
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("employee_id = ? AND year = ?", employeeID, year).
		Order("leave_type_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *LedgerRepository) Get(ctx context.Context, employeeID, leaveTypeID int64, year int) (*ledgerDatamodel.LedgerEntry, error) {
	var row ledgerDatamodel.LedgerEntry
	err := database.Conn(ctx, r.db).
		Where("employee_id = ? AND leave_type_id = ? AND year = ?", employeeID, leaveTypeID, year).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// CreateIfAbsent inserts row unless the (employee, type, year) key exists.
// It reports whether this call created it.
func (r *LedgerRepository) CreateIfAbsent(ctx context.Context, row *ledgerDatamodel.LedgerEntry) (bool, error) {
	res := database.Conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}, {Name: "leave_type_id"}, {Name: "year"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *LedgerRepository) SaveAll(ctx context.Context, rows []*ledgerDatamodel.LedgerEntry) error {
	conn := database.Conn(ctx, r.db)
	for _, row := range rows {
		err := conn.Model(row).Updates(map[string]interface{}{
			"acquired":  row.Acquired,
			"used":      row.Used,
			"remaining": row.Remaining,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
