package ledger

import (
	"time"

	"github.com/frahmantamala/leave-management/internal"
	ledgerDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/ledger"
	"github.com/shopspring/decimal"
)

var ErrLedgerNotFound = internal.NewNotFoundError("No shared pool balance for this year", internal.ErrCodeLedgerNotFound)

// Balance is one (employee, leave type, year) row as reported to callers.
type Balance struct {
	ID            int64           `json:"id"`
	EmployeeID    int64           `json:"employee_id"`
	LeaveTypeID   int64           `json:"leave_type_id"`
	LeaveTypeName string          `json:"leave_type_name,omitempty"`
	Year          int             `json:"year"`
	Acquired      decimal.Decimal `json:"acquired"`
	Used          decimal.Decimal `json:"used"`
	Remaining     decimal.Decimal `json:"remaining"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func FromDataModel(row *ledgerDatamodel.LedgerEntry) *Balance {
	return &Balance{
		ID:          row.ID,
		EmployeeID:  row.EmployeeID,
		LeaveTypeID: row.LeaveTypeID,
		Year:        row.Year,
		Acquired:    row.Acquired,
		Used:        row.Used,
		Remaining:   row.Remaining,
		UpdatedAt:   row.UpdatedAt,
	}
}

// Pool is the ledger of one employee for one year. The primary type's
// acquired days cap the usage of every type; per-type rows only keep their
// own usage counter and all report the same remaining.
type Pool struct {
	EmployeeID    int64
	Year          int
	PrimaryTypeID int64
	rows          map[int64]*ledgerDatamodel.LedgerEntry
}

// NewPool groups the rows of one employee/year. It fails when the primary
// row is missing.
func NewPool(primaryTypeID int64, rows []*ledgerDatamodel.LedgerEntry) (*Pool, error) {
	p := &Pool{PrimaryTypeID: primaryTypeID, rows: make(map[int64]*ledgerDatamodel.LedgerEntry, len(rows))}
	for _, row := range rows {
		p.EmployeeID = row.EmployeeID
		p.Year = row.Year
		p.rows[row.LeaveTypeID] = row
	}
	if _, ok := p.rows[primaryTypeID]; !ok {
		return nil, ErrLedgerNotFound
	}
	return p, nil
}

func (p *Pool) Acquired() decimal.Decimal {
	return p.rows[p.PrimaryTypeID].Acquired
}

func (p *Pool) TotalUsed() decimal.Decimal {
	total := decimal.Zero
	for _, row := range p.rows {
		total = total.Add(row.Used)
	}
	return total
}

func (p *Pool) Remaining() decimal.Decimal {
	return p.Acquired().Sub(p.TotalUsed())
}

func (p *Pool) Has(typeID int64) bool {
	_, ok := p.rows[typeID]
	return ok
}

// Charge books days against typeID. Nothing changes when the pool cannot
// cover them.
func (p *Pool) Charge(typeID int64, days decimal.Decimal) error {
	row, ok := p.rows[typeID]
	if !ok {
		return ErrLedgerNotFound.WithMessage("No balance row for leave type %d in %d", typeID, p.Year)
	}
	after := p.TotalUsed().Add(days)
	if after.GreaterThan(p.Acquired()) {
		return internal.ErrInsufficientBalance.WithMessage(
			"Insufficient leave balance: %s days requested, %s remaining", days.String(), p.Remaining().String())
	}
	row.Used = row.Used.Add(days)
	p.Rebalance()
	return nil
}

// Rebalance derives every row's remaining from the pool.
func (p *Pool) Rebalance() {
	remaining := p.Remaining()
	for _, row := range p.rows {
		row.Remaining = remaining
	}
}

func (p *Pool) Rows() []*ledgerDatamodel.LedgerEntry {
	out := make([]*ledgerDatamodel.LedgerEntry, 0, len(p.rows))
	for _, row := range p.rows {
		out = append(out, row)
	}
	return out
}
