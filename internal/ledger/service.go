package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/core/database"
	ledgerDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/ledger"
	"github.com/frahmantamala/leave-management/internal/core/metrics"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/frahmantamala/leave-management/internal/leavetype"
	"github.com/shopspring/decimal"
)

type RepositoryAPI interface {
	ListYear(ctx context.Context, employeeID int64, year int) ([]*ledgerDatamodel.LedgerEntry, error)
	LockYear(ctx context.Context, employeeID int64, year int) ([]*ledgerDatamodel.LedgerEntry, error)
	Get(ctx context.Context, employeeID, leaveTypeID int64, year int) (*ledgerDatamodel.LedgerEntry, error)
	CreateIfAbsent(ctx context.Context, row *ledgerDatamodel.LedgerEntry) (bool, error)
	SaveAll(ctx context.Context, rows []*ledgerDatamodel.LedgerEntry) error
}

// TypeCatalog is the part of the leave type service the ledger reads.
type TypeCatalog interface {
	ListActive(ctx context.Context) ([]*leavetype.LeaveType, error)
	GetByID(ctx context.Context, id int64) (*leavetype.LeaveType, error)
	GetByName(ctx context.Context, name string) (*leavetype.LeaveType, error)
}

type Service struct {
	repo      RepositoryAPI
	types     TypeCatalog
	directory employee.Directory
	tx        database.TxManager
	policy    internal.LeaveConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, types TypeCatalog, directory employee.Directory, tx database.TxManager, policy internal.LeaveConfig, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		types:     types,
		directory: directory,
		tx:        tx,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) primaryType(ctx context.Context) (*leavetype.LeaveType, error) {
	return s.types.GetByName(ctx, s.policy.PrimaryLeaveType)
}

// InitializeYear makes sure the employee has one row per active leave type
// for year. New rows are seeded with the type's grant plus the carryover
// from the previous year; existing rows are left untouched so the call is
// idempotent. Every row's remaining is then derived from the shared pool.
func (s *Service) InitializeYear(ctx context.Context, employeeID int64, year int) ([]*Balance, error) {
	var out []*Balance
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rows, err := s.initialize(ctx, employeeID, year)
		if err != nil {
			return err
		}
		out, err = s.describe(ctx, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) initialize(ctx context.Context, employeeID int64, year int, extra ...int64) ([]*ledgerDatamodel.LedgerEntry, error) {
	types, err := s.types.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(types))
	for _, t := range types {
		seen[t.ID] = true
	}
	for _, id := range extra {
		if seen[id] {
			continue
		}
		t, err := s.types.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
		seen[id] = true
	}

	for _, t := range types {
		grant := decimal.NewFromInt(int64(t.Grant()))
		carry, err := s.carryover(ctx, employeeID, t, year)
		if err != nil {
			return nil, err
		}
		acquired := grant.Add(carry)
		created, err := s.repo.CreateIfAbsent(ctx, &ledgerDatamodel.LedgerEntry{
			EmployeeID:  employeeID,
			LeaveTypeID: t.ID,
			Year:        year,
			Acquired:    acquired,
			Used:        decimal.Zero,
			Remaining:   acquired,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create balance row for type %d: %w", t.ID, err)
		}
		if created {
			s.logger.Info("balance row initialized",
				"employee_id", employeeID,
				"leave_type", t.Name,
				"year", year,
				"acquired", acquired.String(),
				"carryover", carry.String())
		}
	}

	rows, err := s.repo.LockYear(ctx, employeeID, year)
	if err != nil {
		return nil, err
	}

	primary, err := s.primaryType(ctx)
	if errors.Is(err, internal.ErrLeaveTypeNotFound) {
		s.logger.Warn("primary leave type missing, balances not pooled", "name", s.policy.PrimaryLeaveType)
		return rows, nil
	}
	if err != nil {
		return nil, err
	}
	pool, err := NewPool(primary.ID, rows)
	if err != nil {
		// primary type inactive: rows keep their own figures
		return rows, nil
	}
	pool.Rebalance()
	if err := s.repo.SaveAll(ctx, pool.Rows()); err != nil {
		return nil, err
	}
	return rows, nil
}

// carryover is min(type max days, previous year remaining), further capped
// by the configured ceiling when one is set. Unbounded types carry nothing.
func (s *Service) carryover(ctx context.Context, employeeID int64, t *leavetype.LeaveType, year int) (decimal.Decimal, error) {
	prev, err := s.repo.Get(ctx, employeeID, t.ID, year-1)
	if err != nil {
		return decimal.Zero, err
	}
	if prev == nil || !prev.Remaining.IsPositive() {
		return decimal.Zero, nil
	}
	carry := decimal.Min(decimal.NewFromInt(int64(t.Grant())), prev.Remaining)
	if s.policy.MaxCarryover > 0 {
		carry = decimal.Min(carry, decimal.NewFromInt(int64(s.policy.MaxCarryover)))
	}
	return carry, nil
}

// Deduct charges the working days of [start, end] to the leave type row of
// the start year, checking the shared pool. The rows of that employee/year
// stay locked until the surrounding transaction ends; callers that need the
// deduction to commit with other writes pass a context carrying their
// transaction.
func (s *Service) Deduct(ctx context.Context, employeeID, leaveTypeID int64, start, end time.Time) (decimal.Decimal, error) {
	start, end = internal.DateOf(start), internal.DateOf(end)
	if end.Before(start) {
		return decimal.Zero, internal.ErrInvalidDateRange
	}

	workdays := WorkingDays(start, end)
	if workdays == 0 {
		metrics.ObserveDeduction("no_working_days", 0)
		return decimal.Zero, internal.ErrNoWorkingDays.WithMessage(
			"No working days between %s and %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	days := decimal.NewFromInt(int64(workdays))
	year := start.Year()

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		primary, err := s.primaryType(ctx)
		if err != nil {
			return err
		}

		rows, err := s.repo.LockYear(ctx, employeeID, year)
		if err != nil {
			return err
		}
		pool, err := NewPool(primary.ID, rows)
		if err != nil || !pool.Has(leaveTypeID) {
			rows, err = s.initialize(ctx, employeeID, year, leaveTypeID, primary.ID)
			if err != nil {
				return err
			}
			if pool, err = NewPool(primary.ID, rows); err != nil {
				return err
			}
		}

		before := pool.TotalUsed()
		if err := pool.Charge(leaveTypeID, days); err != nil {
			return err
		}
		if err := s.repo.SaveAll(ctx, pool.Rows()); err != nil {
			return err
		}

		s.logger.Info("leave balance deducted",
			"employee_id", employeeID,
			"leave_type_id", leaveTypeID,
			"year", year,
			"working_days", workdays,
			"pool", pool.Acquired().String(),
			"used_before", before.String(),
			"remaining", pool.Remaining().String())
		return nil
	})
	if err != nil {
		metrics.ObserveDeduction("rejected", 0)
		return decimal.Zero, err
	}

	metrics.ObserveDeduction("ok", days.InexactFloat64())
	return days, nil
}

// TotalDisposable is what the employee can still take this year: nothing
// before the seniority threshold, otherwise the shared pool remaining, or
// the default annual grant when no row exists yet.
func (s *Service) TotalDisposable(ctx context.Context, employeeID int64) (decimal.Decimal, error) {
	e, err := s.directory.FindByID(ctx, employeeID)
	if err != nil {
		return decimal.Zero, err
	}
	if e == nil {
		return decimal.Zero, internal.ErrEmployeeNotFound
	}

	today := s.now()
	if e.CreatedAt.IsZero() || !e.HasTenure(s.policy.SeniorityMonths, today) {
		return decimal.Zero, nil
	}

	primary, err := s.primaryType(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	row, err := s.repo.Get(ctx, employeeID, primary.ID, today.Year())
	if err != nil {
		return decimal.Zero, err
	}
	if row == nil {
		return decimal.NewFromInt(int64(s.policy.AnnualDays)), nil
	}
	return row.Remaining, nil
}

// MyBalances initialises the current year if needed and returns its rows.
func (s *Service) MyBalances(ctx context.Context, employeeID int64) ([]*Balance, error) {
	return s.InitializeYear(ctx, employeeID, s.now().Year())
}

func (s *Service) describe(ctx context.Context, rows []*ledgerDatamodel.LedgerEntry) ([]*Balance, error) {
	types, err := s.types.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(types))
	for _, t := range types {
		names[t.ID] = t.Name
	}

	out := make([]*Balance, 0, len(rows))
	for _, row := range rows {
		b := FromDataModel(row)
		b.LeaveTypeName = names[row.LeaveTypeID]
		out = append(out, b)
	}
	return out, nil
}
