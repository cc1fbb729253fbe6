package ledger_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/core/database"
	employeeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/employee"
	ledgerDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/ledger"
	leaveTypeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leavetype"
	employeePostgres "github.com/frahmantamala/leave-management/internal/employee/postgres"
	"github.com/frahmantamala/leave-management/internal/ledger"
	ledgerPostgres "github.com/frahmantamala/leave-management/internal/ledger/postgres"
	"github.com/frahmantamala/leave-management/internal/leavetype"
	leaveTypePostgres "github.com/frahmantamala/leave-management/internal/leavetype/postgres"
	"github.com/frahmantamala/leave-management/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func intPtr(v int) *int { return &v }

var _ = Describe("Ledger Service", func() {
	var (
		db       *gorm.DB
		service  *ledger.Service
		repo     ledger.RepositoryAPI
		ctx      context.Context
		now      time.Time
		annual   *leaveTypeDatamodel.LeaveType
		sick     *leaveTypeDatamodel.LeaveType
		veteran  *employeeDatamodel.Employee
		newcomer *employeeDatamodel.Employee
	)

	policy := internal.LeaveConfig{AnnualDays: 24, ShortAbsenceMaxDays: 2, PrimaryLeaveType: "Annual", SeniorityMonths: 12}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

		db, err = database.OpenInMemory()
		Expect(err).NotTo(HaveOccurred())

		annual = &leaveTypeDatamodel.LeaveType{Name: "Annual", MaxDays: intPtr(24), Active: true}
		sick = &leaveTypeDatamodel.LeaveType{Name: "Sick", Active: true}
		Expect(db.Create(annual).Error).NotTo(HaveOccurred())
		Expect(db.Create(sick).Error).NotTo(HaveOccurred())

		veteran = &employeeDatamodel.Employee{FirstName: "Vera", LastName: "Long", Email: "vera@acme.test", Role: "EMPLOYEE", Active: true, CreatedAt: now.AddDate(-3, 0, 0)}
		newcomer = &employeeDatamodel.Employee{FirstName: "Nico", LastName: "New", Email: "nico@acme.test", Role: "EMPLOYEE", Active: true, CreatedAt: now.AddDate(0, -6, 0)}
		Expect(db.Create(veteran).Error).NotTo(HaveOccurred())
		Expect(db.Create(newcomer).Error).NotTo(HaveOccurred())

		sqlDB, err := database.SQLX(db)
		Expect(err).NotTo(HaveOccurred())

		types := leavetype.NewService(leaveTypePostgres.NewLeaveTypeRepository(db), logger.Discard())
		repo = ledgerPostgres.NewLedgerRepository(db)
		service = ledger.NewService(
			repo,
			types,
			employeePostgres.NewEmployeeRepository(db, sqlDB),
			database.NewTransactor(db),
			policy,
			logger.Discard(),
		).WithClock(func() time.Time { return now })
	})

	AfterEach(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	expectPoolConsistent := func(employeeID int64, year int) {
		rows, err := repo.ListYear(ctx, employeeID, year)
		Expect(err).NotTo(HaveOccurred())
		var pool decimal.Decimal
		total := decimal.Zero
		for _, row := range rows {
			total = total.Add(row.Used)
			if row.LeaveTypeID == annual.ID {
				pool = row.Acquired
			}
		}
		Expect(total.LessThanOrEqual(pool)).To(BeTrue())
		for _, row := range rows {
			Expect(row.Remaining.Equal(pool.Sub(total))).To(BeTrue(), "row %d remaining %s", row.LeaveTypeID, row.Remaining)
		}
	}

	Describe("InitializeYear", func() {
		It("creates one row per active type seeded from max days", func() {
			balances, err := service.InitializeYear(ctx, veteran.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(balances).To(HaveLen(2))

			for _, b := range balances {
				switch b.LeaveTypeID {
				case annual.ID:
					Expect(b.Acquired.Equal(decimal.NewFromInt(24))).To(BeTrue())
					Expect(b.LeaveTypeName).To(Equal("Annual"))
				case sick.ID:
					Expect(b.Acquired.IsZero()).To(BeTrue())
				}
				Expect(b.Remaining.Equal(decimal.NewFromInt(24))).To(BeTrue())
			}
			expectPoolConsistent(veteran.ID, 2025)
		})

		It("carries over min(max days, previous remaining) only once", func() {
			prev := &ledgerDatamodel.LedgerEntry{
				EmployeeID: veteran.ID, LeaveTypeID: annual.ID, Year: 2024,
				Acquired: decimal.NewFromInt(24), Used: decimal.NewFromInt(19), Remaining: decimal.NewFromInt(5),
			}
			Expect(db.Create(prev).Error).NotTo(HaveOccurred())

			_, err := service.InitializeYear(ctx, veteran.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.InitializeYear(ctx, veteran.ID, 2025)
			Expect(err).NotTo(HaveOccurred())

			row, err := repo.Get(ctx, veteran.ID, annual.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Acquired.Equal(decimal.NewFromInt(29))).To(BeTrue())
			Expect(row.Remaining.Equal(decimal.NewFromInt(29))).To(BeTrue())
		})

		It("applies the configured carryover ceiling", func() {
			capped := policy
			capped.MaxCarryover = 3
			sqlDB, err := database.SQLX(db)
			Expect(err).NotTo(HaveOccurred())
			svc := ledger.NewService(repo, leavetype.NewService(leaveTypePostgres.NewLeaveTypeRepository(db), logger.Discard()),
				employeePostgres.NewEmployeeRepository(db, sqlDB), database.NewTransactor(db), capped, logger.Discard())

			Expect(db.Create(&ledgerDatamodel.LedgerEntry{
				EmployeeID: veteran.ID, LeaveTypeID: annual.ID, Year: 2024,
				Acquired: decimal.NewFromInt(24), Used: decimal.NewFromInt(4), Remaining: decimal.NewFromInt(20),
			}).Error).NotTo(HaveOccurred())

			_, err = svc.InitializeYear(ctx, veteran.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			row, err := repo.Get(ctx, veteran.ID, annual.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Acquired.Equal(decimal.NewFromInt(27))).To(BeTrue())
		})
	})

	Describe("Deduct", func() {
		It("deducts 8 working days for a 10 day period spanning a weekend", func() {
			days, err := service.Deduct(ctx, veteran.ID, annual.ID, day("2025-03-03"), day("2025-03-12"))
			Expect(err).NotTo(HaveOccurred())
			Expect(days.Equal(decimal.NewFromInt(8))).To(BeTrue())

			row, err := repo.Get(ctx, veteran.ID, annual.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Used.Equal(decimal.NewFromInt(8))).To(BeTrue())
			Expect(row.Remaining.Equal(decimal.NewFromInt(16))).To(BeTrue())
			expectPoolConsistent(veteran.ID, 2025)
		})

		It("charges other types against the shared pool", func() {
			_, err := service.Deduct(ctx, veteran.ID, annual.ID, day("2025-03-03"), day("2025-03-12"))
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Deduct(ctx, veteran.ID, sick.ID, day("2025-04-01"), day("2025-04-03"))
			Expect(err).NotTo(HaveOccurred())

			sickRow, err := repo.Get(ctx, veteran.ID, sick.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(sickRow.Used.Equal(decimal.NewFromInt(3))).To(BeTrue())
			Expect(sickRow.Remaining.Equal(decimal.NewFromInt(13))).To(BeTrue())
			expectPoolConsistent(veteran.ID, 2025)
		})

		It("fails with NoWorkingDays on a weekend-only range", func() {
			_, err := service.Deduct(ctx, veteran.ID, annual.ID, day("2025-03-08"), day("2025-03-09"))
			Expect(errors.Is(err, internal.ErrNoWorkingDays)).To(BeTrue())
		})

		It("fails with InsufficientBalance and leaves the rows untouched", func() {
			_, err := service.Deduct(ctx, veteran.ID, annual.ID, day("2025-03-03"), day("2025-03-28"))
			Expect(err).NotTo(HaveOccurred()) // 20 days

			_, err = service.Deduct(ctx, veteran.ID, sick.ID, day("2025-05-05"), day("2025-05-09"))
			Expect(errors.Is(err, internal.ErrInsufficientBalance)).To(BeTrue())

			row, err := repo.Get(ctx, veteran.ID, annual.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Used.Equal(decimal.NewFromInt(20))).To(BeTrue())
			Expect(row.Remaining.Equal(decimal.NewFromInt(4))).To(BeTrue())
			expectPoolConsistent(veteran.ID, 2025)
		})

		It("lets only one of two concurrent deductions through when together they exceed the pool", func() {
			_, err := service.InitializeYear(ctx, veteran.ID, 2025)
			Expect(err).NotTo(HaveOccurred())

			// 15 working days each against a pool of 24
			type charge struct {
				typeID     int64
				start, end time.Time
			}
			charges := []charge{
				{annual.ID, day("2025-03-03"), day("2025-03-21")},
				{sick.ID, day("2025-04-07"), day("2025-04-25")},
			}

			errs := make([]error, len(charges))
			ready := make(chan struct{})
			var wg sync.WaitGroup
			for i, c := range charges {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					<-ready
					_, errs[i] = service.Deduct(ctx, veteran.ID, c.typeID, c.start, c.end)
				}()
			}
			close(ready)
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				if err == nil {
					succeeded++
					continue
				}
				Expect(errors.Is(err, internal.ErrInsufficientBalance)).To(BeTrue(), "unexpected error %v", err)
			}
			Expect(succeeded).To(Equal(1))

			rows, err := repo.ListYear(ctx, veteran.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			total := decimal.Zero
			for _, row := range rows {
				total = total.Add(row.Used)
			}
			Expect(total.Equal(decimal.NewFromInt(15))).To(BeTrue())
			expectPoolConsistent(veteran.ID, 2025)
		})

		It("rolls back with the surrounding transaction", func() {
			tx := database.NewTransactor(db)
			boom := errors.New("later step failed")
			err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
				if _, err := service.Deduct(ctx, veteran.ID, annual.ID, day("2025-03-03"), day("2025-03-07")); err != nil {
					return err
				}
				return boom
			})
			Expect(err).To(MatchError(boom))

			rows, err := repo.ListYear(ctx, veteran.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})
	})

	Describe("TotalDisposable", func() {
		It("returns 0 below the seniority threshold regardless of ledger rows", func() {
			_, err := service.InitializeYear(ctx, newcomer.ID, 2025)
			Expect(err).NotTo(HaveOccurred())

			total, err := service.TotalDisposable(ctx, newcomer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(total.IsZero()).To(BeTrue())
		})

		It("returns the annual default when no row exists", func() {
			total, err := service.TotalDisposable(ctx, veteran.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(total.Equal(decimal.NewFromInt(24))).To(BeTrue())
		})

		It("returns the shared pool remaining", func() {
			_, err := service.Deduct(ctx, veteran.ID, sick.ID, day("2025-03-03"), day("2025-03-05"))
			Expect(err).NotTo(HaveOccurred())

			total, err := service.TotalDisposable(ctx, veteran.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(total.Equal(decimal.NewFromInt(21))).To(BeTrue())
		})

		It("fails for unknown employees", func() {
			_, err := service.TotalDisposable(ctx, 4242)
			Expect(errors.Is(err, internal.ErrEmployeeNotFound)).To(BeTrue())
		})
	})
})
