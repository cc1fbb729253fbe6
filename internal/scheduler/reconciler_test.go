package scheduler_test

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/leave-management/internal/core/database"
	employeeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/employee"
	leaveRequestDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leaverequest"
	"github.com/frahmantamala/leave-management/internal/employee"
	employeePostgres "github.com/frahmantamala/leave-management/internal/employee/postgres"
	"github.com/frahmantamala/leave-management/internal/scheduler"
	schedulerPostgres "github.com/frahmantamala/leave-management/internal/scheduler/postgres"
	"github.com/frahmantamala/leave-management/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	Expect(err).NotTo(HaveOccurred())
	return t
}

// flakyActivation fails for one employee and delegates the rest.
type flakyActivation struct {
	employee.ActivationStore
	failFor int64
}

func (f *flakyActivation) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	if id == f.failFor {
		return false, errors.New("row locked")
	}
	return f.ActivationStore.SetActive(ctx, id, active)
}

var _ = Describe("Reconciler", func() {
	var (
		db         *gorm.DB
		ctx        context.Context
		directory  employee.RepositoryAPI
		store      scheduler.Store
		reconciler *scheduler.Reconciler
		today      time.Time
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		today = day("2025-03-10")

		db, err = database.OpenInMemory()
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := database.SQLX(db)
		Expect(err).NotTo(HaveOccurred())

		directory = employeePostgres.NewEmployeeRepository(db, sqlDB)
		store = schedulerPostgres.NewReconciliationStore(sqlDB)
		reconciler = scheduler.NewReconciler(store, directory, logger.Discard())
	})

	AfterEach(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	seedEmployee := func(name string, active bool) int64 {
		row := &employeeDatamodel.Employee{FirstName: name, LastName: "Test", Email: name + "@acme.test", Role: "EMPLOYEE", Active: active}
		Expect(db.Create(row).Error).NotTo(HaveOccurred())
		return row.ID
	}

	seedLeave := func(employeeID int64, start, end, execStatus string) {
		row := &leaveRequestDatamodel.LeaveRequest{
			EmployeeID:     employeeID,
			LeaveTypeID:    1,
			StartDate:      day(start),
			EndDate:        day(end),
			ManagerStatus:  "APPROVED",
			HRStatus:       "VALIDATED",
			DeptHeadStatus: "VALIDATED",
			ExecStatus:     execStatus,
		}
		Expect(db.Create(row).Error).NotTo(HaveOccurred())
	}

	isActive := func(id int64) bool {
		e, err := directory.FindByID(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		return e.Active
	}

	Describe("DeactivateStarting", func() {
		It("deactivates employees whose validated leave starts today", func() {
			starting := seedEmployee("awa", true)
			pending := seedEmployee("kofi", true)
			later := seedEmployee("solo", true)
			seedLeave(starting, "2025-03-10", "2025-03-14", "VALIDATED")
			seedLeave(pending, "2025-03-10", "2025-03-14", "PENDING")
			seedLeave(later, "2025-03-11", "2025-03-14", "VALIDATED")

			report, err := reconciler.DeactivateStarting(ctx, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Candidates).To(Equal(1))
			Expect(report.Changed).To(Equal(1))

			Expect(isActive(starting)).To(BeFalse())
			Expect(isActive(pending)).To(BeTrue())
			Expect(isActive(later)).To(BeTrue())
		})

		It("changes nothing when run twice on the same day", func() {
			id := seedEmployee("awa", true)
			seedLeave(id, "2025-03-10", "2025-03-12", "VALIDATED")

			_, err := reconciler.DeactivateStarting(ctx, today)
			Expect(err).NotTo(HaveOccurred())
			report, err := reconciler.DeactivateStarting(ctx, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Candidates).To(BeZero())
			Expect(report.Changed).To(BeZero())
			Expect(isActive(id)).To(BeFalse())
		})

		It("keeps going when one employee fails", func() {
			first := seedEmployee("awa", true)
			second := seedEmployee("kofi", true)
			seedLeave(first, "2025-03-10", "2025-03-12", "VALIDATED")
			seedLeave(second, "2025-03-10", "2025-03-12", "VALIDATED")

			r := scheduler.NewReconciler(store, &flakyActivation{ActivationStore: directory, failFor: first}, logger.Discard())
			report, err := r.DeactivateStarting(ctx, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Failed).To(Equal(1))
			Expect(report.Changed).To(Equal(1))
			Expect(isActive(first)).To(BeTrue())
			Expect(isActive(second)).To(BeFalse())
		})
	})

	Describe("ReactivateEnded", func() {
		It("reactivates employees whose leave is over", func() {
			back := seedEmployee("awa", false)
			seedLeave(back, "2025-03-03", "2025-03-07", "VALIDATED")

			report, err := reconciler.ReactivateEnded(ctx, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Changed).To(Equal(1))
			Expect(isActive(back)).To(BeTrue())
		})

		It("does not reactivate before the last day has passed", func() {
			id := seedEmployee("awa", false)
			seedLeave(id, "2025-03-03", "2025-03-10", "VALIDATED")

			report, err := reconciler.ReactivateEnded(ctx, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Candidates).To(BeZero())
			Expect(isActive(id)).To(BeFalse())
		})

		It("keeps back-to-back leaves inactive until the last one ends", func() {
			id := seedEmployee("kofi", false)
			seedLeave(id, "2025-03-03", "2025-03-07", "VALIDATED")
			seedLeave(id, "2025-03-10", "2025-03-14", "VALIDATED")

			report, err := reconciler.ReactivateEnded(ctx, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Candidates).To(Equal(1))
			Expect(report.Kept).To(Equal(1))
			Expect(isActive(id)).To(BeFalse())

			report, err = reconciler.ReactivateEnded(ctx, day("2025-03-15"))
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Changed).To(Equal(1))
			Expect(isActive(id)).To(BeTrue())
		})

		It("ignores leaves the executive has not validated", func() {
			id := seedEmployee("solo", false)
			seedLeave(id, "2025-03-03", "2025-03-07", "REJECTED")

			report, err := reconciler.ReactivateEnded(ctx, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Candidates).To(BeZero())
			Expect(isActive(id)).To(BeFalse())
		})
	})

	It("rejects unknown jobs", func() {
		_, err := reconciler.Run(ctx, "purge", today)
		Expect(errors.Is(err, scheduler.ErrUnknownJob)).To(BeTrue())
	})
})
