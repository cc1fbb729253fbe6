package leaverequest_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/absence"
	absencePostgres "github.com/frahmantamala/leave-management/internal/absence/postgres"
	"github.com/frahmantamala/leave-management/internal/core/database"
	employeeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/employee"
	leaveTypeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leavetype"
	"github.com/frahmantamala/leave-management/internal/core/events"
	"github.com/frahmantamala/leave-management/internal/employee"
	employeePostgres "github.com/frahmantamala/leave-management/internal/employee/postgres"
	"github.com/frahmantamala/leave-management/internal/leaverequest"
	leaveRequestPostgres "github.com/frahmantamala/leave-management/internal/leaverequest/postgres"
	"github.com/frahmantamala/leave-management/internal/leavetype"
	leaveTypePostgres "github.com/frahmantamala/leave-management/internal/leavetype/postgres"
	"github.com/frahmantamala/leave-management/internal/ledger"
	ledgerPostgres "github.com/frahmantamala/leave-management/internal/ledger/postgres"
	"github.com/frahmantamala/leave-management/internal/storage"
	"github.com/frahmantamala/leave-management/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func ptr[T any](v T) *T { return &v }

// recorder captures published events and can be told to fail delivery.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
	fail   error
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.fail
}

func (r *recorder) ofType(eventType string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// txSpy records whether the overlap check and the insert ran inside a
// transaction.
type txSpy struct {
	leaverequest.RepositoryAPI
	overlapInTx, createInTx bool
}

func (r *txSpy) HasValidatedOverlap(ctx context.Context, employeeID int64, start, end time.Time, excludeID int64) (bool, error) {
	r.overlapInTx = database.InTransaction(ctx)
	return r.RepositoryAPI.HasValidatedOverlap(ctx, employeeID, start, end, excludeID)
}

func (r *txSpy) Create(ctx context.Context, req *leaverequest.LeaveRequest) error {
	r.createInTx = database.InTransaction(ctx)
	return r.RepositoryAPI.Create(ctx, req)
}

// overlapOutage fails the department overlap lookup used to describe requests.
type overlapOutage struct {
	leaverequest.RepositoryAPI
}

func (overlapOutage) HasPendingDepartmentOverlap(context.Context, int64, time.Time, time.Time, int64) (bool, error) {
	return false, errors.New("replica unavailable")
}

const pdfBody = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

var _ = Describe("LeaveRequest Service", func() {
	var (
		db         *gorm.DB
		ctx        context.Context
		now        time.Time
		bus        *events.EventBus
		rec        *recorder
		deps       leaverequest.Dependencies
		service    *leaverequest.Service
		directory  employee.RepositoryAPI
		ledgerRepo ledger.RepositoryAPI
		absences   *absence.Service
		annual     *leaveTypeDatamodel.LeaveType
		sick       *leaveTypeDatamodel.LeaveType

		moussa, awa, kofi, solo  *employee.Employee
		fatou, ibrahima, aminata *employee.Employee
		zoe                      *employee.Employee
	)

	policy := internal.LeaveConfig{AnnualDays: 24, ShortAbsenceMaxDays: 2, PrimaryLeaveType: "Annual", SeniorityMonths: 12}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

		db, err = database.OpenInMemory()
		Expect(err).NotTo(HaveOccurred())

		acme := &employeeDatamodel.Enterprise{Name: "Acme"}
		globex := &employeeDatamodel.Enterprise{Name: "Globex"}
		Expect(db.Create(acme).Error).NotTo(HaveOccurred())
		Expect(db.Create(globex).Error).NotTo(HaveOccurred())
		ops := &employeeDatamodel.Department{Name: "Operations", EnterpriseID: &acme.ID}
		Expect(db.Create(ops).Error).NotTo(HaveOccurred())

		annual = &leaveTypeDatamodel.LeaveType{Name: "Annual", MaxDays: ptr(24), Active: true}
		sick = &leaveTypeDatamodel.LeaveType{Name: "Sick", RequiresJustification: true, Active: true}
		Expect(db.Create(annual).Error).NotTo(HaveOccurred())
		Expect(db.Create(sick).Error).NotTo(HaveOccurred())

		seed := func(first, role string, enterpriseID, departmentID, managerID *int64) *employeeDatamodel.Employee {
			row := &employeeDatamodel.Employee{
				FirstName:    first,
				LastName:     "Test",
				Email:        strings.ToLower(first) + "@acme.test",
				Role:         role,
				EnterpriseID: enterpriseID,
				DepartmentID: departmentID,
				ManagerID:    managerID,
				Active:       true,
				CreatedAt:    now.AddDate(-3, 0, 0),
			}
			Expect(db.Create(row).Error).NotTo(HaveOccurred())
			return row
		}
		moussaRow := seed("Moussa", "MANAGER", &acme.ID, &ops.ID, nil)
		awaRow := seed("Awa", "EMPLOYEE", &acme.ID, &ops.ID, &moussaRow.ID)
		kofiRow := seed("Kofi", "EMPLOYEE", &acme.ID, &ops.ID, &moussaRow.ID)
		soloRow := seed("Solo", "EMPLOYEE", &acme.ID, nil, nil)
		fatouRow := seed("Fatou", "HR", &acme.ID, nil, nil)
		ibrahimaRow := seed("Ibrahima", "DEPT_HEAD", &acme.ID, nil, nil)
		aminataRow := seed("Aminata", "EXEC", &acme.ID, nil, nil)
		zoeRow := seed("Zoe", "HR", &globex.ID, nil, nil)

		sqlDB, err := database.SQLX(db)
		Expect(err).NotTo(HaveOccurred())
		directory = employeePostgres.NewEmployeeRepository(db, sqlDB)

		load := func(row *employeeDatamodel.Employee) *employee.Employee {
			e, err := directory.FindByID(ctx, row.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(e).NotTo(BeNil())
			return e
		}
		moussa, awa, kofi, solo = load(moussaRow), load(awaRow), load(kofiRow), load(soloRow)
		fatou, ibrahima, aminata, zoe = load(fatouRow), load(ibrahimaRow), load(aminataRow), load(zoeRow)

		files, err := storage.NewLocalStorage(internal.StorageConfig{
			UploadDir:         GinkgoT().TempDir(),
			MaxSizeBytes:      1 << 20,
			AllowedExtensions: []string{"pdf"},
		}, logger.Discard())
		Expect(err).NotTo(HaveOccurred())

		tx := database.NewTransactor(db)
		types := leavetype.NewService(leaveTypePostgres.NewLeaveTypeRepository(db), logger.Discard())
		ledgerRepo = ledgerPostgres.NewLedgerRepository(db)
		ledgerService := ledger.NewService(ledgerRepo, types, directory, tx, policy, logger.Discard()).
			WithClock(func() time.Time { return now })
		absences = absence.NewService(absencePostgres.NewAbsenceRepository(db), logger.Discard())

		rec = &recorder{}
		bus = events.NewEventBus(logger.Discard())
		bus.Subscribe(events.EventTypeLeaveSubmitted, rec.handle)
		bus.Subscribe(events.EventTypeLeaveStageDecided, rec.handle)
		bus.Subscribe(events.EventTypeLeaveManagerApproved, rec.handle)

		deps = leaverequest.Dependencies{
			Repo:       leaveRequestPostgres.NewLeaveRequestRepository(db),
			Types:      types,
			Directory:  directory,
			Activation: directory,
			Ledger:     ledgerService,
			Absences:   absences,
			Files:      files,
			Events:     bus,
			Tx:         tx,
		}
		service = leaverequest.NewService(deps, policy, logger.Discard()).
			WithClock(func() time.Time { return now })
	})

	AfterEach(func() {
		bus.Wait()
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	submit := func(actor *employee.Employee, typeID int64, start, end string) *leaverequest.Result {
		result, err := service.Submit(ctx, actor, leaverequest.SubmitDTO{
			LeaveTypeID: typeID, StartDate: start, EndDate: end, Reason: "family",
		}, nil)
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	decide := func(actor *employee.Employee, id int64, stage leaverequest.Stage, decision string) (*leaverequest.Result, error) {
		return service.Decide(ctx, actor, id, stage, leaverequest.DecideDTO{Decision: decision})
	}

	// advance approves every stage up to and including through.
	advance := func(id int64, through leaverequest.Stage) {
		actors := map[leaverequest.Stage]*employee.Employee{
			leaverequest.StageManager:  moussa,
			leaverequest.StageHR:       fatou,
			leaverequest.StageDeptHead: ibrahima,
			leaverequest.StageExec:     aminata,
		}
		for s := leaverequest.StageManager; s <= through; s++ {
			_, err := decide(actors[s], id, s, "APPROVED")
			Expect(err).NotTo(HaveOccurred())
		}
	}

	annualBalance := func(employeeID int64) (used, remaining decimal.Decimal) {
		rows, err := ledgerRepo.ListYear(ctx, employeeID, 2025)
		Expect(err).NotTo(HaveOccurred())
		for _, row := range rows {
			if row.LeaveTypeID == annual.ID {
				return row.Used, row.Remaining
			}
		}
		Fail("no annual row")
		return
	}

	Describe("Submit", func() {
		It("creates a pending request and tells the manager", func() {
			result := submit(awa, annual.ID, "2025-03-03", "2025-03-12")

			Expect(result.EmailStatus).To(Equal(leaverequest.EmailSent))
			Expect(result.Request.ManagerStatus).To(Equal(leaverequest.StatusPending))
			Expect(result.Request.ExecStatus).To(Equal(leaverequest.StatusPending))
			Expect(result.Request.CurrentStage).To(Equal("manager"))
			Expect(result.Request.DurationDays).To(Equal(10))
			Expect(result.Request.LeaveTypeName).To(Equal("Annual"))
			Expect(result.Request.EmployeeName).To(Equal("Awa Test"))

			sent := rec.ofType(events.EventTypeLeaveSubmitted)
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].(*events.LeaveSubmittedEvent).Manager.Email).To(Equal("moussa@acme.test"))
		})

		It("reports NO_MANAGER when the employee has nobody to notify", func() {
			result := submit(solo, annual.ID, "2025-03-03", "2025-03-04")
			Expect(result.EmailStatus).To(Equal(leaverequest.EmailNoManager))
			Expect(rec.ofType(events.EventTypeLeaveSubmitted)).To(BeEmpty())
		})

		It("reports SKIPPED when nothing listens for notifications", func() {
			quiet := deps
			quiet.Events = events.NewEventBus(logger.Discard())
			svc := leaverequest.NewService(quiet, policy, logger.Discard())

			result, err := svc.Submit(ctx, awa, leaverequest.SubmitDTO{LeaveTypeID: annual.ID, StartDate: "2025-03-03", EndDate: "2025-03-04"}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.EmailStatus).To(Equal(leaverequest.EmailSkipped))
		})

		It("keeps the request when the manager email fails", func() {
			rec.fail = errors.New("smtp unavailable")
			result := submit(awa, annual.ID, "2025-03-03", "2025-03-04")

			Expect(result.EmailStatus).To(Equal(leaverequest.EmailFailed))
			Expect(result.EmailError).To(Equal("smtp unavailable"))
			_, err := service.Get(ctx, awa, result.Request.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a start after the end", func() {
			_, err := service.Submit(ctx, awa, leaverequest.SubmitDTO{LeaveTypeID: annual.ID, StartDate: "2025-03-05", EndDate: "2025-03-04"}, nil)
			Expect(errors.Is(err, internal.ErrInvalidDateRange)).To(BeTrue())
		})

		It("rejects malformed payloads", func() {
			_, err := service.Submit(ctx, awa, leaverequest.SubmitDTO{StartDate: "03/03/2025", EndDate: "2025-03-04"}, nil)
			Expect(err).To(HaveOccurred())
			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("requires a justification when the type asks for one", func() {
			_, err := service.Submit(ctx, awa, leaverequest.SubmitDTO{LeaveTypeID: sick.ID, StartDate: "2025-03-03", EndDate: "2025-03-04"}, nil)
			Expect(errors.Is(err, internal.ErrJustificationNeeded)).To(BeTrue())

			result, err := service.Submit(ctx, awa, leaverequest.SubmitDTO{LeaveTypeID: sick.ID, StartDate: "2025-03-03", EndDate: "2025-03-04"},
				&leaverequest.Upload{Name: "note.pdf", Reader: strings.NewReader(pdfBody)})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Request.HasJustification).To(BeTrue())
			Expect(result.Request.JustificationName).To(Equal("note.pdf"))

			rc, info, err := service.Justification(ctx, moussa, result.Request.ID)
			Expect(err).NotTo(HaveOccurred())
			defer rc.Close()
			body, err := io.ReadAll(rc)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(pdfBody))
			Expect(info.OriginalName).To(Equal("note.pdf"))
			Expect(info.ContentType).To(HavePrefix("application/pdf"))
		})

		It("checks overlaps and inserts within one transaction", func() {
			spy := &txSpy{RepositoryAPI: deps.Repo}
			spied := deps
			spied.Repo = spy
			svc := leaverequest.NewService(spied, policy, logger.Discard()).
				WithClock(func() time.Time { return now })

			_, err := svc.Submit(ctx, awa, leaverequest.SubmitDTO{LeaveTypeID: annual.ID, StartDate: "2025-03-03", EndDate: "2025-03-04"}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(spy.overlapInTx).To(BeTrue())
			Expect(spy.createInTx).To(BeTrue())
		})

		It("refuses periods overlapping an HR-validated request", func() {
			first := submit(awa, annual.ID, "2025-03-03", "2025-03-12")
			advance(first.Request.ID, leaverequest.StageManager)

			// still only manager-approved: overlap allowed
			submit(awa, annual.ID, "2025-03-10", "2025-03-11")

			_, err := decide(fatou, first.Request.ID, leaverequest.StageHR, "VALIDATED")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Submit(ctx, awa, leaverequest.SubmitDTO{LeaveTypeID: annual.ID, StartDate: "2025-03-12", EndDate: "2025-03-14"}, nil)
			Expect(errors.Is(err, internal.ErrLeaveOverlap)).To(BeTrue())

			submit(awa, annual.ID, "2025-03-13", "2025-03-14")
			submit(kofi, annual.ID, "2025-03-03", "2025-03-12")
		})
	})

	Describe("Decide", func() {
		var id int64

		BeforeEach(func() {
			id = submit(awa, annual.ID, "2025-03-03", "2025-03-12").Request.ID
		})

		It("refuses a stage whose predecessor has not approved", func() {
			_, err := decide(fatou, id, leaverequest.StageHR, "VALIDATED")
			Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())

			view, err := service.Get(ctx, fatou, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.HRStatus).To(Equal(leaverequest.StatusPending))
		})

		It("refuses actors without the stage's authority", func() {
			_, err := decide(kofi, id, leaverequest.StageManager, "APPROVED")
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

			advance(id, leaverequest.StageManager)
			_, err = decide(zoe, id, leaverequest.StageHR, "VALIDATED")
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
			_, err = decide(ibrahima, id, leaverequest.StageHR, "VALIDATED")
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
		})

		It("rejects unknown decisions", func() {
			_, err := decide(moussa, id, leaverequest.StageManager, "PENDING")
			Expect(errors.Is(err, internal.ErrInvalidDecision)).To(BeTrue())
		})

		It("notifies the employee and fans out to HR on manager approval", func() {
			result, err := service.Decide(ctx, moussa, id, leaverequest.StageManager, leaverequest.DecideDTO{Decision: "APPROVED", Comment: "enjoy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.EmailStatus).To(Equal(leaverequest.EmailSent))
			Expect(result.Request.CurrentStage).To(Equal("hr"))

			decided := rec.ofType(events.EventTypeLeaveStageDecided)
			Expect(decided).To(HaveLen(1))
			event := decided[0].(*events.LeaveStageDecidedEvent)
			Expect(event.Employee.Email).To(Equal("awa@acme.test"))
			Expect(event.Stage).To(Equal("manager"))
			Expect(event.Comment).To(Equal("enjoy"))
			Expect(event.DecidedBy).To(Equal("Moussa Test"))

			bus.Wait()
			fanout := rec.ofType(events.EventTypeLeaveManagerApproved)
			Expect(fanout).To(HaveLen(1))
			officers := fanout[0].(*events.LeaveManagerApprovedEvent).HROfficers
			Expect(officers).To(HaveLen(1))
			Expect(officers[0].Email).To(Equal("fatou@acme.test"))
		})

		It("does not fan out again when the manager re-approves", func() {
			advance(id, leaverequest.StageManager)
			_, err := decide(moussa, id, leaverequest.StageManager, "APPROVED")
			Expect(err).NotTo(HaveOccurred())
			bus.Wait()
			Expect(rec.ofType(events.EventTypeLeaveManagerApproved)).To(HaveLen(1))
		})

		It("keeps the decision when the employee email fails", func() {
			rec.fail = errors.New("mailbox full")
			result, err := decide(moussa, id, leaverequest.StageManager, "REJECTED")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.EmailStatus).To(Equal(leaverequest.EmailFailed))
			Expect(result.EmailError).To(Equal("mailbox full"))
			Expect(result.Request.ManagerStatus).To(Equal(leaverequest.StatusRejected))
		})

		It("locks a stage once the next one has decided", func() {
			advance(id, leaverequest.StageHR)
			_, err := decide(moussa, id, leaverequest.StageManager, "REJECTED")
			Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())
		})

		It("deducts working days from the ledger on final approval", func() {
			advance(id, leaverequest.StageExec)

			used, remaining := annualBalance(awa.ID)
			Expect(used.Equal(decimal.NewFromInt(8))).To(BeTrue())
			Expect(remaining.Equal(decimal.NewFromInt(16))).To(BeTrue())

			view, err := service.Get(ctx, awa, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.CurrentStage).To(Equal("completed"))

			still, err := directory.FindByID(ctx, awa.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(still.Active).To(BeTrue())
		})

		It("deducts only once when the executive validates twice", func() {
			advance(id, leaverequest.StageExec)
			_, err := decide(aminata, id, leaverequest.StageExec, "VALIDATED")
			Expect(err).NotTo(HaveOccurred())

			used, _ := annualBalance(awa.ID)
			Expect(used.Equal(decimal.NewFromInt(8))).To(BeTrue())
		})

		It("refuses to reject after the final validation and charges once", func() {
			advance(id, leaverequest.StageExec)

			_, err := decide(aminata, id, leaverequest.StageExec, "REJECTED")
			Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())
			_, err = decide(aminata, id, leaverequest.StageExec, "VALIDATED")
			Expect(err).NotTo(HaveOccurred())

			used, remaining := annualBalance(awa.ID)
			Expect(used.Equal(decimal.NewFromInt(8))).To(BeTrue())
			Expect(remaining.Equal(decimal.NewFromInt(16))).To(BeTrue())

			view, err := service.Get(ctx, awa, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.ExecStatus).To(Equal(leaverequest.StatusValidated))
		})

		It("charges once when the executive validates after rejecting", func() {
			advance(id, leaverequest.StageDeptHead)
			_, err := decide(aminata, id, leaverequest.StageExec, "REJECTED")
			Expect(err).NotTo(HaveOccurred())
			_, err = decide(aminata, id, leaverequest.StageExec, "VALIDATED")
			Expect(err).NotTo(HaveOccurred())

			used, _ := annualBalance(awa.ID)
			Expect(used.Equal(decimal.NewFromInt(8))).To(BeTrue())
		})

		It("deactivates the employee when the leave has already started", func() {
			now = time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC)
			advance(id, leaverequest.StageExec)

			e, err := directory.FindByID(ctx, awa.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Active).To(BeFalse())
		})

		It("records short leaves as absences instead of charging the ledger", func() {
			short := submit(kofi, annual.ID, "2025-03-04", "2025-03-05").Request.ID
			advance(short, leaverequest.StageExec)

			recorded, err := absences.ListMine(ctx, kofi.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(recorded).To(HaveLen(1))

			rows, err := ledgerRepo.ListYear(ctx, kofi.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})

		It("leaves the exec stage pending when the balance is short", func() {
			long := submit(kofi, annual.ID, "2025-03-03", "2025-04-11").Request.ID
			advance(long, leaverequest.StageDeptHead)

			_, err := decide(aminata, long, leaverequest.StageExec, "VALIDATED")
			Expect(errors.Is(err, internal.ErrInsufficientBalance)).To(BeTrue())

			view, err := service.Get(ctx, kofi, long)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.ExecStatus).To(Equal(leaverequest.StatusPending))
			Expect(view.DeptHeadStatus).To(Equal(leaverequest.StatusValidated))

			rows, err := ledgerRepo.ListYear(ctx, kofi.ID, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})

		It("returns the stored decision when describing it fails afterwards", func() {
			broken := deps
			broken.Repo = overlapOutage{RepositoryAPI: deps.Repo}
			svc := leaverequest.NewService(broken, policy, logger.Discard()).
				WithClock(func() time.Time { return now })

			result, err := svc.Decide(ctx, moussa, id, leaverequest.StageManager, leaverequest.DecideDTO{Decision: "APPROVED"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Request.ID).To(Equal(id))
			Expect(result.Request.ManagerStatus).To(Equal(leaverequest.StatusApproved))
			Expect(result.Request.LeaveTypeName).To(Equal("Annual"))
			Expect(result.EmailStatus).To(Equal(leaverequest.EmailSent))

			view, err := service.Get(ctx, moussa, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.ManagerStatus).To(Equal(leaverequest.StatusApproved))
		})

		It("fails on unknown requests", func() {
			_, err := decide(moussa, 9999, leaverequest.StageManager, "APPROVED")
			Expect(errors.Is(err, internal.ErrLeaveRequestNotFound)).To(BeTrue())
		})
	})

	Describe("Cancel", func() {
		It("deletes a request still waiting for the manager", func() {
			id := submit(awa, annual.ID, "2025-03-03", "2025-03-04").Request.ID

			_, err := service.Cancel(ctx, kofi, id)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

			result, err := service.Cancel(ctx, awa, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.EmailStatus).To(Equal(leaverequest.EmailSkipped))

			_, err = service.Get(ctx, awa, id)
			Expect(errors.Is(err, internal.ErrLeaveRequestNotFound)).To(BeTrue())
		})

		It("refuses once the manager has approved", func() {
			id := submit(awa, annual.ID, "2025-03-03", "2025-03-04").Request.ID
			advance(id, leaverequest.StageManager)

			_, err := service.Cancel(ctx, awa, id)
			Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())
		})
	})

	Describe("Modify", func() {
		It("sends a request back to the manager after more information", func() {
			id := submit(awa, annual.ID, "2025-03-03", "2025-03-04").Request.ID
			_, err := service.Decide(ctx, moussa, id, leaverequest.StageManager,
				leaverequest.DecideDTO{Decision: "NEEDS_MORE_INFO", Comment: "which project?"})
			Expect(err).NotTo(HaveOccurred())

			result, err := service.Modify(ctx, awa, id, leaverequest.ModifyDTO{
				EndDate: ptr("2025-03-06"),
				Reason:  ptr("project handed over"),
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Request.ManagerStatus).To(Equal(leaverequest.StatusPending))
			Expect(result.Request.Stages[0].Comment).To(Equal("which project?"))
			Expect(result.Request.EndDate).To(Equal("2025-03-06"))
			Expect(result.Request.StartDate).To(Equal("2025-03-03"))
			Expect(result.Request.Reason).To(Equal("project handed over"))
			Expect(rec.ofType(events.EventTypeLeaveSubmitted)).To(HaveLen(2))
		})

		It("refuses requests of other employees and approved ones", func() {
			id := submit(awa, annual.ID, "2025-03-03", "2025-03-04").Request.ID

			_, err := service.Modify(ctx, kofi, id, leaverequest.ModifyDTO{Reason: ptr("mine now")}, nil)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

			advance(id, leaverequest.StageManager)
			_, err = service.Modify(ctx, awa, id, leaverequest.ModifyDTO{Reason: ptr("too late")}, nil)
			Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())
		})

		It("rejects an inverted period", func() {
			id := submit(awa, annual.ID, "2025-03-03", "2025-03-04").Request.ID
			_, err := service.Modify(ctx, awa, id, leaverequest.ModifyDTO{StartDate: ptr("2025-03-10")}, nil)
			Expect(errors.Is(err, internal.ErrInvalidDateRange)).To(BeTrue())
		})

		It("asks for a justification when switching to a type that needs one", func() {
			id := submit(awa, annual.ID, "2025-03-03", "2025-03-04").Request.ID
			_, err := service.Modify(ctx, awa, id, leaverequest.ModifyDTO{LeaveTypeID: &sick.ID}, nil)
			Expect(errors.Is(err, internal.ErrJustificationNeeded)).To(BeTrue())

			result, err := service.Modify(ctx, awa, id, leaverequest.ModifyDTO{LeaveTypeID: &sick.ID},
				&leaverequest.Upload{Name: "certificate.pdf", Reader: strings.NewReader(pdfBody)})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Request.LeaveTypeName).To(Equal("Sick"))
			Expect(result.Request.JustificationName).To(Equal("certificate.pdf"))
		})
	})

	Describe("Queries", func() {
		It("scopes stage queues to the viewer's role and enterprise", func() {
			id := submit(awa, annual.ID, "2025-03-03", "2025-03-12").Request.ID
			advance(id, leaverequest.StageManager)

			queue, err := service.Queue(ctx, fatou, leaverequest.StageHR)
			Expect(err).NotTo(HaveOccurred())
			Expect(queue).To(HaveLen(1))
			Expect(queue[0].ID).To(Equal(id))

			queue, err = service.Queue(ctx, zoe, leaverequest.StageHR)
			Expect(err).NotTo(HaveOccurred())
			Expect(queue).To(BeEmpty())

			_, err = service.Queue(ctx, kofi, leaverequest.StageHR)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

			queue, err = service.Queue(ctx, ibrahima, leaverequest.StageDeptHead)
			Expect(err).NotTo(HaveOccurred())
			Expect(queue).To(BeEmpty())

			advance(id, leaverequest.StageHR)
			queue, err = service.Queue(ctx, ibrahima, leaverequest.StageDeptHead)
			Expect(err).NotTo(HaveOccurred())
			Expect(queue).To(HaveLen(1))

			advance(id, leaverequest.StageDeptHead)
			queue, err = service.Queue(ctx, aminata, leaverequest.StageExec)
			Expect(err).NotTo(HaveOccurred())
			Expect(queue).To(HaveLen(1))
		})

		It("lists own, modifiable and team requests", func() {
			first := submit(awa, annual.ID, "2025-03-03", "2025-03-04").Request.ID
			second := submit(awa, annual.ID, "2025-04-01", "2025-04-02").Request.ID
			submit(kofi, annual.ID, "2025-05-05", "2025-05-06")
			advance(first, leaverequest.StageManager)

			mine, err := service.Mine(ctx, awa)
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(HaveLen(2))

			modifiable, err := service.Modifiable(ctx, awa)
			Expect(err).NotTo(HaveOccurred())
			Expect(modifiable).To(HaveLen(1))
			Expect(modifiable[0].ID).To(Equal(second))

			team, err := service.Team(ctx, moussa)
			Expect(err).NotTo(HaveOccurred())
			Expect(team).To(HaveLen(3))

			managerQueue, err := service.Queue(ctx, moussa, leaverequest.StageManager)
			Expect(err).NotTo(HaveOccurred())
			Expect(managerQueue).To(HaveLen(3))
		})

		It("hides requests from colleagues and flags department overlaps", func() {
			id := submit(awa, annual.ID, "2025-03-03", "2025-03-12").Request.ID

			_, err := service.Get(ctx, kofi, id)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

			view, err := service.Get(ctx, moussa, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.HasOverlap).To(BeFalse())

			submit(kofi, annual.ID, "2025-03-10", "2025-03-14")
			view, err = service.Get(ctx, fatou, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.HasOverlap).To(BeTrue())
		})

		It("reports a missing justification", func() {
			id := submit(awa, annual.ID, "2025-03-03", "2025-03-04").Request.ID
			_, _, err := service.Justification(ctx, awa, id)
			Expect(errors.Is(err, internal.ErrFileNotFound)).To(BeTrue())
		})
	})
})
