package leaverequest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/core/common/validation"
	"github.com/frahmantamala/leave-management/internal/core/database"
	"github.com/frahmantamala/leave-management/internal/core/events"
	"github.com/frahmantamala/leave-management/internal/core/metrics"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/frahmantamala/leave-management/internal/leavetype"
	"github.com/frahmantamala/leave-management/internal/storage"
	"github.com/shopspring/decimal"
)

type RepositoryAPI interface {
	Create(ctx context.Context, req *LeaveRequest) error
	GetByID(ctx context.Context, id int64) (*LeaveRequest, error)
	GetForUpdate(ctx context.Context, id int64) (*LeaveRequest, error)
	Update(ctx context.Context, req *LeaveRequest) error
	Delete(ctx context.Context, id int64) error
	ListByEmployee(ctx context.Context, employeeID int64) ([]*LeaveRequest, error)
	ListByManager(ctx context.Context, managerID int64) ([]*LeaveRequest, error)
	ListQueue(ctx context.Context, stage Stage, enterpriseID *int64) ([]*LeaveRequest, error)
	HasValidatedOverlap(ctx context.Context, employeeID int64, start, end time.Time, excludeID int64) (bool, error)
	HasPendingDepartmentOverlap(ctx context.Context, departmentID int64, start, end time.Time, excludeID int64) (bool, error)
}

type TypeCatalog interface {
	GetByID(ctx context.Context, id int64) (*leavetype.LeaveType, error)
	GetActive(ctx context.Context, id int64) (*leavetype.LeaveType, error)
}

// Deductor charges an approved period to the balance ledger.
type Deductor interface {
	Deduct(ctx context.Context, employeeID, leaveTypeID int64, start, end time.Time) (decimal.Decimal, error)
}

// AbsenceRecorder keeps short approved leaves outside the ledger.
type AbsenceRecorder interface {
	Record(ctx context.Context, employeeID, requestID int64, start, end time.Time, reason string) error
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
	PublishSync(ctx context.Context, event events.Event) error
	HasHandlers(eventType string) bool
}

type Dependencies struct {
	Repo       RepositoryAPI
	Types      TypeCatalog
	Directory  employee.Directory
	Activation employee.ActivationStore
	Ledger     Deductor
	Absences   AbsenceRecorder
	Files      storage.FileStorage
	Events     Publisher
	Tx         database.TxManager
}

type Service struct {
	repo       RepositoryAPI
	types      TypeCatalog
	directory  employee.Directory
	activation employee.ActivationStore
	ledger     Deductor
	absences   AbsenceRecorder
	files      storage.FileStorage
	events     Publisher
	tx         database.TxManager
	policy     internal.LeaveConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(deps Dependencies, policy internal.LeaveConfig, logger *slog.Logger) *Service {
	return &Service{
		repo:       deps.Repo,
		types:      deps.Types,
		directory:  deps.Directory,
		activation: deps.Activation,
		ledger:     deps.Ledger,
		absences:   deps.Absences,
		files:      deps.Files,
		events:     deps.Events,
		tx:         deps.Tx,
		policy:     policy,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) today() time.Time {
	return internal.DateOf(s.now())
}

// Submit creates a request for actor with every stage pending and tells the
// actor's manager about it.
func (s *Service) Submit(ctx context.Context, actor *employee.Employee, dto SubmitDTO, upload *Upload) (*Result, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}
	start, err := parseDate(dto.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(dto.EndDate)
	if err != nil {
		return nil, err
	}

	req, err := New(actor.ID, dto.LeaveTypeID, start, end, dto.Reason)
	if err != nil {
		return nil, err
	}

	leaveType, err := s.types.GetActive(ctx, dto.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	if leaveType.RequiresJustification && upload == nil {
		return nil, internal.ErrJustificationNeeded
	}

	if upload != nil {
		stored, err := s.store(ctx, upload)
		if err != nil {
			return nil, err
		}
		req.JustificationToken = stored.Token
		req.JustificationName = stored.OriginalName
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkOverlap(ctx, req, 0); err != nil {
			return err
		}
		return s.repo.Create(ctx, req)
	})
	if err != nil {
		if !errors.Is(err, internal.ErrLeaveOverlap) {
			s.logger.Error("failed to create leave request", "error", err, "employee_id", actor.ID)
		}
		s.discard(ctx, req.JustificationToken)
		return nil, err
	}

	s.logger.Info("leave request submitted",
		"leave_request_id", req.ID,
		"employee_id", actor.ID,
		"leave_type", leaveType.Name,
		"start_date", req.StartDate.Format(time.DateOnly),
		"end_date", req.EndDate.Format(time.DateOnly))

	status, emailErr := s.notifyManager(ctx, actor, req, leaveType.Name)
	return s.result(ctx, req, status, emailErr), nil
}

func (s *Service) checkOverlap(ctx context.Context, req *LeaveRequest, excludeID int64) error {
	overlap, err := s.repo.HasValidatedOverlap(ctx, req.EmployeeID, req.StartDate, req.EndDate, excludeID)
	if err != nil {
		return err
	}
	if overlap {
		return internal.ErrLeaveOverlap
	}
	return nil
}

func (s *Service) store(ctx context.Context, upload *Upload) (*storage.StoredFile, error) {
	if s.files == nil {
		return nil, internal.ErrFileRejected.WithMessage("File uploads are not enabled")
	}
	return s.files.Store(ctx, upload.Name, upload.Reader)
}

// discard removes a stored file that no request references any more.
func (s *Service) discard(ctx context.Context, token string) {
	if token == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, token); err != nil {
		s.logger.Warn("failed to delete justification file", "error", err, "token", token)
	}
}

// Decide records actor's decision on one stage. Final validation by the
// executive charges the ledger (or records a short absence) and may
// deactivate the employee in the same transaction; if any of that fails the
// decision is not stored.
func (s *Service) Decide(ctx context.Context, actor *employee.Employee, requestID int64, stage Stage, dto DecideDTO) (*Result, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}
	status, err := stage.ParseDecision(dto.Decision)
	if err != nil {
		return nil, err
	}

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	owner, err := s.employee(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !canDecide(actor, owner, stage) {
		s.logger.Warn("decision refused",
			"leave_request_id", requestID,
			"stage", stage.String(),
			"actor_id", actor.ID,
			"actor_role", actor.Role)
		return nil, internal.ErrNotAuthorized
	}

	var previous Status
	now := s.now()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		previous, err = locked.Decide(stage, status, dto.Comment, actor.ID, now)
		if err != nil {
			return err
		}
		if err := s.repo.Update(ctx, locked); err != nil {
			return err
		}
		req = locked

		if stage == StageExec && status == StatusValidated && previous != StatusValidated {
			return s.applyFinalApproval(ctx, locked)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("decision not recorded",
			"error", err,
			"leave_request_id", requestID,
			"stage", stage.String(),
			"decision", string(status))
		return nil, err
	}

	metrics.ObserveDecision(stage.String(), string(status))
	s.logger.Info("leave request decided",
		"leave_request_id", requestID,
		"stage", stage.String(),
		"decision", string(status),
		"previous", string(previous),
		"actor_id", actor.ID)

	typeName := s.typeName(ctx, req.LeaveTypeID)
	summary := summarize(req, owner, typeName)
	emailStatus, emailErr := s.publishSync(ctx, events.NewLeaveStageDecidedEvent(
		summary, recipientOf(owner), stage.String(), string(status), req.Stage(stage).Comment, actor.FullName()))

	if stage == StageManager && status == StatusApproved && previous != StatusApproved {
		s.notifyHR(ctx, owner, summary)
	}

	return s.result(ctx, req, emailStatus, emailErr), nil
}

func canDecide(actor, owner *employee.Employee, stage Stage) bool {
	if stage == StageManager {
		return actor.IsManagerOf(owner)
	}
	return actor.HasRole(stage.Role()) && actor.SameEnterprise(owner)
}

// applyFinalApproval runs inside the decision transaction.
func (s *Service) applyFinalApproval(ctx context.Context, req *LeaveRequest) error {
	days := req.DurationDays()
	if days <= s.policy.ShortAbsenceMaxDays {
		if err := s.absences.Record(ctx, req.EmployeeID, req.ID, req.StartDate, req.EndDate, req.Reason); err != nil {
			return err
		}
	} else {
		if _, err := s.ledger.Deduct(ctx, req.EmployeeID, req.LeaveTypeID, req.StartDate, req.EndDate); err != nil {
			return err
		}
	}

	if req.StartDate.After(s.today()) {
		return nil
	}
	changed, err := s.activation.SetActive(ctx, req.EmployeeID, false)
	if err != nil {
		return err
	}
	if changed {
		s.logger.Info("employee deactivated on final approval",
			"employee_id", req.EmployeeID,
			"leave_request_id", req.ID)
	}
	return nil
}

// Cancel withdraws a request the manager has not approved yet.
func (s *Service) Cancel(ctx context.Context, actor *employee.Employee, requestID int64) (*Result, error) {
	var token string
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		req, err := s.repo.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.EmployeeID != actor.ID {
			return internal.ErrNotAuthorized
		}
		if !req.Editable() {
			return internal.ErrInvalidTransition.WithMessage("Only requests still waiting for the manager can be cancelled")
		}
		token = req.JustificationToken
		return s.repo.Delete(ctx, requestID)
	})
	if err != nil {
		return nil, err
	}

	s.discard(ctx, token)
	s.logger.Info("leave request cancelled", "leave_request_id", requestID, "employee_id", actor.ID)
	return &Result{Message: "Leave request cancelled", EmailStatus: EmailSkipped}, nil
}

// Modify changes an editable request. A request sent back for more
// information returns to the manager's queue.
func (s *Service) Modify(ctx context.Context, actor *employee.Employee, requestID int64, dto ModifyDTO, upload *Upload) (*Result, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.EmployeeID != actor.ID {
		return nil, internal.ErrNotAuthorized
	}
	if !current.Editable() {
		return nil, internal.ErrInvalidTransition.WithMessage("Only requests still waiting for the manager can be modified")
	}

	typeID, start, end, reason := current.LeaveTypeID, current.StartDate, current.EndDate, current.Reason
	if dto.LeaveTypeID != nil {
		typeID = *dto.LeaveTypeID
	}
	if dto.StartDate != nil {
		if start, err = parseDate(*dto.StartDate); err != nil {
			return nil, err
		}
	}
	if dto.EndDate != nil {
		if end, err = parseDate(*dto.EndDate); err != nil {
			return nil, err
		}
	}
	if dto.Reason != nil {
		reason = *dto.Reason
	}
	draft, err := New(actor.ID, typeID, start, end, reason)
	if err != nil {
		return nil, err
	}

	leaveType, err := s.types.GetActive(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if leaveType.RequiresJustification && upload == nil && current.JustificationToken == "" {
		return nil, internal.ErrJustificationNeeded
	}

	var stored *storage.StoredFile
	if upload != nil {
		if stored, err = s.store(ctx, upload); err != nil {
			return nil, err
		}
	}

	var replaced string
	var req *LeaveRequest
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if !locked.Editable() {
			return internal.ErrInvalidTransition.WithMessage("Only requests still waiting for the manager can be modified")
		}
		if err := s.checkOverlap(ctx, draft, requestID); err != nil {
			return err
		}

		locked.LeaveTypeID = draft.LeaveTypeID
		locked.StartDate = draft.StartDate
		locked.EndDate = draft.EndDate
		locked.Reason = draft.Reason
		if stored != nil {
			replaced = locked.JustificationToken
			locked.JustificationToken = stored.Token
			locked.JustificationName = stored.OriginalName
		}
		if locked.Stages[StageManager].Status == StatusNeedsMoreInfo {
			locked.Stages[StageManager].Status = StatusPending
		}
		req = locked
		return s.repo.Update(ctx, locked)
	})
	if err != nil {
		if stored != nil {
			s.discard(ctx, stored.Token)
		}
		return nil, err
	}
	s.discard(ctx, replaced)

	s.logger.Info("leave request modified", "leave_request_id", requestID, "employee_id", actor.ID)
	status, emailErr := s.notifyManager(ctx, actor, req, leaveType.Name)
	return s.result(ctx, req, status, emailErr), nil
}

// Get returns one request to a viewer allowed to see it.
func (s *Service) Get(ctx context.Context, viewer *employee.Employee, requestID int64) (*View, error) {
	req, _, err := s.authorizedRequest(ctx, viewer, requestID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, req, newLookup())
}

func (s *Service) authorizedRequest(ctx context.Context, viewer *employee.Employee, requestID int64) (*LeaveRequest, *employee.Employee, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	owner, err := s.employee(ctx, req.EmployeeID)
	if err != nil {
		return nil, nil, err
	}
	if !canView(viewer, owner) {
		return nil, nil, internal.ErrNotAuthorized
	}
	return req, owner, nil
}

func canView(viewer, owner *employee.Employee) bool {
	return viewer.ID == owner.ID ||
		viewer.IsManagerOf(owner) ||
		viewer.HasRole(employee.RoleHR, employee.RoleAdmin, employee.RoleDeptHead, employee.RoleExec)
}

// Justification opens the file attached to a request.
func (s *Service) Justification(ctx context.Context, viewer *employee.Employee, requestID int64) (io.ReadCloser, *storage.StoredFile, error) {
	req, _, err := s.authorizedRequest(ctx, viewer, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.JustificationToken == "" || s.files == nil {
		return nil, nil, internal.ErrFileNotFound
	}
	rc, info, err := s.files.Open(ctx, req.JustificationToken)
	if err != nil {
		return nil, nil, err
	}
	info.OriginalName = req.JustificationName
	return rc, info, nil
}

// Mine lists the viewer's own requests, newest first.
func (s *Service) Mine(ctx context.Context, viewer *employee.Employee) ([]*View, error) {
	reqs, err := s.repo.ListByEmployee(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, reqs)
}

// Modifiable lists the viewer's requests that can still be changed.
func (s *Service) Modifiable(ctx context.Context, viewer *employee.Employee) ([]*View, error) {
	reqs, err := s.repo.ListByEmployee(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	editable := reqs[:0]
	for _, r := range reqs {
		if r.Editable() {
			editable = append(editable, r)
		}
	}
	return s.views(ctx, editable)
}

// Team lists the requests of the viewer's direct reports, newest first.
func (s *Service) Team(ctx context.Context, viewer *employee.Employee) ([]*View, error) {
	reqs, err := s.repo.ListByManager(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, reqs)
}

// Queue lists what waits for stage in the viewer's enterprise.
func (s *Service) Queue(ctx context.Context, viewer *employee.Employee, stage Stage) ([]*View, error) {
	if stage == StageManager {
		return s.Team(ctx, viewer)
	}
	if !viewer.HasRole(stage.Role()) {
		return nil, internal.ErrNotAuthorized
	}
	reqs, err := s.repo.ListQueue(ctx, stage, viewer.EnterpriseID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, reqs)
}

func (s *Service) employee(ctx context.Context, id int64) (*employee.Employee, error) {
	e, err := s.directory.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, internal.ErrEmployeeNotFound
	}
	return e, nil
}

func (s *Service) typeName(ctx context.Context, id int64) string {
	t, err := s.types.GetByID(ctx, id)
	if err != nil {
		return ""
	}
	return t.Name
}

func recipientOf(e *employee.Employee) events.Recipient {
	return events.Recipient{EmployeeID: e.ID, Email: e.Email, Name: e.FullName()}
}

func summarize(req *LeaveRequest, owner *employee.Employee, typeName string) events.LeaveSummary {
	return events.LeaveSummary{
		RequestID:    req.ID,
		EmployeeID:   req.EmployeeID,
		EmployeeName: owner.FullName(),
		LeaveType:    typeName,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Days:         req.DurationDays(),
		Reason:       req.Reason,
	}
}

func (s *Service) notifyManager(ctx context.Context, owner *employee.Employee, req *LeaveRequest, typeName string) (EmailStatus, string) {
	if owner.ManagerID == nil {
		return EmailNoManager, ""
	}
	manager, err := s.directory.FindByID(ctx, *owner.ManagerID)
	if err != nil {
		s.logger.Warn("failed to resolve manager", "error", err, "employee_id", owner.ID)
		return EmailFailed, err.Error()
	}
	if manager == nil {
		return EmailNoManager, ""
	}
	return s.publishSync(ctx, events.NewLeaveSubmittedEvent(summarize(req, owner, typeName), recipientOf(manager)))
}

// notifyHR hands the HR fan-out to the background.
func (s *Service) notifyHR(ctx context.Context, owner *employee.Employee, summary events.LeaveSummary) {
	if s.events == nil || !s.events.HasHandlers(events.EventTypeLeaveManagerApproved) {
		return
	}
	officers, err := s.directory.ListByRole(ctx, employee.RoleHR, owner.EnterpriseID)
	if err != nil {
		s.logger.Warn("failed to list hr officers", "error", err, "leave_request_id", summary.RequestID)
		return
	}
	recipients := make([]events.Recipient, 0, len(officers))
	for _, o := range officers {
		recipients = append(recipients, recipientOf(o))
	}
	if err := s.events.Publish(ctx, events.NewLeaveManagerApprovedEvent(summary, recipients)); err != nil {
		s.logger.Warn("failed to publish hr notification", "error", err, "leave_request_id", summary.RequestID)
	}
}

func (s *Service) publishSync(ctx context.Context, event events.Event) (EmailStatus, string) {
	if s.events == nil || !s.events.HasHandlers(event.EventType()) {
		return EmailSkipped, ""
	}
	if err := s.events.PublishSync(ctx, event); err != nil {
		return EmailFailed, rootCause(err).Error()
	}
	return EmailSent, ""
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// result runs after the mutation committed, so a failed lookup only costs
// the owner name and the department overlap flag.
func (s *Service) result(ctx context.Context, req *LeaveRequest, status EmailStatus, emailErr string) *Result {
	v, err := s.view(ctx, req, newLookup())
	if err != nil {
		s.logger.Warn("failed to describe leave request", "error", err, "leave_request_id", req.ID)
		v = baseView(req, s.typeName(ctx, req.LeaveTypeID))
	}
	return &Result{Request: v, EmailStatus: status, EmailError: emailErr}
}

// lookup caches directory and catalog reads while rendering a list.
type lookup struct {
	employees map[int64]*employee.Employee
	types     map[int64]string
}

func newLookup() *lookup {
	return &lookup{employees: map[int64]*employee.Employee{}, types: map[int64]string{}}
}

func (s *Service) views(ctx context.Context, reqs []*LeaveRequest) ([]*View, error) {
	cache := newLookup()
	out := make([]*View, 0, len(reqs))
	for _, r := range reqs {
		v, err := s.view(ctx, r, cache)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) view(ctx context.Context, req *LeaveRequest, cache *lookup) (*View, error) {
	owner, ok := cache.employees[req.EmployeeID]
	if !ok {
		var err error
		if owner, err = s.directory.FindByID(ctx, req.EmployeeID); err != nil {
			return nil, err
		}
		cache.employees[req.EmployeeID] = owner
	}
	typeName, ok := cache.types[req.LeaveTypeID]
	if !ok {
		typeName = s.typeName(ctx, req.LeaveTypeID)
		cache.types[req.LeaveTypeID] = typeName
	}

	v := baseView(req, typeName)
	if owner != nil {
		v.EmployeeName = owner.FullName()
		if owner.DepartmentID != nil {
			overlap, err := s.repo.HasPendingDepartmentOverlap(ctx, *owner.DepartmentID, req.StartDate, req.EndDate, req.ID)
			if err != nil {
				return nil, err
			}
			v.HasOverlap = overlap
		}
	}
	return v, nil
}

func baseView(req *LeaveRequest, typeName string) *View {
	v := &View{
		ID:                req.ID,
		EmployeeID:        req.EmployeeID,
		LeaveTypeID:       req.LeaveTypeID,
		LeaveTypeName:     typeName,
		StartDate:         req.StartDate.Format(time.DateOnly),
		EndDate:           req.EndDate.Format(time.DateOnly),
		DurationDays:      req.DurationDays(),
		Reason:            req.Reason,
		HasJustification:  req.JustificationToken != "",
		JustificationName: req.JustificationName,
		ManagerStatus:     req.Stages[StageManager].Status,
		HRStatus:          req.Stages[StageHR].Status,
		DeptHeadStatus:    req.Stages[StageDeptHead].Status,
		ExecStatus:        req.Stages[StageExec].Status,
		Stages:            make([]StageView, 0, stageCount),
		CreatedAt:         req.CreatedAt,
		UpdatedAt:         req.UpdatedAt,
	}
	for st := StageManager; st < stageCount; st++ {
		v.Stages = append(v.Stages, StageView{Stage: st.String(), Decision: req.Stages[st]})
	}
	if current, pending := req.CurrentStage(); pending {
		v.CurrentStage = current.String()
	} else {
		v.CurrentStage = "completed"
	}
	return v
}
