package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/leave-management/internal/employee"
)

const (
	JobDeactivate = "deactivate"
	JobReactivate = "reactivate"
)

var ErrUnknownJob = errors.New("unknown scheduler job")

// Jobs lists the daily jobs in the order they fire.
func Jobs() []string {
	return []string{JobDeactivate, JobReactivate}
}

// Store answers the reconciliation questions. Only requests the executive
// validated count as leave.
type Store interface {
	// ActiveStartingOn returns active employees with a leave starting on day.
	ActiveStartingOn(ctx context.Context, day time.Time) ([]int64, error)
	// InactiveEndedBefore returns inactive employees with a leave that ended
	// before day.
	InactiveEndedBefore(ctx context.Context, day time.Time) ([]int64, error)
	// HasLeaveEndingFrom reports whether the employee holds a leave whose end
	// is on or after day.
	HasLeaveEndingFrom(ctx context.Context, employeeID int64, day time.Time) (bool, error)
}

// Report summarises one pass. Failed employees are logged and skipped.
type Report struct {
	Job        string    `json:"job"`
	Day        time.Time `json:"day"`
	Candidates int       `json:"candidates"`
	Changed    int       `json:"changed"`
	Kept       int       `json:"kept"`
	Failed     int       `json:"failed"`
}

type Reconciler struct {
	store      Store
	activation employee.ActivationStore
	logger     *slog.Logger
}

func NewReconciler(store Store, activation employee.ActivationStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, activation: activation, logger: logger}
}

// Run dispatches job for day.
func (r *Reconciler) Run(ctx context.Context, job string, day time.Time) (*Report, error) {
	switch job {
	case JobDeactivate:
		return r.DeactivateStarting(ctx, day)
	case JobReactivate:
		return r.ReactivateEnded(ctx, day)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownJob, job)
}

// DeactivateStarting turns off the accounts of employees whose validated
// leave starts on day. Running it twice on the same day changes nothing.
func (r *Reconciler) DeactivateStarting(ctx context.Context, day time.Time) (*Report, error) {
	report := &Report{Job: JobDeactivate, Day: day}
	ids, err := r.store.ActiveStartingOn(ctx, day)
	if err != nil {
		return report, fmt.Errorf("failed to list leaves starting %s: %w", day.Format(time.DateOnly), err)
	}
	report.Candidates = len(ids)

	for _, id := range ids {
		r.apply(ctx, report, id, false)
	}
	return report, nil
}

// ReactivateEnded turns accounts back on once every validated leave of the
// employee is over. An employee with another leave ending today or later
// stays inactive.
func (r *Reconciler) ReactivateEnded(ctx context.Context, day time.Time) (*Report, error) {
	report := &Report{Job: JobReactivate, Day: day}
	ids, err := r.store.InactiveEndedBefore(ctx, day)
	if err != nil {
		return report, fmt.Errorf("failed to list leaves ended before %s: %w", day.Format(time.DateOnly), err)
	}
	report.Candidates = len(ids)

	for _, id := range ids {
		ongoing, err := r.store.HasLeaveEndingFrom(ctx, id, day)
		if err != nil {
			report.Failed++
			r.logger.Error("failed to check remaining leave", "error", err, "employee_id", id)
			continue
		}
		if ongoing {
			report.Kept++
			r.logger.Debug("employee still on leave", "employee_id", id, "day", day.Format(time.DateOnly))
			continue
		}
		r.apply(ctx, report, id, true)
	}
	return report, nil
}

func (r *Reconciler) apply(ctx context.Context, report *Report, id int64, active bool) {
	changed, err := r.activation.SetActive(ctx, id, active)
	if err != nil {
		report.Failed++
		r.logger.Error("failed to update employee active flag",
			"error", err,
			"job", report.Job,
			"employee_id", id)
		return
	}
	if changed {
		report.Changed++
		r.logger.Info("employee active flag updated",
			"job", report.Job,
			"employee_id", id,
			"active", active)
	}
}
