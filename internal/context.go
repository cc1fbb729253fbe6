package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextEmployeeKey ctxKey = "employeeID"

func EmployeeIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if id, ok := ctx.Value(ContextEmployeeKey).(int64); ok {
		return id
	}
	return 0
}

func ContextWithEmployeeID(ctx context.Context, employeeID int64) context.Context {
	return context.WithValue(ctx, ContextEmployeeKey, employeeID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}

// DateOf keeps the calendar day of t (as seen in t's location) at UTC midnight.
// Leave periods are whole days and every stored date uses this form.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
