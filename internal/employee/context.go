package employee

import (
	"context"

	"github.com/frahmantamala/leave-management/internal"
)

type ctxKey struct{}

// NewContext stores the authenticated employee on ctx together with its id.
func NewContext(ctx context.Context, e *Employee) context.Context {
	ctx = internal.ContextWithEmployeeID(ctx, e.ID)
	return context.WithValue(ctx, ctxKey{}, e)
}

func FromContext(ctx context.Context) (*Employee, bool) {
	e, ok := ctx.Value(ctxKey{}).(*Employee)
	return e, ok && e != nil
}
