package api

import (
	"context"
	"time"

	"github.com/shaj13/go-guardian/auth"

	"github.com/linesmerrill/donation-checkin-api/verification"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

type operatorContextKey struct{}

type operatorContext struct {
	operator verification.Operator
	info     auth.Info
}

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

// WithOperator stores the authenticated operator on ctx
func WithOperator(ctx context.Context, op verification.Operator, info auth.Info) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, operatorContext{operator: op, info: info})
}

// OperatorFromContext returns the operator set by the auth middleware
func OperatorFromContext(ctx context.Context) (verification.Operator, bool) {
	oc, ok := ctx.Value(operatorContextKey{}).(operatorContext)
	if !ok {
		return verification.Operator{}, false
	}
	return oc.operator, true
}

func infoFromContext(ctx context.Context) (auth.Info, bool) {
	oc, ok := ctx.Value(operatorContextKey{}).(operatorContext)
	if !ok || oc.info == nil {
		return nil, false
	}
	return oc.info, true
}
