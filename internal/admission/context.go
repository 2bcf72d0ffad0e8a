package admission

import (
	"context"

	"github.com/fitcore/aigateway/internal/logging"
)

type contextKey int

const loggerContextKey contextKey = iota

func withLogger(ctx context.Context, l *logging.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, l)
}

// LoggerFromContext returns the request-scoped logger Wrap attached to the
// request context, already tagged with the request's correlation ID via
// logging.WithCorrelationID. ok is false if admission logging is disabled
// or the request never passed through Wrap.
func LoggerFromContext(ctx context.Context) (*logging.Logger, bool) {
	l, ok := ctx.Value(loggerContextKey).(*logging.Logger)
	return l, ok
}
