package exec

import (
	"context"

	"github.com/corvidlabs/rawcore/pkg/timing"
)

type timerContextKey struct{}

// WithTimer attaches t to ctx; attemptOnce records dial and
// time-to-first-byte phases on it when present. Mirrors the
// net/http/httptrace style of threading an out-of-band observer through
// context rather than widening every function signature.
func WithTimer(ctx context.Context, t *timing.Timer) context.Context {
	return context.WithValue(ctx, timerContextKey{}, t)
}

func timerFromContext(ctx context.Context) *timing.Timer {
	t, _ := ctx.Value(timerContextKey{}).(*timing.Timer)
	return t
}
