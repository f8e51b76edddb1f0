package order

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// step is one unit of work in the checkout saga. Execute performs the side
// effect; Compensate undoes it when a later step fails. The underlying data
// store only guarantees per-record atomicity, so the saga's LIFO rollback is
// the only cross-record consistency mechanism checkout has.
type step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// runSaga executes steps in order. On failure it compensates the already
// completed steps in reverse and returns the failing step's error.
// Compensation errors are logged and swallowed: by that point the original
// failure is the one the caller needs, and a half-compensated checkout is a
// support case, not something to hide behind a different error.
func runSaga(ctx context.Context, steps []step) error {
	lg := zctx.From(ctx)

	done := make([]step, 0, len(steps))
	for _, s := range steps {
		if err := s.Execute(ctx); err != nil {
			lg.Warn("Checkout step failed, rolling back",
				zap.String("step", s.Name()),
				zap.Error(err),
			)
			compensate(ctx, done)
			return err
		}
		done = append(done, s)
	}
	return nil
}

func compensate(ctx context.Context, done []step) {
	lg := zctx.From(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		s := done[i]
		if err := s.Compensate(ctx); err != nil {
			lg.Error("Compensation failed, manual intervention required",
				zap.String("step", s.Name()),
				zap.Error(err),
			)
		}
	}
}
