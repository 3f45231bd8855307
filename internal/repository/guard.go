package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/matchday-predictor/internal/apperror"
)

// Guard runs store calls under a deadline and turns any backend failure,
// including a panic, into an apperror tagged with the operation name.
// Errors that are already *apperror.AppError pass through untouched.
type Guard struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

// Run executes fn with the guard's timeout applied to ctx.
func (g Guard) Run(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			g.log().Error("store call panicked", "op", op, "panic", r)
			err = apperror.Store(op, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := fn(ctx); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return err
		}
		g.log().Error("store call failed", "op", op, "error", err)
		return apperror.Store(op, err)
	}
	return nil
}

func (g Guard) log() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
