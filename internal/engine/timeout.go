package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spherical/smartpdf/internal/domain"
)

// timed bounds every invocation of a heavy engine.
type timed struct {
	domain.Engine
	timeout time.Duration
}

// WithTimeout wraps e so that each Convert runs under its own deadline. A
// non-positive timeout returns e unchanged. When the deadline expires while
// the parent context is still live, the attempt is reported as a failed,
// timed-out Outcome.
func WithTimeout(e domain.Engine, timeout time.Duration) domain.Engine {
	if timeout <= 0 {
		return e
	}
	return &timed{Engine: e, timeout: timeout}
}

func (t *timed) Convert(ctx context.Context, task domain.ConversionTask) (domain.Outcome, error) {
	cctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.Engine.Convert(cctx, task)

	expired := errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	if !expired || out.Succeeded {
		return out, err
	}

	detail := fmt.Sprintf("%s timed out after %s", t.Engine.Name(), t.timeout)
	if err != nil && t.Engine.Kind() == domain.KindText {
		return out, domain.TimeoutError(detail, err)
	}
	out.TimedOut = true
	if out.ExitStatus == 0 {
		out.ExitStatus = 1
	}
	if out.Detail == "" {
		out.Detail = detail
	}
	return out, nil
}

// Available forwards to the wrapped engine's probe.
func (t *timed) Available() error {
	if p, ok := t.Engine.(domain.Prober); ok {
		return p.Available()
	}
	return nil
}

// Unwrap returns the wrapped engine.
func (t *timed) Unwrap() domain.Engine {
	return t.Engine
}
