package transfer

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/pkg/models"
)

const (
	defaultMaxAttempts = 4
	defaultBaseDelay   = 2 * time.Second
	defaultMaxDelay    = time.Minute
)

// RetryPolicy bounds how often a transient transfer failure is retried.
// Delays grow exponentially from BaseDelay up to MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

func PolicyFromSettings(settings models.RetrySettings) RetryPolicy {
	policy := RetryPolicy{
		MaxAttempts: settings.MaxAttempts,
		BaseDelay:   settings.BaseDelay.Duration,
		MaxDelay:    settings.MaxDelay.Duration,
		Jitter:      true,
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = defaultMaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = defaultBaseDelay
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = max(defaultMaxDelay, policy.BaseDelay)
	}
	return policy
}

// Do calls fn until it succeeds, returns a fatal error, the attempts run
// out, or ctx is done. The error of the last attempt is returned.
func (p RetryPolicy) Do(ctx context.Context, clk clock.Clock, op string, fn func() error, notify func(err error, attempt int)) error {
	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			lastErr = fn()
			return lastErr
		},
		IsFatalError: func(err error) bool {
			return fault.IsFatal(err) || ctx.Err() != nil
		},
		NotifyFunc:  notify,
		Attempts:    p.MaxAttempts,
		Delay:       p.BaseDelay,
		MaxDelay:    p.MaxDelay,
		BackoffFunc: retry.ExpBackoff(p.BaseDelay, p.MaxDelay, 2, p.Jitter),
		Clock:       clk,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return nil
	case retry.IsAttemptsExceeded(err):
		return retry.LastError(err)
	case retry.IsRetryStopped(err):
		if ctxErr := fault.FromContext(ctx, op); ctxErr != nil {
			return ctxErr
		}
		return lastErr
	}
	return err
}
