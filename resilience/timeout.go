package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/trailmind/dispatch/core"
)

// Timeout runs fn under a deadline, derived from the timeout duration,
// returning core.ErrTimeout on expiry. fn runs in its own goroutine so
// the caller is freed on time even if fn itself ignores ctx cancellation;
// that goroutine is left to finish in the background (it cannot be
// force-killed in Go): the caller is freed on time without claiming to
// abort arbitrary Worker code.
func Timeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %s exceeded", core.ErrTimeout, timeout)
	}
}
