package health

import (
	"context"
	"runtime"
	"sync"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when the number of goroutines exceeds threshold,
// which usually means terminal connections are leaking.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// LockCheck fails when lock cannot be acquired before ctx expires. lock must
// acquire and release the guarded resource. At most one lock attempt is in
// flight: while it is blocked, later checks wait on the same attempt.
func LockCheck(lock func()) CheckFunc {
	var (
		mu      sync.Mutex
		pending chan struct{}
	)
	return func(ctx context.Context) error {
		mu.Lock()
		done := pending
		if done == nil {
			done = make(chan struct{})
			pending = done
			go func() {
				lock()
				mu.Lock()
				pending = nil
				mu.Unlock()
				close(done)
			}()
		}
		mu.Unlock()

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return errors.New("lock not acquired in time")
		}
	}
}
