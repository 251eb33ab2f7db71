// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"decred.org/kernelprov/aa"
)

const (
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxRetryDelay = 8 * time.Second
)

// retrier bounds each RPC call with the call timeout and retries read-only
// calls with exponential backoff. State-mutating calls go through once.
type retrier struct {
	attempts     int
	timeout      time.Duration
	initialDelay time.Duration
	maxDelay     time.Duration
	log          aa.Logger
}

func newRetrier(cfg *Config, log aa.Logger) *retrier {
	return &retrier{
		attempts:     cfg.RetryAttempts,
		timeout:      cfg.RPCTimeout,
		initialDelay: defaultRetryDelay,
		maxDelay:     defaultMaxRetryDelay,
		log:          log,
	}
}

// once runs f a single time with the call timeout.
func (r *retrier) once(ctx context.Context, f func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return f(ctx)
}

// read runs f, retrying up to r.attempts more times on error. Cancellation of
// the parent context ends the retries.
func (r *retrier) read(ctx context.Context, name string, f func(ctx context.Context) error) error {
	delay := r.initialDelay
	var err error
	for attempt := 0; ; attempt++ {
		if err = r.once(ctx, f); err == nil {
			if attempt > 0 {
				r.log.Debugf("%s succeeded after %d retries", name, attempt)
			}
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, errors.Join(ctx.Err(), err))
		}
		if attempt >= r.attempts {
			break
		}
		r.log.Warnf("%s failed (attempt %d of %d), retrying in %s: %v", name, attempt+1, r.attempts+1, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", name, errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
		delay *= 2
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}
	if r.attempts == 0 {
		return err
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, r.attempts+1, err)
}
