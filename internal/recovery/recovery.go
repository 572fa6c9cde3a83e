// Package recovery centralizes the failure-containment primitives: a
// timeout breaker around slow operations, ordered recovery actions with
// fallbacks, dependency health sweeps and graceful shutdown.
package recovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ondegooltd/fortisel-api/internal/logging"
)

// ErrTimeout reports that an operation exceeded its breaker deadline.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout runs op under a deadline. The result of a late op is
// discarded; the caller gets ErrTimeout as soon as the deadline passes.
func WithTimeout[T any](ctx context.Context, d time.Duration, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := op(ctx)
		ch <- outcome{v, err}
	}()

	select {
	case out := <-ch:
		return out.v, out.err
	case <-ctx.Done():
		logging.FromCtx(ctx).Warn("operation deadline exceeded",
			"operation", label, "timeout_ms", d.Milliseconds(), "type", "timeout_breaker")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}

// Action is one step of a recovery sequence. Fallback is optional and
// runs only when Execute fails.
type Action struct {
	Name     string
	Execute  func(context.Context) error
	Fallback func(context.Context) error
}

// ActionResult records how a single action fared.
type ActionResult struct {
	Name         string
	Err          error
	UsedFallback bool
	Duration     time.Duration
}

// ExecuteActions runs every action in order, never stopping early: a
// failed action falls back if it can, and later actions still run. The
// returned error is non-nil when any action ended in failure.
func ExecuteActions(ctx context.Context, actions []Action) ([]ActionResult, error) {
	l := logging.FromCtx(ctx)
	results := make([]ActionResult, 0, len(actions))
	var failed []string

	for _, a := range actions {
		start := time.Now()
		err := a.Execute(ctx)
		used := false
		if err != nil && a.Fallback != nil {
			l.Warn("recovery action failed, trying fallback",
				"action", a.Name, "error", err.Error(), "type", "recovery_fallback")
			err = a.Fallback(ctx)
			used = true
		}
		r := ActionResult{Name: a.Name, Err: err, UsedFallback: used, Duration: time.Since(start)}
		results = append(results, r)

		if err != nil {
			failed = append(failed, a.Name)
			l.Error("recovery action failed",
				"action", a.Name, "error", err.Error(), "type", "recovery_error")
			continue
		}
		l.Info("recovery action completed",
			"action", a.Name, "used_fallback", used,
			"duration_ms", r.Duration.Milliseconds(), "type", "recovery_action")
	}

	if len(failed) > 0 {
		return results, errors.New("recovery actions failed: " + strings.Join(failed, ", "))
	}
	return results, nil
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(context.Context) error
}

// HealthStatus aggregates a sweep over all registered checks.
type HealthStatus struct {
	Healthy bool
	Checks  map[string]error
}

// CheckHealth probes every dependency concurrently under per-check
// timeouts. One slow dependency never hides the state of the rest.
func CheckHealth(ctx context.Context, timeout time.Duration, checks []HealthCheck) HealthStatus {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = HealthStatus{Healthy: true, Checks: make(map[string]error, len(checks))}
	)

	for _, hc := range checks {
		wg.Add(1)
		go func(hc HealthCheck) {
			defer wg.Done()
			_, err := WithTimeout(ctx, timeout, "health_"+hc.Name, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, hc.Check(ctx)
			})
			mu.Lock()
			out.Checks[hc.Name] = err
			if err != nil {
				out.Healthy = false
			}
			mu.Unlock()
		}(hc)
	}
	wg.Wait()

	if !out.Healthy {
		logging.FromCtx(ctx).Warn("health sweep found unhealthy dependencies",
			"type", "health_check")
	}
	return out
}

// RecoveryStatus reports a health sweep together with the recovery run
// it triggered.
type RecoveryStatus struct {
	Health    HealthStatus
	Actions   []ActionResult
	Recovered bool
}

// HealthCheckWithRecovery sweeps every dependency and, when any check
// fails, runs the recovery action sequence. Recovered reports whether
// every action ended cleanly; an already-healthy sweep counts as
// recovered with no actions run.
func HealthCheckWithRecovery(ctx context.Context, timeout time.Duration, checks []HealthCheck, actions []Action) RecoveryStatus {
	st := RecoveryStatus{Health: CheckHealth(ctx, timeout, checks), Recovered: true}
	if st.Health.Healthy {
		return st
	}

	st.Actions, _ = ExecuteActions(ctx, actions)
	for _, r := range st.Actions {
		if r.Err != nil {
			st.Recovered = false
		}
	}

	l := logging.FromCtx(ctx)
	if st.Recovered {
		l.Info("dependencies recovered", "actions", len(st.Actions), "type", "recovery")
	} else {
		l.Error("recovery sequence left dependencies unhealthy", "type", "recovery_error")
	}
	return st
}

// Cleanup names a resource teardown step for shutdown.
type Cleanup struct {
	Name  string
	Close func(context.Context) error
}

// Shutdown runs every cleanup concurrently and waits up to grace for
// them to finish. Stragglers are logged and abandoned so the process can
// still exit.
func Shutdown(ctx context.Context, grace time.Duration, cleanups []Cleanup) error {
	l := logging.FromCtx(ctx)
	ctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	var (
		mu     sync.Mutex
		failed []string
		wg     sync.WaitGroup
	)
	for _, c := range cleanups {
		wg.Add(1)
		go func(c Cleanup) {
			defer wg.Done()
			if err := c.Close(ctx); err != nil {
				mu.Lock()
				failed = append(failed, c.Name)
				mu.Unlock()
				l.Error("cleanup failed during shutdown",
					"cleanup", c.Name, "error", err.Error(), "type", "shutdown_error")
				return
			}
			l.Info("cleanup completed", "cleanup", c.Name, "type", "shutdown")
		}(c)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		l.Error("shutdown grace period expired with cleanups still running",
			"grace_ms", grace.Milliseconds(), "type", "shutdown_timeout")
		return ErrTimeout
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failed) > 0 {
		return errors.New("shutdown cleanups failed: " + strings.Join(failed, ", "))
	}
	return nil
}

