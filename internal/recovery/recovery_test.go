package recovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithTimeoutReturnsResultInTime(t *testing.T) {
	v, err := WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("WithTimeout: %v", err)
	}
	if v != 42 {
		t.Errorf("got %d, want 42", v)
	}
}

func TestWithTimeoutBreaksSlowOperation(t *testing.T) {
	start := time.Now()
	_, err := WithTimeout(context.Background(), 20*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		select {
		case <-time.After(5 * time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("breaker waited %v, should return promptly", elapsed)
	}
}

func TestExecuteActionsNeverStopsEarly(t *testing.T) {
	var ran []string
	actions := []Action{
		{Name: "first", Execute: func(context.Context) error {
			ran = append(ran, "first")
			return errors.New("boom")
		}},
		{Name: "second", Execute: func(context.Context) error {
			ran = append(ran, "second")
			return nil
		}},
		{Name: "third", Execute: func(context.Context) error {
			ran = append(ran, "third")
			return errors.New("also boom")
		}},
	}

	results, err := ExecuteActions(context.Background(), actions)
	if err == nil {
		t.Fatal("want aggregate error")
	}
	if len(ran) != 3 {
		t.Fatalf("ran %v, want all three despite failures", ran)
	}
	if results[1].Err != nil {
		t.Errorf("second action should have succeeded: %v", results[1].Err)
	}
}

func TestExecuteActionsFallback(t *testing.T) {
	actions := []Action{{
		Name:     "flaky",
		Execute:  func(context.Context) error { return errors.New("primary down") },
		Fallback: func(context.Context) error { return nil },
	}}

	results, err := ExecuteActions(context.Background(), actions)
	if err != nil {
		t.Fatalf("fallback succeeded, want nil error: %v", err)
	}
	if !results[0].UsedFallback {
		t.Error("expected fallback to be recorded")
	}
}

func TestExecuteActionsFallbackAlsoFails(t *testing.T) {
	actions := []Action{{
		Name:     "doomed",
		Execute:  func(context.Context) error { return errors.New("primary") },
		Fallback: func(context.Context) error { return errors.New("fallback") },
	}}

	results, err := ExecuteActions(context.Background(), actions)
	if err == nil {
		t.Fatal("want error when fallback fails too")
	}
	if results[0].Err == nil || !results[0].UsedFallback {
		t.Errorf("result = %+v, want failed with fallback attempted", results[0])
	}
}

func TestCheckHealthRunsConcurrently(t *testing.T) {
	checks := []HealthCheck{
		{Name: "mysql", Check: func(context.Context) error {
			time.Sleep(30 * time.Millisecond)
			return nil
		}},
		{Name: "redis", Check: func(context.Context) error {
			time.Sleep(30 * time.Millisecond)
			return nil
		}},
		{Name: "rabbit", Check: func(context.Context) error {
			time.Sleep(30 * time.Millisecond)
			return errors.New("connection refused")
		}},
	}

	start := time.Now()
	st := CheckHealth(context.Background(), time.Second, checks)
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("sweep took %v, checks should run concurrently", elapsed)
	}
	if st.Healthy {
		t.Error("want unhealthy sweep")
	}
	if st.Checks["mysql"] != nil || st.Checks["redis"] != nil {
		t.Error("healthy checks reported errors")
	}
	if st.Checks["rabbit"] == nil {
		t.Error("rabbit failure not reported")
	}
}

func TestCheckHealthTimesOutSlowDependency(t *testing.T) {
	checks := []HealthCheck{{Name: "stuck", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}}

	st := CheckHealth(context.Background(), 20*time.Millisecond, checks)
	if st.Healthy {
		t.Error("stuck dependency must mark the sweep unhealthy")
	}
	if !errors.Is(st.Checks["stuck"], ErrTimeout) {
		t.Errorf("want ErrTimeout, got %v", st.Checks["stuck"])
	}
}

func TestHealthCheckWithRecoverySkipsActionsWhenHealthy(t *testing.T) {
	var recovered atomic.Int32
	checks := []HealthCheck{{Name: "mysql", Check: func(context.Context) error { return nil }}}
	actions := []Action{{Name: "reconnect", Execute: func(context.Context) error {
		recovered.Add(1)
		return nil
	}}}

	st := HealthCheckWithRecovery(context.Background(), time.Second, checks, actions)
	if !st.Health.Healthy || !st.Recovered {
		t.Fatalf("healthy sweep reported %+v", st)
	}
	if recovered.Load() != 0 {
		t.Error("recovery actions ran on a healthy sweep")
	}
	if len(st.Actions) != 0 {
		t.Errorf("got %d action results, want none", len(st.Actions))
	}
}

func TestHealthCheckWithRecoveryRunsActionsOnFailure(t *testing.T) {
	broken := true
	checks := []HealthCheck{{Name: "rabbitmq", Check: func(context.Context) error {
		if broken {
			return errors.New("connection closed")
		}
		return nil
	}}}
	actions := []Action{{Name: "rabbitmq_reconnect", Execute: func(context.Context) error {
		broken = false
		return nil
	}}}

	st := HealthCheckWithRecovery(context.Background(), time.Second, checks, actions)
	if st.Health.Healthy {
		t.Fatal("sweep should start unhealthy")
	}
	if !st.Recovered {
		t.Fatalf("recovery should succeed, got %+v", st)
	}
	if len(st.Actions) != 1 || st.Actions[0].Err != nil {
		t.Errorf("unexpected action results %+v", st.Actions)
	}
	if again := HealthCheckWithRecovery(context.Background(), time.Second, checks, actions); !again.Health.Healthy {
		t.Error("dependency still unhealthy after recovery")
	}
}

func TestHealthCheckWithRecoveryReportsFailedRecovery(t *testing.T) {
	checks := []HealthCheck{{Name: "redis", Check: func(context.Context) error {
		return errors.New("down")
	}}}
	actions := []Action{
		{Name: "redis_reconnect", Execute: func(context.Context) error { return errors.New("still down") }},
		{Name: "mysql_reconnect", Execute: func(context.Context) error { return nil }},
	}

	st := HealthCheckWithRecovery(context.Background(), time.Second, checks, actions)
	if st.Recovered {
		t.Fatal("failed action must leave Recovered false")
	}
	if len(st.Actions) != 2 {
		t.Fatalf("all actions should still run, got %d results", len(st.Actions))
	}
	if st.Actions[1].Err != nil {
		t.Error("later action should have succeeded")
	}
}

func TestShutdownRunsAllCleanups(t *testing.T) {
	var n atomic.Int32
	cleanups := []Cleanup{
		{Name: "http", Close: func(context.Context) error { n.Add(1); return nil }},
		{Name: "mysql", Close: func(context.Context) error { n.Add(1); return nil }},
		{Name: "redis", Close: func(context.Context) error { n.Add(1); return nil }},
	}

	if err := Shutdown(context.Background(), time.Second, cleanups); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n.Load() != 3 {
		t.Errorf("cleanups ran = %d, want 3", n.Load())
	}
}

func TestShutdownGraceExpires(t *testing.T) {
	cleanups := []Cleanup{{Name: "stuck", Close: func(context.Context) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	}}}

	start := time.Now()
	err := Shutdown(context.Background(), 20*time.Millisecond, cleanups)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("shutdown waited %v past its grace period", elapsed)
	}
}

func TestShutdownAggregatesFailures(t *testing.T) {
	cleanups := []Cleanup{
		{Name: "ok", Close: func(context.Context) error { return nil }},
		{Name: "bad", Close: func(context.Context) error { return errors.New("flush failed") }},
	}

	err := Shutdown(context.Background(), time.Second, cleanups)
	if err == nil {
		t.Fatal("want error when a cleanup fails")
	}
}
