// Package txn wraps units of work in database transactions with retry
// and running statistics.
package txn

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ondegooltd/fortisel-api/internal/logging"
	"github.com/ondegooltd/fortisel-api/internal/retry"
)

var (
	ErrNilUnitOfWork = errors.New("txn: nil unit of work")

	txnTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_transactions_total",
			Help: "Total database transactions by outcome",
		},
		[]string{"outcome"},
	)
	txnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_transaction_duration_ms",
			Help:    "Duration of database transactions in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3200},
		},
	)
)

// maxDurationHistory bounds the rolling window used for the average
// transaction duration in Stats.
const maxDurationHistory = 1000

type Options struct {
	Timeout time.Duration
	Retries int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Retries <= 0 {
		o.Retries = 3
	}
	return o
}

// UnitOfWork runs inside a transaction. All writes it makes through tx
// commit or roll back together.
type UnitOfWork func(ctx context.Context, tx *sql.Tx) (any, error)

// Outcome is the ephemeral result of a unit of work. Business-level
// failures are reported here, never as panics; the coordinator's methods
// return a non-nil error only for programmer errors.
type Outcome struct {
	Success bool
	Data    any
	Err     error
}

type Stats struct {
	Total      int64
	Successful int64
	Failed     int64
	Retries    int64
	AvgMs      float64
}

// Coordinator owns its counters explicitly; there is no package-level
// mutable state beyond the Prometheus collectors.
type Coordinator struct {
	db *sql.DB

	mu        sync.Mutex
	total     int64
	success   int64
	failed    int64
	retries   int64
	durations []time.Duration
}

func NewCoordinator(db *sql.DB) *Coordinator {
	return &Coordinator{db: db}
}

// ExecuteTransaction runs fn inside a serializable transaction, retrying
// the whole unit up to opts.Retries times. Each attempt gets a fresh
// transaction: a failed one may be in an indeterminate state and is never
// reused.
func (c *Coordinator) ExecuteTransaction(ctx context.Context, fn UnitOfWork, opts Options) Outcome {
	if fn == nil {
		return Outcome{Success: false, Err: ErrNilUnitOfWork}
	}
	opts = opts.withDefaults()
	l := logging.FromCtx(ctx)

	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		l.Info("starting transaction",
			"attempt", attempt, "max_retries", opts.Retries, "type", "transaction_start")

		start := time.Now()
		data, err := c.runOnce(ctx, fn, opts.Timeout)
		elapsed := time.Since(start)
		c.record(elapsed, err == nil, attempt > 1)

		if err == nil {
			l.Info("transaction committed",
				"attempt", attempt, "dur_ms", elapsed.Milliseconds(), "type", "transaction_success")
			return Outcome{Success: true, Data: data}
		}
		lastErr = err
		l.Error("transaction failed",
			"attempt", attempt, "max_retries", opts.Retries,
			"error", err.Error(), "type", "transaction_error")
	}

	l.Error("transaction failed after all retries",
		"attempts", opts.Retries, "error", lastErr.Error(), "type", "transaction_failure")
	return Outcome{Success: false, Err: lastErr}
}

func (c *Coordinator) runOnce(ctx context.Context, fn UnitOfWork, timeout time.Duration) (any, error) {
	txCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := c.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	data, err := fn(txCtx, tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return data, nil
}

// ExecuteBatch runs an ordered list of sub-operations inside one
// transaction; any failure aborts the whole batch. Data holds the
// sub-operation results in order.
func (c *Coordinator) ExecuteBatch(ctx context.Context, ops []UnitOfWork, opts Options) Outcome {
	if len(ops) == 0 {
		return Outcome{Success: false, Err: ErrNilUnitOfWork}
	}
	return c.ExecuteTransaction(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		results := make([]any, 0, len(ops))
		for _, op := range ops {
			if op == nil {
				return nil, ErrNilUnitOfWork
			}
			r, err := op(ctx, tx)
			if err != nil {
				return nil, err
			}
			results = append(results, r)
		}
		return results, nil
	}, opts)
}

type RetryOptions struct {
	Options
	RetryDelay        time.Duration
	BackoffMultiplier float64
	MaxRetryDelay     time.Duration
}

// ExecuteWithRetry composes with the retry executor: each retry is a fresh
// ExecuteTransaction call with Retries:1, so retries never nest.
func (c *Coordinator) ExecuteWithRetry(ctx context.Context, fn UnitOfWork, opts RetryOptions) Outcome {
	if fn == nil {
		return Outcome{Success: false, Err: ErrNilUnitOfWork}
	}
	base := opts.Options.withDefaults()

	cfg := retry.Config{
		MaxAttempts:       base.Retries,
		InitialDelay:      opts.RetryDelay,
		BackoffMultiplier: opts.BackoffMultiplier,
		MaxDelay:          opts.MaxRetryDelay,
	}
	data, err := retry.Do(ctx, func(ctx context.Context) (any, error) {
		out := c.ExecuteTransaction(ctx, fn, Options{Timeout: base.Timeout, Retries: 1})
		if !out.Success {
			return nil, out.Err
		}
		return out.Data, nil
	}, cfg, "transaction")

	if err != nil {
		return Outcome{Success: false, Err: err}
	}
	return Outcome{Success: true, Data: data}
}

func (c *Coordinator) record(d time.Duration, ok, isRetry bool) {
	txnDuration.Observe(float64(d.Milliseconds()))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if ok {
		c.success++
		txnTotal.WithLabelValues("success").Inc()
	} else {
		c.failed++
		txnTotal.WithLabelValues("failure").Inc()
	}
	if isRetry {
		c.retries++
	}
	c.durations = append(c.durations, d)
	if len(c.durations) > maxDurationHistory {
		c.durations = c.durations[len(c.durations)-maxDurationHistory:]
	}
}

// Stats returns a snapshot of the running counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var avg float64
	if len(c.durations) > 0 {
		var sum time.Duration
		for _, d := range c.durations {
			sum += d
		}
		avg = float64(sum.Milliseconds()) / float64(len(c.durations))
	}
	return Stats{
		Total:      c.total,
		Successful: c.success,
		Failed:     c.failed,
		Retries:    c.retries,
		AvgMs:      avg,
	}
}
