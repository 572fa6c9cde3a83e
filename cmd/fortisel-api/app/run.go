package app

import (
	"context"
	"database/sql"
	"errors"
	nethttp "net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/ondegooltd/fortisel-api/configs"
	"github.com/ondegooltd/fortisel-api/internal/adapter/cache"
	"github.com/ondegooltd/fortisel-api/internal/adapter/gateway"
	"github.com/ondegooltd/fortisel-api/internal/adapter/http"
	"github.com/ondegooltd/fortisel-api/internal/adapter/http/middleware"
	"github.com/ondegooltd/fortisel-api/internal/adapter/kafka"
	"github.com/ondegooltd/fortisel-api/internal/adapter/queue"
	"github.com/ondegooltd/fortisel-api/internal/adapter/repo"
	"github.com/ondegooltd/fortisel-api/internal/logging"
	"github.com/ondegooltd/fortisel-api/internal/recovery"
	"github.com/ondegooltd/fortisel-api/internal/rules"
	"github.com/ondegooltd/fortisel-api/internal/security"
	"github.com/ondegooltd/fortisel-api/internal/txn"
	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

// Run wires the whole service and blocks until shutdown.
func Run(cfg configs.Config, env string) error {
	logging.Init(cfg.App.Name, cfg.App.LogFile)
	l := logging.New("app")
	l.Info("starting up", "env", env, "addr", cfg.App.HTTPAddr)

	// mysql
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return err
	}

	// redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return err
	}

	// rabbitmq
	rabbit := &rabbitLink{url: cfg.Rabbit.URL}
	ch, err := rabbit.dial()
	if err != nil {
		return err
	}

	// repos
	orderRepo := repo.NewMySQLOrderRepo(db)
	paymentRepo := repo.NewMySQLPaymentRepo(db)
	userRepo := repo.NewMySQLUserRepo(db)
	cylinderRepo := repo.NewMySQLCylinderRepo(db)
	webhookLog := repo.NewMySQLWebhookLogRepo(db)

	// infra
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	statusCache := cache.NewRedisCache(rdb, cfg.Redis.OrderStatusTTL)
	producer, err := queue.NewRabbitProducer(ch)
	if err != nil {
		return err
	}
	verifier, err := security.NewWebhookVerifier(cfg.Paystack.WebhookSecret)
	if err != nil {
		return err
	}
	paystack := gateway.NewPaystackClient(cfg.Paystack.SecretKey, cfg.Paystack.BaseURL)

	// usecases
	validator := rules.NewValidator(orderRepo, userRepo, cylinderRepo, paymentRepo)
	coord := txn.NewCoordinator(db)
	lifecycle := usecase.NewOrderLifecycle(orderRepo, validator, coord, statusCache, idem)
	reconciler := usecase.NewPaymentReconciler(paymentRepo, userRepo, lifecycle, validator, paystack, producer)
	register := usecase.NewRegisterUser(userRepo, validator)

	// queue consumer: webhook reconciliation
	if err := setupQueue(ch, reconciler, webhookLog); err != nil {
		return err
	}

	// kafka consumer: fulfillment delivery events
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	kafkaGroup, err := setupKafkaListener(rootCtx, cfg, lifecycle)
	if err != nil {
		return err
	}

	// http
	handlers := http.Handlers{
		Orders:   http.NewOrderHandler(lifecycle, statusCache),
		Payments: http.NewPaymentHandler(reconciler),
		Users:    http.NewUserHandler(register),
		Webhooks: http.NewWebhookHandler(verifier, producer),
		Token:    http.NewTokenHandler(cfg),
	}
	authz := middleware.NewAuthz(cfg)
	checks := []recovery.HealthCheck{
		{Name: "mysql", Check: db.PingContext},
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		{Name: "rabbitmq", Check: func(context.Context) error { return rabbit.check() }},
	}
	router := http.NewRouter(handlers, authz, checks)

	// background sweep: failed checks trigger the recovery actions
	actions := []recovery.Action{
		{Name: "mysql_reconnect", Execute: db.PingContext},
		{Name: "redis_reconnect", Execute: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		{Name: "rabbitmq_reconnect", Execute: func(context.Context) error {
			return rabbit.reconnect(producer, func(ch *amqp091.Channel) error {
				return setupQueue(ch, reconciler, webhookLog)
			})
		}},
	}
	go healthSweep(rootCtx, checks, actions)

	srv := &nethttp.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
	}()
	l.Info("listening", "addr", cfg.App.HTTPAddr)

	select {
	case err := <-errCh:
		return err
	case <-rootCtx.Done():
	}

	l.Info("shutting down", "grace", cfg.Shutdown.Grace.String())
	grace := cfg.Shutdown.Grace
	if grace <= 0 {
		grace = 20 * time.Second
	}
	return recovery.Shutdown(context.Background(), grace, []recovery.Cleanup{
		{Name: "http", Close: srv.Shutdown},
		{Name: "kafka", Close: func(context.Context) error { return kafkaGroup.Close() }},
		{Name: "rabbitmq", Close: func(context.Context) error { return rabbit.Close() }},
		{Name: "redis", Close: func(context.Context) error { return rdb.Close() }},
		{Name: "mysql", Close: func(context.Context) error { return db.Close() }},
	})
}

const (
	sweepInterval = 30 * time.Second
	checkTimeout  = 2 * time.Second
)

// healthSweep periodically probes the dependencies and lets the
// recovery sequence repair whatever a probe found broken.
func healthSweep(ctx context.Context, checks []recovery.HealthCheck, actions []recovery.Action) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			recovery.HealthCheckWithRecovery(ctx, checkTimeout, checks, actions)
		}
	}
}

// rabbitLink owns the live AMQP connection so the recovery sweep can
// replace it after a broker outage.
type rabbitLink struct {
	mu   sync.Mutex
	url  string
	conn *amqp091.Connection
}

func (r *rabbitLink) dial() (*amqp091.Channel, error) {
	conn, err := amqp091.Dial(r.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	return ch, nil
}

func (r *rabbitLink) check() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil || r.conn.IsClosed() {
		return errors.New("connection closed")
	}
	return nil
}

// reconnect re-dials the broker, swaps the producer onto the fresh
// channel and restarts the consumer side. A still-open connection is
// left alone.
func (r *rabbitLink) reconnect(producer *queue.RabbitProducer, consume func(*amqp091.Channel) error) error {
	if r.check() == nil {
		return nil
	}
	ch, err := r.dial()
	if err != nil {
		return err
	}
	if err := producer.Reset(ch); err != nil {
		return err
	}
	return consume(ch)
}

func (r *rabbitLink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}

func setupQueue(ch *amqp091.Channel, rec *usecase.PaymentReconciler, audit usecase.WebhookAudit) error {
	h := queue.NewWebhookReconcileHandler(rec, audit)

	router := queue.NewRouter(ch, queue.WithPrefetch(50))
	router.Register(queue.WebhookQueue, queue.JSONHandler[usecase.QueuedWebhook]{HandleFunc: h.HandleWebhook})

	return router.Start()
}

func setupKafkaListener(ctx context.Context, cfg configs.Config, lc *usecase.OrderLifecycle) (interface{ Close() error }, error) {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return nil, err
	}

	h := kafka.NewDeliveryStatusChangedHandler(lc)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.DeliveryTopic}, h.Handle)
	consumer.Logger = logging.New("kafka")

	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Base().Error("kafka consumer stopped", "error", err.Error(), "type", "kafka_error")
		}
	}()
	return grp, nil
}
