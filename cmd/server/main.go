package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/config"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/events"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/handler"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/infra"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/ledger"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/middleware"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/repository"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/router"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/service"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger — dev: pretty, prod: JSON
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Events: Redis pub/sub for live views, RabbitMQ for the audit log ────
	publishers := events.Fanout{events.NewRedisPublisher(rdb)}
	if cfg.RabbitMQURL != "" {
		conn, err := infra.NewRabbitMQ(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}
		defer conn.Close()
		amqpPub, err := events.NewAMQPPublisher(conn, cfg.EventsExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open rabbitmq channel")
		}
		defer amqpPub.Close()
		publishers = append(publishers, amqpPub)
		log.Info().Str("exchange", cfg.EventsExchange).Msg("audit events enabled")
	}

	// ── Orders service (optional) ───────────────────────────────────────────
	var orders service.OrderLookup
	var ordersCB *infra.CircuitBreaker
	if cfg.OrdersServiceURL != "" {
		client := infra.NewOrderClient(cfg.OrdersServiceURL, nil)
		orders, ordersCB = client, client.Breaker()
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	cajaRepo := repository.NewCajaRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	// ── Async jobs: closing report PDF + email ──────────────────────────────
	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	dispatcher := worker.NewDispatcher(rdb)
	mailer := infra.NewMailer(cfg)
	var reportTo []string
	if mailer.Enabled() {
		reportTo = config.SplitRoles(cfg.ReportEmailTo)
	}
	workerHandlers := &worker.WorkerHandlers{
		Cierre: worker.NewCierreWorker(cajaRepo, dispatcher, cfg.PDFStoragePath, reportTo),
		Email:  worker.NewEmailWorker(mailer),
	}
	worker.StartWorkerPool(ctx, dispatcher, workerHandlers, cfg.WorkerPoolSize)

	// ── Services ─────────────────────────────────────────────────────────────
	cajaSvc := service.NewCajaService(cajaRepo, service.CajaConfig{
		Authorizer: ledger.RolePolicy{
			ledger.ActionWithdraw:  config.SplitRoles(cfg.WithdrawRoles),
			ledger.ActionClose:     config.SplitRoles(cfg.CloseRoles),
			ledger.ActionReconcile: config.SplitRoles(cfg.ReconcileRoles),
		},
		VarianceThreshold: cfg.Threshold(),
		Publisher:         publishers,
		Orders:            orders,
		Jobs:              dispatcher,
	})
	authSvc := service.NewAuthService(operatorRepo, cfg)

	// ── Rate limiters ───────────────────────────────────────────────────────
	stop := make(chan struct{})
	defer close(stop)
	limiters := router.Limiters{
		Global: middleware.NewWindowLimiter(1000, time.Minute), // 1000 req/min per IP
		Login:  middleware.NewWindowLimiter(5, time.Minute),    // brute-force guard
	}
	go limiters.Global.RunPurge(5*time.Minute, stop)
	go limiters.Login.RunPurge(5*time.Minute, stop)

	// Closed when shutdown begins so open event streams return.
	streamsDone := make(chan struct{})

	r := router.New(cfg, db, rdb, router.Services{
		Caja:     cajaSvc,
		Auth:     authSvc,
		OrdersCB: ordersCB,
		Events:   handler.RedisSubscriber(rdb),
		Done:     streamsDone,
		DLQ:      dispatcher,
	}, limiters)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the events endpoint keeps its response open.
		IdleTimeout: 60 * time.Second,
	}
	srv.RegisterOnShutdown(func() { close(streamsDone) })

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("caja backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	cancel()
	log.Info().Msg("server exited")
}
