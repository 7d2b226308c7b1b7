package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/service/scheduler"
	"PriceCast/internal/usecase"
	pkgch "PriceCast/pkg/clickhouse"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	collector   *usecase.Collector
	sched       *scheduler.Scheduler
	retrainQ    *queue.RedisQueue
	publisher   domrepo.AlertPublisher
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies. Collector,
// scheduler, queue and publisher may be nil when disabled by config.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.Collector,
	sched *scheduler.Scheduler,
	retrainQ *queue.RedisQueue,
	publisher domrepo.AlertPublisher,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		collector: collector,
		sched:     sched,
		retrainQ:  retrainQ,
		publisher: publisher,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject the HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverOpts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, xhttp.WithMetricsMiddleware(a.log, time.Second))
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, serverOpts...)

	// Start live tick collector
	if a.collector != nil {
		go func() {
			if err := a.collector.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Error("collector error", applogger.Error(err))
			}
		}()
		a.log.Info("tick collector started")
	}

	// Start retrain queue workers
	if a.retrainQ != nil {
		if err := a.retrainQ.Start(); err != nil {
			a.log.Error("retrain queue start error", applogger.Error(err))
			return err
		}
	}

	// Start training scheduler
	if a.sched != nil {
		if err := a.sched.Start(); err != nil {
			a.log.Error("scheduler start error", applogger.Error(err))
			return err
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.sched != nil {
		a.sched.Stop()
	}

	if a.retrainQ != nil {
		if err := a.retrainQ.Stop(shutdownCtx); err != nil {
			a.log.Warn("retrain queue stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("alert publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
