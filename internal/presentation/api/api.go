package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tabsync/tabsync/internal/infrastructure/configs"
	"github.com/tabsync/tabsync/internal/infrastructure/logging"
	adminHandler "github.com/tabsync/tabsync/internal/presentation/handler/admin"
	healthHandler "github.com/tabsync/tabsync/internal/presentation/handler/health"
	realtimeHandler "github.com/tabsync/tabsync/internal/presentation/handler/realtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Application struct {
	config          configs.Config
	realtimeHandler realtimeHandler.Handler
	healthHandler   healthHandler.Handler
	adminHandler    adminHandler.Handler
	logger          logging.Logger
	onShutdown      func(context.Context)
}

func NewApplication(
	config configs.Config,
	realtimeHandler realtimeHandler.Handler,
	healthHandler healthHandler.Handler,
	adminHandler adminHandler.Handler,
	logger logging.Logger,
	onShutdown func(context.Context),
) *Application {
	return &Application{
		config:          config,
		realtimeHandler: realtimeHandler,
		healthHandler:   healthHandler,
		adminHandler:    adminHandler,
		logger:          logger,
		onShutdown:      onShutdown,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(app.enableCors)

	// Websocket handshakes must not run under a request timeout.
	r.Get("/ws", app.realtimeHandler.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)

		r.Get("/stats", app.adminHandler.GetStats)
		r.Post("/cache/cleanup", app.adminHandler.TriggerReconcile)
	})

	r.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(r, "tabsync.http")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		healthHandler.SetUnhealthy()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Notify connected clients and drain the hub before the HTTP
		// listener stops accepting.
		if app.onShutdown != nil {
			app.onShutdown(ctx)
		}

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
