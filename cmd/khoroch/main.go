package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"khoroch/internal/amqp"
	"khoroch/internal/auth"
	"khoroch/internal/cache"
	"khoroch/internal/cli"
	"khoroch/internal/config"
	apphttp "khoroch/internal/http"
	applog "khoroch/internal/log"
	"khoroch/internal/metrics"
	"khoroch/internal/services"
	"khoroch/internal/session"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp, (*config.Config).Validate)

	creds, err := auth.ParseUsers(cfg.Users)
	if err != nil {
		logger.Error("Invalid user list", applog.FieldError, err)
		os.Exit(1)
	}
	names, _ := creds.Usernames(context.Background())
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", applog.FieldError, err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	store, err := cli.OpenStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open record store", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	sessions := session.NewManager(store, cfg.SessionTTL, cfg.MaxSessions,
		session.WithLogger(logger.WithComponent(applog.ComponentSession).Slog()))
	m := metrics.New(sessions.Active)

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	caches.Register("sessions", sessions.Cache())
	caches.StartCleanup(5 * time.Minute)

	opts := []services.Option{
		services.WithObserver(m),
		services.WithLogger(logger.WithComponent(applog.ComponentExpense).Slog()),
	}
	var publisher *amqp.Client
	if cfg.AMQPURL != "" {
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", applog.FieldError, err)
			os.Exit(1)
		}
		opts = append(opts, services.WithPublisher(publisher))
		logger.Info("Publishing change events", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}
	expenses := services.NewExpenseService(store, sessions, opts...)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Store:              store,
		Expenses:           expenses,
		Sessions:           sessions,
		Authenticator:      auth.NewPasswordAuthenticator(creds),
		Tokens:             auth.NewTokenManager(cfg.SessionSecret, cfg.SessionTTL),
		Names:              names,
		Metrics:            m,
		Logger:             logger,
		Location:           loc,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SecureCookies:      cfg.SecureCookies,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", applog.FieldError, err)
			}
		}
		if err := expenses.Close(); err != nil {
			logger.Warn("Failed to close record store", applog.FieldError, err)
		}
	})

	logger.Info("Starting khoroch server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"users", len(names),
		"timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
