package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"discharge-assistant/internal/app"
	"discharge-assistant/internal/config"
	"discharge-assistant/internal/core"
	httpserver "discharge-assistant/internal/http"
	"discharge-assistant/internal/logging"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
	cfg := config.Load()

	var extra []io.Writer
	if cfg.AuditLogFile != "" {
		f, err := logging.OpenLogFile(cfg.AuditLogFile)
		if err == nil {
			defer f.Close()
			extra = append(extra, f)
		}
	}
	logger := logging.New(cfg.LogLevel, extra...)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build assistant", zap.Error(err))
	}
	defer a.Close()

	if err := a.WatchPatients(ctx); err != nil {
		logger.Warn("patients file watch disabled", zap.Error(err))
	}

	srv := httpserver.NewServer(
		core.NewSessions(10000),
		a.Orchestrator,
		a.Directory,
		promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		logger,
	)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", httpSrv.Addr))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
