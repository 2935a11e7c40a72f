package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/concentration/internal/builder"
	appcfg "github.com/park285/concentration/internal/config"
	"github.com/park285/concentration/internal/httpapi"
	"github.com/park285/concentration/internal/obslog"
	"github.com/park285/concentration/internal/scheduler"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(obslog.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Console: cfg.LogConsole,
		File:    cfg.LogFile,
		Caller:  cfg.LogCaller,
	}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := builder.New(initCtx, cfg, logger)
	cancel()
	if err != nil {
		log.Fatalf("init error: %v", err)
	}

	deps.Worker.Start(ctx)

	sched, err := scheduler.New(ctx, scheduler.Config{
		ReminderCron:    cfg.ReminderCron,
		AverageInterval: cfg.AverageRefreshInterval,
	}, scheduler.Jobs{
		SendReminders:  deps.Service.SendReminders,
		RefreshAverage: deps.Service.RecomputeAverageMoves,
	}, logger.Named("scheduler"))
	if err != nil {
		log.Fatalf("scheduler init error: %v", err)
	}
	sched.Start()

	app := httpapi.New(deps.Service, logger.Named("http"))
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	failed := false
	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-errCh:
		logger.Error("http_server_failed", zap.Error(err))
		failed = true
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		logger.Warn("scheduler_shutdown_failed", zap.Error(err))
	}
	stop()
	if err := deps.Close(); err != nil {
		logger.Warn("deps_close_failed", zap.Error(err))
	}
	logger.Info("shutdown_complete")
	if failed {
		_ = logger.Sync()
		os.Exit(1)
	}
}
