package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/app"
	"github.com/hamed0406/uptimesli/internal/config"
	"github.com/hamed0406/uptimesli/internal/httpapi"
	apimw "github.com/hamed0406/uptimesli/internal/httpapi/middleware"
	"github.com/hamed0406/uptimesli/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: os.Stdout})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("app_init_error", zap.Error(err))
	}
	defer a.Close()

	api := httpapi.NewServer(logger, a.Store, a.Store, a.Store, a.Checker)
	api.Sweeper = a.Sweeper
	api.SLI = a.Aggregator

	// in-process triggers; both are no-ops when their interval is 0
	go a.Sweeper.Run(ctx)
	go a.Aggregator.Run(ctx, cfg.SLIInterval)

	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.CORSOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.StoreDriver),
		zap.Duration("check_interval", cfg.CheckInterval),
		zap.Duration("sli_interval", cfg.SLIInterval),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_listen_error", zap.Error(err))
	}
	logger.Info("api_stopped")
}
