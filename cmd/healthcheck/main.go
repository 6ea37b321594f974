// Command healthcheck runs one health-check sweep over every registered
// server, or keeps sweeping with -every. The sweep report is written to
// stdout as JSON; logs go to healthcheck.log and stderr.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/app"
	"github.com/hamed0406/uptimesli/internal/config"
	"github.com/hamed0406/uptimesli/internal/logging"
)

func main() {
	every := flag.Duration("every", 0, "repeat the sweep at this interval (0 runs once)")
	flag.Parse()
	os.Exit(run(*every))
}

// run owns every deferred cleanup so the exit code is returned only after
// the store is closed and the log flushed.
func run(every time.Duration) int {
	cfg, err := config.Load()
	if err != nil {
		log.Print(err)
		return 1
	}
	logger, err := logging.New(logging.Options{Dir: cfg.LogDir, File: "healthcheck.log", Level: cfg.LogLevel, Console: os.Stderr})
	if err != nil {
		log.Print(err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("app_init_error", zap.Error(err))
		return 1
	}
	defer a.Close()

	if every > 0 {
		a.Sweeper.Interval = every
		a.Sweeper.Run(ctx)
		return 0
	}

	start := time.Now()
	rep, err := a.Sweeper.RunOnce(ctx)
	if err != nil {
		logger.Error("healthcheck_failed", zap.Error(err))
		return 1
	}
	logger.Info("healthcheck_finished", zap.Duration("took", time.Since(start)))
	if err := json.NewEncoder(os.Stdout).Encode(rep); err != nil {
		logger.Error("report_write_error", zap.Error(err))
		return 1
	}
	return 0
}
