// Command sli writes one 30-day SLI record per server with history, or keeps
// evaluating with -every. The run report is written to stdout as JSON; logs
// go to sli.log and stderr.
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
	every := flag.Duration("every", 0, "repeat the evaluation at this interval (0 runs once)")
	flag.Parse()
	os.Exit(run(*every))
}

func run(every time.Duration) int {
	cfg, err := config.Load()
	if err != nil {
		log.Print(err)
		return 1
	}
	logger, err := logging.New(logging.Options{Dir: cfg.LogDir, File: "sli.log", Level: cfg.LogLevel, Console: os.Stderr})
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
		a.Aggregator.Run(ctx, every)
		return 0
	}

	rep, err := a.Aggregator.RunOnce(ctx)
	if err != nil {
		logger.Error("sli_failed", zap.Error(err))
		return 1
	}
	if err := json.NewEncoder(os.Stdout).Encode(rep); err != nil {
		logger.Error("report_write_error", zap.Error(err))
		return 1
	}
	return 0
}
