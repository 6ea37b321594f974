// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/uptimesli/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load()
	if err != nil {
		fail(err.Error())
	}

	if len(cfg.AdminAPIKeys) == 0 {
		fail("ADMIN_API_KEYS is empty (admin routes are open).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty; only admin keys can read.")
	}
	for name, v := range map[string]string{"ADMIN_API_KEYS": os.Getenv("ADMIN_API_KEYS"), "PUBLIC_API_KEYS": os.Getenv("PUBLIC_API_KEYS")} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; they are trimmed, but key1,key2 is the expected form")
		}
	}

	ok("ADDR=" + cfg.Addr)
	ok("store=" + cfg.StoreDriver)
	if cfg.StoreDriver == config.DriverMemory {
		warn("in-memory store: history and SLI records are lost on restart.")
	}

	ok("probe timeout=" + cfg.HTTPTimeout.String())
	if cfg.CheckInterval == 0 {
		warn("CHECK_INTERVAL_MS is 0; sweeps only run via cmd/healthcheck or POST /api/runs/healthcheck.")
	} else {
		ok("check interval=" + cfg.CheckInterval.String())
	}
	if cfg.SLIInterval == 0 {
		warn("SLI_INTERVAL_MS is 0; SLI records only come from cmd/sli or POST /api/runs/sli.")
	}

	if cfg.SlackWebhookURL == "" && cfg.AlertWebhookURL == "" {
		warn("no SLACK_WEBHOOK_URL or ALERT_WEBHOOK_URL; alerts go to the log only.")
	}

	if os.Getenv("ALLOWED_ORIGINS") == "" {
		warn("ALLOWED_ORIGINS empty; any origin is allowed.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.CORSOrigins, ","))
	}

	ok("preflight passed")
}
