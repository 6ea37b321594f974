package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/config"
	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/notify"
)

// One sweep and one SLI evaluation against a live local server.
func TestApp_EndToEnd(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"activity": 3, "active_games": [1, 2]}`))
	}))
	defer ts.Close()

	cfg := config.Defaults()
	ctx := context.Background()
	a, err := New(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, ok := a.Notifier.(notify.Log); !ok {
		t.Fatalf("without webhooks alerts should go to the log, got %T", a.Notifier)
	}

	tgt := &domain.Target{Name: "local", URL: ts.URL}
	if err := a.Store.Add(ctx, tgt); err != nil {
		t.Fatal(err)
	}
	rep, err := a.Sweeper.RunOnce(ctx)
	if err != nil || rep.Persisted != 1 {
		t.Fatalf("sweep: %+v %v", rep, err)
	}
	recs, _ := a.Store.QueryLatest(ctx, tgt.ID, 1)
	if len(recs) != 1 || !recs[0].Up || recs[0].Metrics[domain.MetricActiveGames] != 2 {
		t.Fatalf("unexpected record: %+v", recs)
	}

	srep, err := a.Aggregator.RunOnce(ctx)
	if err != nil || srep.Written != 1 {
		t.Fatalf("sli: %+v %v", srep, err)
	}
}
