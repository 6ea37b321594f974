// Package sli derives the rolling availability indicator from check history.
package sli

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/metrics"
	"github.com/hamed0406/uptimesli/internal/repo"
)

const (
	// Window is the trailing evaluation period.
	Window = 30 * 24 * time.Hour
	// Cadence is the nominal check interval used to derive the expected count.
	Cadence = 5 * time.Minute
)

// Compute summarises records for t over [now-window, now]. The second
// return value is false when there are no records; such a target gets no
// SliRecord at all.
func Compute(t domain.Target, records []domain.HistoryRecord, window time.Duration, now time.Time) (domain.SliRecord, bool) {
	if len(records) == 0 {
		return domain.SliRecord{}, false
	}
	windowMS := window.Milliseconds()
	expected := int(windowMS / Cadence.Milliseconds())

	var (
		successful int
		latencySum float64
	)
	for _, r := range records {
		if r.Up {
			successful++
			latencySum += r.LatencyMS
		}
	}

	actual := len(records)
	missing := expected - actual
	if missing < 0 {
		missing = 0
	}

	var sli float64
	if expected > 0 {
		sli = round2(float64(successful) / float64(expected) * 100)
	}
	var avg float64
	if successful > 0 {
		avg = round2(latencySum / float64(successful))
	}

	return domain.SliRecord{
		TargetID:         t.ID,
		TargetName:       t.Name,
		EvaluatedAt:      now.UTC(),
		Period:           domain.SLIPeriod,
		WindowMS:         windowMS,
		ExpectedChecks:   expected,
		ActualChecks:     actual,
		MissingChecks:    missing,
		SuccessfulChecks: successful,
		SLI:              sli,
		AvgResponseTime:  avg,
	}, true
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Aggregator writes one SliRecord per target that has history in the window.
type Aggregator struct {
	Logger  *zap.Logger
	Targets repo.TargetStore
	History repo.HistoryStore
	SLIs    repo.SliStore
	Window  time.Duration

	now func() time.Time
}

// Report summarises one evaluation.
type Report struct {
	Targets int `json:"targets"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func NewAggregator(logger *zap.Logger, ts repo.TargetStore, hs repo.HistoryStore, ss repo.SliStore) *Aggregator {
	return &Aggregator{
		Logger:  logger,
		Targets: ts,
		History: hs,
		SLIs:    ss,
		Window:  Window,
		now:     time.Now,
	}
}

// RunOnce evaluates every target. Only a failure to list targets is returned;
// per-target store errors are logged and that target is skipped.
func (a *Aggregator) RunOnce(ctx context.Context) (Report, error) {
	ts, err := a.Targets.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list targets: %w", err)
	}
	now := a.now()
	rep := Report{Targets: len(ts)}

	for _, t := range ts {
		recs, err := a.History.QueryWindow(ctx, t.ID, now.Add(-a.Window), now, repo.QueryOptions{})
		if err != nil {
			rep.Failed++
			a.Logger.Warn("sli_query_error", zap.String("target_id", string(t.ID)), zap.Error(err))
			continue
		}
		rec, ok := Compute(t, recs, a.Window, now)
		if !ok {
			rep.Skipped++
			a.Logger.Debug("sli_no_history", zap.String("target_id", string(t.ID)))
			continue
		}
		if err := a.SLIs.AppendSLI(ctx, &rec); err != nil {
			rep.Failed++
			a.Logger.Warn("sli_append_error", zap.String("target_id", string(t.ID)), zap.Error(err))
			continue
		}
		rep.Written++
		metrics.ObserveSLI(rec)
		a.Logger.Info("sli_evaluated",
			zap.String("target_id", string(t.ID)),
			zap.Float64("sli", rec.SLI),
			zap.Int("actual", rec.ActualChecks),
			zap.Int("missing", rec.MissingChecks),
			zap.Float64("avg_response_ms", rec.AvgResponseTime),
		)
	}
	return rep, nil
}

// Run evaluates immediately and then every interval until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		a.Logger.Info("sli_loop_disabled")
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := a.RunOnce(ctx); err != nil {
			a.Logger.Warn("sli_list_error", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
