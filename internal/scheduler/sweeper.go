package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/metrics"
	"github.com/hamed0406/uptimesli/internal/notify"
	"github.com/hamed0406/uptimesli/internal/probe"
	"github.com/hamed0406/uptimesli/internal/repo"
)

// Sweeper runs one health-check pass over every registered target:
// probe, persist, detect a status change, alert.
type Sweeper struct {
	Logger      *zap.Logger
	Targets     repo.TargetStore
	History     repo.HistoryStore
	Checker     probe.Checker
	Notifier    notify.Notifier
	Interval    time.Duration
	Concurrency int

	detector Detector
	now      func() time.Time

	// held for a whole pass
	running sync.Mutex
}

// ErrSweepInProgress is returned by TryRunOnce while another pass holds the sweeper.
var ErrSweepInProgress = errors.New("sweep in progress")

// SweepReport summarises one pass.
type SweepReport struct {
	Targets       int `json:"targets"`
	Persisted     int `json:"persisted"`
	Failed        int `json:"failed"`
	Alerts        int `json:"alerts"`
	AlertFailures int `json:"alert_failures"`
	Skipped       int `json:"skipped"`
}

func NewSweeper(
	logger *zap.Logger,
	ts repo.TargetStore,
	hs repo.HistoryStore,
	checker probe.Checker,
	notifier notify.Notifier,
	interval time.Duration,
	concurrency int,
) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	if interval < 0 {
		interval = 0
	}
	if notifier == nil {
		notifier = notify.Log{L: logger}
	}
	return &Sweeper{
		Logger:      logger,
		Targets:     ts,
		History:     hs,
		Checker:     checker,
		Notifier:    notifier,
		Interval:    interval,
		Concurrency: concurrency,
		detector:    Detector{History: hs},
		now:         time.Now,
	}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval == 0 {
		s.Logger.Info("sweeper_disabled")
		return
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("sweeper_stopped")
			return
		case <-t.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Sweeper) runLogged(ctx context.Context) {
	_, err := s.RunOnce(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		s.Logger.Info("sweep_cancelled", zap.Error(err))
	default:
		s.Logger.Warn("sweep_list_error", zap.Error(err))
	}
}

// TryRunOnce is RunOnce, except that it returns ErrSweepInProgress instead
// of waiting when another pass is running.
func (s *Sweeper) TryRunOnce(ctx context.Context) (SweepReport, error) {
	if !s.running.TryLock() {
		return SweepReport{}, ErrSweepInProgress
	}
	defer s.running.Unlock()
	return s.runOnce(ctx)
}

// RunOnce waits for any pass already in progress, then sweeps every target.
// It returns an error when the target list cannot be read or ctx ends
// mid-pass; every per-target failure is logged and counted in the report
// instead. Targets not reached before cancellation are counted as skipped
// and nothing is persisted or alerted for them.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	s.running.Lock()
	defer s.running.Unlock()
	return s.runOnce(ctx)
}

func (s *Sweeper) runOnce(ctx context.Context) (SweepReport, error) {
	start := s.now()
	if err := ctx.Err(); err != nil {
		return SweepReport{}, err
	}
	ts, err := s.Targets.List(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list targets: %w", err)
	}

	rep := SweepReport{Targets: len(ts)}
	var mu sync.Mutex
	record := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case o.skipped:
			rep.Skipped++
			return
		case o.persisted:
			rep.Persisted++
		default:
			rep.Failed++
		}
		if o.alerted {
			rep.Alerts++
		}
		if o.alertErr {
			rep.AlertFailures++
		}
	}

	if s.Concurrency == 1 {
		for _, t := range ts {
			record(s.sweepTarget(ctx, t))
		}
	} else {
		sem := make(chan struct{}, s.Concurrency)
		var wg sync.WaitGroup
		for _, tgt := range ts {
			t := tgt
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				record(outcome{skipped: true})
				continue
			}
			wg.Add(1)
			go func() {
				defer func() { <-sem }()
				defer wg.Done()
				record(s.sweepTarget(ctx, t))
			}()
		}
		wg.Wait()
	}

	metrics.ObserveSweep(s.now().Sub(start))
	s.Logger.Info("sweep_done",
		zap.Int("targets", rep.Targets),
		zap.Int("persisted", rep.Persisted),
		zap.Int("failed", rep.Failed),
		zap.Int("alerts", rep.Alerts),
		zap.Int("skipped", rep.Skipped),
	)
	if err := ctx.Err(); err != nil && rep.Skipped > 0 {
		return rep, fmt.Errorf("sweep interrupted: %w", err)
	}
	return rep, nil
}

type outcome struct {
	skipped   bool
	persisted bool
	alerted   bool
	alertErr  bool
}

// sweepTarget keeps the per-target steps in order: detection must see the
// record that was just appended. A result produced after ctx ended says
// nothing about the target and is dropped.
func (s *Sweeper) sweepTarget(ctx context.Context, t domain.Target) outcome {
	var o outcome
	if ctx.Err() != nil {
		return outcome{skipped: true}
	}
	res := s.Checker.Check(ctx, t.URL)
	if ctx.Err() != nil {
		s.Logger.Debug("sweep_result_dropped",
			zap.String("target_id", string(t.ID)),
			zap.Error(ctx.Err()),
		)
		return outcome{skipped: true}
	}
	res.TargetID = t.ID
	if res.CheckedAt.IsZero() {
		res.CheckedAt = s.now().UTC()
	}
	metrics.ObserveProbe(res)

	if err := s.History.Append(ctx, &res); err != nil {
		metrics.PersistErrors.Inc()
		s.Logger.Warn("sweep_append_error",
			zap.String("target_id", string(t.ID)),
			zap.String("url", t.URL),
			zap.Error(err),
		)
		return o
	}
	o.persisted = true
	s.Logger.Debug("sweep_probe_done",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
		zap.Int("status", res.StatusCode),
		zap.Bool("up", res.Up),
		zap.Float64("latency_ms", res.LatencyMS),
		zap.String("reason", res.Reason),
	)

	ch, err := s.detector.Detect(ctx, t.ID)
	if err != nil {
		s.Logger.Warn("sweep_detect_error", zap.String("target_id", string(t.ID)), zap.Error(err))
		return o
	}
	if !ch.Changed {
		return o
	}

	o.alerted = true
	subject, message := notify.StatusChange(t, ch.Up)
	err = s.Notifier.Send(ctx, subject, message)
	metrics.ObserveAlert(ch.Up, err)
	if err != nil {
		o.alertErr = true
		s.Logger.Warn("sweep_alert_error",
			zap.String("target_id", string(t.ID)),
			zap.Bool("up", ch.Up),
			zap.Error(err),
		)
		return o
	}
	s.Logger.Info("sweep_alert_sent",
		zap.String("target_id", string(t.ID)),
		zap.String("message", message),
	)
	return o
}
