// Package repotest holds the behaviour every repo.Store backend must share.
package repotest

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/repo"
)

// Run exercises targets, history and SLI storage against a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) repo.Store) {
	t.Run("targets", func(t *testing.T) { testTargets(t, newStore(t)) })
	t.Run("history_order", func(t *testing.T) { testHistoryOrder(t, newStore(t)) })
	t.Run("history_ties_and_duplicates", func(t *testing.T) { testHistoryTies(t, newStore(t)) })
	t.Run("history_fields", func(t *testing.T) { testHistoryFields(t, newStore(t)) })
	t.Run("sli", func(t *testing.T) { testSLI(t, newStore(t)) })
}

var base = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func testTargets(t *testing.T, s repo.Store) {
	ctx := context.Background()
	defer s.Close()

	tgt := &domain.Target{Name: "api", URL: "https://example.com"}
	if err := s.Add(ctx, tgt); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if tgt.ID == "" || tgt.CreatedAt.IsZero() {
		t.Fatalf("expected ID and CreatedAt to be set: %+v", tgt)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].ID != tgt.ID || all[0].Name != "api" || all[0].URL != "https://example.com" {
		t.Fatalf("unexpected list: %+v", all)
	}

	got, err := s.Get(ctx, tgt.ID)
	if err != nil || got.URL != tgt.URL {
		t.Fatalf("Get: %+v err=%v", got, err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Get missing: want ErrNotFound, got %v", err)
	}

	if err := s.Delete(ctx, tgt.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, tgt.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Delete twice: want ErrNotFound, got %v", err)
	}
	if all, _ := s.List(ctx); len(all) != 0 {
		t.Fatalf("expected empty registry, got %+v", all)
	}
}

func appendAt(t *testing.T, s repo.HistoryStore, id domain.TargetID, at time.Time, up bool, code int) {
	t.Helper()
	r := &domain.CheckResult{TargetID: id, Up: up, StatusCode: code, LatencyMS: 10, CheckedAt: at}
	if err := s.Append(context.Background(), r); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func testHistoryOrder(t *testing.T, s repo.Store) {
	ctx := context.Background()
	defer s.Close()

	// out of order on purpose
	appendAt(t, s, "T1", base.Add(2*time.Minute), false, 500)
	appendAt(t, s, "T1", base, true, 200)
	appendAt(t, s, "T1", base.Add(time.Minute), true, 201)
	appendAt(t, s, "T2", base.Add(time.Minute), true, 299)

	asc, err := s.QueryWindow(ctx, "T1", base, base.Add(2*time.Minute), repo.QueryOptions{})
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	if codes(asc) != "200,201,500" {
		t.Fatalf("want ascending 200,201,500 got %s", codes(asc))
	}

	desc, err := s.QueryWindow(ctx, "T1", base, base.Add(2*time.Minute), repo.QueryOptions{Limit: 2, Descending: true})
	if err != nil {
		t.Fatalf("QueryWindow desc: %v", err)
	}
	if codes(desc) != "500,201" {
		t.Fatalf("want descending 500,201 got %s", codes(desc))
	}

	inner, _ := s.QueryWindow(ctx, "T1", base.Add(time.Second), base.Add(time.Minute), repo.QueryOptions{})
	if codes(inner) != "201" {
		t.Fatalf("window bounds wrong, got %s", codes(inner))
	}

	latest, err := s.QueryLatest(ctx, "T1", 2)
	if err != nil {
		t.Fatalf("QueryLatest: %v", err)
	}
	if codes(latest) != "500,201" {
		t.Fatalf("want latest 500,201 got %s", codes(latest))
	}

	other, _ := s.QueryLatest(ctx, "T2", 5)
	if codes(other) != "299" {
		t.Fatalf("partition leak: %s", codes(other))
	}
	none, _ := s.QueryLatest(ctx, "T3", 2)
	if len(none) != 0 {
		t.Fatalf("want no records for unknown target, got %d", len(none))
	}
}

func testHistoryTies(t *testing.T, s repo.Store) {
	ctx := context.Background()
	defer s.Close()

	appendAt(t, s, "T1", base, true, 200)
	appendAt(t, s, "T1", base, false, 503)
	appendAt(t, s, "T1", base, false, 503)

	all, err := s.QueryWindow(ctx, "T1", base, base, repo.QueryOptions{})
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	if codes(all) != "200,503,503" {
		t.Fatalf("want insertion order with duplicates kept, got %s", codes(all))
	}
	latest, _ := s.QueryLatest(ctx, "T1", 1)
	if len(latest) != 1 || latest[0].StatusCode != 503 {
		t.Fatalf("want last inserted as latest, got %+v", latest)
	}
}

func testHistoryFields(t *testing.T, s repo.Store) {
	ctx := context.Background()
	defer s.Close()

	in := &domain.CheckResult{
		TargetID:   "T1",
		Up:         false,
		StatusCode: domain.StatusTLSFailure,
		LatencyMS:  12.5,
		Reason:     "tls_error: x509",
		Metrics:    map[string]float64{domain.MetricActivity: 42, domain.MetricActiveGames: 3},
		CheckedAt:  base,
	}
	if err := s.Append(ctx, in); err != nil {
		t.Fatalf("Append: %v", err)
	}
	out, err := s.QueryLatest(ctx, "T1", 1)
	if err != nil || len(out) != 1 {
		t.Fatalf("QueryLatest: %v %+v", err, out)
	}
	got := out[0]
	if got.Up || got.StatusCode != -1 || got.LatencyMS != 12.5 || got.Reason != in.Reason || !got.CheckedAt.Equal(base) {
		t.Fatalf("field mismatch: %+v", got)
	}
	if got.Metrics[domain.MetricActivity] != 42 || got.Metrics[domain.MetricActiveGames] != 3 {
		t.Fatalf("metrics mismatch: %v", got.Metrics)
	}

	plain := &domain.CheckResult{TargetID: "T1", Up: true, StatusCode: 200, CheckedAt: base.Add(time.Minute)}
	if err := s.Append(ctx, plain); err != nil {
		t.Fatalf("Append plain: %v", err)
	}
	out, _ = s.QueryLatest(ctx, "T1", 1)
	if len(out[0].Metrics) != 0 {
		t.Fatalf("want no metrics on plain record, got %v", out[0].Metrics)
	}
}

func testSLI(t *testing.T, s repo.Store) {
	ctx := context.Background()
	defer s.Close()

	if _, err := s.LatestSLI(ctx, "T1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	for i, v := range []float64{99.5, 87.96} {
		r := &domain.SliRecord{
			TargetID:         "T1",
			TargetName:       "api",
			EvaluatedAt:      base.Add(time.Duration(i) * 24 * time.Hour),
			Period:           domain.SLIPeriod,
			WindowMS:         30 * 24 * 3600 * 1000,
			ExpectedChecks:   8640,
			ActualChecks:     8000,
			MissingChecks:    640,
			SuccessfulChecks: 7600,
			SLI:              v,
			AvgResponseTime:  120.25,
		}
		if err := s.AppendSLI(ctx, r); err != nil {
			t.Fatalf("AppendSLI: %v", err)
		}
	}
	got, err := s.LatestSLI(ctx, "T1")
	if err != nil {
		t.Fatalf("LatestSLI: %v", err)
	}
	if got.SLI != 87.96 || got.MissingChecks != 640 || got.Period != domain.SLIPeriod || got.TargetName != "api" {
		t.Fatalf("unexpected latest SLI: %+v", got)
	}
}

func codes(rs []domain.HistoryRecord) string {
	out := ""
	for i, r := range rs {
		if i > 0 {
			out += ","
		}
		out += strconv.Itoa(r.StatusCode)
	}
	return out
}
