package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/domain"
	apimw "github.com/hamed0406/uptimesli/internal/httpapi/middleware"
	"github.com/hamed0406/uptimesli/internal/metrics"
	"github.com/hamed0406/uptimesli/internal/repo/memory"
	"github.com/hamed0406/uptimesli/internal/scheduler"
	"github.com/hamed0406/uptimesli/internal/sli"
)

// ---- test helpers ----

type fakeChecker struct {
	out domain.CheckResult
}

func (f *fakeChecker) Check(_ context.Context, _ string) domain.CheckResult {
	out := f.out
	out.CheckedAt = time.Now().UTC()
	return out
}

type fixture struct {
	ts    *httptest.Server
	store *memory.Store
	srv   *Server
}

func setup(t *testing.T, chk *fakeChecker) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()

	srv := NewServer(log, store, store, store, chk)
	srv.Sweeper = scheduler.NewSweeper(log, store, store, chk, nil, 0, 1)
	srv.SLI = sli.NewAggregator(log, store, store, store)

	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(keys, nil, 10_000, 10_000, 10_000, 10_000))
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, store: store, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, key string, body []byte) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, _ := http.NewRequest(method, f.ts.URL+path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

var okResult = domain.CheckResult{Up: true, StatusCode: 200, LatencyMS: 12.5, Reason: "http_status"}

// ---- tests ----

func TestAddServer_OK_Duplicate_Invalid(t *testing.T) {
	f := setup(t, &fakeChecker{out: okResult})

	resp := f.do(t, http.MethodPost, "/api/servers", "adm_test", []byte(`{"name":"Example","url":"https://example.com"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}
	var add struct {
		Server  domain.Target      `json:"server"`
		Summary domain.CheckResult `json:"summary"`
	}
	decode(t, resp, &add)
	if add.Server.ID == "" || add.Server.Name != "Example" || add.Server.URL != "https://example.com" {
		t.Fatalf("unexpected server: %+v", add.Server)
	}
	if !add.Summary.Up || add.Summary.StatusCode != 200 || add.Summary.TargetID != add.Server.ID {
		t.Fatalf("unexpected summary: %+v", add.Summary)
	}

	if resp := f.do(t, http.MethodPost, "/api/servers", "adm_test", []byte(`{"name":"dup","url":"https://EXAMPLE.com/"}`)); resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409 on duplicate, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/servers", "adm_test", []byte(`{"url":"ftp://bad"}`)); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 on invalid URL, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/servers", "pub_test", []byte(`{"url":"https://other.com"}`)); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("public key must not write, got %d", resp.StatusCode)
	}
}

func TestAddServer_NameDefaultsToHost(t *testing.T) {
	f := setup(t, &fakeChecker{out: okResult})
	resp := f.do(t, http.MethodPost, "/api/servers", "adm_test", []byte(`{"url":"https://api.example.com/health"}`))
	var add struct {
		Server domain.Target `json:"server"`
	}
	decode(t, resp, &add)
	if add.Server.Name != "api.example.com" {
		t.Fatalf("name=%q", add.Server.Name)
	}
}

func TestStatus_DefaultsForUncheckedServer(t *testing.T) {
	f := setup(t, &fakeChecker{out: okResult})
	f.do(t, http.MethodPost, "/api/servers", "adm_test", []byte(`{"name":"a","url":"https://a.example.com"}`))
	// registered without an immediate check
	if err := f.store.Add(context.Background(), &domain.Target{Name: "b", URL: "https://b.example.com"}); err != nil {
		t.Fatal(err)
	}

	resp := f.do(t, http.MethodGet, "/api/status", "pub_test", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var rows []statusRow
	decode(t, resp, &rows)
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
	byName := map[string]statusRow{}
	for _, r := range rows {
		byName[r.Name] = r
	}
	if a := byName["a"]; !a.Up || a.Latency != 12.5 || a.StatusCode != 200 {
		t.Fatalf("unexpected row a: %+v", a)
	}
	if b := byName["b"]; b.Up || b.Latency != 0 || b.CheckedAt != nil {
		t.Fatalf("unchecked server should be down with zero latency: %+v", b)
	}
}

func TestHistory_LastFiftyAscending(t *testing.T) {
	f := setup(t, &fakeChecker{out: okResult})
	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		r := &domain.CheckResult{TargetID: "T1", Up: true, StatusCode: 200 + i, CheckedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := f.store.Append(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	resp := f.do(t, http.MethodGet, "/api/history/T1", "pub_test", nil)
	var recs []domain.HistoryRecord
	decode(t, resp, &recs)
	if len(recs) != 50 {
		t.Fatalf("want 50 records, got %d", len(recs))
	}
	if recs[0].StatusCode != 210 || recs[49].StatusCode != 259 {
		t.Fatalf("want oldest-first window 210..259, got %d..%d", recs[0].StatusCode, recs[49].StatusCode)
	}

	empty := f.do(t, http.MethodGet, "/api/history/none", "pub_test", nil)
	var none []domain.HistoryRecord
	decode(t, empty, &none)
	if none == nil || len(none) != 0 {
		t.Fatalf("want empty array, got %v", none)
	}
}

func TestRunsAndSLI(t *testing.T) {
	f := setup(t, &fakeChecker{out: okResult})
	f.do(t, http.MethodPost, "/api/servers", "adm_test", []byte(`{"name":"a","url":"https://a.example.com"}`))

	var list []domain.Target
	decode(t, f.do(t, http.MethodGet, "/api/servers", "pub_test", nil), &list)
	if len(list) != 1 {
		t.Fatalf("want one server, got %d", len(list))
	}
	id := string(list[0].ID)

	if resp := f.do(t, http.MethodGet, "/api/sli/"+id, "pub_test", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 before evaluation, got %d", resp.StatusCode)
	}

	resp := f.do(t, http.MethodPost, "/api/runs/healthcheck", "adm_test", nil)
	var rep scheduler.SweepReport
	decode(t, resp, &rep)
	if resp.StatusCode != 200 || rep.Targets != 1 || rep.Persisted != 1 || rep.Alerts != 0 {
		t.Fatalf("unexpected sweep: %d %+v", resp.StatusCode, rep)
	}

	resp = f.do(t, http.MethodPost, "/api/runs/sli", "adm_test", nil)
	var srep sli.Report
	decode(t, resp, &srep)
	if resp.StatusCode != 200 || srep.Written != 1 {
		t.Fatalf("unexpected sli run: %d %+v", resp.StatusCode, srep)
	}

	resp = f.do(t, http.MethodGet, "/api/sli/"+id, "pub_test", nil)
	var rec domain.SliRecord
	decode(t, resp, &rec)
	if rec.ActualChecks != 2 || rec.SuccessfulChecks != 2 || rec.ExpectedChecks != 8640 || rec.AvgResponseTime != 12.5 {
		t.Fatalf("unexpected sli record: %+v", rec)
	}
}

func TestDeleteServer(t *testing.T) {
	f := setup(t, &fakeChecker{out: okResult})
	tgt := &domain.Target{Name: "a", URL: "https://a.example.com"}
	if err := f.store.Add(context.Background(), tgt); err != nil {
		t.Fatal(err)
	}
	metrics.ObserveSLI(domain.SliRecord{TargetID: tgt.ID, TargetName: tgt.Name, SLI: 42})
	if resp := f.do(t, http.MethodDelete, "/api/servers/"+string(tgt.ID), "adm_test", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", resp.StatusCode)
	}
	if n := metrics.ForgetTarget(tgt.ID); n != 0 {
		t.Fatalf("sli gauge outlived its target: %d series left", n)
	}
	if resp := f.do(t, http.MethodDelete, "/api/servers/"+string(tgt.ID), "adm_test", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
}

func TestOpenEndpointsAndAuth(t *testing.T) {
	f := setup(t, &fakeChecker{out: okResult})
	for _, p := range []string{"/healthz", "/metrics"} {
		if resp := f.do(t, http.MethodGet, p, "", nil); resp.StatusCode != 200 {
			t.Fatalf("%s: want 200, got %d", p, resp.StatusCode)
		}
	}
	if resp := f.do(t, http.MethodGet, "/api/servers", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 without key, got %d", resp.StatusCode)
	}
}

func TestRuns_DisabledWithoutTriggers(t *testing.T) {
	f := setup(t, &fakeChecker{out: okResult})
	f.srv.Sweeper = nil
	f.srv.SLI = nil
	for _, p := range []string{"/api/runs/healthcheck", "/api/runs/sli"} {
		if resp := f.do(t, http.MethodPost, p, "adm_test", nil); resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("%s: want 503, got %d", p, resp.StatusCode)
		}
	}
}

// blockingChecker parks every check until release is closed.
type blockingChecker struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingChecker) Check(_ context.Context, _ string) domain.CheckResult {
	b.entered <- struct{}{}
	<-b.release
	out := okResult
	out.CheckedAt = time.Now().UTC()
	return out
}

func TestRunHealthcheck_ConflictWhileSweeping(t *testing.T) {
	f := setup(t, &fakeChecker{out: okResult})
	if err := f.store.Add(context.Background(), &domain.Target{Name: "a", URL: "https://a.example.com"}); err != nil {
		t.Fatal(err)
	}
	bc := &blockingChecker{entered: make(chan struct{}, 4), release: make(chan struct{})}
	f.srv.Sweeper = scheduler.NewSweeper(zap.NewNop(), f.store, f.store, bc, nil, 0, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.srv.Sweeper.RunOnce(context.Background())
		done <- err
	}()
	<-bc.entered

	resp := f.do(t, http.MethodPost, "/api/runs/healthcheck", "adm_test", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409 while a sweep runs, got %d", resp.StatusCode)
	}
	close(bc.release)
	if err := <-done; err != nil {
		t.Fatalf("background sweep: %v", err)
	}
	if resp := f.do(t, http.MethodPost, "/api/runs/healthcheck", "adm_test", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200 once idle, got %d", resp.StatusCode)
	}
}
