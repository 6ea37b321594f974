package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/repo/bolt"
	"github.com/hamed0406/uptimesli/internal/scheduler"
)

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) []byte {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	done := make(chan []byte)
	go func() {
		b, _ := io.ReadAll(r)
		done <- b
	}()
	fn()
	w.Close()
	return <-done
}

func env(t *testing.T, storePath string) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_DIR", t.TempDir())
	t.Setenv("STORE_DRIVER", "bolt")
	t.Setenv("STORE_PATH", storePath)
	t.Setenv("DIAGNOSE_DNS", "false")
}

func TestRun_StdoutCarriesOnlyTheReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "uptime.db")
	st, err := bolt.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.Add(context.Background(), &domain.Target{Name: "local", URL: srv.URL}); err != nil {
		t.Fatalf("add: %v", err)
	}
	st.Close()
	env(t, path)

	var code int
	out := captureStdout(t, func() { code = run(0) })
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}

	dec := json.NewDecoder(bytes.NewReader(out))
	var rep scheduler.SweepReport
	if err := dec.Decode(&rep); err != nil {
		t.Fatalf("stdout is not a report: %v\n%s", err, out)
	}
	if rep.Targets != 1 || rep.Persisted != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if dec.More() {
		t.Fatalf("log lines leaked onto stdout:\n%s", out)
	}

	// bolt holds an exclusive file lock until the store is closed
	again, err := bolt.Open(path)
	if err != nil {
		t.Fatalf("store left open after run: %v", err)
	}
	again.Close()
}

func TestRun_FailureReturnsNonZero(t *testing.T) {
	env(t, filepath.Join(t.TempDir(), "uptime.db"))
	t.Setenv("STORE_DRIVER", "cassandra")
	var code int
	out := captureStdout(t, func() { code = run(0) })
	if code != 1 {
		t.Fatalf("want exit code 1, got %d", code)
	}
	if len(out) != 0 {
		t.Fatalf("nothing should reach stdout on failure, got %q", out)
	}
}
