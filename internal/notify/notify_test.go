package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/domain"
)

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Send(context.Context, string, string) error {
	f.calls++
	return f.err
}

func TestStatusChange_Text(t *testing.T) {
	tgt := domain.Target{Name: "api", URL: "https://api.example.com"}
	subj, msg := StatusChange(tgt, false)
	if subj != "Server Alert: api" || msg != "Server api (https://api.example.com) is now DOWN" {
		t.Fatalf("down: %q / %q", subj, msg)
	}
	if _, msg := StatusChange(tgt, true); msg != "Server api (https://api.example.com) is now UP" {
		t.Fatalf("up: %q", msg)
	}
}

func TestMulti_SendsToAllAndJoinsErrors(t *testing.T) {
	a := &fakeNotifier{err: errors.New("a down")}
	b := &fakeNotifier{}
	c := &fakeNotifier{err: errors.New("c down")}

	err := Multi{a, nil, b, c}.Send(context.Background(), "s", "m")
	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Fatalf("every channel should be tried once: %d %d %d", a.calls, b.calls, c.calls)
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("want 2 joined errors, got %d (%v)", got, err)
	}
}

func TestWebhook_PostsSubjectAndMessage(t *testing.T) {
	var got webhookPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	w := NewWebhook(ts.URL)
	fixed := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }
	if err := w.Send(context.Background(), "Server Alert: api", "Server api (x) is now UP"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Subject != "Server Alert: api" || got.Message != "Server api (x) is now UP" || !got.SentAt.Equal(fixed) {
		t.Fatalf("payload: %+v", got)
	}
}

func TestFromURLs_FallsBackToLog(t *testing.T) {
	n := FromURLs("", "", zap.NewNop())
	if _, ok := n.(Log); !ok {
		t.Fatalf("want Log notifier, got %T", n)
	}
	if err := n.Send(context.Background(), "s", "m"); err != nil {
		t.Fatalf("log notifier should not fail: %v", err)
	}
	if m, ok := FromURLs("http://a", "http://b", zap.NewNop()).(Multi); !ok || len(m) != 2 {
		t.Fatalf("want two channels, got %T", m)
	}
}
