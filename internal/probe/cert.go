package probe

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/hamed0406/uptimesli/internal/domain"
)

// verdict is a single-assignment result slot shared by the response path and
// the certificate inspector. The first claim wins, except that a priority
// claim replaces a non-priority one.
type verdict struct {
	mu       sync.Mutex
	set      bool
	priority bool
	res      domain.CheckResult
}

func (v *verdict) claim(res domain.CheckResult, priority bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.set && (v.priority || !priority) {
		return false
	}
	v.set = true
	v.priority = priority
	v.res = res
	return true
}

func (v *verdict) held() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.set
}

func (v *verdict) result() domain.CheckResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.res
}

// certInspector checks the leaf certificate's expiry as soon as the TLS
// handshake completes, before any response is read. An expired certificate
// aborts the request and claims the verdict with the TLS sentinel.
type certInspector struct {
	now     func() time.Time
	slot    *verdict
	abort   context.CancelFunc
	base    domain.CheckResult
	elapsed func() float64
}

func (c *certInspector) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err != nil {
				return
			}
			c.inspect(state)
		},
	}
}

func (c *certInspector) inspect(state tls.ConnectionState) {
	if len(state.PeerCertificates) == 0 {
		return
	}
	leaf := state.PeerCertificates[0]
	if leaf.NotAfter.After(c.now()) {
		return
	}
	res := c.base
	res.Up = false
	res.StatusCode = domain.StatusTLSFailure
	res.LatencyMS = c.elapsed()
	res.Reason = ReasonCertExpiry + ": not after " + leaf.NotAfter.UTC().Format(time.RFC3339)
	if c.slot.claim(res, true) {
		c.abort()
	}
}
