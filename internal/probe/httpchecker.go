package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"time"

	"github.com/hamed0406/uptimesli/internal/domain"
)

const (
	// DefaultTimeout bounds one probe from request start to response headers.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent on every probe.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.3"

	maxBodyBytes = 1 << 20
)

// Reasons recorded on results.
const (
	ReasonHTTPStatus = "http_status"
	ReasonTimeout    = "timeout"
	ReasonTransport  = "http_error"
	ReasonTLS        = "tls_error"
	ReasonCertExpiry = "cert_expired"
)

type HTTPChecker struct {
	Client      *http.Client
	Timeout     time.Duration
	UserAgent   string
	DiagnoseDNS bool

	now func() time.Time
}

type Option func(*HTTPChecker)

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(h *HTTPChecker) {
		if ua != "" {
			h.UserAgent = ua
		}
	}
}

// WithTLSConfig sets the base TLS configuration (root pool, skip-verify).
func WithTLSConfig(cfg *tls.Config) Option {
	return func(h *HTTPChecker) {
		h.transport().TLSClientConfig = cfg.Clone()
	}
}

// WithClock replaces time.Now for latency measurement and certificate expiry.
func WithClock(now func() time.Time) Option {
	return func(h *HTTPChecker) { h.now = now }
}

// WithDNSDiagnosis appends a DNS classification to transport failure reasons.
func WithDNSDiagnosis(on bool) Option {
	return func(h *HTTPChecker) { h.DiagnoseDNS = on }
}

func NewHTTPChecker(timeout time.Duration, opts ...Option) *HTTPChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := &HTTPChecker{
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				// every probe performs its own handshake so the certificate is always inspected
				DisableKeepAlives: true,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Timeout:   timeout,
		UserAgent: DefaultUserAgent,
		now:       time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *HTTPChecker) transport() *http.Transport {
	if t, ok := h.Client.Transport.(*http.Transport); ok {
		return t
	}
	t := &http.Transport{DisableKeepAlives: true}
	h.Client.Transport = t
	return t
}

// Check performs one GET against target. The returned result always carries
// a non-negative latency and exactly one of a real HTTP status, the
// transport sentinel or the TLS sentinel.
func (h *HTTPChecker) Check(ctx context.Context, target string) domain.CheckResult {
	start := h.now()
	elapsed := func() float64 {
		ms := float64(h.now().Sub(start)) / float64(time.Millisecond)
		if ms < 0 {
			return 0
		}
		return ms
	}
	base := domain.CheckResult{CheckedAt: start.UTC()}

	pctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	slot := &verdict{}
	if isHTTPS(target) {
		insp := &certInspector{now: h.now, slot: slot, abort: cancel, base: base, elapsed: elapsed}
		pctx = httptrace.WithClientTrace(pctx, insp.trace())
	}

	req, err := http.NewRequestWithContext(pctx, http.MethodGet, target, nil)
	if err != nil {
		res := base
		res.StatusCode = domain.StatusTransportFailure
		res.Reason = err.Error()
		return res
	}
	req.Header.Set("User-Agent", h.UserAgent)

	resp, err := h.Client.Do(req)
	if err != nil {
		if slot.held() {
			return slot.result()
		}
		slot.claim(h.failure(ctx, pctx, base, target, err, elapsed()), false)
		return slot.result()
	}
	defer resp.Body.Close()

	res := base
	res.LatencyMS = elapsed()
	res.StatusCode = resp.StatusCode
	res.Up = resp.StatusCode < 400
	res.Reason = ReasonHTTPStatus
	if res.Up && !slot.held() {
		if body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes)); err == nil {
			res.Metrics = extractMetrics(body)
		}
	}
	slot.claim(res, false)
	return slot.result()
}

func (h *HTTPChecker) failure(parent, pctx context.Context, base domain.CheckResult, target string, err error, latency float64) domain.CheckResult {
	res := base
	res.Up = false
	res.LatencyMS = latency

	switch {
	case isTLSTrustError(err):
		res.StatusCode = domain.StatusTLSFailure
		res.Reason = ReasonTLS + ": " + rootCause(err).Error()
		return res
	case errors.Is(pctx.Err(), context.DeadlineExceeded) && parent.Err() == nil:
		res.StatusCode = domain.StatusTransportFailure
		res.LatencyMS = float64(h.Timeout / time.Millisecond)
		res.Reason = ReasonTimeout
		return res
	}

	res.StatusCode = domain.StatusTransportFailure
	res.Reason = ReasonTransport
	if !h.DiagnoseDNS || parent.Err() != nil {
		return res
	}
	// the diagnosis shares the check's budget
	left := h.Timeout - time.Duration(latency*float64(time.Millisecond))
	if left <= 0 {
		return res
	}
	dctx, cancel := context.WithTimeout(parent, left)
	defer cancel()
	res.Reason = fmt.Sprintf("%s dns=%s", ReasonTransport, classifyDNS(dctx, extractHost(target)))
	return res
}

func isHTTPS(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "https"
}

// isTLSTrustError reports chain, validity-period and hostname failures.
// Handshake protocol errors are plain transport failures.
func isTLSTrustError(err error) bool {
	var (
		cve      *tls.CertificateVerificationError
		unknown  x509.UnknownAuthorityError
		invalid  x509.CertificateInvalidError
		hostname x509.HostnameError
		roots    x509.SystemRootsError
	)
	return errors.As(err, &cve) ||
		errors.As(err, &unknown) ||
		errors.As(err, &invalid) ||
		errors.As(err, &hostname) ||
		errors.As(err, &roots)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
