package domain

import "time"

type TargetID string

// Target is a monitored endpoint. The registry owns it; sweeps treat it as read-only.
type Target struct {
	ID        TargetID  `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Sentinel status codes for failures that never produced an HTTP response.
const (
	StatusTransportFailure = 0
	StatusTLSFailure       = -1
)

// Failure classes reported by CheckResult.Class.
const (
	ClassHTTP      = "http"
	ClassTransport = "transport"
	ClassTLS       = "tls"
)

// Extension metric keys extracted from JSON response bodies.
const (
	MetricActivity       = "activity"
	MetricActiveGames    = "activeGames"
	MetricRunningMatches = "runningMatches"
)

// CheckResult is the outcome of one probe. Once appended to a history store it
// becomes a history record and is never mutated.
type CheckResult struct {
	TargetID   TargetID           `json:"target_id"`
	Up         bool               `json:"up"`
	StatusCode int                `json:"status_code"`
	LatencyMS  float64            `json:"latency_ms"`
	Reason     string             `json:"reason,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	CheckedAt  time.Time          `json:"checked_at"`
}

// Class tells which of the three outcome kinds applies to the result.
func (r CheckResult) Class() string {
	switch r.StatusCode {
	case StatusTransportFailure:
		return ClassTransport
	case StatusTLSFailure:
		return ClassTLS
	default:
		return ClassHTTP
	}
}

// HistoryRecord is a persisted CheckResult, partitioned by TargetID and sorted by CheckedAt.
type HistoryRecord = CheckResult

// SLIPeriod labels the fixed evaluation window.
const SLIPeriod = "30days"

// SliRecord summarises one target's availability over the trailing window.
type SliRecord struct {
	TargetID         TargetID  `json:"target_id"`
	TargetName       string    `json:"target_name"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
	Period           string    `json:"period"`
	WindowMS         int64     `json:"window_ms"`
	ExpectedChecks   int       `json:"expected_checks"`
	ActualChecks     int       `json:"actual_checks"`
	MissingChecks    int       `json:"missing_checks"`
	SuccessfulChecks int       `json:"successful_checks"`
	SLI              float64   `json:"sli"`
	AvgResponseTime  float64   `json:"avg_response_time"`
}
