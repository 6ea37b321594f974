package probe

import (
	"bytes"
	"encoding/json"

	"github.com/hamed0406/uptimesli/internal/domain"
)

// Recognised body fields, snake_case first.
var (
	activityFields       = []string{"activity"}
	activeGamesFields    = []string{"active_games", "activeGames"}
	runningMatchesFields = []string{"running_matches", "runningMatches"}
)

// extractMetrics decodes a JSON object body into the sparse extension metric
// set. Non-JSON bodies, missing fields and fields of the wrong type all yield
// nothing for that field; the result is nil when no field was recognised.
func extractMetrics(body []byte) map[string]float64 {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil
	}

	out := make(map[string]float64, 3)
	if v, ok := numberField(fields, activityFields); ok {
		out[domain.MetricActivity] = v
	}
	if n, ok := lengthField(fields, activeGamesFields); ok {
		out[domain.MetricActiveGames] = float64(n)
	}
	if v, ok := numberField(fields, runningMatchesFields); ok {
		out[domain.MetricRunningMatches] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func lookup(fields map[string]json.RawMessage, names []string) (json.RawMessage, bool) {
	for _, n := range names {
		raw, ok := fields[n]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		return raw, true
	}
	return nil, false
}

func numberField(fields map[string]json.RawMessage, names []string) (float64, bool) {
	raw, ok := lookup(fields, names)
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func lengthField(fields map[string]json.RawMessage, names []string) (int, bool) {
	raw, ok := lookup(fields, names)
	if !ok {
		return 0, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0, false
	}
	return len(items), true
}
