package probe

import (
	"context"

	"github.com/hamed0406/uptimesli/internal/domain"
)

// Checker performs a single check for a given target URL.
//
// Implementations never return probe failures as errors: an unreachable,
// slow or untrusted server is reported through the result's Up flag and
// status code sentinel. The caller fills in TargetID.
type Checker interface {
	Check(ctx context.Context, target string) domain.CheckResult
}
