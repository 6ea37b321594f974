package notify

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/hamed0406/uptimesli/internal/domain"
)

// Notifier delivers one alert. Delivery is fire-and-forget from the caller's
// point of view: errors are reported, never retried here.
type Notifier interface {
	Send(ctx context.Context, subject, message string) error
}

// Multi sends to every channel and joins the failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, subject, message string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, subject, message))
	}
	return err
}

// StatusChange renders the alert for a target that flipped to up (or down).
func StatusChange(t domain.Target, up bool) (subject, message string) {
	state := "DOWN"
	if up {
		state = "UP"
	}
	return "Server Alert: " + t.Name, fmt.Sprintf("Server %s (%s) is now %s", t.Name, t.URL, state)
}
