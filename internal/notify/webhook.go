package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Webhook posts {"subject","message","sent_at"} to an arbitrary endpoint,
// e.g. a mail relay.
type Webhook struct {
	URL    string
	Client *http.Client
	now    func() time.Time
}

func NewWebhook(url string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

type webhookPayload struct {
	Subject string    `json:"subject"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

func (w *Webhook) Send(ctx context.Context, subject, message string) error {
	if w == nil || w.URL == "" {
		return errors.New("webhook disabled")
	}
	body, _ := json.Marshal(webhookPayload{Subject: subject, Message: message, SentAt: w.now().UTC()})
	return postJSON(ctx, w.Client, w.URL, body, "webhook")
}
