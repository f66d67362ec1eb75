package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/foxseedlab/punchclock/internal/notifier"
)

// ErrWebhookURLNotSet is returned by Send when no endpoint is configured, so
// the reminder is recorded as FAILED rather than silently dropped.
var ErrWebhookURLNotSet = errors.New("reminder webhook url is not set")

// maxErrorBody bounds how much of a rejected response ends up in the event
// payload.
const maxErrorBody = 512

type reminderPayload struct {
	notifier.Message
	Text string `json:"text"`
}

// WebhookNotifier posts each reminder to NOTIFY_WEBHOOK_URL as JSON.
type WebhookNotifier struct {
	endpoint string
	client   *http.Client
}

func NewWebhookNotifier(endpoint string) notifier.Notifier {
	return &WebhookNotifier{endpoint: endpoint, client: &http.Client{}}
}

func (n *WebhookNotifier) Send(ctx context.Context, msg notifier.Message) error {
	if n.endpoint == "" {
		return ErrWebhookURLNotSet
	}
	body, err := json.Marshal(reminderPayload{Message: msg, Text: notifier.Text(msg)})
	if err != nil {
		return fmt.Errorf("failed to encode %s reminder: %w", msg.Type, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build reminder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post %s reminder for user %s: %w", msg.Type, msg.UserID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("reminder webhook rejected %s for user %s: status %d: %s",
			msg.Type, msg.UserID, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
