package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"veripipe/internal/errors"
	"veripipe/models"
)

// LogNotifier writes alerts to the process log. It is the default sink for
// both severity channels when no webhook is configured.
type LogNotifier struct {
	channel string
}

// NewLogNotifier returns a notifier tagged with a channel label so the two
// severity sinks are distinguishable in the log stream.
func NewLogNotifier(channel string) *LogNotifier {
	return &LogNotifier{channel: channel}
}

func (n *LogNotifier) Notify(_ context.Context, alert models.Alert) error {
	log.Printf("[Notify:%s] %s [%s/%s]: %s", n.channel, alert.Title, alert.Level, alert.Interface, alert.Message)
	return nil
}

// WebhookNotifier posts alerts as JSON to an HTTP endpoint
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert models.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return errors.Wrap(err, "failed to marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "webhook delivery failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.New(errors.CodeAlertDispatch, fmt.Sprintf("webhook returned status %d", resp.StatusCode))
	}
	return nil
}
