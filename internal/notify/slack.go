package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxSlackButtons = 5

// SlackButton is one action button under a Slack message.
type SlackButton struct {
	Label string
	URL   string
}

// SlackSender posts messages to incoming webhooks.
type SlackSender struct {
	httpClient *http.Client
}

// NewSlackSender creates a webhook sender.
func NewSlackSender() *SlackSender {
	return &SlackSender{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message to a webhook URL. Buttons beyond Slack's limit of
// five per actions block are dropped.
func (s *SlackSender) Send(ctx context.Context, webhookURL, text string, buttons []SlackButton) error {
	if len(buttons) > maxSlackButtons {
		buttons = buttons[:maxSlackButtons]
	}

	blocks := []map[string]any{
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": text},
		},
	}
	if len(buttons) > 0 {
		elements := make([]map[string]any, 0, len(buttons))
		for _, b := range buttons {
			elements = append(elements, map[string]any{
				"type": "button",
				"text": map[string]any{"type": "plain_text", "text": b.Label},
				"url":  b.URL,
			})
		}
		blocks = append(blocks, map[string]any{"type": "actions", "elements": elements})
	}

	payload, err := json.Marshal(map[string]any{"text": text, "blocks": blocks})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
