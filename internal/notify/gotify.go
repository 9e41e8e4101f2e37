// Package notify pushes reminder confirmations to a Gotify server.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jmagar/gigs-cli/internal/model"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

// Send posts a message to a Gotify server.
// Returns nil immediately if url or token are empty.
func Send(ctx context.Context, serverURL, token, title, message string, priority int) error {
	if serverURL == "" || token == "" {
		return nil
	}

	url := strings.TrimRight(serverURL, "/") + "/message"

	body, err := json.Marshal(map[string]any{
		"title":    title,
		"message":  message,
		"priority": priority,
	})
	if err != nil {
		return fmt.Errorf("gotify: marshal failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gotify: create request failed: %w", err)
	}
	req.Header.Set("X-Gotify-Token", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gotify: send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gotify: server returned %d", resp.StatusCode)
	}
	return nil
}

// Notifier announces reminder changes. A nil *Notifier is valid and sends
// nothing.
type Notifier struct {
	serverURL string
	token     string
	priority  int
	log       *logrus.Entry
}

// New returns a Notifier for the given Gotify server, or nil when url or
// token are empty.
func New(serverURL, token string, priority int, log *logrus.Entry) *Notifier {
	if serverURL == "" || token == "" {
		return nil
	}
	return &Notifier{serverURL: serverURL, token: token, priority: priority, log: log}
}

// ReminderChanged pushes a confirmation for a reminder that was just enabled
// or disabled. Delivery failures are logged and returned; they never affect
// the reminder itself.
func (n *Notifier) ReminderChanged(ctx context.Context, c model.Concert, enabled bool) error {
	if n == nil {
		return nil
	}
	title := "Reminder set"
	if !enabled {
		title = "Reminder removed"
	}
	msg := fmt.Sprintf("%s - %s", c.Artist, c.Time)
	if c.Location != "" {
		msg += " @ " + c.Location
	}
	if err := Send(ctx, n.serverURL, n.token, title, msg, n.priority); err != nil {
		if n.log != nil {
			n.log.WithError(err).WithField("concert_id", c.ID).Warn("reminder notification failed")
		}
		return err
	}
	return nil
}
