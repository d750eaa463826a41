// Package httprelay hands notifications to an external delivery gateway
// (email, SMS or push provider) over HTTP.
package httprelay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/BearBump/MarketShip/internal/httpclient"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/pkg/errors"
)

type Sender struct {
	url     string
	apiKey  string
	channel models.Channel
	httpc   *http.Client
}

func New(url, apiKey string, ch models.Channel, timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		url:     url,
		apiKey:  apiKey,
		channel: ch,
		httpc:   httpclient.New(timeout),
	}
}

type payload struct {
	NotificationID string          `json:"notification_id"`
	Channel        models.Channel  `json:"channel"`
	UserID         string          `json:"user_id"`
	Address        string          `json:"address,omitempty"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	Priority       models.Priority `json:"priority"`
	Actions        []models.Action `json:"actions,omitempty"`
}

// Send posts the rendered notification. Any non-2xx answer is a failure.
// The notification id doubles as the idempotency key so a gateway can drop
// retries of a message it already accepted.
func (s *Sender) Send(ctx context.Context, n *models.Notification, address string) error {
	body, err := json.Marshal(payload{
		NotificationID: n.ID,
		Channel:        s.channel,
		UserID:         n.UserID,
		Address:        address,
		Title:          n.FormattedTitle(),
		Message:        n.FormattedMessage(),
		Priority:       n.Priority,
		Actions:        n.Actions,
	})
	if err != nil {
		return errors.Wrap(err, "encode relay payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build relay request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", n.ID)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "relay %s", s.channel)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("relay %s: status %d", s.channel, resp.StatusCode)
	}
	return nil
}
