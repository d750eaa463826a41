// Package logsender "delivers" notifications by writing them to the log. It
// backs the external channels in local runs.
package logsender

import (
	"context"

	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/models"
	"go.uber.org/zap"
)

type Sender struct {
	channel models.Channel
}

func New(ch models.Channel) *Sender {
	return &Sender{channel: ch}
}

func (s *Sender) Send(ctx context.Context, n *models.Notification, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Get().Info("notification sent",
		zap.String("channel", string(s.channel)),
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("address", address),
		zap.String("title", n.FormattedTitle()),
	)
	return nil
}
