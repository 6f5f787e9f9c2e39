package notification

import (
	"context"

	"github.com/Guimenn/Zelos-Senai-sub003/pkg/config"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"go.uber.org/zap"
)

// PushChannel is a placeholder for mobile push delivery; it only logs
type PushChannel struct{}

func (PushChannel) Name() string { return "push" }

func (PushChannel) Send(ctx context.Context, userIDs []uint, msg Message) error {
	logger.FromContext(ctx).Info("Push notification queued",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title),
		zap.Uints("user_ids", userIDs))
	return nil
}

// EmailChannel is a placeholder for email delivery; it only logs
type EmailChannel struct{}

func (EmailChannel) Name() string { return "email" }

func (EmailChannel) Send(ctx context.Context, userIDs []uint, msg Message) error {
	logger.FromContext(ctx).Info("Email notification queued",
		zap.String("type", string(msg.Type)),
		zap.String("subject", msg.Title),
		zap.Uints("user_ids", userIDs))
	return nil
}

// ChannelsFromConfig returns the extra channels switched on in cfg
func ChannelsFromConfig(cfg config.NotificationConfig) []Channel {
	var channels []Channel
	if cfg.PushEnabled {
		channels = append(channels, PushChannel{})
	}
	if cfg.EmailEnabled {
		channels = append(channels, EmailChannel{})
	}
	return channels
}
