// Package notification fans helpdesk events out to users.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"go.uber.org/zap"
)

// Notification categories used by the frontend for styling
const (
	CategoryInfo    = "info"
	CategorySuccess = "success"
	CategoryWarning = "warning"
	CategoryError   = "error"
)

const insertBatchSize = 100

// Message is the content delivered to every recipient
type Message struct {
	Type     model.NotificationType
	Title    string
	Message  string
	Category string
	TicketID *uint
	Metadata map[string]interface{}
}

// Channel delivers a message outside the in-app inbox
type Channel interface {
	Name() string
	Send(ctx context.Context, userIDs []uint, msg Message) error
}

// Service persists notifications and forwards them to the configured channels
type Service struct {
	channels []Channel
}

// NewService creates a notification service delivering to the given extra channels
func NewService(channels ...Channel) *Service {
	return &Service{channels: channels}
}

// Notify stores one notification per distinct recipient and then tries every channel.
// Title and message are stored as given; callers build them from sanitized fields.
// Channel failures are logged and counted, only the in-app write can fail the call.
func (s *Service) Notify(ctx context.Context, recipients []uint, msg Message) error {
	log := logger.FromContext(ctx)

	userIDs := dedup(recipients)
	if len(userIDs) == 0 {
		return nil
	}
	if msg.Category == "" {
		msg.Category = CategoryInfo
	}

	var metadata string
	if len(msg.Metadata) > 0 {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			log.Warn("Dropping unserialisable notification metadata", zap.Error(err))
		} else {
			metadata = string(raw)
		}
	}

	rows := make([]model.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, model.Notification{
			UserID:   id,
			Type:     msg.Type,
			Title:    msg.Title,
			Message:  msg.Message,
			Category: msg.Category,
			TicketID: msg.TicketID,
			Metadata: metadata,
		})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().WithContext(ctx).CreateInBatches(&rows, insertBatchSize).Error; err != nil {
		prometheus.RecordNotificationDelivery("in_app", "failed")
		log.Error("Failed to store notifications",
			zap.String("type", string(msg.Type)),
			zap.Int("recipients", len(userIDs)),
			zap.Error(err))
		return err
	}
	prometheus.RecordNotificationDelivery("in_app", "delivered")

	for _, channel := range s.channels {
		if err := channel.Send(ctx, userIDs, msg); err != nil {
			prometheus.RecordNotificationDelivery(channel.Name(), "failed")
			log.Warn("Notification channel failed",
				zap.String("channel", channel.Name()),
				zap.String("type", string(msg.Type)),
				zap.Error(err))
			continue
		}
		prometheus.RecordNotificationDelivery(channel.Name(), "delivered")
	}

	log.Debug("Notifications sent",
		zap.String("type", string(msg.Type)),
		zap.Int("recipients", len(userIDs)))
	return nil
}

// NotifyRole notifies every active user with role, except the given users
func (s *Service) NotifyRole(ctx context.Context, role model.Role, msg Message, except ...uint) error {
	ids, err := s.UserIDsByRole(ctx, role)
	if err != nil {
		return err
	}
	return s.Notify(ctx, without(ids, except), msg)
}

// UserIDsByRole returns the IDs of active users with role
func (s *Service) UserIDsByRole(ctx context.Context, role model.Role) ([]uint, error) {
	var ids []uint
	err := database.GetDB().WithContext(ctx).Model(&model.User{}).
		Where("role = ? AND is_active = ?", role, true).
		Pluck("id", &ids).Error
	return ids, err
}

// PurgeRead deletes read notifications created before cutoff
func (s *Service) PurgeRead(ctx context.Context, cutoff time.Time) (int64, error) {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	result := database.GetDB().WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&model.Notification{})
	return result.RowsAffected, result.Error
}

// RetentionJob returns a scheduler job removing read notifications older than days
func (s *Service) RetentionJob(days int) func(ctx context.Context) {
	return func(ctx context.Context) {
		log := logger.GetLogger()
		cutoff := time.Now().AddDate(0, 0, -days)
		removed, err := s.PurgeRead(ctx, cutoff)
		if err != nil {
			log.Error("Notification retention failed", zap.Error(err))
			return
		}
		log.Info("Notification retention completed",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff))
	}
}

func dedup(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(ids, except []uint) []uint {
	if len(except) == 0 {
		return ids
	}
	skip := make(map[uint]struct{}, len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}
	out := ids[:0]
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
