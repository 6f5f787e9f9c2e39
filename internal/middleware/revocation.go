package middleware

import (
	"context"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"go.uber.org/zap"
)

// PurgeRevokedTokens deletes revocations of tokens that expired before now.
// An expired token fails signature validation anyway.
func PurgeRevokedTokens(ctx context.Context, now time.Time) (int64, error) {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	res := database.GetDB().WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&model.RevokedToken{})
	return res.RowsAffected, res.Error
}

// RevokedTokenRetentionJob is the scheduler job around PurgeRevokedTokens
func RevokedTokenRetentionJob(ctx context.Context) {
	log := logger.FromContext(ctx)
	removed, err := PurgeRevokedTokens(ctx, time.Now())
	if err != nil {
		log.Error("Revoked token cleanup failed", zap.Error(err))
		return
	}
	log.Info("Revoked token cleanup completed", zap.Int64("removed", removed))
}
