package handler

import (
	"net/http"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/apperror"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/middleware"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListMyNotifications returns the caller's notifications, newest first
func ListMyNotifications(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	page, limit := pageParams(c)

	query := database.GetDB().Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly, ok := queryBool(c, "unread_only"); ok && unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if t := c.QueryParam("type"); t != "" {
		query = query.Where("type = ?", t)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	query, pagination, err := paginate(query, &model.Notification{}, page, limit)
	if err != nil {
		return err
	}
	var notifications []model.Notification
	if err := query.Order("created_at DESC, id DESC").Find(&notifications).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"notifications": notifications,
		"pagination":    pagination,
	})
}

// UnreadCount returns how many unread notifications the caller has
func UnreadCount(c echo.Context) error {
	var count int64
	err := database.GetDB().Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", middleware.CurrentUserID(c), false).
		Count(&count).Error
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"unread_count": count})
}

// MarkNotificationRead marks one of the caller's notifications as read
func MarkNotificationRead(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var n model.Notification
	if err := database.GetDB().Where("id = ? AND user_id = ?", id, middleware.CurrentUserID(c)).First(&n).Error; err != nil {
		return apperror.NotFound("Notification not found")
	}
	if n.IsRead {
		return c.JSON(http.StatusOK, n)
	}

	now := time.Now()
	if err := database.GetDB().Model(&n).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return err
	}
	n.IsRead = true
	n.ReadAt = &now
	return c.JSON(http.StatusOK, n)
}

// MarkAllNotificationsRead marks every unread notification of the caller as read
func MarkAllNotificationsRead(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	res := database.GetDB().Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}

	logger.FromEcho(c).Debug("Notifications marked as read", zap.Uint("user_id", userID), zap.Int64("count", res.RowsAffected))
	return c.JSON(http.StatusOK, echo.Map{"updated": res.RowsAffected})
}

// DeleteNotification removes one of the caller's notifications
func DeleteNotification(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	res := database.GetDB().Where("id = ? AND user_id = ?", id, middleware.CurrentUserID(c)).Delete(&model.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("Notification not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearReadNotifications removes all read notifications of the caller
func ClearReadNotifications(c echo.Context) error {
	res := database.GetDB().
		Where("user_id = ? AND is_read = ?", middleware.CurrentUserID(c), true).
		Delete(&model.Notification{})
	if res.Error != nil {
		return res.Error
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": res.RowsAffected})
}
