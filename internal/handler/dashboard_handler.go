package handler

import (
	"net/http"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Dashboard is the landing page summary for the caller
type Dashboard struct {
	Role                model.Role                   `json:"role"`
	TotalTickets        int64                        `json:"total_tickets"`
	ByStatus            map[model.TicketStatus]int64 `json:"by_status"`
	ByPriority          map[model.Priority]int64     `json:"by_priority"`
	AssignedOpen        *int64                       `json:"assigned_open,omitempty"`
	UnreadNotifications int64                        `json:"unread_notifications"`
	RecentTickets       []model.Ticket               `json:"recent_tickets"`
}

// GetDashboard returns ticket counts and recent activity visible to the caller
func GetDashboard(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return err
	}
	db := database.GetDB()
	defer prometheus.TrackDBOperation("query")(time.Now())

	scoped := func() *gorm.DB {
		return a.scope(db.Model(&model.Ticket{}))
	}

	d := Dashboard{
		Role:          a.Role,
		ByStatus:      map[model.TicketStatus]int64{},
		ByPriority:    map[model.Priority]int64{},
		RecentTickets: []model.Ticket{},
	}

	var byStatus []struct {
		Status model.TicketStatus
		Count  int64
	}
	if err := scoped().Select("tickets.status, COUNT(*) AS count").Group("tickets.status").Scan(&byStatus).Error; err != nil {
		return err
	}
	for _, row := range byStatus {
		d.ByStatus[row.Status] = row.Count
		d.TotalTickets += row.Count
	}

	var byPriority []struct {
		Priority model.Priority
		Count    int64
	}
	if err := scoped().Select("tickets.priority, COUNT(*) AS count").Group("tickets.priority").Scan(&byPriority).Error; err != nil {
		return err
	}
	for _, row := range byPriority {
		d.ByPriority[row.Priority] = row.Count
	}

	if a.Agent != nil {
		var open int64
		if err := db.Model(&model.Ticket{}).
			Where("assigned_to = ? AND status IN ?", a.Agent.ID, model.ActiveStatuses).
			Count(&open).Error; err != nil {
			return err
		}
		d.AssignedOpen = &open
	}

	if err := db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", a.UserID, false).
		Count(&d.UnreadNotifications).Error; err != nil {
		return err
	}

	if err := a.scope(db).
		Preload("Category").
		Order("tickets.created_at DESC").
		Limit(5).
		Find(&d.RecentTickets).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, d)
}
