package handler

import (
	"errors"
	"net/http"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/apperror"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/middleware"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/notification"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// actor is the caller of a ticket endpoint
type actor struct {
	UserID      uint
	Role        model.Role
	Agent       *model.Agent
	CategoryIDs []uint
}

func currentActor(c echo.Context) (*actor, error) {
	a := &actor{UserID: middleware.CurrentUserID(c), Role: middleware.CurrentRole(c)}
	if a.Role != model.RoleAgent {
		return a, nil
	}

	var agent model.Agent
	if err := database.GetDB().Preload("Categories").Where("user_id = ?", a.UserID).First(&agent).Error; err != nil {
		logger.FromEcho(c).Warn("Agent profile missing", zap.Uint("user_id", a.UserID), zap.Error(err))
		return nil, echo.NewHTTPError(http.StatusForbidden, "agent profile not found")
	}
	a.Agent = &agent
	for _, category := range agent.Categories {
		a.CategoryIDs = append(a.CategoryIDs, category.ID)
	}
	return a, nil
}

// scope restricts a ticket query to what the actor may see
func (a *actor) scope(db *gorm.DB) *gorm.DB {
	switch a.Role {
	case model.RoleAdmin:
		return db
	case model.RoleAgent:
		return db.Where("tickets.created_by = ? OR tickets.assigned_to = ? OR (tickets.assigned_to IS NULL AND tickets.category_id IN ?)",
			a.UserID, a.Agent.ID, append([]uint{0}, a.CategoryIDs...))
	default:
		return db.Where("tickets.created_by = ?", a.UserID)
	}
}

func (a *actor) canView(t *model.Ticket) bool {
	switch a.Role {
	case model.RoleAdmin:
		return true
	case model.RoleAgent:
		if t.CreatedBy == a.UserID || a.isAssignee(t) {
			return true
		}
		if t.AssignedTo != nil {
			return false
		}
		for _, id := range a.CategoryIDs {
			if id == t.CategoryID {
				return true
			}
		}
		return false
	default:
		return t.CreatedBy == a.UserID
	}
}

func (a *actor) isAssignee(t *model.Ticket) bool {
	return a.Agent != nil && t.AssignedTo != nil && *t.AssignedTo == a.Agent.ID
}

func (a *actor) isStaff() bool {
	return a.Role == model.RoleAdmin || a.Role == model.RoleAgent
}

// loadTicket finds a ticket the actor may see; others get a 404
func loadTicket(db *gorm.DB, a *actor, id uint) (*model.Ticket, error) {
	var t model.Ticket
	if err := db.Preload("Assignee").First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Ticket not found")
		}
		return nil, err
	}
	if !a.canView(&t) {
		return nil, apperror.NotFound("Ticket not found")
	}
	return &t, nil
}

// notifyParticipants tells the creator and the assignee about a change, never the actor
func notifyParticipants(c echo.Context, t *model.Ticket, actorID uint, includeCreator bool, msg notification.Message) {
	if deps.Notifier == nil {
		return
	}

	var recipients []uint
	if includeCreator {
		recipients = append(recipients, t.CreatedBy)
	}
	if t.AssignedTo != nil {
		var agent model.Agent
		if err := database.GetDB().Select("id", "user_id").First(&agent, *t.AssignedTo).Error; err == nil {
			recipients = append(recipients, agent.UserID)
		}
	}

	filtered := recipients[:0]
	for _, id := range recipients {
		if id != actorID {
			filtered = append(filtered, id)
		}
	}

	msg.TicketID = &t.ID
	if msg.Metadata == nil {
		msg.Metadata = map[string]interface{}{}
	}
	msg.Metadata["ticket_number"] = t.TicketNumber

	if err := deps.Notifier.Notify(c.Request().Context(), filtered, msg); err != nil {
		logger.FromEcho(c).Error("Failed to notify ticket participants", zap.Uint("ticket_id", t.ID), zap.Error(err))
	}
}
