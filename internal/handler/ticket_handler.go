package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/apperror"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/notification"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/sla"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/ticket"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateTicketRequest opens a ticket
type CreateTicketRequest struct {
	Title         string         `json:"title" validate:"required,min=3,max=200"`
	Description   string         `json:"description" validate:"required,min=5,max=10000"`
	CategoryID    uint           `json:"category_id" validate:"required"`
	SubcategoryID *uint          `json:"subcategory_id"`
	Priority      model.Priority `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	Location      string         `json:"location" validate:"omitempty,max=150"`
}

// UpdateTicketRequest edits ticket details; nil fields are kept
type UpdateTicketRequest struct {
	Title         *string         `json:"title" validate:"omitempty,min=3,max=200"`
	Description   *string         `json:"description" validate:"omitempty,min=5,max=10000"`
	Priority      *model.Priority `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	CategoryID    *uint           `json:"category_id"`
	SubcategoryID *uint           `json:"subcategory_id"`
	Location      *string         `json:"location" validate:"omitempty,max=150"`
}

// UpdateStatusRequest moves a ticket through its lifecycle
type UpdateStatusRequest struct {
	Status  model.TicketStatus `json:"status" validate:"required"`
	Comment string             `json:"comment" validate:"omitempty,max=5000"`
}

// AssignTicketRequest assigns a ticket; agents may leave AgentID empty to take it themselves
type AssignTicketRequest struct {
	AgentID *uint `json:"agent_id"`
}

// CommentRequest adds a comment to a ticket
type CommentRequest struct {
	Content    string `json:"content" validate:"required,min=1,max=5000"`
	IsInternal bool   `json:"is_internal"`
}

// RatingRequest rates the support received
type RatingRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=1000"`
}

// CreateTicket opens a ticket, computes its due date and routes it to an agent
func CreateTicket(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTicketOperation("create")

	a, err := currentActor(c)
	if err != nil {
		return err
	}
	var req CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	title, description := sanitize(req.Title), sanitize(req.Description)
	if title == "" || description == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and description are required"})
	}

	category, err := activeCategory(database.GetDB(), req.CategoryID)
	if err != nil {
		return err
	}
	if err := checkSubcategory(database.GetDB(), category.ID, req.SubcategoryID); err != nil {
		return err
	}

	priority := req.Priority
	if priority == "" {
		priority = category.DefaultPriority
	}
	now := time.Now()
	due := sla.DueDate(now, priority, category.ResolutionHours)

	t := model.Ticket{
		TicketNumber:  ticket.GenerateNumber(now),
		Title:         title,
		Description:   description,
		Status:        model.StatusOpen,
		Priority:      priority,
		CategoryID:    category.ID,
		SubcategoryID: req.SubcategoryID,
		CreatedBy:     a.UserID,
		Location:      sanitize(req.Location),
		DueDate:       &due,
		SLAStatus:     model.SLAOnTime,
		CreatedAt:     now,
	}

	var assignee *ticket.Candidate
	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		candidate, err := ticket.PickAgent(tx, category.ID)
		if err != nil {
			return err
		}
		if candidate != nil {
			t.AssignedTo = &candidate.AgentID
			assignee = candidate
		}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		changes := []ticket.Change{{Field: "status", New: string(model.StatusOpen)}}
		if assignee != nil {
			changes = append(changes, ticket.Change{Field: "assigned_to", New: ticket.FormatID(t.AssignedTo)})
		}
		return tx.Create(ticket.HistoryRows(t.ID, a.UserID, changes...)).Error
	})
	if err != nil {
		log.Error("Failed to create ticket", zap.Error(err))
		return err
	}

	log.Info("Ticket created",
		zap.Uint("ticket_id", t.ID),
		zap.String("ticket_number", t.TicketNumber),
		zap.String("priority", string(t.Priority)),
		zap.Bool("auto_assigned", assignee != nil))

	if deps.Notifier != nil {
		ctx := c.Request().Context()
		created := notification.Message{
			Type:     model.NotificationTicketCreated,
			Title:    fmt.Sprintf("New ticket %s", t.TicketNumber),
			Message:  t.Title,
			TicketID: &t.ID,
			Metadata: map[string]interface{}{"ticket_number": t.TicketNumber, "priority": t.Priority},
		}
		if err := deps.Notifier.NotifyRole(ctx, model.RoleAdmin, created, a.UserID); err != nil {
			log.Error("Failed to notify admins", zap.Error(err))
		}
		if assignee != nil && assignee.UserID != a.UserID {
			assigned := notification.Message{
				Type:     model.NotificationTicketAssigned,
				Title:    fmt.Sprintf("Ticket %s assigned to you", t.TicketNumber),
				Message:  t.Title,
				TicketID: &t.ID,
				Metadata: map[string]interface{}{"ticket_number": t.TicketNumber, "priority": t.Priority},
			}
			if err := deps.Notifier.Notify(ctx, []uint{assignee.UserID}, assigned); err != nil {
				log.Error("Failed to notify assignee", zap.Error(err))
			}
		}
	}

	return respondTicket(c, http.StatusCreated, t.ID)
}

// ListTickets lists the tickets visible to the caller
func ListTickets(c echo.Context) error {
	log := logger.FromEcho(c)
	a, err := currentActor(c)
	if err != nil {
		return err
	}
	page, limit := pageParams(c)

	query := a.scope(database.GetDB().Model(&model.Ticket{}))
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("tickets.status IN ?", strings.Split(status, ","))
	}
	if priority := c.QueryParam("priority"); priority != "" {
		query = query.Where("tickets.priority IN ?", strings.Split(priority, ","))
	}
	if slaStatus := c.QueryParam("sla_status"); slaStatus != "" {
		query = query.Where("tickets.sla_status = ?", slaStatus)
	}
	if categoryID := c.QueryParam("category_id"); categoryID != "" {
		query = query.Where("tickets.category_id = ?", categoryID)
	}
	if assignedTo := c.QueryParam("assigned_to"); assignedTo != "" {
		if assignedTo == "none" {
			query = query.Where("tickets.assigned_to IS NULL")
		} else {
			query = query.Where("tickets.assigned_to = ?", assignedTo)
		}
	}
	if search := c.QueryParam("search"); search != "" {
		pattern := likePattern(search)
		query = query.Where("LOWER(tickets.title) LIKE ? OR LOWER(tickets.ticket_number) LIKE ?", pattern, pattern)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	query, pagination, err := paginate(query, &model.Ticket{}, page, limit)
	if err != nil {
		return err
	}
	var tickets []model.Ticket
	err = query.
		Preload("Category").
		Preload("Subcategory").
		Preload("Creator").
		Preload("Assignee.User").
		Order("tickets.created_at DESC").
		Find(&tickets).Error
	if err != nil {
		log.Error("Failed to list tickets", zap.Error(err))
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"tickets":    tickets,
		"pagination": pagination,
	})
}

// GetTicket returns a ticket with its comments; clients do not see internal comments
func GetTicket(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := loadTicket(database.GetDB(), a, id); err != nil {
		return err
	}

	var t model.Ticket
	err = database.GetDB().
		Preload("Category").
		Preload("Subcategory").
		Preload("Creator").
		Preload("Assignee.User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			if !a.isStaff() {
				db = db.Where("is_internal = ?", false)
			}
			return db.Order("created_at ASC")
		}).
		Preload("Comments.User").
		First(&t, id).Error
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// UpdateTicket edits a ticket; clients may only edit their own open tickets
func UpdateTicket(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTicketOperation("update")

	a, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	t, err := loadTicket(database.GetDB(), a, id)
	if err != nil {
		return err
	}
	if !t.Status.IsActive() {
		return apperror.Conflict("closed tickets cannot be edited")
	}
	if a.Role == model.RoleClient && t.Status != model.StatusOpen {
		return apperror.Forbidden("tickets can only be edited while open")
	}

	var changes []ticket.Change
	updates := map[string]interface{}{}
	if req.Title != nil {
		title := sanitize(*req.Title)
		changes = append(changes, ticket.Change{Field: "title", Old: t.Title, New: title})
		updates["title"] = title
	}
	if req.Description != nil {
		description := sanitize(*req.Description)
		changes = append(changes, ticket.Change{Field: "description", Old: t.Description, New: description})
		updates["description"] = description
	}
	if req.Location != nil {
		location := sanitize(*req.Location)
		changes = append(changes, ticket.Change{Field: "location", Old: t.Location, New: location})
		updates["location"] = location
	}

	priority := t.Priority
	if req.Priority != nil {
		priority = *req.Priority
	}
	categoryID := t.CategoryID
	subcategoryID := t.SubcategoryID
	if req.CategoryID != nil && *req.CategoryID != t.CategoryID {
		categoryID = *req.CategoryID
		subcategoryID = nil
	}
	if req.SubcategoryID != nil {
		subcategoryID = req.SubcategoryID
	}

	if priority != t.Priority || categoryID != t.CategoryID {
		category, err := activeCategory(database.GetDB(), categoryID)
		if err != nil {
			return err
		}
		due := sla.DueDate(t.CreatedAt, priority, category.ResolutionHours)
		changes = append(changes,
			ticket.Change{Field: "priority", Old: string(t.Priority), New: string(priority)},
			ticket.Change{Field: "category_id", Old: ticket.FormatID(&t.CategoryID), New: ticket.FormatID(&categoryID)},
			ticket.Change{Field: "due_date", Old: ticket.FormatTime(t.DueDate), New: ticket.FormatTime(&due)},
		)
		updates["priority"] = priority
		updates["category_id"] = categoryID
		updates["due_date"] = due
	}
	if ticket.FormatID(subcategoryID) != ticket.FormatID(t.SubcategoryID) {
		if err := checkSubcategory(database.GetDB(), categoryID, subcategoryID); err != nil {
			return err
		}
		changes = append(changes, ticket.Change{Field: "subcategory_id", Old: ticket.FormatID(t.SubcategoryID), New: ticket.FormatID(subcategoryID)})
		updates["subcategory_id"] = subcategoryID
	}

	history := ticket.HistoryRows(t.ID, a.UserID, changes...)
	if len(history) == 0 {
		return respondTicket(c, http.StatusOK, t.ID)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Ticket{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		log.Error("Failed to update ticket", zap.Uint("ticket_id", t.ID), zap.Error(err))
		return err
	}
	if _, ok := updates["due_date"]; ok && deps.Monitor != nil {
		if _, _, err := deps.Monitor.Check(c.Request().Context(), t.ID); err != nil {
			log.Error("Failed to re-evaluate ticket SLA", zap.Uint("ticket_id", t.ID), zap.Error(err))
		}
	}

	fields := make([]string, 0, len(history))
	for _, h := range history {
		fields = append(fields, h.FieldName)
	}
	notifyParticipants(c, t, a.UserID, true, notification.Message{
		Type:     model.NotificationTicketUpdated,
		Title:    fmt.Sprintf("Ticket %s updated", t.TicketNumber),
		Message:  fmt.Sprintf("Changed: %s", strings.Join(fields, ", ")),
		Metadata: map[string]interface{}{"fields": fields},
	})

	log.Info("Ticket updated", zap.Uint("ticket_id", t.ID), zap.Strings("fields", fields))
	return respondTicket(c, http.StatusOK, t.ID)
}

// UpdateTicketStatus applies a lifecycle transition
func UpdateTicketStatus(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTicketOperation("status")

	a, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	t, err := loadTicket(database.GetDB(), a, id)
	if err != nil {
		return err
	}
	from := t.Status
	if err := ticket.CheckTransition(a.Role, t.CreatedBy == a.UserID, from, req.Status); err != nil {
		return err
	}

	now := time.Now()
	ticket.ApplyStatus(t, req.Status, now)
	firstResponse := ticket.MarkFirstResponse(t, a.Role, now)

	changes := []ticket.Change{{Field: "status", Old: string(from), New: string(t.Status)}}
	if firstResponse {
		changes = append(changes, ticket.Change{Field: "first_response_at", New: ticket.FormatTime(t.FirstResponseAt)})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Ticket{}).
			Where("id = ? AND status = ?", t.ID, from).
			Updates(map[string]interface{}{
				"status":            t.Status,
				"resolved_at":       t.ResolvedAt,
				"closed_at":         t.ClosedAt,
				"first_response_at": t.FirstResponseAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.Conflict("ticket status changed concurrently, reload and try again")
		}
		if comment := sanitize(req.Comment); comment != "" {
			if err := tx.Create(&model.TicketComment{TicketID: t.ID, UserID: a.UserID, Content: comment}).Error; err != nil {
				return err
			}
		}
		return tx.Create(ticket.HistoryRows(t.ID, a.UserID, changes...)).Error
	})
	if err != nil {
		return err
	}

	notifyParticipants(c, t, a.UserID, true, notification.Message{
		Type:     model.NotificationTicketStatusChanged,
		Title:    fmt.Sprintf("Ticket %s is now %s", t.TicketNumber, t.Status),
		Message:  fmt.Sprintf("Status changed from %s to %s", from, t.Status),
		Category: statusCategory(t.Status),
		Metadata: map[string]interface{}{"old_status": from, "new_status": t.Status},
	})

	log.Info("Ticket status changed",
		zap.Uint("ticket_id", t.ID),
		zap.String("from", string(from)),
		zap.String("to", string(t.Status)))
	return respondTicket(c, http.StatusOK, t.ID)
}

// AssignTicket assigns a ticket to an agent. Admins pick any active agent, agents take tickets themselves.
func AssignTicket(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTicketOperation("assign")

	a, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req AssignTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	t, err := loadTicket(database.GetDB(), a, id)
	if err != nil {
		return err
	}
	if !t.Status.IsActive() {
		return apperror.Conflict("closed tickets cannot be assigned")
	}

	var agentID uint
	switch a.Role {
	case model.RoleAdmin:
		if req.AgentID == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "agent_id is required"})
		}
		agentID = *req.AgentID
	case model.RoleAgent:
		if req.AgentID != nil && *req.AgentID != a.Agent.ID {
			return apperror.Forbidden("agents can only assign tickets to themselves")
		}
		if t.AssignedTo != nil && *t.AssignedTo != a.Agent.ID {
			return apperror.Forbidden("ticket is already assigned to another agent")
		}
		agentID = a.Agent.ID
	default:
		return apperror.Forbidden("insufficient permissions")
	}

	if t.AssignedTo != nil && *t.AssignedTo == agentID {
		return respondTicket(c, http.StatusOK, t.ID)
	}

	var agent model.Agent
	if err := database.GetDB().Preload("User").First(&agent, agentID).Error; err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "agent not found"})
	}
	if !agent.IsActive || agent.User == nil || !agent.User.IsActive {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "agent is inactive"})
	}
	load, err := ticket.AgentLoad(database.GetDB(), agent.ID)
	if err != nil {
		return err
	}
	if load >= int64(agent.MaxTickets) {
		return apperror.Conflict(fmt.Sprintf("agent already has %d active tickets", load))
	}

	previous := t.AssignedTo
	defer prometheus.TrackDBOperation("update")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Ticket{}).Where("id = ?", t.ID).Update("assigned_to", agent.ID).Error; err != nil {
			return err
		}
		return tx.Create(ticket.HistoryRows(t.ID, a.UserID, ticket.Change{
			Field: "assigned_to", Old: ticket.FormatID(previous), New: ticket.FormatID(&agent.ID),
		})).Error
	})
	if err != nil {
		return err
	}
	t.AssignedTo = &agent.ID

	if deps.Notifier != nil && agent.UserID != a.UserID {
		msg := notification.Message{
			Type:     model.NotificationTicketAssigned,
			Title:    fmt.Sprintf("Ticket %s assigned to you", t.TicketNumber),
			Message:  t.Title,
			TicketID: &t.ID,
			Metadata: map[string]interface{}{"ticket_number": t.TicketNumber, "priority": t.Priority},
		}
		if err := deps.Notifier.Notify(c.Request().Context(), []uint{agent.UserID}, msg); err != nil {
			log.Error("Failed to notify assignee", zap.Error(err))
		}
	}
	if deps.Notifier != nil && t.CreatedBy != a.UserID && t.CreatedBy != agent.UserID {
		msg := notification.Message{
			Type:     model.NotificationTicketUpdated,
			Title:    fmt.Sprintf("Ticket %s was assigned", t.TicketNumber),
			Message:  fmt.Sprintf("%s is now handling your ticket", agent.User.Name),
			TicketID: &t.ID,
		}
		if err := deps.Notifier.Notify(c.Request().Context(), []uint{t.CreatedBy}, msg); err != nil {
			log.Error("Failed to notify creator", zap.Error(err))
		}
	}

	log.Info("Ticket assigned", zap.Uint("ticket_id", t.ID), zap.Uint("agent_id", agent.ID))
	return respondTicket(c, http.StatusOK, t.ID)
}

// AddComment posts a comment; only staff can post internal notes
func AddComment(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTicketOperation("comment")

	a, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req CommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	content := sanitize(req.Content)
	if content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content is required"})
	}
	internal := req.IsInternal && a.isStaff()

	t, err := loadTicket(database.GetDB(), a, id)
	if err != nil {
		return err
	}
	if t.Status == model.StatusClosed || t.Status == model.StatusCancelled {
		return apperror.Conflict("comments are closed for this ticket")
	}

	comment := model.TicketComment{TicketID: t.ID, UserID: a.UserID, Content: content, IsInternal: internal}
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		if !ticket.MarkFirstResponse(t, a.Role, comment.CreatedAt) {
			return nil
		}
		if err := tx.Model(&model.Ticket{}).Where("id = ?", t.ID).Update("first_response_at", t.FirstResponseAt).Error; err != nil {
			return err
		}
		return tx.Create(ticket.HistoryRows(t.ID, a.UserID, ticket.Change{
			Field: "first_response_at", New: ticket.FormatTime(t.FirstResponseAt),
		})).Error
	})
	if err != nil {
		log.Error("Failed to add comment", zap.Uint("ticket_id", t.ID), zap.Error(err))
		return err
	}

	notifyParticipants(c, t, a.UserID, !internal, notification.Message{
		Type:    model.NotificationTicketCommented,
		Title:   fmt.Sprintf("New comment on %s", t.TicketNumber),
		Message: truncate(content, 200),
	})

	if err := database.GetDB().Preload("User").First(&comment, comment.ID).Error; err != nil {
		return err
	}
	log.Info("Comment added", zap.Uint("ticket_id", t.ID), zap.Uint("comment_id", comment.ID), zap.Bool("internal", internal))
	return c.JSON(http.StatusCreated, comment)
}

// ListComments lists the comments of a ticket visible to the caller
func ListComments(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := loadTicket(database.GetDB(), a, id); err != nil {
		return err
	}

	query := database.GetDB().Preload("User").Where("ticket_id = ?", id)
	if !a.isStaff() {
		query = query.Where("is_internal = ?", false)
	}
	var comments []model.TicketComment
	if err := query.Order("created_at ASC").Find(&comments).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

// GetTicketHistory lists the recorded changes of a ticket
func GetTicketHistory(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := loadTicket(database.GetDB(), a, id); err != nil {
		return err
	}

	var history []model.TicketHistory
	if err := database.GetDB().Preload("User").Where("ticket_id = ?", id).Order("created_at ASC, id ASC").Find(&history).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, history)
}

// RateTicket stores the creator's satisfaction rating for a finished ticket
func RateTicket(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTicketOperation("rate")

	a, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req RatingRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	t, err := loadTicket(database.GetDB(), a, id)
	if err != nil {
		return err
	}
	if t.CreatedBy != a.UserID {
		return apperror.Forbidden("only the ticket creator can rate it")
	}
	if t.Status != model.StatusResolved && t.Status != model.StatusClosed {
		return apperror.Conflict("only resolved or closed tickets can be rated")
	}
	if t.SatisfactionRating != nil {
		return apperror.Conflict("ticket has already been rated")
	}

	comment := sanitize(req.Comment)
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Ticket{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
			"satisfaction_rating":  req.Rating,
			"satisfaction_comment": comment,
		}).Error; err != nil {
			return err
		}
		return tx.Create(ticket.HistoryRows(t.ID, a.UserID, ticket.Change{
			Field: "satisfaction_rating", New: fmt.Sprintf("%d", req.Rating),
		})).Error
	})
	if err != nil {
		return err
	}

	log.Info("Ticket rated", zap.Uint("ticket_id", t.ID), zap.Int("rating", req.Rating))
	return respondTicket(c, http.StatusOK, t.ID)
}

// DeleteTicket soft deletes a ticket
func DeleteTicket(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTicketOperation("delete")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	res := database.GetDB().Delete(&model.Ticket{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("Ticket not found")
	}

	log.Info("Ticket deleted", zap.Uint("ticket_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Ticket deleted successfully"})
}

func activeCategory(db *gorm.DB, id uint) (*model.Category, error) {
	var category model.Category
	if err := db.Where("id = ? AND is_active = ?", id, true).First(&category).Error; err != nil {
		return nil, apperror.Validation("category does not exist or is inactive")
	}
	return &category, nil
}

func checkSubcategory(db *gorm.DB, categoryID uint, subcategoryID *uint) error {
	if subcategoryID == nil {
		return nil
	}
	var count int64
	if err := db.Model(&model.Subcategory{}).
		Where("id = ? AND category_id = ? AND is_active = ?", *subcategoryID, categoryID, true).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperror.Validation("subcategory does not belong to the category")
	}
	return nil
}

// reloadTicket returns the ticket with the relations the frontend renders
func reloadTicket(id uint) (*model.Ticket, error) {
	var t model.Ticket
	err := database.GetDB().
		Preload("Category").
		Preload("Subcategory").
		Preload("Creator").
		Preload("Assignee.User").
		First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// respondTicket writes the freshly loaded ticket with its relations
func respondTicket(c echo.Context, status int, id uint) error {
	t, err := reloadTicket(id)
	if err != nil {
		logger.FromEcho(c).Error("Failed to reload ticket", zap.Uint("ticket_id", id), zap.Error(err))
		return err
	}
	return c.JSON(status, t)
}

func statusCategory(s model.TicketStatus) string {
	switch s {
	case model.StatusResolved, model.StatusClosed:
		return notification.CategorySuccess
	case model.StatusCancelled:
		return notification.CategoryWarning
	default:
		return notification.CategoryInfo
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
