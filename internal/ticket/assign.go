package ticket

import (
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"gorm.io/gorm"
)

// Candidate is an agent able to take a ticket along with its current load
type Candidate struct {
	AgentID     uint
	UserID      uint
	OpenTickets int64
}

// PickAgent returns the active agent linked to the category with the fewest
// active tickets, or nil when every linked agent is at capacity.
func PickAgent(db *gorm.DB, categoryID uint) (*Candidate, error) {
	var candidates []Candidate
	err := db.Table("agents").
		Select("agents.id AS agent_id, agents.user_id AS user_id, COUNT(tickets.id) AS open_tickets").
		Joins("JOIN agent_categories ON agent_categories.agent_id = agents.id AND agent_categories.category_id = ?", categoryID).
		Joins("JOIN users ON users.id = agents.user_id AND users.is_active = ? AND users.deleted_at IS NULL", true).
		Joins("LEFT JOIN tickets ON tickets.assigned_to = agents.id AND tickets.status IN ? AND tickets.deleted_at IS NULL", model.ActiveStatuses).
		Where("agents.is_active = ?", true).
		Group("agents.id, agents.user_id, agents.max_tickets").
		Having("COUNT(tickets.id) < agents.max_tickets").
		Order("open_tickets ASC, agents.id ASC").
		Limit(1).
		Scan(&candidates).Error
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

// AgentLoad returns the number of active tickets assigned to an agent
func AgentLoad(db *gorm.DB, agentID uint) (int64, error) {
	var count int64
	err := db.Model(&model.Ticket{}).
		Where("assigned_to = ? AND status IN ?", agentID, model.ActiveStatuses).
		Count(&count).Error
	return count, err
}
