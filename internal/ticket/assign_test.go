package ticket

import (
	"fmt"
	"testing"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createAgent(t *testing.T, db *gorm.DB, n int, maxTickets int, categories ...model.Category) model.Agent {
	t.Helper()
	user := model.User{Name: fmt.Sprintf("Agent %d", n), Email: fmt.Sprintf("agent%d@senai.br", n), Password: "x", Role: model.RoleAgent, IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	agent := model.Agent{UserID: user.ID, EmployeeID: fmt.Sprintf("EMP-%d", n), MaxTickets: maxTickets, Categories: categories}
	require.NoError(t, db.Create(&agent).Error)
	return agent
}

func createTickets(t *testing.T, db *gorm.DB, categoryID, creatorID uint, agentID uint, status model.TicketStatus, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		ticket := model.Ticket{
			TicketNumber: fmt.Sprintf("TKT-%d-%d-%s", agentID, i, status),
			Title:        "t",
			Description:  "d",
			Status:       status,
			Priority:     model.PriorityLow,
			CategoryID:   categoryID,
			CreatedBy:    creatorID,
			AssignedTo:   &agentID,
		}
		require.NoError(t, db.Create(&ticket).Error)
	}
}

func TestPickAgentLeastLoaded(t *testing.T) {
	db := dbtest.OpenTestDB(t)

	network := model.Category{Name: "Rede"}
	hardware := model.Category{Name: "Hardware"}
	require.NoError(t, db.Create(&network).Error)
	require.NoError(t, db.Create(&hardware).Error)

	client := model.User{Name: "C", Email: "c@senai.br", Password: "x", Role: model.RoleClient, IsActive: true}
	require.NoError(t, db.Create(&client).Error)

	busy := createAgent(t, db, 1, 10, network)
	light := createAgent(t, db, 2, 10, network)
	createAgent(t, db, 3, 10, hardware)

	createTickets(t, db, network.ID, client.ID, busy.ID, model.StatusInProgress, 3)
	createTickets(t, db, network.ID, client.ID, light.ID, model.StatusOpen, 1)
	// Finished work does not count as load
	createTickets(t, db, network.ID, client.ID, light.ID, model.StatusClosed, 5)

	candidate, err := PickAgent(db, network.ID)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, light.ID, candidate.AgentID)
	assert.Equal(t, light.UserID, candidate.UserID)
	assert.Equal(t, int64(1), candidate.OpenTickets)

	load, err := AgentLoad(db, busy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), load)
}

func TestPickAgentRespectsCapacityAndActiveFlags(t *testing.T) {
	db := dbtest.OpenTestDB(t)

	category := model.Category{Name: "Rede"}
	require.NoError(t, db.Create(&category).Error)
	client := model.User{Name: "C", Email: "c@senai.br", Password: "x", Role: model.RoleClient, IsActive: true}
	require.NoError(t, db.Create(&client).Error)

	full := createAgent(t, db, 1, 1, category)
	createTickets(t, db, category.ID, client.ID, full.ID, model.StatusOpen, 1)

	inactive := createAgent(t, db, 2, 10, category)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", inactive.UserID).Update("is_active", false).Error)

	candidate, err := PickAgent(db, category.ID)
	require.NoError(t, err)
	assert.Nil(t, candidate)

	other := model.Category{Name: "Sem agentes"}
	require.NoError(t, db.Create(&other).Error)
	candidate, err = PickAgent(db, other.ID)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}
