package sla

import (
	"context"
	"testing"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/notification"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sentAlert struct {
	recipients []uint
	msg        notification.Message
}

type fakeNotifier struct {
	admins []uint
	sent   []sentAlert
}

func (f *fakeNotifier) Notify(_ context.Context, recipients []uint, msg notification.Message) error {
	f.sent = append(f.sent, sentAlert{recipients: recipients, msg: msg})
	return nil
}

func (f *fakeNotifier) UserIDsByRole(context.Context, model.Role) ([]uint, error) {
	return f.admins, nil
}

type fixture struct {
	db       *gorm.DB
	category model.Category
	client   model.User
	agent    model.Agent
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.OpenTestDB(t)

	f := fixture{db: db}
	f.category = model.Category{Name: "Rede", DefaultPriority: model.PriorityMedium}
	require.NoError(t, db.Create(&f.category).Error)

	f.client = model.User{Name: "Client", Email: "client@senai.br", Password: "x", Role: model.RoleClient, IsActive: true}
	require.NoError(t, db.Create(&f.client).Error)

	agentUser := model.User{Name: "Agent", Email: "agent@senai.br", Password: "x", Role: model.RoleAgent, IsActive: true}
	require.NoError(t, db.Create(&agentUser).Error)
	f.agent = model.Agent{UserID: agentUser.ID, EmployeeID: "EMP-1"}
	require.NoError(t, db.Create(&f.agent).Error)
	return f
}

func (f fixture) ticket(t *testing.T, number string, priority model.Priority, createdAt time.Time, assigned bool) model.Ticket {
	t.Helper()
	ticket := model.Ticket{
		TicketNumber: number,
		Title:        "Sem internet",
		Description:  "Lab 3",
		Status:       model.StatusOpen,
		Priority:     priority,
		CategoryID:   f.category.ID,
		CreatedBy:    f.client.ID,
		CreatedAt:    createdAt,
	}
	if assigned {
		ticket.AssignedTo = &f.agent.ID
	}
	require.NoError(t, f.db.Create(&ticket).Error)
	return ticket
}

func TestMonitorRunTransitionsAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	onTime := f.ticket(t, "TKT-1", model.PriorityMedium, now.Add(-time.Hour), true)
	atRisk := f.ticket(t, "TKT-2", model.PriorityCritical, now.Add(-3*time.Hour-30*time.Minute), true)
	breached := f.ticket(t, "TKT-3", model.PriorityHigh, now.Add(-30*time.Hour), false)

	notifier := &fakeNotifier{admins: []uint{99}}
	m := NewMonitor(Evaluator{WarningRatio: 0.8}, notifier, zap.NewNop())
	m.now = func() time.Time { return now }

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Checked)
	assert.Equal(t, 1, result.OnTime)
	assert.Equal(t, 1, result.AtRisk)
	assert.Equal(t, 1, result.Breached)
	assert.Equal(t, 2, result.Transitions)

	var stored model.Ticket
	require.NoError(t, f.db.First(&stored, onTime.ID).Error)
	assert.Equal(t, model.SLAOnTime, stored.SLAStatus)

	require.NoError(t, f.db.First(&stored, atRisk.ID).Error)
	assert.Equal(t, model.SLAAtRisk, stored.SLAStatus)
	assert.Nil(t, stored.SLABreachedAt)

	require.NoError(t, f.db.First(&stored, breached.ID).Error)
	assert.Equal(t, model.SLABreached, stored.SLAStatus)
	require.NotNil(t, stored.SLABreachedAt)

	require.Len(t, notifier.sent, 2)
	byType := map[model.NotificationType]sentAlert{}
	for _, s := range notifier.sent {
		byType[s.msg.Type] = s
	}
	assert.Equal(t, []uint{f.agent.UserID}, byType[model.NotificationSLAWarning].recipients)
	// Unassigned breached ticket goes to admins only
	assert.Equal(t, []uint{99}, byType[model.NotificationSLABreached].recipients)

	// A second run with nothing new must not alert again
	result, err = m.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Transitions)
	assert.Len(t, notifier.sent, 2)
}

func TestMonitorBreachNotifiesAssigneeAndAdmins(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	f.ticket(t, "TKT-1", model.PriorityCritical, now.Add(-5*time.Hour), true)

	notifier := &fakeNotifier{admins: []uint{99}}
	m := NewMonitor(Evaluator{WarningRatio: 0.8}, notifier, zap.NewNop())
	m.now = func() time.Time { return now }

	_, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, model.NotificationSLABreached, notifier.sent[0].msg.Type)
	assert.Equal(t, []uint{f.agent.UserID, 99}, notifier.sent[0].recipients)
}

func TestMonitorIgnoresTerminalTickets(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	ticket := f.ticket(t, "TKT-1", model.PriorityCritical, now.Add(-100*time.Hour), false)
	require.NoError(t, f.db.Model(&ticket).Update("status", model.StatusClosed).Error)

	notifier := &fakeNotifier{}
	result, err := NewMonitor(Evaluator{}, notifier, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Checked)
	assert.Empty(t, notifier.sent)
}

func TestMonitorSkipsWhileRunning(t *testing.T) {
	newFixture(t)
	m := NewMonitor(Evaluator{}, &fakeNotifier{}, zap.NewNop())

	m.running.Lock()
	_, err := m.Run(context.Background())
	m.running.Unlock()
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	_, err = m.Run(context.Background())
	assert.NoError(t, err)
}

func TestMonitorAlertsAdminsWhenAssigneeInactive(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	f.ticket(t, "TKT-1", model.PriorityCritical, now.Add(-3*time.Hour-30*time.Minute), true)
	f.ticket(t, "TKT-2", model.PriorityCritical, now.Add(-5*time.Hour), true)
	require.NoError(t, f.db.Model(&model.User{}).Where("id = ?", f.agent.UserID).Update("is_active", false).Error)

	notifier := &fakeNotifier{admins: []uint{99}}
	m := NewMonitor(Evaluator{WarningRatio: 0.8}, notifier, zap.NewNop())
	m.now = func() time.Time { return now }

	_, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.sent, 2)
	for _, s := range notifier.sent {
		assert.Equal(t, []uint{99}, s.recipients, s.msg.Type)
	}

	require.NoError(t, f.db.Model(&model.User{}).Where("id = ?", f.agent.UserID).Update("is_active", true).Error)
	require.NoError(t, f.db.Model(&f.agent).Update("is_active", false).Error)
	f.ticket(t, "TKT-3", model.PriorityCritical, now.Add(-3*time.Hour-30*time.Minute), true)

	_, err = m.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.sent, 3)
	assert.Equal(t, []uint{99}, notifier.sent[2].recipients)
}

func TestMonitorCheckReevaluatesOneTicket(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	created := now.Add(-20 * time.Hour)
	ticket := f.ticket(t, "TKT-1", model.PriorityLow, created, true)

	notifier := &fakeNotifier{admins: []uint{99}}
	m := NewMonitor(Evaluator{WarningRatio: 0.8}, notifier, zap.NewNop())
	m.now = func() time.Time { return now }

	due := DueDate(created, model.PriorityHigh, 0)
	require.NoError(t, f.db.Model(&ticket).Updates(map[string]interface{}{
		"priority": model.PriorityHigh,
		"due_date": due,
	}).Error)

	ev, ok, err := m.Check(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.SLAAtRisk, ev.Status)

	var stored model.Ticket
	require.NoError(t, f.db.First(&stored, ticket.ID).Error)
	assert.Equal(t, model.SLAAtRisk, stored.SLAStatus)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, model.NotificationSLAWarning, notifier.sent[0].msg.Type)

	_, err = m.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, notifier.sent, 1)

	_, _, err = m.Check(context.Background(), 999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
