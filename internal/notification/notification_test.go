package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/config"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingChannel struct {
	name  string
	err   error
	calls [][]uint
}

func (r *recordingChannel) Name() string { return r.name }

func (r *recordingChannel) Send(_ context.Context, userIDs []uint, _ Message) error {
	r.calls = append(r.calls, userIDs)
	return r.err
}

func seedUsers(t *testing.T, db *gorm.DB) (admin1, admin2, agent, inactiveAdmin model.User) {
	t.Helper()
	admin1 = model.User{Name: "A1", Email: "a1@senai.br", Password: "x", Role: model.RoleAdmin, IsActive: true}
	admin2 = model.User{Name: "A2", Email: "a2@senai.br", Password: "x", Role: model.RoleAdmin, IsActive: true}
	agent = model.User{Name: "Ag", Email: "ag@senai.br", Password: "x", Role: model.RoleAgent, IsActive: true}
	inactiveAdmin = model.User{Name: "A3", Email: "a3@senai.br", Password: "x", Role: model.RoleAdmin, IsActive: true}
	for _, u := range []*model.User{&admin1, &admin2, &agent, &inactiveAdmin} {
		require.NoError(t, db.Create(u).Error)
	}
	require.NoError(t, db.Model(&inactiveAdmin).Update("is_active", false).Error)
	return
}

func TestNotifyDeduplicatesAndStores(t *testing.T) {
	db := dbtest.OpenTestDB(t)
	admin1, admin2, _, _ := seedUsers(t, db)
	ticketID := uint(42)

	svc := NewService()
	err := svc.Notify(context.Background(), []uint{admin1.ID, admin2.ID, admin1.ID, 0}, Message{
		Type:     model.NotificationTicketCreated,
		Title:    "New ticket TKT-1: R&D printer",
		Message:  "Printer is broken",
		TicketID: &ticketID,
		Metadata: map[string]interface{}{"ticket_number": "TKT-1"},
	})
	require.NoError(t, err)

	var rows []model.Notification
	require.NoError(t, db.Order("user_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, admin1.ID, rows[0].UserID)
	assert.Equal(t, admin2.ID, rows[1].UserID)
	assert.Equal(t, "New ticket TKT-1: R&D printer", rows[0].Title)
	assert.Equal(t, CategoryInfo, rows[0].Category)
	assert.JSONEq(t, `{"ticket_number":"TKT-1"}`, rows[0].Metadata)
	assert.False(t, rows[0].IsRead)
}

func TestNotifyWithNoRecipientsIsNoop(t *testing.T) {
	db := dbtest.OpenTestDB(t)
	channel := &recordingChannel{name: "push"}

	require.NoError(t, NewService(channel).Notify(context.Background(), nil, Message{Type: model.NotificationSystem, Title: "x"}))

	var count int64
	db.Model(&model.Notification{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, channel.calls)
}

func TestNotifyChannelFailureIsNotReturned(t *testing.T) {
	db := dbtest.OpenTestDB(t)
	admin1, _, _, _ := seedUsers(t, db)
	failing := &recordingChannel{name: "push", err: errors.New("gateway down")}
	ok := &recordingChannel{name: "email"}

	err := NewService(failing, ok).Notify(context.Background(), []uint{admin1.ID}, Message{Type: model.NotificationSystem, Title: "x"})
	require.NoError(t, err)
	assert.Len(t, failing.calls, 1)
	assert.Equal(t, [][]uint{{admin1.ID}}, ok.calls)
}

func TestNotifyRoleSkipsInactiveAndExcluded(t *testing.T) {
	db := dbtest.OpenTestDB(t)
	admin1, admin2, _, _ := seedUsers(t, db)

	require.NoError(t, NewService().NotifyRole(context.Background(), model.RoleAdmin,
		Message{Type: model.NotificationSystem, Title: "maintenance"}, admin1.ID))

	var userIDs []uint
	require.NoError(t, db.Model(&model.Notification{}).Pluck("user_id", &userIDs).Error)
	assert.Equal(t, []uint{admin2.ID}, userIDs)
}

func TestPurgeRead(t *testing.T) {
	db := dbtest.OpenTestDB(t)
	admin1, _, _, _ := seedUsers(t, db)

	old := time.Now().AddDate(0, 0, -40)
	rows := []model.Notification{
		{UserID: admin1.ID, Type: model.NotificationSystem, Title: "old read", IsRead: true, CreatedAt: old},
		{UserID: admin1.ID, Type: model.NotificationSystem, Title: "old unread", IsRead: false, CreatedAt: old},
		{UserID: admin1.ID, Type: model.NotificationSystem, Title: "new read", IsRead: true},
	}
	require.NoError(t, db.Create(&rows).Error)

	NewService().RetentionJob(30)(context.Background())

	var titles []string
	require.NoError(t, db.Model(&model.Notification{}).Order("id").Pluck("title", &titles).Error)
	assert.Equal(t, []string{"old unread", "new read"}, titles)
}

func TestChannelsFromConfig(t *testing.T) {
	assert.Empty(t, ChannelsFromConfig(config.NotificationConfig{}))

	channels := ChannelsFromConfig(config.NotificationConfig{PushEnabled: true, EmailEnabled: true})
	require.Len(t, channels, 2)
	assert.Equal(t, "push", channels[0].Name())
	assert.Equal(t, "email", channels[1].Name())
	assert.NoError(t, channels[0].Send(context.Background(), []uint{1}, Message{Title: "x"}))
}
