package ticket

import (
	"regexp"
	"testing"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/apperror"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNumber(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	number := GenerateNumber(now)
	assert.Regexp(t, regexp.MustCompile(`^TKT-20240301-[0-9A-F]{6}$`), number)
	assert.NotEqual(t, number, GenerateNumber(now))
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to model.TicketStatus }{
		{model.StatusOpen, model.StatusInProgress},
		{model.StatusOpen, model.StatusCancelled},
		{model.StatusOpen, model.StatusResolved},
		{model.StatusInProgress, model.StatusWaitingForClient},
		{model.StatusInProgress, model.StatusWaitingForThirdParty},
		{model.StatusWaitingForClient, model.StatusInProgress},
		{model.StatusWaitingForThirdParty, model.StatusResolved},
		{model.StatusResolved, model.StatusClosed},
		{model.StatusResolved, model.StatusInProgress},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to model.TicketStatus }{
		{model.StatusOpen, model.StatusClosed},
		{model.StatusOpen, model.StatusWaitingForClient},
		{model.StatusInProgress, model.StatusOpen},
		{model.StatusResolved, model.StatusCancelled},
		{model.StatusClosed, model.StatusInProgress},
		{model.StatusCancelled, model.StatusOpen},
		{model.StatusOpen, model.StatusOpen},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	assert.Empty(t, NextStatuses(model.StatusClosed))
	assert.Len(t, NextStatuses(model.StatusInProgress), 4)
}

func TestCheckTransition(t *testing.T) {
	cases := []struct {
		name      string
		role      model.Role
		isCreator bool
		from, to  model.TicketStatus
		kind      error
	}{
		{"agent starts work", model.RoleAgent, false, model.StatusOpen, model.StatusInProgress, nil},
		{"admin closes", model.RoleAdmin, false, model.StatusResolved, model.StatusClosed, nil},
		{"terminal", model.RoleAdmin, false, model.StatusClosed, model.StatusInProgress, apperror.ErrInvalidTransition},
		{"unknown status", model.RoleAdmin, false, model.StatusOpen, "Archived", apperror.ErrValidation},
		{"client cancels own open", model.RoleClient, true, model.StatusOpen, model.StatusCancelled, nil},
		{"client closes own resolved", model.RoleClient, true, model.StatusResolved, model.StatusClosed, nil},
		{"client reopens own resolved", model.RoleClient, true, model.StatusResolved, model.StatusInProgress, nil},
		{"client cancels other", model.RoleClient, false, model.StatusOpen, model.StatusCancelled, apperror.ErrForbidden},
		{"client resolves", model.RoleClient, true, model.StatusOpen, model.StatusResolved, apperror.ErrForbidden},
		{"client cancels in progress", model.RoleClient, true, model.StatusInProgress, model.StatusCancelled, apperror.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(tc.role, tc.isCreator, tc.from, tc.to)
			if tc.kind == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestApplyStatus(t *testing.T) {
	now := time.Now()
	ticket := &model.Ticket{Status: model.StatusInProgress}

	ApplyStatus(ticket, model.StatusResolved, now)
	assert.Equal(t, model.StatusResolved, ticket.Status)
	require.NotNil(t, ticket.ResolvedAt)

	ApplyStatus(ticket, model.StatusInProgress, now)
	assert.Nil(t, ticket.ResolvedAt)

	ApplyStatus(ticket, model.StatusResolved, now)
	ApplyStatus(ticket, model.StatusClosed, now)
	assert.NotNil(t, ticket.ClosedAt)
	assert.NotNil(t, ticket.ResolvedAt)
}

func TestMarkFirstResponse(t *testing.T) {
	now := time.Now()
	ticket := &model.Ticket{}

	assert.False(t, MarkFirstResponse(ticket, model.RoleClient, now))
	assert.Nil(t, ticket.FirstResponseAt)

	assert.True(t, MarkFirstResponse(ticket, model.RoleAgent, now))
	assert.False(t, MarkFirstResponse(ticket, model.RoleAdmin, now.Add(time.Hour)))
	assert.Equal(t, now, *ticket.FirstResponseAt)
}

func TestHistoryRows(t *testing.T) {
	id := uint(3)
	rows := HistoryRows(1, 2,
		Change{Field: "status", Old: "Open", New: "InProgress"},
		Change{Field: "priority", Old: "High", New: "High"},
		Change{Field: "assigned_to", Old: FormatID(nil), New: FormatID(&id)},
	)
	require.Len(t, rows, 2)
	assert.Equal(t, "status", rows[0].FieldName)
	assert.Equal(t, "3", rows[1].NewValue)
	assert.Equal(t, uint(2), rows[1].ChangedBy)
	assert.Equal(t, "", FormatTime(nil))
}
