package sla

import (
	"testing"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholds(t *testing.T) {
	cases := []struct {
		priority   model.Priority
		response   int
		resolution int
	}{
		{model.PriorityCritical, 1, 4},
		{model.PriorityHigh, 4, 24},
		{model.PriorityMedium, 8, 48},
		{model.PriorityLow, 24, 72},
	}
	for _, tc := range cases {
		th := ThresholdFor(tc.priority)
		assert.Equal(t, tc.response, th.ResponseHours, tc.priority)
		assert.Equal(t, tc.resolution, th.ResolutionHours, tc.priority)
	}

	assert.Equal(t, 48, ThresholdFor("Unknown").ResolutionHours)

	table := Thresholds()
	require.Len(t, table, 4)
	table[0].ResolutionHours = 999
	assert.Equal(t, 4, ThresholdFor(model.PriorityCritical).ResolutionHours)
}

func TestResolutionTargetCategoryOverride(t *testing.T) {
	assert.Equal(t, 24*time.Hour, ResolutionTarget(model.PriorityHigh, 0))
	assert.Equal(t, 10*time.Hour, ResolutionTarget(model.PriorityHigh, 10))

	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, created.Add(4*time.Hour), DueDate(created, model.PriorityCritical, 0))
}

func TestEvaluate(t *testing.T) {
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	e := Evaluator{WarningRatio: 0.8}

	cases := []struct {
		name   string
		now    time.Time
		status model.SLAStatus
	}{
		{"fresh", created.Add(time.Hour), model.SLAOnTime},
		{"just below warning", created.Add(38 * time.Hour), model.SLAOnTime},
		{"at warning ratio", created.Add(38*time.Hour + 24*time.Minute), model.SLAAtRisk},
		{"exactly due", created.Add(48 * time.Hour), model.SLABreached},
		{"long overdue", created.Add(100 * time.Hour), model.SLABreached},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ticket := &model.Ticket{ID: 1, Status: model.StatusOpen, Priority: model.PriorityMedium, CreatedAt: created}
			ev, ok := e.Evaluate(ticket, tc.now)
			require.True(t, ok)
			assert.Equal(t, tc.status, ev.Status)
		})
	}
}

func TestEvaluateNumbers(t *testing.T) {
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	ticket := &model.Ticket{ID: 7, Status: model.StatusInProgress, Priority: model.PriorityCritical, CreatedAt: created}

	ev, ok := Evaluator{WarningRatio: 0.8}.Evaluate(ticket, created.Add(3*time.Hour))
	require.True(t, ok)
	assert.Equal(t, uint(7), ev.TicketID)
	assert.Equal(t, 3.0, ev.ElapsedHours)
	assert.Equal(t, 1.0, ev.RemainingHours)
	assert.Equal(t, 75.0, ev.PercentUsed)
	assert.Equal(t, model.SLAOnTime, ev.Status)
	assert.True(t, ev.ResponseBreached)
	assert.Equal(t, created.Add(4*time.Hour), ev.DueDate)
}

func TestEvaluateUsesStoredDueDateAndCategory(t *testing.T) {
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	withCategory := &model.Ticket{
		Status: model.StatusOpen, Priority: model.PriorityLow, CreatedAt: created,
		Category: &model.Category{ResolutionHours: 2},
	}
	ev, _ := Evaluator{}.Evaluate(withCategory, created.Add(3*time.Hour))
	assert.Equal(t, model.SLABreached, ev.Status)

	due := created.Add(10 * time.Hour)
	withDue := &model.Ticket{Status: model.StatusOpen, Priority: model.PriorityCritical, CreatedAt: created, DueDate: &due}
	ev, _ = Evaluator{}.Evaluate(withDue, created.Add(5*time.Hour))
	assert.Equal(t, model.SLAOnTime, ev.Status)
	assert.Equal(t, 50.0, ev.PercentUsed)
}

func TestEvaluateSkipsTerminalTickets(t *testing.T) {
	for _, status := range []model.TicketStatus{model.StatusResolved, model.StatusClosed, model.StatusCancelled} {
		_, ok := Evaluator{}.Evaluate(&model.Ticket{Status: status, CreatedAt: time.Now().Add(-1000 * time.Hour)}, time.Now())
		assert.False(t, ok, status)
	}
}
