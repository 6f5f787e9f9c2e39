package sla

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/notification"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrAlreadyRunning is returned when a run is requested while another one is in progress
var ErrAlreadyRunning = errors.New("sla check already running")

// Notifier is the part of the notification service the monitor needs
type Notifier interface {
	Notify(ctx context.Context, recipients []uint, msg notification.Message) error
	UserIDsByRole(ctx context.Context, role model.Role) ([]uint, error)
}

// RunResult summarises one monitor run
type RunResult struct {
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"-"`
	Checked     int           `json:"checked"`
	OnTime      int           `json:"on_time"`
	AtRisk      int           `json:"at_risk"`
	Breached    int           `json:"breached"`
	Transitions int           `json:"transitions"`
}

// Monitor periodically re-evaluates active tickets and raises alerts on SLA transitions
type Monitor struct {
	evaluator Evaluator
	notifier  Notifier
	log       *zap.Logger
	now       func() time.Time

	running sync.Mutex
}

// NewMonitor creates a monitor
func NewMonitor(evaluator Evaluator, notifier Notifier, log *zap.Logger) *Monitor {
	return &Monitor{
		evaluator: evaluator,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// Job adapts Run to the scheduler
func (m *Monitor) Job(ctx context.Context) {
	if _, err := m.Run(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		m.log.Error("SLA check failed", zap.Error(err))
	}
}

// Run evaluates every active ticket once. A concurrent call returns ErrAlreadyRunning.
func (m *Monitor) Run(ctx context.Context) (*RunResult, error) {
	if !m.running.TryLock() {
		m.log.Info("SLA check skipped, previous run still in progress")
		prometheus.RecordSLARun("skipped", 0)
		return nil, ErrAlreadyRunning
	}
	defer m.running.Unlock()

	result := &RunResult{StartedAt: m.now()}
	err := m.run(ctx, result)
	result.Duration = m.now().Sub(result.StartedAt)

	if err != nil {
		prometheus.RecordSLARun("failed", result.Duration)
		return result, err
	}
	prometheus.RecordSLARun("success", result.Duration)
	prometheus.UpdateSLATickets(string(model.SLAOnTime), result.OnTime)
	prometheus.UpdateSLATickets(string(model.SLAAtRisk), result.AtRisk)
	prometheus.UpdateSLATickets(string(model.SLABreached), result.Breached)

	m.log.Info("SLA check completed",
		zap.Int("checked", result.Checked),
		zap.Int("at_risk", result.AtRisk),
		zap.Int("breached", result.Breached),
		zap.Int("transitions", result.Transitions),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (m *Monitor) run(ctx context.Context, result *RunResult) error {
	var tickets []model.Ticket
	err := loadTickets(database.GetDB().WithContext(ctx)).
		Where("status IN ?", model.ActiveStatuses).
		Find(&tickets).Error
	if err != nil {
		return fmt.Errorf("failed to load active tickets: %w", err)
	}

	now := m.now()
	for i := range tickets {
		if err := ctx.Err(); err != nil {
			return err
		}
		ticket := &tickets[i]
		ev, changed, ok := m.apply(ctx, ticket, now)
		if !ok {
			continue
		}
		result.Checked++
		switch ev.Status {
		case model.SLAOnTime:
			result.OnTime++
		case model.SLAAtRisk:
			result.AtRisk++
		case model.SLABreached:
			result.Breached++
		}
		if changed {
			result.Transitions++
		}
	}
	return nil
}

// Check re-evaluates one ticket right away, e.g. after its priority changed.
// It reports false when the ticket is no longer active.
func (m *Monitor) Check(ctx context.Context, ticketID uint) (Evaluation, bool, error) {
	var ticket model.Ticket
	err := loadTickets(database.GetDB().WithContext(ctx)).First(&ticket, ticketID).Error
	if err != nil {
		return Evaluation{}, false, err
	}
	ev, _, ok := m.apply(ctx, &ticket, m.now())
	return ev, ok, nil
}

func loadTickets(db *gorm.DB) *gorm.DB {
	return db.Preload("Category").Preload("Assignee.User")
}

// apply evaluates ticket and persists and alerts on a status change
func (m *Monitor) apply(ctx context.Context, ticket *model.Ticket, now time.Time) (Evaluation, bool, bool) {
	ev, ok := m.evaluator.Evaluate(ticket, now)
	if !ok {
		return ev, false, false
	}
	if ev.Status == ticket.SLAStatus {
		return ev, false, true
	}
	changed, err := m.transition(ctx, ticket, ev.Status, now)
	if err != nil {
		m.log.Error("Failed to update ticket SLA status",
			zap.Uint("ticket_id", ticket.ID),
			zap.String("status", string(ev.Status)),
			zap.Error(err))
		return ev, false, true
	}
	if changed {
		m.alert(ctx, ticket, ev)
	}
	return ev, changed, true
}

// transition persists the new status unless another writer changed it since the ticket was loaded
func (m *Monitor) transition(ctx context.Context, ticket *model.Ticket, status model.SLAStatus, now time.Time) (bool, error) {
	updates := map[string]interface{}{"sla_status": status}
	if status == model.SLABreached && ticket.SLABreachedAt == nil {
		updates["sla_breached_at"] = now
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	res := database.GetDB().WithContext(ctx).Model(&model.Ticket{}).
		Where("id = ? AND sla_status = ?", ticket.ID, ticket.SLAStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	prometheus.RecordSLATransition(string(status))
	m.log.Info("Ticket SLA status changed",
		zap.Uint("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("from", string(ticket.SLAStatus)),
		zap.String("to", string(status)))
	return true, nil
}

// alert notifies on escalations only; a ticket moving back to OnTime is silent
func (m *Monitor) alert(ctx context.Context, ticket *model.Ticket, ev Evaluation) {
	if !worse(ev.Status, ticket.SLAStatus) {
		return
	}

	var recipients []uint
	if assigneeActive(ticket.Assignee) {
		recipients = append(recipients, ticket.Assignee.UserID)
	}
	if ev.Status == model.SLABreached || len(recipients) == 0 {
		admins, err := m.notifier.UserIDsByRole(ctx, model.RoleAdmin)
		if err != nil {
			m.log.Error("Failed to load admins for SLA alert", zap.Error(err))
		}
		recipients = append(recipients, admins...)
	}

	msg := notification.Message{
		TicketID: &ticket.ID,
		Metadata: map[string]interface{}{
			"ticket_number":   ticket.TicketNumber,
			"priority":        ticket.Priority,
			"due_date":        ev.DueDate,
			"percent_used":    ev.PercentUsed,
			"remaining_hours": ev.RemainingHours,
		},
	}
	if ev.Status == model.SLABreached {
		msg.Type = model.NotificationSLABreached
		msg.Category = notification.CategoryError
		msg.Title = fmt.Sprintf("SLA breached: %s", ticket.TicketNumber)
		msg.Message = fmt.Sprintf("Ticket %s (%s) passed its due date %s.",
			ticket.TicketNumber, ticket.Title, ev.DueDate.Format(time.RFC3339))
	} else {
		msg.Type = model.NotificationSLAWarning
		msg.Category = notification.CategoryWarning
		msg.Title = fmt.Sprintf("SLA at risk: %s", ticket.TicketNumber)
		msg.Message = fmt.Sprintf("Ticket %s (%s) used %.0f%% of its resolution time, %.1f hours left.",
			ticket.TicketNumber, ticket.Title, ev.PercentUsed, ev.RemainingHours)
	}

	if err := m.notifier.Notify(ctx, recipients, msg); err != nil {
		m.log.Error("Failed to send SLA alert", zap.Uint("ticket_id", ticket.ID), zap.Error(err))
	}
}

// assigneeActive reports whether the assigned agent can still act on alerts
func assigneeActive(a *model.Agent) bool {
	if a == nil || !a.IsActive {
		return false
	}
	return a.User == nil || a.User.IsActive
}

var severity = map[model.SLAStatus]int{
	model.SLAOnTime:   0,
	model.SLAAtRisk:   1,
	model.SLABreached: 2,
}

func worse(a, b model.SLAStatus) bool {
	return severity[a] > severity[b]
}
