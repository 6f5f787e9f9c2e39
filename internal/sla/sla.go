// Package sla computes service level targets for tickets and tracks their status.
package sla

import (
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
)

// Threshold is the response and resolution target for a priority, in hours
type Threshold struct {
	Priority        model.Priority `json:"priority"`
	ResponseHours   int            `json:"response_hours"`
	ResolutionHours int            `json:"resolution_hours"`
}

var thresholds = []Threshold{
	{Priority: model.PriorityCritical, ResponseHours: 1, ResolutionHours: 4},
	{Priority: model.PriorityHigh, ResponseHours: 4, ResolutionHours: 24},
	{Priority: model.PriorityMedium, ResponseHours: 8, ResolutionHours: 48},
	{Priority: model.PriorityLow, ResponseHours: 24, ResolutionHours: 72},
}

// Thresholds returns the target table, most urgent first
func Thresholds() []Threshold {
	out := make([]Threshold, len(thresholds))
	copy(out, thresholds)
	return out
}

// ThresholdFor returns the targets for p; unknown priorities get the Medium targets
func ThresholdFor(p model.Priority) Threshold {
	for _, t := range thresholds {
		if t.Priority == p {
			return t
		}
	}
	return thresholds[2]
}

// ResolutionTarget is the time allowed to resolve a ticket; a positive
// categoryHours replaces the table value
func ResolutionTarget(p model.Priority, categoryHours int) time.Duration {
	if categoryHours > 0 {
		return time.Duration(categoryHours) * time.Hour
	}
	return time.Duration(ThresholdFor(p).ResolutionHours) * time.Hour
}

// DueDate returns when a ticket opened at createdAt must be resolved
func DueDate(createdAt time.Time, p model.Priority, categoryHours int) time.Time {
	return createdAt.Add(ResolutionTarget(p, categoryHours))
}

// Evaluation is the SLA state of one ticket at a point in time
type Evaluation struct {
	TicketID         uint            `json:"ticket_id"`
	Priority         model.Priority  `json:"priority"`
	Status           model.SLAStatus `json:"status"`
	DueDate          time.Time       `json:"due_date"`
	ResponseDue      time.Time       `json:"response_due"`
	ResponseBreached bool            `json:"response_breached"`
	ElapsedHours     float64         `json:"elapsed_hours"`
	RemainingHours   float64         `json:"remaining_hours"`
	PercentUsed      float64         `json:"percent_used"`
	Elapsed          time.Duration   `json:"-"`
	Remaining        time.Duration   `json:"-"`
}

// Evaluator classifies tickets against their targets
type Evaluator struct {
	// WarningRatio is the share of the resolution window after which a ticket is at risk
	WarningRatio float64
}

// Evaluate computes the SLA state of t at now. It reports false for tickets
// that are no longer active.
func (e Evaluator) Evaluate(t *model.Ticket, now time.Time) (Evaluation, bool) {
	if !t.Status.IsActive() {
		return Evaluation{}, false
	}

	categoryHours := 0
	if t.Category != nil {
		categoryHours = t.Category.ResolutionHours
	}
	due := DueDate(t.CreatedAt, t.Priority, categoryHours)
	if t.DueDate != nil {
		due = *t.DueDate
	}
	responseDue := t.CreatedAt.Add(time.Duration(ThresholdFor(t.Priority).ResponseHours) * time.Hour)

	elapsed := now.Sub(t.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := due.Sub(now)
	window := due.Sub(t.CreatedAt)

	percent := 100.0
	if window > 0 {
		percent = float64(elapsed) / float64(window) * 100
	}

	ev := Evaluation{
		TicketID:       t.ID,
		Priority:       t.Priority,
		DueDate:        due,
		ResponseDue:    responseDue,
		Elapsed:        elapsed,
		Remaining:      remaining,
		ElapsedHours:   round(elapsed.Hours()),
		RemainingHours: round(remaining.Hours()),
		PercentUsed:    round(percent),
	}
	if t.FirstResponseAt != nil {
		ev.ResponseBreached = t.FirstResponseAt.After(responseDue)
	} else {
		ev.ResponseBreached = now.After(responseDue)
	}

	ratio := e.WarningRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.8
	}
	switch {
	case !now.Before(due):
		ev.Status = model.SLABreached
	case percent >= ratio*100:
		ev.Status = model.SLAAtRisk
	default:
		ev.Status = model.SLAOnTime
	}
	return ev, true
}

func round(v float64) float64 {
	return float64(int64(v*100+sign(v)*0.5)) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
