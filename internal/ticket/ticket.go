// Package ticket holds the ticket lifecycle rules shared by the HTTP handlers.
package ticket

import (
	"fmt"
	"strings"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/apperror"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/google/uuid"
)

// GenerateNumber returns a ticket number such as TKT-20240301-4F2A9C
func GenerateNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("TKT-%s-%s", now.Format("20060102"), suffix)
}

var transitions = map[model.TicketStatus][]model.TicketStatus{
	model.StatusOpen: {
		model.StatusInProgress, model.StatusCancelled, model.StatusResolved,
	},
	model.StatusInProgress: {
		model.StatusWaitingForClient, model.StatusWaitingForThirdParty, model.StatusResolved, model.StatusCancelled,
	},
	model.StatusWaitingForClient: {
		model.StatusInProgress, model.StatusResolved, model.StatusCancelled,
	},
	model.StatusWaitingForThirdParty: {
		model.StatusInProgress, model.StatusResolved, model.StatusCancelled,
	},
	model.StatusResolved: {
		model.StatusClosed, model.StatusInProgress,
	},
}

// CanTransition reports whether a ticket may move from one status to another
func CanTransition(from, to model.TicketStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s
func NextStatuses(s model.TicketStatus) []model.TicketStatus {
	return append([]model.TicketStatus(nil), transitions[s]...)
}

// CheckTransition validates a status change requested by a user with role.
// isCreator tells whether the user opened the ticket.
func CheckTransition(role model.Role, isCreator bool, from, to model.TicketStatus) error {
	if !to.Valid() {
		return apperror.Validation(fmt.Sprintf("unknown status %q", to))
	}
	if !CanTransition(from, to) {
		return apperror.New(apperror.ErrInvalidTransition,
			fmt.Sprintf("cannot change ticket status from %s to %s", from, to))
	}
	if role != model.RoleClient {
		return nil
	}

	if !isCreator {
		return apperror.Forbidden("you can only change your own tickets")
	}
	switch {
	case from == model.StatusOpen && to == model.StatusCancelled:
	case from == model.StatusResolved && (to == model.StatusClosed || to == model.StatusInProgress):
	default:
		return apperror.Forbidden(fmt.Sprintf("clients cannot change a ticket from %s to %s", from, to))
	}
	return nil
}

// ApplyStatus sets the new status and the timestamps that go with it
func ApplyStatus(t *model.Ticket, to model.TicketStatus, now time.Time) {
	switch to {
	case model.StatusResolved:
		t.ResolvedAt = &now
	case model.StatusClosed:
		t.ClosedAt = &now
	case model.StatusInProgress:
		if t.Status == model.StatusResolved {
			// Reopened
			t.ResolvedAt = nil
		}
	}
	t.Status = to
}

// MarkFirstResponse records the first reaction of staff on the ticket
func MarkFirstResponse(t *model.Ticket, role model.Role, now time.Time) bool {
	if role == model.RoleClient || t.FirstResponseAt != nil {
		return false
	}
	t.FirstResponseAt = &now
	return true
}
