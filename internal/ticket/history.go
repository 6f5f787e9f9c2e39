package ticket

import (
	"strconv"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
)

// Change is one field change to record in the ticket history
type Change struct {
	Field string
	Old   string
	New   string
}

// HistoryRows turns changes into history rows, dropping no-op changes
func HistoryRows(ticketID, userID uint, changes ...Change) []model.TicketHistory {
	rows := make([]model.TicketHistory, 0, len(changes))
	for _, c := range changes {
		if c.Old == c.New {
			continue
		}
		rows = append(rows, model.TicketHistory{
			TicketID:  ticketID,
			ChangedBy: userID,
			FieldName: c.Field,
			OldValue:  c.Old,
			NewValue:  c.New,
		})
	}
	return rows
}

// FormatID renders an optional ID for history values
func FormatID(id *uint) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*id), 10)
}

// FormatTime renders an optional time for history values
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
