package model

import "time"

// NotificationType identifies the event behind a notification
type NotificationType string

const (
	NotificationTicketCreated       NotificationType = "TicketCreated"
	NotificationTicketAssigned      NotificationType = "TicketAssigned"
	NotificationTicketUpdated       NotificationType = "TicketUpdated"
	NotificationTicketStatusChanged NotificationType = "TicketStatusChanged"
	NotificationTicketCommented     NotificationType = "TicketCommented"
	NotificationSLAWarning          NotificationType = "SLAWarning"
	NotificationSLABreached         NotificationType = "SLABreached"
	NotificationSystem              NotificationType = "System"
)

// Notification is an in-app message addressed to one user
type Notification struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	UserID    uint             `json:"user_id" gorm:"index;not null"`
	Type      NotificationType `json:"type" gorm:"type:varchar(40);not null;index"`
	Title     string           `json:"title" gorm:"type:varchar(200);not null"`
	Message   string           `json:"message" gorm:"type:text"`
	Category  string           `json:"category" gorm:"type:varchar(20);not null;default:'info'"`
	TicketID  *uint            `json:"ticket_id,omitempty" gorm:"index"`
	Metadata  string           `json:"metadata,omitempty" gorm:"type:text"`
	IsRead    bool             `json:"is_read" gorm:"not null;default:false;index"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at" gorm:"index"`
	UpdatedAt time.Time        `json:"updated_at"`
}
