package model

import (
	"time"

	"gorm.io/gorm"
)

// TicketStatus enumerates lifecycle states for tickets
type TicketStatus string

const (
	StatusOpen                 TicketStatus = "Open"
	StatusInProgress           TicketStatus = "InProgress"
	StatusWaitingForClient     TicketStatus = "WaitingForClient"
	StatusWaitingForThirdParty TicketStatus = "WaitingForThirdParty"
	StatusResolved             TicketStatus = "Resolved"
	StatusClosed               TicketStatus = "Closed"
	StatusCancelled            TicketStatus = "Cancelled"
)

// ActiveStatuses are the states in which a ticket still counts against SLA and agent load
var ActiveStatuses = []TicketStatus{
	StatusOpen,
	StatusInProgress,
	StatusWaitingForClient,
	StatusWaitingForThirdParty,
}

// Valid reports whether s is a known status
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusWaitingForClient, StatusWaitingForThirdParty,
		StatusResolved, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether work on the ticket is still pending
func (s TicketStatus) IsActive() bool {
	for _, active := range ActiveStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// Priority enumerates ticket urgency
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// SLAStatus is the last evaluated SLA state of a ticket
type SLAStatus string

const (
	SLAOnTime   SLAStatus = "OnTime"
	SLAAtRisk   SLAStatus = "AtRisk"
	SLABreached SLAStatus = "Breached"
)

// Ticket is a support request
type Ticket struct {
	ID                  uint           `json:"id" gorm:"primaryKey"`
	TicketNumber        string         `json:"ticket_number" gorm:"type:varchar(32);uniqueIndex;not null"`
	Title               string         `json:"title" gorm:"type:varchar(200);not null"`
	Description         string         `json:"description" gorm:"type:text;not null"`
	Status              TicketStatus   `json:"status" gorm:"type:varchar(30);not null;index"`
	Priority            Priority       `json:"priority" gorm:"type:varchar(20);not null;index"`
	CategoryID          uint           `json:"category_id" gorm:"index;not null"`
	SubcategoryID       *uint          `json:"subcategory_id,omitempty" gorm:"index"`
	CreatedBy           uint           `json:"created_by" gorm:"index;not null"`
	AssignedTo          *uint          `json:"assigned_to,omitempty" gorm:"index;comment:'Agent ID'"`
	Location            string         `json:"location" gorm:"type:varchar(150)"`
	DueDate             *time.Time     `json:"due_date,omitempty" gorm:"index"`
	FirstResponseAt     *time.Time     `json:"first_response_at,omitempty"`
	ResolvedAt          *time.Time     `json:"resolved_at,omitempty"`
	ClosedAt            *time.Time     `json:"closed_at,omitempty"`
	SatisfactionRating  *int           `json:"satisfaction_rating,omitempty"`
	SatisfactionComment string         `json:"satisfaction_comment,omitempty" gorm:"type:text"`
	SLAStatus           SLAStatus      `json:"sla_status" gorm:"type:varchar(20);not null;default:'OnTime';index"`
	SLABreachedAt       *time.Time     `json:"sla_breached_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Category    *Category       `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Subcategory *Subcategory    `json:"subcategory,omitempty" gorm:"foreignKey:SubcategoryID"`
	Creator     *User           `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	Assignee    *Agent          `json:"assignee,omitempty" gorm:"foreignKey:AssignedTo"`
	Comments    []TicketComment `json:"comments,omitempty" gorm:"foreignKey:TicketID"`
}

// TicketComment is a message on a ticket; internal comments are hidden from clients
type TicketComment struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TicketID   uint      `json:"ticket_id" gorm:"index;not null"`
	UserID     uint      `json:"user_id" gorm:"index;not null"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	IsInternal bool      `json:"is_internal" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TicketHistory records a single field change on a ticket
type TicketHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TicketID  uint      `json:"ticket_id" gorm:"index;not null"`
	ChangedBy uint      `json:"changed_by" gorm:"index;not null"`
	FieldName string    `json:"field_name" gorm:"type:varchar(50);not null"`
	OldValue  string    `json:"old_value" gorm:"type:text"`
	NewValue  string    `json:"new_value" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`

	User *User `json:"user,omitempty" gorm:"foreignKey:ChangedBy"`
}

// TableName keeps the history table name singular
func (TicketHistory) TableName() string {
	return "ticket_history"
}
