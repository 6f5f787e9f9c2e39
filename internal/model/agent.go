package model

import "time"

// Agent is the staff profile of a user who resolves tickets
type Agent struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	EmployeeID string    `json:"employee_id" gorm:"type:varchar(50);uniqueIndex;not null"`
	Department string    `json:"department" gorm:"type:varchar(100)"`
	Skills     string    `json:"skills" gorm:"type:text"`
	MaxTickets int       `json:"max_tickets" gorm:"not null;default:10"`
	IsActive   bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Relations
	User       *User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Categories []Category `json:"categories,omitempty" gorm:"many2many:agent_categories;"`
}
