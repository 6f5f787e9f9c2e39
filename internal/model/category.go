package model

import (
	"time"

	"gorm.io/gorm"
)

// Category groups tickets by subject and drives routing to agents
type Category struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Name            string         `json:"name" gorm:"type:varchar(100);not null;index"`
	Description     string         `json:"description" gorm:"type:text"`
	Color           string         `json:"color" gorm:"type:varchar(20)"`
	Icon            string         `json:"icon" gorm:"type:varchar(50)"`
	IsActive        bool           `json:"is_active" gorm:"not null;default:true"`
	DefaultPriority Priority       `json:"default_priority" gorm:"type:varchar(20);not null;default:'Medium'"`
	ResolutionHours int            `json:"resolution_hours" gorm:"not null;default:0;comment:'Overrides the SLA resolution target when positive'"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`

	Subcategories []Subcategory `json:"subcategories,omitempty" gorm:"foreignKey:CategoryID"`
}

// Subcategory refines a category
type Subcategory struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	CategoryID  uint           `json:"category_id" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	Description string         `json:"description" gorm:"type:text"`
	IsActive    bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
