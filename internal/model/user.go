package model

import (
	"time"

	"gorm.io/gorm"
)

// Role is the access level of a user
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleAgent  Role = "Agent"
	RoleClient Role = "Client"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleClient:
		return true
	}
	return false
}

// User represents an account that can sign in to the helpdesk
type User struct {
	ID                     uint           `json:"id" gorm:"primaryKey"`
	Name                   string         `json:"name" gorm:"type:varchar(150);not null"`
	Email                  string         `json:"email" gorm:"type:varchar(150);uniqueIndex;not null"`
	Password               string         `json:"-" gorm:"type:varchar(255);not null"`
	Phone                  string         `json:"phone" gorm:"type:varchar(30)"`
	AvatarURL              string         `json:"avatar_url" gorm:"type:varchar(500)"`
	AvatarKey              string         `json:"-" gorm:"type:varchar(255)"`
	Role                   Role           `json:"role" gorm:"type:varchar(20);not null;index"`
	IsActive               bool           `json:"is_active" gorm:"not null;default:true"`
	TwoFactorEnabled       bool           `json:"two_factor_enabled" gorm:"not null;default:false"`
	TwoFactorSecret        string         `json:"-" gorm:"type:varchar(128)"`
	TwoFactorPendingSecret string         `json:"-" gorm:"type:varchar(128)"`
	TwoFactorLastStep      int64          `json:"-" gorm:"not null;default:0"`
	TokensValidAfter       *time.Time     `json:"-"`
	LastLoginAt            *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Agent  *Agent  `json:"agent,omitempty" gorm:"foreignKey:UserID"`
	Client *Client `json:"client,omitempty" gorm:"foreignKey:UserID"`
}
