package model

import "time"

// Client is the requester profile of a user (students and staff opening tickets)
type Client struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	Matricula  string    `json:"matricula" gorm:"type:varchar(50);uniqueIndex;not null"`
	Department string    `json:"department" gorm:"type:varchar(100)"`
	JobTitle   string    `json:"job_title" gorm:"type:varchar(100)"`
	CPF        string    `json:"cpf,omitempty" gorm:"type:varchar(14)"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
