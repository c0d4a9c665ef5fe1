package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Staff is a dashboard/scanner operator, created on first OAuth login.
type Staff struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	Email       string     `json:"email" gorm:"uniqueIndex;not null"`
	Name        string     `json:"name"`
	Avatar      string     `json:"avatar"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Staff) TableName() string {
	return "staff"
}

func (s *Staff) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
