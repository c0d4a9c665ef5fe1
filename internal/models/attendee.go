package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShirtSize string

const (
	ShirtPP ShirtSize = "PP"
	ShirtP  ShirtSize = "P"
	ShirtM  ShirtSize = "M"
	ShirtG  ShirtSize = "G"
	ShirtGG ShirtSize = "GG"
	ShirtXG ShirtSize = "XG"
)

// Attendee is one person ever registered. Email is stored lowercased and is
// unique.
type Attendee struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	Name           string    `json:"name" gorm:"not null"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email" gorm:"uniqueIndex;not null"`
	ShirtSize      ShirtSize `json:"shirt_size" gorm:"size:2;not null;default:M"`
	IsLegendario   bool      `json:"is_legendario" gorm:"not null;default:false"`
	ReferralSource *string   `json:"referral_source"`
	Notes          *string   `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (a *Attendee) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
