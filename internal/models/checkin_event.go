package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// CheckinEvent is an append-only movement record. Seq numbers the events of a
// ticket from 1; the (ticket_id, seq) pair is unique.
type CheckinEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	TicketID  string    `json:"ticket_id" gorm:"size:36;not null;uniqueIndex:idx_checkin_ticket_seq,priority:1"`
	Seq       int       `json:"seq" gorm:"not null;uniqueIndex:idx_checkin_ticket_seq,priority:2"`
	Direction Direction `json:"direction" gorm:"size:3;not null"`
	At        time.Time `json:"at" gorm:"not null;index"`
	ActorID   *string   `json:"actor_id" gorm:"size:36"`
}

func (e *CheckinEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
