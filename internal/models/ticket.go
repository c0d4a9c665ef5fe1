package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketPaid      TicketStatus = "paid"
	TicketRefunded  TicketStatus = "refunded"
	TicketCancelled TicketStatus = "cancelled"
)

// Active reports whether the status counts against the one-active-ticket
// per (event, attendee) rule.
func (s TicketStatus) Active() bool {
	return s == TicketPending || s == TicketPaid
}

// ActiveTicketStatuses lists the statuses covered by the partial unique index
// on (event_id, attendee_id).
var ActiveTicketStatuses = []TicketStatus{TicketPending, TicketPaid}

type Ticket struct {
	ID         string   `json:"id" gorm:"primaryKey;size:36"`
	EventID    string   `json:"event_id" gorm:"size:36;not null;index"`
	Event      Event    `json:"event,omitempty"`
	AttendeeID string   `json:"attendee_id" gorm:"size:36;not null;index"`
	Attendee   Attendee `json:"attendee,omitempty"`

	Status   TicketStatus    `json:"status" gorm:"size:16;not null;default:pending;index"`
	Price    decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	Currency string          `json:"currency" gorm:"size:3;not null;default:BRL"`

	PaymentProvider string         `json:"payment_provider" gorm:"size:32"`
	PaymentID       string         `json:"payment_id" gorm:"size:64;index"`
	PaymentStatus   *string        `json:"payment_status" gorm:"size:64"`
	PaymentPayload  datatypes.JSON `json:"-"`

	EntryToken *string `json:"entry_token,omitempty" gorm:"size:64;uniqueIndex"`

	// Legacy projection of the check-in ledger. Never read for decisions.
	IsCheckIn   bool       `json:"is_check_in" gorm:"not null;default:false"`
	CheckInDate *time.Time `json:"check_in_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Ticket) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
