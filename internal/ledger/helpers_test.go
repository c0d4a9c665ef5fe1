package ledger_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedEvent(t *testing.T, db *gorm.DB) models.Event {
	t.Helper()
	event := models.Event{Name: "La Manada", IsActive: true}
	require.NoError(t, db.Create(&event).Error)
	return event
}

func seedAttendee(t *testing.T, db *gorm.DB, name string) models.Attendee {
	t.Helper()
	attendee := models.Attendee{
		Name:      name,
		Email:     fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		ShirtSize: models.ShirtM,
	}
	require.NoError(t, db.Create(&attendee).Error)
	return attendee
}

func seedTicket(t *testing.T, db *gorm.DB, event models.Event, attendee models.Attendee, status models.TicketStatus, token string) models.Ticket {
	t.Helper()
	ticket := models.Ticket{
		EventID:         event.ID,
		AttendeeID:      attendee.ID,
		Status:          status,
		Price:           decimal.NewFromInt(150),
		Currency:        "BRL",
		PaymentProvider: "asaas",
		PaymentID:       "pay_" + uuid.NewString()[:8],
	}
	if token != "" {
		ticket.EntryToken = &token
	}
	require.NoError(t, db.Create(&ticket).Error)
	return ticket
}
