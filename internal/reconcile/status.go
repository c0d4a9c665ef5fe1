package reconcile

import (
	"strings"

	"github.com/lamanada/tickets-api/internal/models"
)

// MapStatus translates Asaas vocabulary into a ticket status. Paid wins over
// pending, pending over refunded, refunded over cancelled. Anything not
// recognised maps to pending so an unexpected status never blocks entry.
func MapStatus(providerStatus, eventType string) models.TicketStatus {
	s := strings.ToUpper(strings.TrimSpace(providerStatus))
	e := strings.ToUpper(strings.TrimSpace(eventType))

	switch {
	case s == "CONFIRMED" || s == "RECEIVED" || e == "PAYMENT_CONFIRMED" || e == "PAYMENT_RECEIVED":
		return models.TicketPaid
	case s == "PENDING" || e == "PAYMENT_CREATED" || e == "PAYMENT_UPDATED":
		return models.TicketPending
	case s == "REFUNDED" || s == "CHARGEBACK" || e == "PAYMENT_REFUNDED" || e == "PAYMENT_CHARGEBACK":
		return models.TicketRefunded
	case s == "CANCELLED" || e == "PAYMENT_DELETED" || e == "PAYMENT_CANCELLED":
		return models.TicketCancelled
	default:
		return models.TicketPending
	}
}
