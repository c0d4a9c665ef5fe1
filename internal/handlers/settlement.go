package handlers

import (
	"context"
	"errors"

	"github.com/lamanada/tickets-api/internal/ledger"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/lamanada/tickets-api/internal/notifier"
	"github.com/lamanada/tickets-api/internal/reconcile"
	"github.com/sirupsen/logrus"
)

type Reconciler interface {
	Reconcile(ctx context.Context, n reconcile.Notification) (reconcile.Result, error)
}

type TicketLookup interface {
	FindByPaymentIDWithRelations(ctx context.Context, paymentID string) (*models.Ticket, error)
}

// Settlement feeds provider snapshots, pushed or polled, to the reconciler
// and tells staff about the transitions they care about.
type Settlement struct {
	reconciler Reconciler
	tickets    TicketLookup
	notifier   notifier.Notifier
}

// NewSettlement accepts a nil notifier.
func NewSettlement(reconciler Reconciler, tickets TicketLookup, n notifier.Notifier) *Settlement {
	return &Settlement{reconciler: reconciler, tickets: tickets, notifier: n}
}

func (s *Settlement) Apply(ctx context.Context, n reconcile.Notification) (reconcile.Result, error) {
	res, err := s.reconciler.Reconcile(ctx, n)
	if err != nil {
		return res, err
	}
	s.notify(ctx, n.PaymentID, res)
	return res, nil
}

func (s *Settlement) notify(ctx context.Context, paymentID string, res reconcile.Result) {
	if s.notifier == nil || !res.TicketFound {
		return
	}
	notice := notifier.TicketNotice{
		TicketID:       res.TicketID,
		PaymentID:      paymentID,
		PreviousStatus: res.PreviousStatus,
		Status:         res.Status,
		TokenIssued:    res.TokenIssued,
	}
	if !notice.Worth() {
		return
	}

	ticket, err := s.tickets.FindByPaymentIDWithRelations(ctx, paymentID)
	switch {
	case err == nil:
		notice.AttendeeName = ticket.Attendee.Name
		notice.AttendeeEmail = ticket.Attendee.Email
	case !errors.Is(err, ledger.ErrTicketNotFound):
		logrus.WithError(err).WithField("payment_id", paymentID).Warn("loading ticket for notification")
	}

	if err := s.notifier.NotifyTicket(ctx, notice); err != nil {
		logrus.WithError(err).WithField("ticket_id", res.TicketID).Warn("staff notification not sent")
	}
}
