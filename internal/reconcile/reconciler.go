// Package reconcile turns payment provider notifications into ticket
// lifecycle transitions and issues entry tokens exactly once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lamanada/tickets-api/internal/database"
	"github.com/lamanada/tickets-api/internal/ledger"
	"github.com/lamanada/tickets-api/internal/metrics"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
)

const DefaultMaxAttempts = 5

// ErrTokenCollision means every token written for a ticket collided with an
// existing one. The notification should be answered with an error so the
// provider redelivers it.
var ErrTokenCollision = errors.New("entry token collided on every attempt")

// errSlotTaken means a newer active ticket claimed the (event, attendee) slot
// while a terminal ticket was being moved back to paid.
var errSlotTaken = errors.New("active ticket slot taken")

var tracer = otel.Tracer("github.com/lamanada/tickets-api/internal/reconcile")

// Tickets is the slice of the ticket ledger the reconciler needs.
type Tickets interface {
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Ticket, error)
	FindActive(ctx context.Context, eventID, attendeeID string) (*models.Ticket, error)
	Get(ctx context.Context, id string) (*models.Ticket, error)
	UpdatePayment(ctx context.Context, id string, upd ledger.PaymentUpdate) error
	IssueEntryToken(ctx context.Context, id string, upd ledger.PaymentUpdate, token string) (bool, error)
}

// Notification is one provider status snapshot, pushed or polled.
type Notification struct {
	PaymentID      string
	ProviderStatus string
	EventType      string
	Payload        datatypes.JSON
}

type Result struct {
	Ignored        bool                `json:"ignored,omitempty"`
	TicketFound    bool                `json:"ticket_found"`
	TicketID       string              `json:"ticket_id,omitempty"`
	PreviousStatus models.TicketStatus `json:"previous_status,omitempty"`
	Status         models.TicketStatus `json:"status,omitempty"`
	EntryToken     *string             `json:"-"`
	TokenIssued    bool                `json:"token_issued"`
	Changed        bool                `json:"changed"`
	// Superseded is set when the ticket was terminal and another active
	// ticket now holds its (event, attendee) slot, so its status was kept.
	Superseded bool `json:"superseded,omitempty"`
}

type Reconciler struct {
	tickets     Tickets
	generate    TokenGenerator
	maxAttempts int
}

type Option func(*Reconciler)

func WithTokenGenerator(gen TokenGenerator) Option {
	return func(r *Reconciler) { r.generate = gen }
}

func WithMaxAttempts(n int) Option {
	return func(r *Reconciler) { r.maxAttempts = n }
}

func NewReconciler(tickets Tickets, opts ...Option) *Reconciler {
	r := &Reconciler{
		tickets:     tickets,
		generate:    GenerateToken,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile applies a notification to the ticket linked to its payment id.
// Unknown or missing payment ids are acknowledged without error; only
// persistence failures and ErrTokenCollision are returned.
func (r *Reconciler) Reconcile(ctx context.Context, n Notification) (Result, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", n.PaymentID),
		attribute.String("payment.status", n.ProviderStatus),
		attribute.String("payment.event", n.EventType),
	)

	res, err := r.reconcile(ctx, n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.TrackReconciliation(outcome(res, err))
	return res, err
}

func (r *Reconciler) reconcile(ctx context.Context, n Notification) (Result, error) {
	paymentID := strings.TrimSpace(n.PaymentID)
	if paymentID == "" {
		return Result{Ignored: true}, nil
	}

	log := logrus.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"status":     n.ProviderStatus,
		"event":      n.EventType,
	})

	ticket, err := r.tickets.FindByPaymentID(ctx, paymentID)
	if errors.Is(err, ledger.ErrTicketNotFound) {
		log.Info("no ticket for payment, acknowledging")
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("finding ticket for payment %s: %w", paymentID, err)
	}

	res := Result{
		TicketFound:    true,
		TicketID:       ticket.ID,
		PreviousStatus: ticket.Status,
		Status:         MapStatus(n.ProviderStatus, n.EventType),
		EntryToken:     ticket.EntryToken,
	}

	if res.Status.Active() && !ticket.Status.Active() {
		held, err := r.supersededBy(ctx, ticket)
		if err != nil {
			return res, err
		}
		if held {
			log.WithField("ticket_id", ticket.ID).Warn("ticket replaced by a newer active ticket, keeping terminal status")
			res.Status = ticket.Status
			res.Superseded = true
		}
	}
	res.Changed = res.Status != ticket.Status

	upd := ledger.PaymentUpdate{
		Status:        res.Status,
		PaymentStatus: rawStatus(n),
		Payload:       n.Payload,
	}

	if res.Status != models.TicketPaid || ticket.EntryToken != nil {
		if err := r.tickets.UpdatePayment(ctx, ticket.ID, upd); err != nil {
			return res, fmt.Errorf("updating ticket %s: %w", ticket.ID, err)
		}
		return res, nil
	}

	token, err := r.issue(ctx, ticket, upd)
	if errors.Is(err, errSlotTaken) {
		log.WithField("ticket_id", ticket.ID).Warn("ticket replaced while issuing token, keeping terminal status")
		res.Status = ticket.Status
		res.Superseded = true
		res.Changed = false
		upd.Status = ticket.Status
		if err := r.tickets.UpdatePayment(ctx, ticket.ID, upd); err != nil {
			return res, fmt.Errorf("updating ticket %s: %w", ticket.ID, err)
		}
		return res, nil
	}
	if err != nil {
		return res, err
	}
	if token != "" {
		res.EntryToken = &token
		res.TokenIssued = true
		log.WithField("ticket_id", ticket.ID).Info("entry token issued")
		return res, nil
	}

	// A concurrent delivery issued the token first. Persist this snapshot and
	// report the token that won.
	if err := r.tickets.UpdatePayment(ctx, ticket.ID, upd); err != nil {
		return res, fmt.Errorf("updating ticket %s: %w", ticket.ID, err)
	}
	current, err := r.tickets.Get(ctx, ticket.ID)
	if err != nil {
		return res, fmt.Errorf("re-reading ticket %s: %w", ticket.ID, err)
	}
	res.EntryToken = current.EntryToken
	return res, nil
}

// issue writes a fresh token under the no-token condition, regenerating on
// collision. It returns "" when the ticket already had a token, and
// errSlotTaken when a terminal ticket lost its slot to a newer active one.
func (r *Reconciler) issue(ctx context.Context, ticket *models.Ticket, upd ledger.PaymentUpdate) (string, error) {
	ticketID := ticket.ID
	var issued string
	err := ledger.RetryOnConflict(r.maxAttempts, func(attempt int) error {
		token, err := r.generate()
		if err != nil {
			return fmt.Errorf("generating entry token: %w", err)
		}
		applied, err := r.tickets.IssueEntryToken(ctx, ticketID, upd, token)
		if err != nil {
			if database.IsUniqueViolation(err) && !ticket.Status.Active() {
				held, checkErr := r.supersededBy(ctx, ticket)
				if checkErr != nil {
					return checkErr
				}
				if held {
					return errSlotTaken
				}
			}
			if database.IsUniqueViolation(err) {
				metrics.TrackTokenCollision()
				logrus.WithFields(logrus.Fields{"ticket_id": ticketID, "attempt": attempt}).Warn("entry token collision, regenerating")
			}
			return err
		}
		if applied {
			issued = token
		}
		return nil
	})
	if errors.Is(err, errSlotTaken) {
		return "", err
	}
	if errors.Is(err, ledger.ErrConflictRetriesExhausted) {
		return "", fmt.Errorf("ticket %s: %w", ticketID, ErrTokenCollision)
	}
	if err != nil {
		return "", fmt.Errorf("issuing entry token for ticket %s: %w", ticketID, err)
	}
	return issued, nil
}

func (r *Reconciler) supersededBy(ctx context.Context, ticket *models.Ticket) (bool, error) {
	other, err := r.tickets.FindActive(ctx, ticket.EventID, ticket.AttendeeID)
	if errors.Is(err, ledger.ErrTicketNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking active ticket for %s: %w", ticket.ID, err)
	}
	return other.ID != ticket.ID, nil
}

// rawStatus is the provider status, or the event type when no status came.
func rawStatus(n Notification) *string {
	for _, s := range []string{n.ProviderStatus, n.EventType} {
		if s = strings.TrimSpace(s); s != "" {
			return &s
		}
	}
	return nil
}

func outcome(res Result, err error) string {
	switch {
	case err != nil:
		return metrics.OutcomeFailed
	case res.Ignored:
		return metrics.OutcomeIgnored
	case !res.TicketFound:
		return metrics.OutcomeNoTicket
	case res.TokenIssued:
		return metrics.OutcomeTokenIssued
	default:
		return metrics.OutcomeUpdated
	}
}
