package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lamanada/tickets-api/internal/database"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultProvider = "asaas"
	DefaultCurrency = "BRL"
)

// Tickets is the ticket ledger. Status transitions only happen through
// UpdatePayment and IssueEntryToken, both driven by the reconciler.
type Tickets struct {
	db *gorm.DB
}

func NewTickets(db *gorm.DB) *Tickets {
	return &Tickets{db: db}
}

type PendingTicketInput struct {
	EventID    string
	AttendeeID string
	Price      decimal.Decimal
	Provider   string
	PaymentID  string
	Currency   string
}

func (in PendingTicketInput) validate() error {
	if strings.TrimSpace(in.EventID) == "" {
		return fmt.Errorf("%w: event id is required", ErrInvalidTicket)
	}
	if strings.TrimSpace(in.AttendeeID) == "" {
		return fmt.Errorf("%w: attendee id is required", ErrInvalidTicket)
	}
	if !in.Price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidTicket)
	}
	return nil
}

// PaymentUpdate is what every provider notification writes to a ticket.
type PaymentUpdate struct {
	Status        models.TicketStatus
	PaymentStatus *string
	Payload       datatypes.JSON
}

func (u PaymentUpdate) columns() map[string]any {
	return map[string]any{
		"status":          u.Status,
		"payment_status":  u.PaymentStatus,
		"payment_payload": u.Payload,
	}
}

// EnsurePendingTicket returns the active ticket for the (event, attendee)
// pair, creating a pending one when there is none. A paid ticket is returned
// untouched; a pending one gets the new payment linkage. Losing an insert race
// is not an error: the winner is read back and returned.
func (l *Tickets) EnsurePendingTicket(ctx context.Context, in PendingTicketInput) (*models.Ticket, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Provider == "" {
		in.Provider = DefaultProvider
	}
	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}

	db := l.db.WithContext(ctx)
	if err := mustExist(db, &models.Event{}, in.EventID, ErrEventNotFound); err != nil {
		return nil, err
	}
	if err := mustExist(db, &models.Attendee{}, in.AttendeeID, ErrAttendeeNotFound); err != nil {
		return nil, err
	}

	existing, err := l.FindActive(ctx, in.EventID, in.AttendeeID)
	switch {
	case err == nil && existing.Status == models.TicketPaid:
		return existing, nil
	case err == nil:
		return l.relink(ctx, existing, in)
	case !errors.Is(err, ErrTicketNotFound):
		return nil, err
	}

	ticket := &models.Ticket{
		EventID:         in.EventID,
		AttendeeID:      in.AttendeeID,
		Status:          models.TicketPending,
		Price:           in.Price,
		Currency:        in.Currency,
		PaymentProvider: in.Provider,
		PaymentID:       in.PaymentID,
	}
	if in.PaymentID != "" {
		ticket.PaymentStatus = pendingPaymentStatus()
	}

	err = db.Create(ticket).Error
	if err == nil {
		return ticket, nil
	}
	if !database.IsUniqueViolation(err) {
		return nil, fmt.Errorf("inserting pending ticket: %w", err)
	}

	winner, err := l.FindActive(ctx, in.EventID, in.AttendeeID)
	if errors.Is(err, ErrTicketNotFound) {
		return nil, ErrConflictUnresolved
	}
	return winner, err
}

func (l *Tickets) relink(ctx context.Context, ticket *models.Ticket, in PendingTicketInput) (*models.Ticket, error) {
	updates := map[string]any{
		"payment_provider": in.Provider,
		"price":            in.Price,
		"currency":         in.Currency,
	}
	if in.PaymentID != "" {
		updates["payment_id"] = in.PaymentID
		updates["payment_status"] = pendingPaymentStatus()
	}

	res := l.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ? AND status = ?", ticket.ID, models.TicketPending).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("updating pending ticket %s: %w", ticket.ID, res.Error)
	}

	// Zero rows means the ticket left pending in between; report its new state.
	return l.Get(ctx, ticket.ID)
}

func (l *Tickets) Get(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := l.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error
	return found(&ticket, err)
}

// FindActive returns the pending or paid ticket for the pair.
func (l *Tickets) FindActive(ctx context.Context, eventID, attendeeID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := l.db.WithContext(ctx).
		Where("event_id = ? AND attendee_id = ? AND status IN ?", eventID, attendeeID, models.ActiveTicketStatuses).
		Order("created_at DESC").
		First(&ticket).Error
	return found(&ticket, err)
}

func (l *Tickets) FindByPaymentID(ctx context.Context, paymentID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := l.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("updated_at DESC").
		First(&ticket).Error
	return found(&ticket, err)
}

// FindByPaymentIDWithRelations is FindByPaymentID with attendee and event
// loaded, for the public lookup.
func (l *Tickets) FindByPaymentIDWithRelations(ctx context.Context, paymentID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := l.db.WithContext(ctx).
		Preload("Attendee").
		Preload("Event").
		Where("payment_id = ?", paymentID).
		Order("updated_at DESC").
		First(&ticket).Error
	return found(&ticket, err)
}

func (l *Tickets) FindByEntryToken(ctx context.Context, token string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := l.db.WithContext(ctx).
		Preload("Attendee").
		Where("entry_token = ?", token).
		First(&ticket).Error
	return found(&ticket, err)
}

// UpdatePayment writes a provider notification without touching the token.
func (l *Tickets) UpdatePayment(ctx context.Context, id string, upd PaymentUpdate) error {
	res := l.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ?", id).
		Updates(upd.columns())
	if res.Error != nil {
		return fmt.Errorf("updating ticket %s payment: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// IssueEntryToken writes the provider notification together with token, but
// only while the ticket has no token. applied is false when another writer
// got there first. A token collision surfaces as a uniqueness violation.
func (l *Tickets) IssueEntryToken(ctx context.Context, id string, upd PaymentUpdate, token string) (applied bool, err error) {
	cols := upd.columns()
	cols["entry_token"] = token

	res := l.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ? AND entry_token IS NULL", id).
		Updates(cols)
	if res.Error != nil {
		return false, fmt.Errorf("issuing entry token for ticket %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SetLegacyCheckIn mirrors the check-in ledger onto the old ticket columns.
func (l *Tickets) SetLegacyCheckIn(ctx context.Context, id string, inside bool, at time.Time) error {
	updates := map[string]any{"is_check_in": inside}
	if inside {
		updates["check_in_date"] = at
	}
	err := l.db.WithContext(ctx).Model(&models.Ticket{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("updating legacy check-in flags for ticket %s: %w", id, err)
	}
	return nil
}

func mustExist(db *gorm.DB, model any, id string, missing error) error {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return missing
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTicketNotFound
	}
	return err
}

func pendingPaymentStatus() *string {
	s := "PENDING"
	return &s
}

func found(ticket *models.Ticket, err error) (*models.Ticket, error) {
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}
