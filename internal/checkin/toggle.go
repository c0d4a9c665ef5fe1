// Package checkin implements the door scanner state machine. A ticket's
// inside/outside state is always derived from its latest check-in event.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lamanada/tickets-api/internal/ledger"
	"github.com/lamanada/tickets-api/internal/metrics"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/sirupsen/logrus"
)

type Action string

const (
	ActionCheckin  Action = "checkin"
	ActionCheckout Action = "checkout"
)

// ParseAction defaults an empty action to checkin.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ActionCheckin, nil
	case ActionCheckin, ActionCheckout:
		return a, nil
	default:
		return "", reject(CodeInvalidRequest, "action inválida.")
	}
}

func (a Action) direction() models.Direction {
	if a == ActionCheckout {
		return models.DirectionOut
	}
	return models.DirectionIn
}

type Tickets interface {
	FindByEntryToken(ctx context.Context, token string) (*models.Ticket, error)
	SetLegacyCheckIn(ctx context.Context, id string, inside bool, at time.Time) error
}

type Movements interface {
	Last(ctx context.Context, ticketID string) (*models.CheckinEvent, error)
	Append(ctx context.Context, ticketID string, basedOn *models.CheckinEvent, dir models.Direction, actorID *string, at time.Time) (*models.CheckinEvent, error)
}

// Confirmation is what the scanner shows after an accepted scan.
type Confirmation struct {
	TicketID     string
	Direction    models.Direction
	At           time.Time
	CheckInDate  *time.Time
	AttendeeName string
	IsLegendario bool
	EntryToken   string
	Message      string
}

type Toggler struct {
	tickets   Tickets
	movements Movements
	now       func() time.Time
}

func NewToggler(tickets Tickets, movements Movements) *Toggler {
	return &Toggler{tickets: tickets, movements: movements, now: time.Now}
}

// Toggle moves the ticket holding token in or out. Rejections are *Error;
// any other error is a storage failure.
func (t *Toggler) Toggle(ctx context.Context, token string, action Action, actorID *string) (Confirmation, error) {
	conf, err := t.toggle(ctx, strings.TrimSpace(token), action, actorID)

	result := "ok"
	if code, ok := CodeOf(err); ok {
		result = string(code)
	} else if err != nil {
		result = "error"
	}
	label := string(action)
	if action != ActionCheckin && action != ActionCheckout {
		label = "unknown"
	}
	metrics.TrackScan(label, result)

	return conf, err
}

func (t *Toggler) toggle(ctx context.Context, token string, action Action, actorID *string) (Confirmation, error) {
	if token == "" {
		return Confirmation{}, reject(CodeInvalidRequest, "qrCodeValue obrigatório.")
	}
	if action != ActionCheckin && action != ActionCheckout {
		return Confirmation{}, reject(CodeInvalidRequest, "action inválida.")
	}

	ticket, err := t.tickets.FindByEntryToken(ctx, token)
	if errors.Is(err, ledger.ErrTicketNotFound) {
		return Confirmation{}, errTicketNotFound
	}
	if err != nil {
		return Confirmation{}, fmt.Errorf("resolving entry token: %w", err)
	}
	if ticket.Status != models.TicketPaid {
		return Confirmation{}, errNotPaid
	}

	last, err := t.movements.Last(ctx, ticket.ID)
	if err != nil {
		return Confirmation{}, err
	}
	if err := allowed(action, ledger.Inside(last)); err != nil {
		return Confirmation{}, err
	}

	at := t.now()
	ev, err := t.movements.Append(ctx, ticket.ID, last, action.direction(), actorID, at)
	if errors.Is(err, ledger.ErrStaleMovement) {
		// Another scanner moved the ticket after our read. Whoever won made
		// the same move we wanted, so this scan is a duplicate.
		if action == ActionCheckin {
			return Confirmation{}, errAlreadyIn
		}
		return Confirmation{}, errNotIn
	}
	if err != nil {
		return Confirmation{}, err
	}

	inside := ev.Direction == models.DirectionIn
	if err := t.tickets.SetLegacyCheckIn(ctx, ticket.ID, inside, ev.At); err != nil {
		logrus.WithError(err).WithField("ticket_id", ticket.ID).Warn("legacy check-in flags not updated")
	}

	conf := Confirmation{
		TicketID:     ticket.ID,
		Direction:    ev.Direction,
		At:           ev.At,
		CheckInDate:  ticket.CheckInDate,
		AttendeeName: ticket.Attendee.Name,
		IsLegendario: ticket.Attendee.IsLegendario,
		EntryToken:   token,
		Message:      "Check-out realizado.",
	}
	if inside {
		conf.CheckInDate = &ev.At
		conf.Message = "Check-in realizado."
	}
	return conf, nil
}

func allowed(action Action, inside bool) error {
	switch {
	case action == ActionCheckin && inside:
		return errAlreadyIn
	case action == ActionCheckout && !inside:
		return errNotIn
	}
	return nil
}
