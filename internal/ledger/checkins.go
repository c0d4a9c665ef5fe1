package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lamanada/tickets-api/internal/database"
	"github.com/lamanada/tickets-api/internal/models"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Checkins is the append-only movement log. A ticket is inside when its
// highest-seq event has direction in.
type Checkins struct {
	db *gorm.DB
}

func NewCheckins(db *gorm.DB) *Checkins {
	return &Checkins{db: db}
}

// Inside derives the current state from the latest movement.
func Inside(last *models.CheckinEvent) bool {
	return last != nil && last.Direction == models.DirectionIn
}

// Last returns the latest movement of the ticket, or nil when it never moved.
func (l *Checkins) Last(ctx context.Context, ticketID string) (*models.CheckinEvent, error) {
	var ev models.CheckinEvent
	err := l.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("seq DESC").
		First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last movement of ticket %s: %w", ticketID, err)
	}
	return &ev, nil
}

// Append records a movement that follows basedOn (nil for the first one). The
// insert claims seq basedOn.Seq+1; if someone else already claimed it the
// caller decided on stale state and gets ErrStaleMovement.
func (l *Checkins) Append(ctx context.Context, ticketID string, basedOn *models.CheckinEvent, dir models.Direction, actorID *string, at time.Time) (*models.CheckinEvent, error) {
	seq := 1
	if basedOn != nil {
		seq = basedOn.Seq + 1
	}

	ev := &models.CheckinEvent{
		TicketID:  ticketID,
		Seq:       seq,
		Direction: dir,
		At:        at,
		ActorID:   actorID,
	}
	if err := l.db.WithContext(ctx).Create(ev).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrStaleMovement
		}
		return nil, fmt.Errorf("appending movement to ticket %s: %w", ticketID, err)
	}
	return ev, nil
}

// History returns every movement of the ticket in order.
func (l *Checkins) History(ctx context.Context, ticketID string) ([]models.CheckinEvent, error) {
	var events []models.CheckinEvent
	err := l.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("seq ASC").Find(&events).Error
	return events, err
}

type InsideFilter string

const (
	InsideAll InsideFilter = "all"
	InsideIn  InsideFilter = "in"
	InsideOut InsideFilter = "out"
)

func ParseInsideFilter(s string) InsideFilter {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "inside", "true", "1":
		return InsideIn
	case "out", "outside", "false", "0":
		return InsideOut
	default:
		return InsideAll
	}
}

type Filter struct {
	Query  string
	Inside InsideFilter
	Limit  int
	Offset int
}

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Query = strings.TrimSpace(f.Query)
	return f
}

// Row is one paid ticket with its derived check-in state.
type Row struct {
	TicketID     string    `json:"ticket_id"`
	AttendeeID   string    `json:"attendee_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	IsLegendario bool      `json:"is_legendario"`
	EntryToken   *string   `json:"entry_token"`
	IsInside     bool      `json:"is_inside"`
	LastUpdate   time.Time `json:"last_update"`
}

type listRow struct {
	TicketID     string
	AttendeeID   string
	Name         string
	Email        string
	IsLegendario bool
	EntryToken   *string
	IsInside     int
	MovedAt      *time.Time
	UpdatedAt    time.Time
}

// List returns paid tickets with their derived state, most recently moved
// first, and the total count matching the filter.
func (l *Checkins) List(ctx context.Context, f Filter) ([]Row, int64, error) {
	f = f.normalized()

	var total int64
	if err := l.listQuery(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting check-in rows: %w", err)
	}

	var scanned []listRow
	err := l.listQuery(ctx, f).
		Select(`t.id AS ticket_id, a.id AS attendee_id, a.name AS name, a.email AS email,
			a.is_legendario AS is_legendario, t.entry_token AS entry_token,
			CASE WHEN ce.direction = 'in' THEN 1 ELSE 0 END AS is_inside,
			ce.at AS moved_at, t.updated_at AS updated_at`).
		Order("COALESCE(ce.at, t.updated_at) DESC").
		Order("t.id").
		Limit(f.Limit).
		Offset(f.Offset).
		Scan(&scanned).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing check-in rows: %w", err)
	}

	rows := make([]Row, 0, len(scanned))
	for _, s := range scanned {
		row := Row{
			TicketID:     s.TicketID,
			AttendeeID:   s.AttendeeID,
			Name:         s.Name,
			Email:        s.Email,
			IsLegendario: s.IsLegendario,
			EntryToken:   s.EntryToken,
			IsInside:     s.IsInside == 1,
			LastUpdate:   s.UpdatedAt,
		}
		if s.MovedAt != nil {
			row.LastUpdate = *s.MovedAt
		}
		rows = append(rows, row)
	}
	return rows, total, nil
}

func (l *Checkins) listQuery(ctx context.Context, f Filter) *gorm.DB {
	q := l.db.WithContext(ctx).
		Table("tickets AS t").
		Joins("JOIN attendees AS a ON a.id = t.attendee_id").
		Joins(`LEFT JOIN checkin_events AS ce ON ce.ticket_id = t.id
			AND ce.seq = (SELECT MAX(c2.seq) FROM checkin_events AS c2 WHERE c2.ticket_id = t.id)`).
		Where("t.status = ?", models.TicketPaid)

	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("(LOWER(a.name) LIKE ? OR LOWER(a.email) LIKE ?)", like, like)
	}

	switch f.Inside {
	case InsideIn:
		q = q.Where("ce.direction = ?", models.DirectionIn)
	case InsideOut:
		q = q.Where("(ce.direction IS NULL OR ce.direction = ?)", models.DirectionOut)
	}
	return q
}
