// Package report builds the read-only dashboard figures from the ticket and
// check-in ledgers.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/lamanada/tickets-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultWindow = 30 * 24 * time.Hour

type ActiveEvent interface {
	ActiveEventID(ctx context.Context) (string, error)
}

type Reports struct {
	db     *gorm.DB
	events ActiveEvent
	now    func() time.Time
}

func NewReports(db *gorm.DB, events ActiveEvent) *Reports {
	return &Reports{db: db, events: events, now: time.Now}
}

// Query selects the event and the sales window. Zero values mean the active
// event and the last 30 days.
type Query struct {
	EventID string
	From    time.Time
	To      time.Time
}

type Summary struct {
	EventID        string                        `json:"event_id"`
	Total          int64                         `json:"total"`
	ByStatus       map[models.TicketStatus]int64 `json:"by_status"`
	PaidRevenue    decimal.Decimal               `json:"paid_revenue"`
	Inside         int64                         `json:"inside"`
	Legendarios    int64                         `json:"legendarios"`
	NonLegendarios int64                         `json:"non_legendarios"`
}

type DaySales struct {
	Day     string          `json:"day"`
	Paid    int64           `json:"paid"`
	Pending int64           `json:"pending"`
	Revenue decimal.Decimal `json:"revenue"`
}

type Report struct {
	Summary Summary    `json:"summary"`
	Sales   []DaySales `json:"sales"`
}

func (r *Reports) Build(ctx context.Context, q Query) (*Report, error) {
	if q.EventID == "" {
		id, err := r.events.ActiveEventID(ctx)
		if err != nil {
			return nil, err
		}
		q.EventID = id
	}
	if q.To.IsZero() {
		q.To = r.now()
	}
	if q.From.IsZero() {
		q.From = q.To.Add(-defaultWindow)
	}

	summary, err := r.summary(ctx, q.EventID)
	if err != nil {
		return nil, err
	}
	sales, err := r.sales(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Report{Summary: *summary, Sales: sales}, nil
}

func (r *Reports) summary(ctx context.Context, eventID string) (*Summary, error) {
	db := r.db.WithContext(ctx)
	s := &Summary{
		EventID:     eventID,
		ByStatus:    map[models.TicketStatus]int64{},
		PaidRevenue: decimal.Zero,
	}
	for _, st := range []models.TicketStatus{models.TicketPending, models.TicketPaid, models.TicketRefunded, models.TicketCancelled} {
		s.ByStatus[st] = 0
	}

	var groups []struct {
		Status  models.TicketStatus
		Count   int64
		Revenue decimal.NullDecimal
	}
	err := db.Model(&models.Ticket{}).
		Select("status, COUNT(*) AS count, SUM(price) AS revenue").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("counting tickets by status: %w", err)
	}
	for _, g := range groups {
		s.ByStatus[g.Status] = g.Count
		s.Total += g.Count
		if g.Status == models.TicketPaid && g.Revenue.Valid {
			s.PaidRevenue = g.Revenue.Decimal
		}
	}

	var legend []struct {
		IsLegendario bool
		Count        int64
	}
	err = db.Table("tickets AS t").
		Joins("JOIN attendees AS a ON a.id = t.attendee_id").
		Select("a.is_legendario AS is_legendario, COUNT(*) AS count").
		Where("t.event_id = ? AND t.status = ?", eventID, models.TicketPaid).
		Group("a.is_legendario").
		Scan(&legend).Error
	if err != nil {
		return nil, fmt.Errorf("counting legendarios: %w", err)
	}
	for _, l := range legend {
		if l.IsLegendario {
			s.Legendarios += l.Count
		} else {
			s.NonLegendarios += l.Count
		}
	}

	err = db.Table("tickets AS t").
		Joins(`JOIN checkin_events AS ce ON ce.ticket_id = t.id
			AND ce.seq = (SELECT MAX(c2.seq) FROM checkin_events AS c2 WHERE c2.ticket_id = t.id)`).
		Where("t.event_id = ? AND t.status = ? AND ce.direction = ?", eventID, models.TicketPaid, models.DirectionIn).
		Count(&s.Inside).Error
	if err != nil {
		return nil, fmt.Errorf("counting attendees inside: %w", err)
	}

	return s, nil
}

// sales buckets tickets created in the window by UTC day. Bucketing happens
// here so the query stays the same on sqlite and postgres.
func (r *Reports) sales(ctx context.Context, q Query) ([]DaySales, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Select("status", "price", "created_at").
		Where("event_id = ? AND created_at >= ? AND created_at < ?", q.EventID, q.From, q.To).
		Order("created_at ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("loading sales window: %w", err)
	}

	sales := []DaySales{}
	index := map[string]int{}
	for _, t := range tickets {
		day := t.CreatedAt.UTC().Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(sales)
			index[day] = i
			sales = append(sales, DaySales{Day: day, Revenue: decimal.Zero})
		}
		switch t.Status {
		case models.TicketPaid:
			sales[i].Paid++
			sales[i].Revenue = sales[i].Revenue.Add(t.Price)
		case models.TicketPending:
			sales[i].Pending++
		}
	}
	return sales, nil
}
