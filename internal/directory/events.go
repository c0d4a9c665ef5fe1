package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/lamanada/tickets-api/internal/models"
	"gorm.io/gorm"
)

var ErrEventNotFound = errors.New("event not found")

// Events is the event registry. The active event is the newest row flagged
// active; more than one active row is tolerated.
type Events struct {
	db          *gorm.DB
	defaultName string
}

func NewEvents(db *gorm.DB, defaultName string) *Events {
	if defaultName == "" {
		defaultName = "La Manada"
	}
	return &Events{db: db, defaultName: defaultName}
}

// Active returns the active event, creating the default one when none exists.
func (r *Events) Active(ctx context.Context) (*models.Event, error) {
	db := r.db.WithContext(ctx)

	var event models.Event
	err := db.Where("is_active = ?", true).Order("created_at DESC").First(&event).Error
	if err == nil {
		return &event, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("reading active event: %w", err)
	}

	event = models.Event{Name: r.defaultName, IsActive: true}
	if err := db.Create(&event).Error; err != nil {
		return nil, fmt.Errorf("creating default event: %w", err)
	}
	return &event, nil
}

func (r *Events) ActiveEventID(ctx context.Context) (string, error) {
	event, err := r.Active(ctx)
	if err != nil {
		return "", err
	}
	return event.ID, nil
}

func (r *Events) Get(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}
