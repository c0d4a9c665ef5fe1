// Package directory holds the attendee directory and the event registry.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lamanada/tickets-api/internal/database"
	"github.com/lamanada/tickets-api/internal/models"
	"gorm.io/gorm"
)

const DefaultReferralSource = "Página Pública"

var (
	ErrInvalidAttendee    = errors.New("invalid attendee")
	ErrAttendeeNotFound   = errors.New("attendee not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAttendeeHasTickets = errors.New("attendee has tickets")
)

type AttendeeInput struct {
	Name           string
	Phone          string
	Email          string
	ShirtSize      string
	IsLegendario   bool
	ReferralSource string
	Notes          string
}

type Attendees struct {
	db *gorm.DB
}

func NewAttendees(db *gorm.DB) *Attendees {
	return &Attendees{db: db}
}

// Ensure creates the attendee or refreshes the one registered with the same
// email. Phone, referral source and notes keep their stored value when the
// new one is empty.
func (d *Attendees) Ensure(ctx context.Context, in AttendeeInput) (*models.Attendee, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidAttendee)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAttendee)
	}

	phone := OnlyDigits(in.Phone)
	referral := strings.TrimSpace(in.ReferralSource)
	notes := strings.TrimSpace(in.Notes)
	db := d.db.WithContext(ctx)

	existing, err := d.FindByEmail(ctx, email)
	if errors.Is(err, ErrAttendeeNotFound) {
		attendee := &models.Attendee{
			Name:           name,
			Phone:          phone,
			Email:          email,
			ShirtSize:      NormalizeShirtSize(in.ShirtSize),
			IsLegendario:   in.IsLegendario,
			ReferralSource: strPtr(referral, DefaultReferralSource),
			Notes:          strPtr(notes, ""),
		}
		err = db.Create(attendee).Error
		if err == nil {
			return attendee, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("creating attendee: %w", err)
		}
		// Registered concurrently; refresh the winner instead.
		existing, err = d.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"name":          name,
		"shirt_size":    NormalizeShirtSize(in.ShirtSize),
		"is_legendario": in.IsLegendario,
	}
	if phone != "" {
		updates["phone"] = phone
	}
	if referral != "" {
		updates["referral_source"] = referral
	}
	if notes != "" {
		updates["notes"] = notes
	}
	if err := db.Model(existing).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating attendee %s: %w", existing.ID, err)
	}
	return d.Get(ctx, existing.ID)
}

func (d *Attendees) Get(ctx context.Context, id string) (*models.Attendee, error) {
	var attendee models.Attendee
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&attendee).Error; err != nil {
		return nil, attendeeNotFound(err)
	}
	return &attendee, nil
}

func (d *Attendees) FindByEmail(ctx context.Context, email string) (*models.Attendee, error) {
	var attendee models.Attendee
	if err := d.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&attendee).Error; err != nil {
		return nil, attendeeNotFound(err)
	}
	return &attendee, nil
}

// List searches name, email and phone; newest first.
func (d *Attendees) List(ctx context.Context, q string, limit, offset int) ([]models.Attendee, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := d.db.WithContext(ctx).Model(&models.Attendee{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		cond := "(LOWER(name) LIKE ? OR LOWER(email) LIKE ?"
		args := []any{like, like}
		if digits := OnlyDigits(q); digits != "" {
			cond += " OR phone LIKE ?"
			args = append(args, "%"+digits+"%")
		}
		query = query.Where(cond+")", args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting attendees: %w", err)
	}

	var attendees []models.Attendee
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&attendees).Error; err != nil {
		return nil, 0, fmt.Errorf("listing attendees: %w", err)
	}
	return attendees, total, nil
}

// AttendeePatch carries the fields a staff edit touches. Nil fields are left
// alone.
type AttendeePatch struct {
	Name           *string
	Phone          *string
	Email          *string
	ShirtSize      *string
	IsLegendario   *bool
	ReferralSource *string
	Notes          *string
}

func (p AttendeePatch) columns() (map[string]any, error) {
	updates := map[string]any{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidAttendee)
		}
		updates["name"] = name
	}
	if p.Email != nil {
		email := NormalizeEmail(*p.Email)
		if !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: email is invalid", ErrInvalidAttendee)
		}
		updates["email"] = email
	}
	if p.Phone != nil {
		updates["phone"] = OnlyDigits(*p.Phone)
	}
	if p.ShirtSize != nil {
		updates["shirt_size"] = NormalizeShirtSize(*p.ShirtSize)
	}
	if p.IsLegendario != nil {
		updates["is_legendario"] = *p.IsLegendario
	}
	if p.ReferralSource != nil {
		updates["referral_source"] = strPtr(strings.TrimSpace(*p.ReferralSource), "")
	}
	if p.Notes != nil {
		updates["notes"] = strPtr(strings.TrimSpace(*p.Notes), "")
	}
	return updates, nil
}

func (d *Attendees) Update(ctx context.Context, id string, patch AttendeePatch) (*models.Attendee, error) {
	updates, err := patch.columns()
	if err != nil {
		return nil, err
	}
	if _, err := d.Get(ctx, id); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		err := d.db.WithContext(ctx).Model(&models.Attendee{}).Where("id = ?", id).Updates(updates).Error
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		if err != nil {
			return nil, fmt.Errorf("updating attendee %s: %w", id, err)
		}
	}
	return d.Get(ctx, id)
}

// Delete removes an attendee that never held a ticket.
func (d *Attendees) Delete(ctx context.Context, id string) error {
	db := d.db.WithContext(ctx)

	var tickets int64
	if err := db.Model(&models.Ticket{}).Where("attendee_id = ?", id).Count(&tickets).Error; err != nil {
		return fmt.Errorf("counting tickets of attendee %s: %w", id, err)
	}
	if tickets > 0 {
		return ErrAttendeeHasTickets
	}

	res := db.Where("id = ?", id).Delete(&models.Attendee{})
	if res.Error != nil {
		return fmt.Errorf("deleting attendee %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAttendeeNotFound
	}
	return nil
}

func attendeeNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAttendeeNotFound
	}
	return err
}

func strPtr(s, fallback string) *string {
	if s == "" {
		s = fallback
	}
	if s == "" {
		return nil
	}
	return &s
}
