package directory_test

import (
	"context"
	"testing"

	"github.com/lamanada/tickets-api/internal/database/dbtest"
	"github.com/lamanada/tickets-api/internal/directory"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendees_EnsureCreates(t *testing.T) {
	db := dbtest.New(t)
	attendees := directory.NewAttendees(db)

	a, err := attendees.Ensure(context.Background(), directory.AttendeeInput{
		Name:      " Ana Souza ",
		Phone:     "(11) 98765-4321",
		Email:     "Ana@Example.com",
		ShirtSize: "xgg",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ana Souza", a.Name)
	assert.Equal(t, "ana@example.com", a.Email)
	assert.Equal(t, "11987654321", a.Phone)
	assert.Equal(t, models.ShirtXG, a.ShirtSize)
	require.NotNil(t, a.ReferralSource)
	assert.Equal(t, directory.DefaultReferralSource, *a.ReferralSource)
	assert.Nil(t, a.Notes)
}

func TestAttendees_EnsureRefreshesByEmail(t *testing.T) {
	db := dbtest.New(t)
	attendees := directory.NewAttendees(db)
	ctx := context.Background()

	first, err := attendees.Ensure(ctx, directory.AttendeeInput{
		Name:           "Ana",
		Phone:          "11999990000",
		Email:          "ana@example.com",
		ShirtSize:      "P",
		ReferralSource: "Instagram",
		Notes:          "vegetariana",
	})
	require.NoError(t, err)

	second, err := attendees.Ensure(ctx, directory.AttendeeInput{
		Name:         "Ana Souza",
		Email:        "ANA@example.com",
		ShirtSize:    "G",
		IsLegendario: true,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ana Souza", second.Name)
	assert.Equal(t, models.ShirtG, second.ShirtSize)
	assert.True(t, second.IsLegendario)
	assert.Equal(t, "11999990000", second.Phone)
	require.NotNil(t, second.ReferralSource)
	assert.Equal(t, "Instagram", *second.ReferralSource)
	require.NotNil(t, second.Notes)
	assert.Equal(t, "vegetariana", *second.Notes)

	var count int64
	require.NoError(t, db.Model(&models.Attendee{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAttendees_EnsureRejectsInvalid(t *testing.T) {
	db := dbtest.New(t)
	attendees := directory.NewAttendees(db)

	_, err := attendees.Ensure(context.Background(), directory.AttendeeInput{Name: "Ana"})
	assert.ErrorIs(t, err, directory.ErrInvalidAttendee)

	_, err = attendees.Ensure(context.Background(), directory.AttendeeInput{Email: "ana@example.com"})
	assert.ErrorIs(t, err, directory.ErrInvalidAttendee)
}

func TestAttendees_List(t *testing.T) {
	db := dbtest.New(t)
	attendees := directory.NewAttendees(db)
	ctx := context.Background()

	for _, in := range []directory.AttendeeInput{
		{Name: "Ana", Email: "ana@example.com", Phone: "11911112222"},
		{Name: "Bia", Email: "bia@example.com", Phone: "21933334444"},
		{Name: "Caio", Email: "caio@lamanada.com", Phone: "31955556666"},
	} {
		_, err := attendees.Ensure(ctx, in)
		require.NoError(t, err)
	}

	all, total, err := attendees.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	byDomain, total, err := attendees.List(ctx, "LAMANADA", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, byDomain, 1)
	assert.Equal(t, "Caio", byDomain[0].Name)

	byPhone, total, err := attendees.List(ctx, "(21) 9333", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, byPhone, 1)
	assert.Equal(t, "Bia", byPhone[0].Name)

	page, total, err := attendees.List(ctx, "", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}

func TestAttendees_Update(t *testing.T) {
	db := dbtest.New(t)
	attendees := directory.NewAttendees(db)
	ctx := context.Background()

	ana, err := attendees.Ensure(ctx, directory.AttendeeInput{Name: "Ana", Email: "ana@example.com", Notes: "old"})
	require.NoError(t, err)
	bia, err := attendees.Ensure(ctx, directory.AttendeeInput{Name: "Bia", Email: "bia@example.com"})
	require.NoError(t, err)

	phone := "(11) 91234-5678"
	legendario := true
	empty := ""
	updated, err := attendees.Update(ctx, ana.ID, directory.AttendeePatch{
		Phone:        &phone,
		IsLegendario: &legendario,
		Notes:        &empty,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.Name)
	assert.Equal(t, "11912345678", updated.Phone)
	assert.True(t, updated.IsLegendario)
	assert.Nil(t, updated.Notes)

	taken := " BIA@example.com "
	_, err = attendees.Update(ctx, ana.ID, directory.AttendeePatch{Email: &taken})
	assert.ErrorIs(t, err, directory.ErrEmailTaken)

	blank := " "
	_, err = attendees.Update(ctx, bia.ID, directory.AttendeePatch{Name: &blank})
	assert.ErrorIs(t, err, directory.ErrInvalidAttendee)

	_, err = attendees.Update(ctx, "missing", directory.AttendeePatch{Phone: &phone})
	assert.ErrorIs(t, err, directory.ErrAttendeeNotFound)
}

func TestAttendees_Delete(t *testing.T) {
	db := dbtest.New(t)
	attendees := directory.NewAttendees(db)
	ctx := context.Background()

	ana, err := attendees.Ensure(ctx, directory.AttendeeInput{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	bia, err := attendees.Ensure(ctx, directory.AttendeeInput{Name: "Bia", Email: "bia@example.com"})
	require.NoError(t, err)

	event, err := directory.NewEvents(db, "").Active(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Ticket{
		EventID:    event.ID,
		AttendeeID: bia.ID,
		Status:     models.TicketCancelled,
		Price:      decimal.NewFromInt(100),
	}).Error)

	require.NoError(t, attendees.Delete(ctx, ana.ID))
	_, err = attendees.Get(ctx, ana.ID)
	assert.ErrorIs(t, err, directory.ErrAttendeeNotFound)

	assert.ErrorIs(t, attendees.Delete(ctx, bia.ID), directory.ErrAttendeeHasTickets)
	assert.ErrorIs(t, attendees.Delete(ctx, ana.ID), directory.ErrAttendeeNotFound)
}
