package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/lamanada/tickets-api/internal/config"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	channel string
	content string
	err     error
}

func (f *fakeSession) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel = channelID
	f.content = content
	return &discordgo.Message{}, f.err
}

func TestNotifyTicket(t *testing.T) {
	session := &fakeSession{}
	n := &DiscordNotifier{session: session, channelID: "chan-1"}

	err := n.NotifyTicket(context.Background(), TicketNotice{
		TicketID:       "t1",
		PaymentID:      "pay_1",
		AttendeeName:   "Ana",
		AttendeeEmail:  "ana@example.com",
		PreviousStatus: models.TicketPending,
		Status:         models.TicketPaid,
		TokenIssued:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, "chan-1", session.channel)
	assert.Contains(t, session.content, "Ingresso pago")
	assert.Contains(t, session.content, "Ana (ana@example.com)")
	assert.Contains(t, session.content, "pending → paid")
	assert.Contains(t, session.content, "pay_1")
}

func TestNotifyTicket_SendError(t *testing.T) {
	n := &DiscordNotifier{session: &fakeSession{err: errors.New("rate limited")}, channelID: "chan-1"}
	assert.Error(t, n.NotifyTicket(context.Background(), TicketNotice{Status: models.TicketRefunded}))
}

func TestTicketNoticeWorth(t *testing.T) {
	assert.True(t, TicketNotice{TokenIssued: true}.Worth())
	assert.True(t, TicketNotice{PreviousStatus: models.TicketPaid, Status: models.TicketRefunded}.Worth())
	assert.True(t, TicketNotice{PreviousStatus: models.TicketPending, Status: models.TicketCancelled}.Worth())
	assert.False(t, TicketNotice{PreviousStatus: models.TicketCancelled, Status: models.TicketCancelled}.Worth())
	assert.False(t, TicketNotice{PreviousStatus: models.TicketPending, Status: models.TicketPending}.Worth())
}

func TestNewDiscordNotifier_RequiresConfig(t *testing.T) {
	_, err := NewDiscordNotifier(&config.Config{})
	assert.Error(t, err)

	_, err = NewDiscordNotifier(&config.Config{DiscordBotToken: "x"})
	assert.Error(t, err)

	n, err := NewDiscordNotifier(&config.Config{DiscordBotToken: "x", DiscordNotificationsChannelID: "c"})
	require.NoError(t, err)
	assert.Equal(t, "c", n.channelID)
}
