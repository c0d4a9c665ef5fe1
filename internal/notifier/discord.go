package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lamanada/tickets-api/internal/config"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/sirupsen/logrus"
)

// TicketNotice describes a reconciliation staff should hear about.
type TicketNotice struct {
	TicketID       string
	PaymentID      string
	AttendeeName   string
	AttendeeEmail  string
	PreviousStatus models.TicketStatus
	Status         models.TicketStatus
	TokenIssued    bool
}

// Worth reports whether the notice is one staff wants in the channel: a new
// entry token, or a ticket that stopped being valid.
func (n TicketNotice) Worth() bool {
	if n.TokenIssued {
		return true
	}
	return n.Status != n.PreviousStatus &&
		(n.Status == models.TicketRefunded || n.Status == models.TicketCancelled)
}

type Notifier interface {
	NotifyTicket(ctx context.Context, notice TicketNotice) error
}

type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordNotifier struct {
	session   messageSender
	channelID string
}

// NewDiscordNotifier opens a bot session from the config.
func NewDiscordNotifier(cfg *config.Config) (*DiscordNotifier, error) {
	if cfg.DiscordBotToken == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}
	if cfg.DiscordNotificationsChannelID == "" {
		return nil, fmt.Errorf("discord channel ID is empty")
	}
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: cfg.DiscordNotificationsChannelID}, nil
}

func (n *DiscordNotifier) NotifyTicket(ctx context.Context, notice TicketNotice) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}

	_, err := n.session.ChannelMessageSend(n.channelID, formatNotice(notice), discordgo.WithContext(ctx))
	if err != nil {
		logrus.WithError(err).WithField("ticket_id", notice.TicketID).Warn("failed to send discord message")
		return err
	}
	return nil
}

func formatNotice(n TicketNotice) string {
	var b strings.Builder
	switch {
	case n.TokenIssued:
		b.WriteString("🎟️ **Ingresso pago**")
	case n.Status == models.TicketRefunded:
		b.WriteString("↩️ **Ingresso estornado**")
	case n.Status == models.TicketCancelled:
		b.WriteString("❌ **Ingresso cancelado**")
	default:
		b.WriteString("ℹ️ **Ingresso atualizado**")
	}

	fmt.Fprintf(&b, "\n**Participante:** %s", n.AttendeeName)
	if n.AttendeeEmail != "" {
		fmt.Fprintf(&b, " (%s)", n.AttendeeEmail)
	}
	fmt.Fprintf(&b, "\n**Status:** %s → %s", n.PreviousStatus, n.Status)
	fmt.Fprintf(&b, "\n**Pagamento:** %s", n.PaymentID)
	return b.String()
}
