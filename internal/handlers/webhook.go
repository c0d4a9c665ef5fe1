package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lamanada/tickets-api/internal/reconcile"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

type WebhookHandler struct {
	settlement *Settlement
	token      string
}

// NewWebhookHandler checks the asaas-access-token header only when token is
// set.
func NewWebhookHandler(settlement *Settlement, token string) *WebhookHandler {
	return &WebhookHandler{settlement: settlement, token: token}
}

type AsaasWebhookRequest struct {
	AccessToken string `header:"asaas-access-token"`
	RawBody     []byte
}

type asaasEvent struct {
	Event   string `json:"event"`
	Payment *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

type WebhookResponse struct {
	Body struct {
		OK          bool   `json:"ok"`
		Ignored     bool   `json:"ignored,omitempty"`
		TicketFound bool   `json:"ticket_found"`
		TicketID    string `json:"ticket_id,omitempty"`
		Status      string `json:"status,omitempty"`
		Changed     bool   `json:"changed"`
		TokenIssued bool   `json:"token_issued"`
	}
}

// HandleAsaasWebhook acknowledges every well formed delivery, including ones
// for unknown payments, so the provider stops redelivering. Only storage
// failures answer 500.
func (h *WebhookHandler) HandleAsaasWebhook(ctx context.Context, input *AsaasWebhookRequest) (*WebhookResponse, error) {
	if h.token != "" && subtle.ConstantTimeCompare([]byte(input.AccessToken), []byte(h.token)) != 1 {
		return nil, huma.Error401Unauthorized("invalid webhook token")
	}

	var event asaasEvent
	if err := json.Unmarshal(input.RawBody, &event); err != nil {
		return nil, huma.Error400BadRequest("payload inválido")
	}

	n := reconcile.Notification{
		EventType: event.Event,
		Payload:   datatypes.JSON(input.RawBody),
	}
	if event.Payment != nil {
		n.PaymentID = event.Payment.ID
		n.ProviderStatus = event.Payment.Status
	}

	log := logrus.WithFields(logrus.Fields{
		"event":      n.EventType,
		"payment_id": n.PaymentID,
		"status":     n.ProviderStatus,
	})
	log.Info("asaas webhook received")

	res, err := h.settlement.Apply(ctx, n)
	if err != nil {
		log.WithError(err).Error("reconciling payment")
		return nil, huma.Error500InternalServerError("Falha ao processar pagamento.")
	}

	resp := &WebhookResponse{}
	resp.Body.OK = true
	resp.Body.Ignored = res.Ignored
	resp.Body.TicketFound = res.TicketFound
	resp.Body.TicketID = res.TicketID
	resp.Body.Status = string(res.Status)
	resp.Body.Changed = res.Changed
	resp.Body.TokenIssued = res.TokenIssued
	return resp, nil
}
