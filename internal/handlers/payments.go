package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lamanada/tickets-api/internal/directory"
	"github.com/lamanada/tickets-api/internal/ledger"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/lamanada/tickets-api/internal/payment"
	"github.com/lamanada/tickets-api/internal/reconcile"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

type PaymentHandler struct {
	provider   payment.Provider
	attendees  *directory.Attendees
	events     *directory.Events
	tickets    *ledger.Tickets
	settlement *Settlement
	currency   string
}

func NewPaymentHandler(provider payment.Provider, attendees *directory.Attendees, events *directory.Events, tickets *ledger.Tickets, settlement *Settlement, currency string) *PaymentHandler {
	if currency == "" {
		currency = ledger.DefaultCurrency
	}
	return &PaymentHandler{
		provider:   provider,
		attendees:  attendees,
		events:     events,
		tickets:    tickets,
		settlement: settlement,
		currency:   currency,
	}
}

type RegistrationRequest struct {
	Body struct {
		FirstName    string `json:"first_name" doc:"Given name"`
		LastName     string `json:"last_name,omitempty" doc:"Family name"`
		Email        string `json:"email"`
		CPFCnpj      string `json:"cpf_cnpj" doc:"CPF or CNPJ, masks are ignored"`
		Phone        string `json:"phone,omitempty"`
		ShirtSize    string `json:"shirt_size,omitempty" doc:"PP, P, M, G, GG or XG"`
		IsLegendario any    `json:"is_legendario,omitempty" doc:"true, \"sim\", \"yes\" or 1"`
	}
}

type RegistrationResponse struct {
	Body struct {
		CustomerID string `json:"customer_id"`
		AttendeeID string `json:"attendee_id,omitempty"`
	}
}

// HandleRegistration creates the provider customer and records the attendee.
// A directory failure does not fail the registration.
func (h *PaymentHandler) HandleRegistration(ctx context.Context, input *RegistrationRequest) (*RegistrationResponse, error) {
	in := input.Body
	name := strings.TrimSpace(strings.TrimSpace(in.FirstName) + " " + strings.TrimSpace(in.LastName))
	email := directory.NormalizeEmail(in.Email)
	document := directory.OnlyDigits(in.CPFCnpj)
	phone := directory.OnlyDigits(in.Phone)
	if name == "" || email == "" || document == "" {
		return nil, huma.Error400BadRequest("Dados inválidos.")
	}

	customer, err := h.provider.CreateCustomer(ctx, payment.CustomerInput{
		Name:        name,
		Email:       email,
		CPFCnpj:     document,
		MobilePhone: phone,
	})
	if err != nil {
		return nil, providerError(err, "Falha ao criar cliente no Asaas.")
	}

	resp := &RegistrationResponse{}
	resp.Body.CustomerID = customer.ID

	attendee, err := h.attendees.Ensure(ctx, directory.AttendeeInput{
		Name:           name,
		Phone:          phone,
		Email:          email,
		ShirtSize:      in.ShirtSize,
		IsLegendario:   directory.ParseBool(in.IsLegendario),
		ReferralSource: directory.DefaultReferralSource,
		Notes:          "ASAAS customerId: " + customer.ID,
	})
	if err != nil {
		logrus.WithError(err).WithField("customer_id", customer.ID).Warn("attendee not recorded")
		return resp, nil
	}
	resp.Body.AttendeeID = attendee.ID
	return resp, nil
}

type PixPaymentRequest struct {
	Body struct {
		CustomerID  string  `json:"customer_id"`
		AttendeeID  string  `json:"attendee_id,omitempty"`
		Value       float64 `json:"value" doc:"Amount charged"`
		BaseValue   float64 `json:"base_value,omitempty" doc:"Ticket price recorded, defaults to value"`
		Description string  `json:"description,omitempty"`
	}
}

type PixPaymentResponse struct {
	Body struct {
		PaymentID    string `json:"payment_id"`
		QRCodeImage  string `json:"qr_code_image,omitempty"`
		PixCopyPaste string `json:"pix_copy_paste,omitempty"`
	}
}

func (h *PaymentHandler) HandlePixPayment(ctx context.Context, input *PixPaymentRequest) (*PixPaymentResponse, error) {
	in := input.Body
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, huma.Error400BadRequest("customerId ausente.")
	}
	value, price, err := amounts(in.Value, in.BaseValue)
	if err != nil {
		return nil, err
	}

	charge, err := h.provider.CreatePixCharge(ctx, payment.PixCharge{
		CustomerID:  strings.TrimSpace(in.CustomerID),
		Value:       value,
		Description: in.Description,
	})
	if err != nil {
		return nil, providerError(err, "Falha ao criar pagamento PIX.")
	}
	h.ensurePendingTicket(ctx, in.AttendeeID, charge.ID, price)

	qr, err := h.provider.PixQRCode(ctx, charge.ID)
	if err != nil {
		return nil, providerError(err, "Falha ao obter QR Code PIX.")
	}

	resp := &PixPaymentResponse{}
	resp.Body.PaymentID = charge.ID
	resp.Body.QRCodeImage = qr.DataURI()
	resp.Body.PixCopyPaste = qr.Payload
	return resp, nil
}

type CardInput struct {
	HolderName  string `json:"holder_name"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CCV         string `json:"ccv"`
}

type CardPaymentRequest struct {
	Body struct {
		CustomerID   string    `json:"customer_id"`
		AttendeeID   string    `json:"attendee_id,omitempty"`
		Value        float64   `json:"value" doc:"Amount charged, fees included"`
		BaseValue    float64   `json:"base_value,omitempty" doc:"Ticket price recorded, defaults to value"`
		Description  string    `json:"description,omitempty"`
		Installments int       `json:"installments,omitempty"`
		Card         CardInput `json:"card"`
	}
}

type CardPaymentResponse struct {
	Body struct {
		PaymentID string `json:"payment_id"`
		Status    string `json:"status"`
	}
}

func (h *PaymentHandler) HandleCardPayment(ctx context.Context, input *CardPaymentRequest) (*CardPaymentResponse, error) {
	in := input.Body
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, huma.Error400BadRequest("Cliente inválido ou não informado.")
	}
	card := payment.CreditCard{
		HolderName:  strings.TrimSpace(in.Card.HolderName),
		Number:      directory.OnlyDigits(in.Card.Number),
		ExpiryMonth: strings.TrimSpace(in.Card.ExpiryMonth),
		ExpiryYear:  strings.TrimSpace(in.Card.ExpiryYear),
		CCV:         directory.OnlyDigits(in.Card.CCV),
	}
	if !card.Complete() {
		return nil, huma.Error400BadRequest("Preencha todos os campos do cartão (sem máscara).")
	}
	value, price, err := amounts(in.Value, in.BaseValue)
	if err != nil {
		return nil, err
	}

	charge, err := h.provider.CreateCardCharge(ctx, payment.CardCharge{
		CustomerID:   strings.TrimSpace(in.CustomerID),
		Value:        value,
		Description:  in.Description,
		Installments: in.Installments,
		Card:         card,
	})
	if err != nil {
		logrus.WithError(err).WithField("customer_id", in.CustomerID).Warn("card charge refused")
		return nil, huma.NewError(providerStatus(err), payment.FriendlyCardError(err))
	}
	h.ensurePendingTicket(ctx, in.AttendeeID, charge.ID, price)

	resp := &CardPaymentResponse{}
	resp.Body.PaymentID = charge.ID
	resp.Body.Status = charge.Status
	return resp, nil
}

// ensurePendingTicket links the charge to the attendee's ticket for the
// active event. The charge already exists, so failures are only logged.
func (h *PaymentHandler) ensurePendingTicket(ctx context.Context, attendeeID, paymentID string, price decimal.Decimal) {
	attendeeID = strings.TrimSpace(attendeeID)
	if attendeeID == "" || paymentID == "" {
		return
	}
	log := logrus.WithFields(logrus.Fields{"attendee_id": attendeeID, "payment_id": paymentID})

	eventID, err := h.events.ActiveEventID(ctx)
	if err != nil {
		log.WithError(err).Warn("no active event, pending ticket not created")
		return
	}
	ticket, err := h.tickets.EnsurePendingTicket(ctx, ledger.PendingTicketInput{
		EventID:    eventID,
		AttendeeID: attendeeID,
		Price:      price,
		Provider:   ledger.DefaultProvider,
		PaymentID:  paymentID,
		Currency:   h.currency,
	})
	if err != nil {
		log.WithError(err).Warn("pending ticket not created")
		return
	}
	log.WithFields(logrus.Fields{"ticket_id": ticket.ID, "status": ticket.Status}).Info("pending ticket ensured")
}

type PaymentStatusRequest struct {
	PaymentID string `path:"paymentId"`
}

type PaymentStatusResponse struct {
	Body struct {
		Status       string              `json:"status" doc:"Raw provider status"`
		MappedStatus models.TicketStatus `json:"mapped_status"`
	}
}

// HandlePaymentStatus asks the provider for the payment and reconciles the
// snapshot, so a lost webhook is caught up by the buyer's polling.
func (h *PaymentHandler) HandlePaymentStatus(ctx context.Context, input *PaymentStatusRequest) (*PaymentStatusResponse, error) {
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return nil, huma.Error400BadRequest("paymentId ausente.")
	}

	p, err := h.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, providerError(err, "Falha ao consultar pagamento.")
	}

	resp := &PaymentStatusResponse{}
	resp.Body.Status = p.Status
	if resp.Body.Status == "" {
		resp.Body.Status = "UNKNOWN"
	}
	resp.Body.MappedStatus = reconcile.MapStatus(p.Status, "")

	if p.Status != "" {
		payload, err := json.Marshal(p)
		if err != nil {
			logrus.WithError(err).WithField("payment_id", paymentID).Warn("encoding polled payment, reconciling without payload")
			payload = nil
		}
		_, err = h.settlement.Apply(ctx, reconcile.Notification{
			PaymentID:      paymentID,
			ProviderStatus: p.Status,
			Payload:        datatypes.JSON(payload),
		})
		if err != nil {
			logrus.WithError(err).WithField("payment_id", paymentID).Error("reconciling polled payment")
		}
	}
	return resp, nil
}

type PublicTicketRequest struct {
	PaymentID string `path:"paymentId"`
}

type PublicAttendee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type PublicEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PublicTicketResponse struct {
	CacheControl string `header:"Cache-Control"`
	Body         struct {
		Found      bool            `json:"found"`
		Status     string          `json:"status"`
		Attendee   *PublicAttendee `json:"attendee,omitempty"`
		Event      *PublicEvent    `json:"event,omitempty"`
		EntryToken string          `json:"entry_token,omitempty"`
	}
}

// HandlePublicTicket lets the buyer's page poll for its ticket. The entry
// token is only exposed once the ticket is paid.
func (h *PaymentHandler) HandlePublicTicket(ctx context.Context, input *PublicTicketRequest) (*PublicTicketResponse, error) {
	resp := &PublicTicketResponse{CacheControl: "no-store"}
	resp.Body.Status = "unknown"

	ticket, err := h.tickets.FindByPaymentIDWithRelations(ctx, strings.TrimSpace(input.PaymentID))
	if errors.Is(err, ledger.ErrTicketNotFound) {
		return resp, nil
	}
	if err != nil {
		logrus.WithError(err).WithField("payment_id", input.PaymentID).Error("public ticket lookup")
		return nil, huma.Error500InternalServerError("Erro inesperado")
	}

	resp.Body.Found = true
	resp.Body.Status = string(ticket.Status)
	resp.Body.Attendee = &PublicAttendee{ID: ticket.Attendee.ID, Name: ticket.Attendee.Name, Email: ticket.Attendee.Email}
	resp.Body.Event = &PublicEvent{ID: ticket.Event.ID, Name: ticket.Event.Name}
	if ticket.Status == models.TicketPaid && ticket.EntryToken != nil {
		resp.Body.EntryToken = *ticket.EntryToken
	}
	return resp, nil
}

func amounts(value, base float64) (decimal.Decimal, decimal.Decimal, error) {
	v := decimal.NewFromFloat(value).Round(2)
	if !v.IsPositive() {
		return decimal.Zero, decimal.Zero, huma.Error400BadRequest("Valor inválido.")
	}
	if base == 0 {
		return v, v, nil
	}
	b := decimal.NewFromFloat(base).Round(2)
	if !b.IsPositive() {
		return decimal.Zero, decimal.Zero, huma.Error400BadRequest("Valor base (para registro) inválido.")
	}
	return v, b, nil
}

// providerError keeps the provider's own status and message when it gave
// one; transport failures become 502.
func providerError(err error, fallback string) error {
	logrus.WithError(err).Warn("payment provider call failed")

	var apiErr *payment.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Description
		if msg == "" {
			msg = fallback
		}
		return huma.NewError(providerStatus(err), msg)
	}
	return huma.NewError(http.StatusBadGateway, fallback)
}

func providerStatus(err error) int {
	var apiErr *payment.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 600 {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}
