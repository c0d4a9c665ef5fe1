package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/lamanada/tickets-api/internal/auth"
	"github.com/lamanada/tickets-api/internal/checkin"
	"github.com/lamanada/tickets-api/internal/config"
	"github.com/lamanada/tickets-api/internal/database/dbtest"
	"github.com/lamanada/tickets-api/internal/directory"
	"github.com/lamanada/tickets-api/internal/ledger"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/lamanada/tickets-api/internal/notifier"
	"github.com/lamanada/tickets-api/internal/payment"
	"github.com/lamanada/tickets-api/internal/reconcile"
	"github.com/lamanada/tickets-api/internal/report"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeProvider struct {
	mu        sync.Mutex
	seq       int
	customers map[string]payment.Customer
	payments  map[string]*payment.Payment
	chargeErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customers: map[string]payment.Customer{},
		payments:  map[string]*payment.Payment{},
	}
}

func (p *fakeProvider) nextID(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s_%06d", prefix, p.seq)
}

func (p *fakeProvider) CreateCustomer(_ context.Context, in payment.CustomerInput) (*payment.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := payment.Customer{ID: p.nextID("cus"), Name: in.Name, Email: in.Email, CPFCnpj: in.CPFCnpj, MobilePhone: in.MobilePhone}
	p.customers[c.ID] = c
	return &c, nil
}

func (p *fakeProvider) GetCustomer(_ context.Context, id string) (*payment.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.customers[id]
	if !ok {
		return nil, &payment.APIError{StatusCode: 404, Description: "customer not found"}
	}
	return &c, nil
}

func (p *fakeProvider) charge(customerID string, billing payment.BillingType, status string, in payment.PixCharge) (*payment.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chargeErr != nil {
		return nil, p.chargeErr
	}
	if _, ok := p.customers[customerID]; !ok {
		return nil, &payment.APIError{StatusCode: 400, Code: "invalid_customer", Description: "Cliente inválido."}
	}
	pay := &payment.Payment{
		ID:          p.nextID("pay"),
		Customer:    customerID,
		Status:      status,
		BillingType: billing,
		Value:       in.Value,
		Description: in.Description,
	}
	p.payments[pay.ID] = pay
	copied := *pay
	return &copied, nil
}

func (p *fakeProvider) CreatePixCharge(_ context.Context, in payment.PixCharge) (*payment.Payment, error) {
	return p.charge(in.CustomerID, payment.BillingPix, "PENDING", in)
}

func (p *fakeProvider) PixQRCode(_ context.Context, paymentID string) (*payment.PixQRCode, error) {
	return &payment.PixQRCode{EncodedImage: "aW1n", Payload: "00020126pix-" + paymentID}, nil
}

func (p *fakeProvider) CreateCardCharge(_ context.Context, in payment.CardCharge) (*payment.Payment, error) {
	return p.charge(in.CustomerID, payment.BillingCreditCard, "CONFIRMED", payment.PixCharge{
		CustomerID:  in.CustomerID,
		Value:       in.Value,
		Description: in.Description,
	})
}

func (p *fakeProvider) GetPayment(_ context.Context, paymentID string) (*payment.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pay, ok := p.payments[paymentID]
	if !ok {
		return nil, &payment.APIError{StatusCode: 404, Description: "payment not found"}
	}
	copied := *pay
	return &copied, nil
}

func (p *fakeProvider) setStatus(paymentID, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments[paymentID].Status = status
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notifier.TicketNotice
}

func (r *recordingNotifier) NotifyTicket(_ context.Context, n notifier.TicketNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recordingNotifier) all() []notifier.TicketNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifier.TicketNotice(nil), r.notices...)
}

type testEnv struct {
	db       *gorm.DB
	api      humatest.TestAPI
	provider *fakeProvider
	notifier *recordingNotifier
	tickets  *ledger.Tickets
	// cookie is a ready "Cookie: ..." header for a logged in staff member.
	cookie string
}

const testWebhookToken = "whsec-test"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := dbtest.New(t)
	cfg := &config.Config{JWTSecret: "test-secret", DefaultEventName: "La Manada"}

	authHandler := auth.NewAuthHandler(cfg, db)
	staff := models.Staff{Email: "porta@lamanada.com", Name: "Porta"}
	require.NoError(t, db.Create(&staff).Error)
	token, err := authHandler.GenerateToken(staff.ID)
	require.NoError(t, err)

	provider := newFakeProvider()
	rec := &recordingNotifier{}
	tickets := ledger.NewTickets(db)
	attendees := directory.NewAttendees(db)
	events := directory.NewEvents(db, cfg.DefaultEventName)
	settlement := NewSettlement(reconcile.NewReconciler(tickets), tickets, rec)

	_, api := humatest.New(t)
	RegisterOperations(api, Handlers{
		Auth:      authHandler,
		Webhook:   NewWebhookHandler(settlement, testWebhookToken),
		Payments:  NewPaymentHandler(provider, attendees, events, tickets, settlement, "BRL"),
		Checkin:   NewCheckinHandler(authHandler, checkin.NewToggler(tickets, ledger.NewCheckins(db)), ledger.NewCheckins(db)),
		Attendees: NewAttendeeHandler(authHandler, attendees),
		Reports:   NewReportHandler(authHandler, events, report.NewReports(db, events)),
	})

	return &testEnv{
		db:       db,
		api:      api,
		provider: provider,
		notifier: rec,
		tickets:  tickets,
		cookie:   "Cookie: " + auth.CookieName + "=" + token,
	}
}

// register runs the registration and PIX steps and returns the attendee and
// payment ids.
func (e *testEnv) register(t *testing.T, email string) (attendeeID, paymentID string) {
	t.Helper()

	resp := e.api.Post("/registrations", map[string]any{
		"first_name":    "Ana",
		"last_name":     "Souza",
		"email":         email,
		"cpf_cnpj":      "123.456.789-09",
		"phone":         "(11) 98765-4321",
		"shirt_size":    "G",
		"is_legendario": "sim",
	})
	require.Equal(t, 200, resp.Code, resp.Body.String())
	reg := decode(t, resp)
	attendeeID, _ = reg["attendee_id"].(string)
	require.NotEmpty(t, attendeeID)

	resp = e.api.Post("/payments/pix", map[string]any{
		"customer_id": reg["customer_id"],
		"attendee_id": attendeeID,
		"value":       150.0,
	})
	require.Equal(t, 200, resp.Code, resp.Body.String())
	paymentID, _ = decode(t, resp)["payment_id"].(string)
	require.NotEmpty(t, paymentID)
	return attendeeID, paymentID
}

func (e *testEnv) webhook(paymentID, status, event string) *httptest.ResponseRecorder {
	return e.api.Post("/webhooks/asaas",
		"asaas-access-token: "+testWebhookToken,
		map[string]any{
			"event":   event,
			"payment": map[string]any{"id": paymentID, "status": status},
		})
}

// paidToken drives the payment to paid and returns the issued entry token.
func (e *testEnv) paidToken(t *testing.T, email string) string {
	t.Helper()

	_, paymentID := e.register(t, email)
	resp := e.webhook(paymentID, "RECEIVED", "PAYMENT_RECEIVED")
	require.Equal(t, 200, resp.Code, resp.Body.String())

	lookup := decode(t, e.api.Get("/public/tickets/by-payment/"+paymentID))
	token, _ := lookup["entry_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}
