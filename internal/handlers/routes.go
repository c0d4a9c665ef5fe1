package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lamanada/tickets-api/internal/auth"
	"github.com/lamanada/tickets-api/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth      *auth.AuthHandler
	Webhook   *WebhookHandler
	Payments  *PaymentHandler
	Checkin   *CheckinHandler
	Attendees *AttendeeHandler
	Reports   *ReportHandler
	// Limiter guards the public polling endpoints. Nil disables it.
	Limiter *ratelimit.Limiter
	// CORSOrigin, when set, is the one browser origin allowed cross-site.
	CORSOrigin string
}

func RegisterRoutes(r *chi.Mux, h Handlers) huma.API {
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if h.CORSOrigin != "" {
		r.Use(allowOrigin(h.CORSOrigin))
	}
	r.Use(h.Auth.SessionMiddleware)

	// Initialize Huma API
	config := huma.DefaultConfig("La Manada Tickets API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
	}
	api := humachi.New(r, config)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Auth routes
	r.Get("/auth/login", h.Auth.HandleLogin)
	r.Get("/auth/callback", h.Auth.HandleCallback)
	huma.Get(api, "/me", h.Auth.HandleMe, staffOnly)

	RegisterOperations(api, h)
	return api
}

// RegisterOperations adds the huma operations to api.
func RegisterOperations(api huma.API, h Handlers) {
	limited := func(o *huma.Operation) {}
	if h.Limiter != nil {
		limited = func(o *huma.Operation) {
			o.Middlewares = append(o.Middlewares, h.Limiter.Middleware(api))
		}
	}

	// Payment provider
	huma.Post(api, "/webhooks/asaas", h.Webhook.HandleAsaasWebhook, ok)

	// Buyer flow
	huma.Post(api, "/registrations", h.Payments.HandleRegistration, ok)
	huma.Post(api, "/payments/pix", h.Payments.HandlePixPayment, ok)
	huma.Post(api, "/payments/card", h.Payments.HandleCardPayment, ok)
	huma.Get(api, "/payments/{paymentId}/status", h.Payments.HandlePaymentStatus, limited)
	huma.Get(api, "/public/tickets/by-payment/{paymentId}", h.Payments.HandlePublicTicket, limited)

	// Staff routes
	huma.Post(api, "/checkin/toggle", h.Checkin.HandleToggle, staffOnly, ok)
	huma.Get(api, "/checkin", h.Checkin.HandleList, staffOnly)
	huma.Get(api, "/checkin/tickets/{ticketId}/history", h.Checkin.HandleHistory, staffOnly)
	huma.Get(api, "/attendees", h.Attendees.HandleList, staffOnly)
	huma.Put(api, "/attendees/{id}", h.Attendees.HandleUpdate, staffOnly)
	huma.Delete(api, "/attendees/{id}", h.Attendees.HandleDelete, staffOnly, ok)
	huma.Get(api, "/reports/summary", h.Reports.HandleSummary, staffOnly)
}

func staffOnly(o *huma.Operation) {
	o.Security = []map[string][]string{{"cookieAuth": {}}}
}

func ok(o *huma.Operation) {
	o.DefaultStatus = http.StatusOK
}

func allowOrigin(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Origin") == origin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
