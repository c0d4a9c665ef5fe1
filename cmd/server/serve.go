package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lamanada/tickets-api/internal/auth"
	"github.com/lamanada/tickets-api/internal/checkin"
	"github.com/lamanada/tickets-api/internal/config"
	"github.com/lamanada/tickets-api/internal/database"
	"github.com/lamanada/tickets-api/internal/directory"
	"github.com/lamanada/tickets-api/internal/handlers"
	"github.com/lamanada/tickets-api/internal/ledger"
	"github.com/lamanada/tickets-api/internal/logging"
	"github.com/lamanada/tickets-api/internal/notifier"
	"github.com/lamanada/tickets-api/internal/payment"
	"github.com/lamanada/tickets-api/internal/ratelimit"
	"github.com/lamanada/tickets-api/internal/reconcile"
	"github.com/lamanada/tickets-api/internal/report"
	"github.com/lamanada/tickets-api/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "tickets-api"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logging.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint, cfg.OTelInsecure)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logrus.WithError(err).Warn("flushing traces")
		}
	}()

	// Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	// Initialize Collaborators
	provider := payment.NewAsaasClient(cfg.AsaasBaseURL, cfg.AsaasAPIKey, &http.Client{
		Timeout:   20 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})

	var staffNotifier notifier.Notifier
	if cfg.DiscordBotToken != "" {
		discordNotifier, err := notifier.NewDiscordNotifier(cfg)
		if err != nil {
			logrus.WithError(err).Warn("Discord notifier not initialized")
		} else {
			staffNotifier = discordNotifier
		}
	}

	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if err := rdb.Close(); err != nil {
				logrus.WithError(err).Warn("closing redis client")
			}
		}()
		limiter = ratelimit.NewLimiter(rdb, "public", cfg.PublicRateLimit, cfg.PublicRateWindow)
	}

	// Initialize Handlers
	tickets := ledger.NewTickets(db)
	checkins := ledger.NewCheckins(db)
	attendees := directory.NewAttendees(db)
	events := directory.NewEvents(db, cfg.DefaultEventName)
	authHandler := auth.NewAuthHandler(cfg, db)
	settlement := handlers.NewSettlement(reconcile.NewReconciler(tickets), tickets, staffNotifier)

	r := chi.NewRouter()
	handlers.RegisterRoutes(r, handlers.Handlers{
		Auth:       authHandler,
		Webhook:    handlers.NewWebhookHandler(settlement, cfg.AsaasWebhookToken),
		Payments:   handlers.NewPaymentHandler(provider, attendees, events, tickets, settlement, cfg.TicketCurrency),
		Checkin:    handlers.NewCheckinHandler(authHandler, checkin.NewToggler(tickets, checkins), checkins),
		Attendees:  handlers.NewAttendeeHandler(authHandler, attendees),
		Reports:    handlers.NewReportHandler(authHandler, events, report.NewReports(db, events)),
		Limiter:    limiter,
		CORSOrigin: corsOrigin(cfg),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           otelhttp.NewHandler(r, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.WithField("port", cfg.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logrus.Info("Shutting down HTTP server...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logrus.Info("Shutdown complete.")
	return nil
}

// corsOrigin is the scheme and host of the dashboard when CORS is enabled.
func corsOrigin(cfg *config.Config) string {
	if !cfg.EnableCORS {
		return ""
	}
	u, err := url.Parse(cfg.FrontendURL)
	if err != nil || u.Host == "" {
		logrus.WithField("frontend_url", cfg.FrontendURL).Warn("CORS enabled but FRONTEND_URL has no host")
		return ""
	}
	return u.Scheme + "://" + u.Host
}
