package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string `mapstructure:"PORT"`
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	EnableCORS     bool   `mapstructure:"ENABLE_CORS"`

	JWTSecret         string   `mapstructure:"JWT_SECRET"`
	OAuthClientID     string   `mapstructure:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string   `mapstructure:"OAUTH_CLIENT_SECRET"`
	OAuthAuthURL      string   `mapstructure:"OAUTH_AUTH_URL"`
	OAuthTokenURL     string   `mapstructure:"OAUTH_TOKEN_URL"`
	OAuthUserInfoURL  string   `mapstructure:"OAUTH_USERINFO_URL"`
	OAuthRedirectURL  string   `mapstructure:"OAUTH_REDIRECT_URL"`
	StaffEmails       []string `mapstructure:"STAFF_EMAILS"`
	FrontendURL       string   `mapstructure:"FRONTEND_URL"`

	AsaasBaseURL      string `mapstructure:"ASAAS_BASE_URL"`
	AsaasAPIKey       string `mapstructure:"ASAAS_API_KEY"`
	AsaasWebhookToken string `mapstructure:"ASAAS_WEBHOOK_TOKEN"`

	DefaultEventName string `mapstructure:"DEFAULT_EVENT_NAME"`
	TicketCurrency   string `mapstructure:"TICKET_CURRENCY"`

	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	PublicRateLimit  int64         `mapstructure:"PUBLIC_RATE_LIMIT"`
	PublicRateWindow time.Duration `mapstructure:"PUBLIC_RATE_WINDOW"`

	DiscordBotToken               string `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`

	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "tickets.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENABLE_CORS", false)
	v.SetDefault("OAUTH_REDIRECT_URL", "http://127.0.0.1:8080/auth/callback")
	v.SetDefault("STAFF_EMAILS", []string{})
	v.SetDefault("FRONTEND_URL", "http://127.0.0.1:3000/dashboard")
	v.SetDefault("ASAAS_BASE_URL", "https://api-sandbox.asaas.com/v3")
	v.SetDefault("DEFAULT_EVENT_NAME", "La Manada")
	v.SetDefault("TICKET_CURRENCY", "BRL")
	v.SetDefault("PUBLIC_RATE_LIMIT", 60)
	v.SetDefault("PUBLIC_RATE_WINDOW", time.Minute)

	for _, key := range []string{
		"JWT_SECRET",
		"OAUTH_CLIENT_ID",
		"OAUTH_CLIENT_SECRET",
		"OAUTH_AUTH_URL",
		"OAUTH_TOKEN_URL",
		"OAUTH_USERINFO_URL",
		"ASAAS_API_KEY",
		"ASAAS_WEBHOOK_TOKEN",
		"REDIS_ADDR",
		"DISCORD_BOT_TOKEN",
		"DISCORD_NOTIFICATIONS_CHANNEL_ID",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_INSECURE",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// STAFF_EMAILS arrives from the environment as a comma separated string.
	cfg.StaffEmails = splitList(cfg.StaffEmails)

	return &cfg, nil
}

// IsStaffEmail reports whether email is allowed to open a staff session.
func (c *Config) IsStaffEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, allowed := range c.StaffEmails {
		if strings.ToLower(allowed) == email {
			return true
		}
	}
	return false
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
