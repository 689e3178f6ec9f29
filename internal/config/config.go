package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`

	// Billing system of record.
	BillingAPIBaseURL string `envconfig:"BILLING_API_BASE_URL" required:"true"`
	BillingAPIToken   string `envconfig:"BILLING_API_TOKEN"`

	// Payment provider. When GCPProjectID is set and StripeSecretKey empty,
	// the key is resolved from Secret Manager under StripeSecretName.
	StripeSecretKey  string `envconfig:"STRIPE_SECRET_KEY"`
	StripeSecretName string `envconfig:"STRIPE_SECRET_NAME" default:"stripe-secret-key"`

	// Event publishing.
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	BillingEventsTopic string `envconfig:"BILLING_EVENTS_TOPIC" default:"billing-events"`

	// Invoice document archive.
	S3URL             string `envconfig:"S3_URL"`
	S3Bucket          string `envconfig:"S3_BUCKET"`
	S3Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey       string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey       string `envconfig:"S3_SECRET_KEY"`
	InvoiceLinkTTLMin int    `envconfig:"INVOICE_LINK_TTL_MIN" default:"15"`

	// Confirmation flow settings.
	ConfirmationSettleDelaySec int `envconfig:"CONFIRMATION_SETTLE_DELAY_SEC" default:"2"`
	TicketMaxAgeHours          int `envconfig:"TICKET_MAX_AGE_HOURS" default:"24"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
