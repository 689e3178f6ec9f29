package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/billing"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/provider"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New builds the HTTP handler and its dependency graph. The returned pool is
// handed back so main can close it on shutdown.
func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initialized")

	// 1. Open DB connection (connection pooling)
	dsn := cfg.DBConnectionString
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open DB connection")
		return nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Resolve the payment provider key. Production keeps it in Secret
	// Manager; development passes it straight through the environment.
	stripeKey := cfg.StripeSecretKey
	if stripeKey == "" && cfg.GCPProjectID != "" {
		secrets, err := service.NewSecretManagerService(context.Background(), cfg.GCPProjectID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Secret Manager client")
			pool.Close()
			return nil, nil, err
		}
		stripeKey, err = secrets.GetSecret(context.Background(), cfg.StripeSecretName)
		secrets.Close()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to resolve Stripe key from Secret Manager")
			pool.Close()
			return nil, nil, err
		}
	}

	// 3. Initialize the invoice archive presigner when a bucket is configured.
	var presign service.Presigner
	if cfg.S3Bucket != "" {
		s3Config, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
			awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
		)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load S3 config")
			pool.Close()
			return nil, nil, err
		}
		s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
			if cfg.S3URL != "" {
				o.BaseEndpoint = aws.String(cfg.S3URL)
				o.UsePathStyle = true
			}
		})
		presign = s3.NewPresignClient(s3Client)
	}

	// 4. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Initialize Pub/Sub publisher (optional outside GCP)
	var events pubsub.Publisher
	if cfg.GCPProjectID != "" {
		publisher, err := pubsub.NewPublisher(context.Background(), cfg.GCPProjectID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Pub/Sub publisher")
			pool.Close()
			return nil, nil, err
		}
		events = publisher
	}

	// 6. Initialize repositories & services & handlers
	ticketRepo := repository.NewTicketRepo(pool)

	billingClient := billing.NewHTTPClient(cfg.BillingAPIBaseURL, cfg.BillingAPIToken, logger)
	confirmer := provider.NewStripeConfirmer(stripeKey, logger)
	flow := service.NewConfirmationFlow(confirmer, logger)

	orch := service.NewOrchestrator(billingClient, flow, ticketRepo, events, cfg.BillingEventsTopic, logger)
	orch.SetSettleDelay(time.Duration(cfg.ConfirmationSettleDelaySec) * time.Second)

	invoiceSvc := service.NewInvoiceService(billingClient, presign, cfg.S3Bucket, time.Duration(cfg.InvoiceLinkTTLMin)*time.Minute, logger)

	billingHandler := handler.NewBillingHandler(orch, invoiceSvc, validate, logger)

	// 7. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	// 8. Create ServeMux router
	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	billingHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// Swagger documentation
	mux.HandleFunc("/swagger/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger/swagger.json")
	})

	// Redirect root-level requests to /v1/{path}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || strings.HasPrefix(r.URL.Path, "/swagger/") {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/v1"+r.URL.Path, http.StatusMovedPermanently)
	})

	// 9. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some
// S3-compatible services. See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
