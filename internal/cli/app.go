package cli

import (
	"context"
	"fmt"
	"time"

	"donation-ledger/config"
	"donation-ledger/database"
	adminapi "donation-ledger/internal/api/admin"
	"donation-ledger/internal/api/billing"
	campaignsapi "donation-ledger/internal/api/campaigns"
	"donation-ledger/internal/api/receipts"
	stripewebhooks "donation-ledger/internal/api/stripewebhook"
	routes "donation-ledger/internal/app/http"
	"donation-ledger/internal/app/http/middleware"
	"donation-ledger/internal/auth"
	"donation-ledger/internal/infra/archive"
	"donation-ledger/internal/infra/mailer"
	"donation-ledger/internal/infra/redis"
	stripeinfra "donation-ledger/internal/infra/stripe"
	"donation-ledger/internal/repository"
	"donation-ledger/internal/repository/docstore"
	"donation-ledger/internal/services/checkout"
	"donation-ledger/internal/services/customers"
	"donation-ledger/internal/services/donations"
	"donation-ledger/internal/services/notifications"
	"donation-ledger/internal/services/prices"
	"donation-ledger/internal/services/webhooks"
	"donation-ledger/pkg/logger"

	"cloud.google.com/go/firestore"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type app struct {
	engine  *gin.Engine
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires the store, providers, services and router from cfg.
func build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	store, err := openStore(ctx, cfg, a)
	if err != nil {
		return fail(err)
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	gateway := stripeinfra.NewGateway(cfg.StripeSecretKey, cfg.StripeTimeout, log.Sugar())

	var (
		locker  *redis.Locker
		limiter middleware.Limiter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		locker = redis.NewLocker(rdb)
		limiter = redis.NewRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute)
	} else {
		log.Warnf("REDIS_ADDR not set: receipt locking and rate limiting are disabled")
	}

	ledger := donations.NewLedger(store.Campaigns, log, cfg.StoreTimeout)
	recorder := donations.NewRecorder(store.Donations, ledger, log, cfg.StoreTimeout)
	dispatcher := webhooks.NewDispatcher(recorder, store.WebhookEvents, gateway, log, cfg.StoreTimeout, cfg.StripeTimeout)
	if cfg.ArchiveBucket != "" {
		s3, err := archive.NewS3Archive(ctx, archive.S3Config{Region: cfg.AWSRegion, Bucket: cfg.ArchiveBucket, Endpoint: cfg.S3Endpoint})
		if err != nil {
			return fail(fmt.Errorf("webhook archive: %w", err))
		}
		dispatcher.WithArchive(s3)
	}

	customerResolver := customers.NewResolver(store.Users, gateway, log, cfg.StoreTimeout, cfg.StripeTimeout)
	priceResolver := prices.NewResolver(store.Campaigns, gateway, log, cfg.PriceScanLimit, cfg.StoreTimeout, cfg.StripeTimeout)
	checkoutService := checkout.NewService(store.Campaigns, customerResolver, priceResolver, gateway, log, cfg.StoreTimeout, cfg.StripeTimeout)

	receiptSender := notifications.NewDispatcher(store, newMailer(cfg), log, notifications.Options{
		TemplateID:   cfg.SendGridTemplateID,
		StoreTimeout: cfg.StoreTimeout,
		EmailTimeout: cfg.EmailTimeout,
		LockTTL:      cfg.ReceiptLockTTL,
	})
	if locker != nil {
		receiptSender.WithLocker(locker)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestIDMiddleware(), middleware.LoggingMiddleware(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		Verifier:  verifier,
		Limiter:   limiter,
		Log:       log,
		Webhooks:  stripewebhooks.NewHandler(stripeinfra.NewVerifier(cfg.StripeWebhookSecret), dispatcher, log),
		Billing:   billing.NewHandler(customerResolver, priceResolver, checkoutService, log),
		Receipts:  receipts.NewHandler(receiptSender, log),
		Campaigns: campaignsapi.NewHandler(store.Campaigns, log, cfg.StoreTimeout),
		Admin:     adminapi.NewHandler(store, log, cfg.StoreTimeout),
	})

	a.engine = r
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, a *app) (*repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverFirestore:
		client, err := firestore.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return docstore.NewStore(client), nil
	default:
		db, err := database.Connect(cfg.DBURL, cfg.IsProduction())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = database.Close(db) })
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
		return repository.NewGormStore(db), nil
	}
}

func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	if cfg.OIDCIssuer != "" {
		return auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCAudience)
	}
	return auth.NewHMACVerifier(cfg.JWTSecret)
}

func newMailer(cfg *config.Config) mailer.Mailer {
	if cfg.EmailProvider == config.EmailProviderSMTP {
		return mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailFrom, cfg.EmailFromName, cfg.SMTPPassword)
	}
	return mailer.NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName)
}
