package routes

import (
	"net/http"

	adminapi "donation-ledger/internal/api/admin"
	"donation-ledger/internal/api/billing"
	campaignsapi "donation-ledger/internal/api/campaigns"
	"donation-ledger/internal/api/receipts"
	stripewebhooks "donation-ledger/internal/api/stripewebhook"
	"donation-ledger/internal/app/http/middleware"
	"donation-ledger/internal/auth"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Deps is everything the router needs. Limiter may be nil, in which case no route is rate limited.
type Deps struct {
	Verifier  auth.Verifier
	Limiter   middleware.Limiter
	Log       *logger.Logger
	Webhooks  *stripewebhooks.Handler
	Billing   *billing.Handler
	Receipts  *receipts.Handler
	Campaigns *campaignsapi.Handler
	Admin     *adminapi.Handler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Stripe signs the raw body, so the webhook must never pass through sanitization.
	r.POST("/webhook", d.Webhooks.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/campaigns/:id", d.Campaigns.GetCampaign)

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())
	public.POST("/receipts", limit(d, "receipts"), d.Receipts.SendThankYou)
	public.POST("/payments/intents", middleware.OptionalAuth(d.Verifier), limit(d, "payments"), d.Billing.CreatePaymentIntent)

	// Authenticated
	authed := r.Group("/billing")
	authed.Use(middleware.SanitizeAndCleanInputMiddleware(), middleware.AuthMiddleware(d.Verifier))
	authed.POST("/customer", d.Billing.ResolveCustomer)
	authed.POST("/prices/resolve", d.Billing.ResolvePrice)
	authed.POST("/subscriptions", limit(d, "subscriptions"), d.Billing.CreateSubscription)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.Verifier), middleware.RequireRole(auth.RoleAdmin))
	admin.PUT("/campaigns/:id", middleware.SanitizeAndCleanInputMiddleware(), d.Admin.UpsertCampaign)
	admin.GET("/donations/:id", d.Admin.GetDonation)
}

func limit(d Deps, scope string) gin.HandlerFunc {
	if d.Limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimitMiddleware(d.Limiter, scope, d.Log)
}
