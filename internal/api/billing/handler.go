package billing

import (
	"context"
	"net/http"

	"donation-ledger/internal/api/respond"
	"donation-ledger/internal/app/http/middleware"
	"donation-ledger/internal/domain/users"
	"donation-ledger/internal/services/checkout"
	"donation-ledger/internal/services/prices"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

type CustomerResolver interface {
	Resolve(ctx context.Context, id users.Identity) (string, error)
}

type PriceResolver interface {
	Resolve(ctx context.Context, req prices.Request) (string, error)
}

type Checkout interface {
	CreateDonationIntent(ctx context.Context, donor *users.Identity, req checkout.IntentRequest) (*checkout.IntentResult, error)
	CreateRecurringDonation(ctx context.Context, donor users.Identity, req checkout.SubscriptionRequest) (*checkout.SubscriptionResult, error)
}

type Handler struct {
	customers CustomerResolver
	prices    PriceResolver
	checkout  Checkout
	log       *logger.Logger
}

func NewHandler(customers CustomerResolver, priceResolver PriceResolver, co Checkout, log *logger.Logger) *Handler {
	return &Handler{customers: customers, prices: priceResolver, checkout: co, log: log}
}

// ResolveCustomer returns the caller's Stripe customer id, creating the customer on first use.
func (h *Handler) ResolveCustomer(c *gin.Context) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	customerID, err := h.customers.Resolve(c.Request.Context(), *id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customerId": customerID})
}

func (h *Handler) ResolvePrice(c *gin.Context) {
	var body struct {
		CampaignID string `json:"campaignId"`
		Amount     int64  `json:"amount"`
		Currency   string `json:"currency"`
		Interval   string `json:"interval"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.BadRequest(c, "Missing or invalid price request")
		return
	}

	priceID, err := h.prices.Resolve(c.Request.Context(), prices.Request{
		CampaignID: body.CampaignID,
		Amount:     body.Amount,
		Currency:   body.Currency,
		Interval:   prices.Interval(body.Interval),
	})
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"priceId": priceID})
}

// CreatePaymentIntent starts a one-time donation. Anonymous callers are allowed.
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	var body checkout.IntentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.BadRequest(c, "Missing or invalid donation")
		return
	}

	var donor *users.Identity
	if id, ok := middleware.CurrentIdentity(c); ok {
		donor = id
	}

	res, err := h.checkout.CreateDonationIntent(c.Request.Context(), donor, body)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var body checkout.SubscriptionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.BadRequest(c, "Missing or invalid subscription request")
		return
	}

	res, err := h.checkout.CreateRecurringDonation(c.Request.Context(), *id, body)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
