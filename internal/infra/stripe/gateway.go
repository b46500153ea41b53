package stripe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

// Gateway is the slice of the Stripe API the services use.
type Gateway interface {
	CreateCustomer(ctx context.Context, in CustomerInput) (string, error)
	CreateProduct(ctx context.Context, in ProductInput) (string, error)
	ListActivePrices(ctx context.Context, productID, currency string, limit int64) ([]Price, error)
	CreatePrice(ctx context.Context, in PriceInput) (string, error)
	CreateSubscription(ctx context.Context, in SubscriptionInput) (*Subscription, error)
	GetSubscriptionMetadata(ctx context.Context, subscriptionID string) (map[string]string, error)
	CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*PaymentIntent, error)
}

type CustomerInput struct {
	UserID         string
	Email          string
	Name           string
	IdempotencyKey string
}

type ProductInput struct {
	CampaignID     string
	Name           string
	IdempotencyKey string
}

type Price struct {
	ID            string
	UnitAmount    int64
	Currency      string
	Interval      string
	IntervalCount int64
}

type PriceInput struct {
	ProductID      string
	UnitAmount     int64
	Currency       string
	Interval       string
	IntervalCount  int64
	Metadata       map[string]string
	IdempotencyKey string
}

type SubscriptionInput struct {
	CustomerID string
	PriceID    string
	Metadata   map[string]string
}

type Subscription struct {
	ID           string
	Status       string
	ClientSecret string
}

type PaymentIntentInput struct {
	Amount       int64
	Currency     string
	CustomerID   string
	ReceiptEmail string
	Metadata     map[string]string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

// LeveledLogger is satisfied by zap's SugaredLogger.
type LeveledLogger = stripe.LeveledLoggerInterface

type apiGateway struct {
	sc *client.API
}

// NewGateway builds an explicitly owned Stripe client; nothing touches stripe.Key.
func NewGateway(secretKey string, timeout time.Duration, log LeveledLogger) Gateway {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(2),
		LeveledLogger:     log,
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	return &apiGateway{sc: client.New(secretKey, backends)}
}

func (g *apiGateway) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(in.Email),
		Metadata: map[string]string{
			"user_id": in.UserID,
		},
	}
	if in.Name != "" {
		params.Name = stripe.String(in.Name)
	}
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	cus, err := g.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cus.ID, nil
}

func (g *apiGateway) CreateProduct(ctx context.Context, in ProductInput) (string, error) {
	params := &stripe.ProductParams{
		Name: stripe.String(in.Name),
	}
	params.AddMetadata("campaign_id", in.CampaignID)
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	p, err := g.sc.Products.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe product: %w", err)
	}
	return p.ID, nil
}

// ListActivePrices reads a single page, so at most limit prices are returned.
func (g *apiGateway) ListActivePrices(ctx context.Context, productID, currency string, limit int64) ([]Price, error) {
	params := &stripe.PriceListParams{}
	params.Active = stripe.Bool(true)
	params.Type = stripe.String("recurring")
	params.Product = stripe.String(productID)
	params.Currency = stripe.String(currency)
	params.Limit = stripe.Int64(limit)
	params.Single = true
	params.Context = ctx

	it := g.sc.Prices.List(params)

	var out []Price
	for it.Next() {
		p := it.Price()
		if !p.Active || p.Recurring == nil {
			continue
		}
		out = append(out, Price{
			ID:            p.ID,
			UnitAmount:    p.UnitAmount,
			Currency:      string(p.Currency),
			Interval:      string(p.Recurring.Interval),
			IntervalCount: p.Recurring.IntervalCount,
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list stripe prices: %w", err)
	}
	return out, nil
}

func (g *apiGateway) CreatePrice(ctx context.Context, in PriceInput) (string, error) {
	params := &stripe.PriceParams{
		Product:    stripe.String(in.ProductID),
		UnitAmount: stripe.Int64(in.UnitAmount),
		Currency:   stripe.String(in.Currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval:      stripe.String(in.Interval),
			IntervalCount: stripe.Int64(in.IntervalCount),
		},
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	p, err := g.sc.Prices.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe price: %w", err)
	}
	return p.ID, nil
}

func (g *apiGateway) CreateSubscription(ctx context.Context, in SubscriptionInput) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(in.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(in.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddExpand("latest_invoice.payment_intent")
	params.Context = ctx

	sub, err := g.sc.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe subscription: %w", err)
	}

	out := &Subscription{ID: sub.ID, Status: string(sub.Status)}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		out.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return out, nil
}

func (g *apiGateway) GetSubscriptionMetadata(ctx context.Context, subscriptionID string) (map[string]string, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.sc.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("fetch stripe subscription %s: %w", subscriptionID, err)
	}
	return sub.Metadata, nil
}

func (g *apiGateway) CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(in.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe payment intent: %w", err)
	}
	return &PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}
