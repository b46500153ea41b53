package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"donation-ledger/internal/infra/mailer"
	"donation-ledger/internal/infra/stripe"
)

// FakeGateway keeps customers, products and prices in memory. Any ...Func field that is set
// replaces the default behaviour for that call.
type FakeGateway struct {
	CreateCustomerFunc          func(ctx context.Context, in stripe.CustomerInput) (string, error)
	CreateProductFunc           func(ctx context.Context, in stripe.ProductInput) (string, error)
	ListActivePricesFunc        func(ctx context.Context, productID, currency string, limit int64) ([]stripe.Price, error)
	CreatePriceFunc             func(ctx context.Context, in stripe.PriceInput) (string, error)
	CreateSubscriptionFunc      func(ctx context.Context, in stripe.SubscriptionInput) (*stripe.Subscription, error)
	GetSubscriptionMetadataFunc func(ctx context.Context, subscriptionID string) (map[string]string, error)
	CreatePaymentIntentFunc     func(ctx context.Context, in stripe.PaymentIntentInput) (*stripe.PaymentIntent, error)

	mu                   sync.Mutex
	prices               map[string][]stripe.Price
	subscriptionMetadata map[string]map[string]string
	seq                  int

	CustomersCreated     []stripe.CustomerInput
	ProductsCreated      []stripe.ProductInput
	PricesCreated        []stripe.PriceInput
	SubscriptionsCreated []stripe.SubscriptionInput
	IntentsCreated       []stripe.PaymentIntentInput
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		prices:               make(map[string][]stripe.Price),
		subscriptionMetadata: make(map[string]map[string]string),
	}
}

func (g *FakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%d", prefix, g.seq)
}

// AddPrice seeds an active price under productID.
func (g *FakeGateway) AddPrice(productID string, p stripe.Price) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[productID] = append(g.prices[productID], p)
}

// SetSubscriptionMetadata seeds what GetSubscriptionMetadata returns for id.
func (g *FakeGateway) SetSubscriptionMetadata(id string, md map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriptionMetadata[id] = md
}

func (g *FakeGateway) CreateCustomer(ctx context.Context, in stripe.CustomerInput) (string, error) {
	g.mu.Lock()
	g.CustomersCreated = append(g.CustomersCreated, in)
	fn := g.CreateCustomerFunc
	id := g.nextID("cus")
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return id, nil
}

func (g *FakeGateway) CreateProduct(ctx context.Context, in stripe.ProductInput) (string, error) {
	g.mu.Lock()
	g.ProductsCreated = append(g.ProductsCreated, in)
	fn := g.CreateProductFunc
	id := g.nextID("prod")
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return id, nil
}

func (g *FakeGateway) ListActivePrices(ctx context.Context, productID, currency string, limit int64) ([]stripe.Price, error) {
	if g.ListActivePricesFunc != nil {
		return g.ListActivePricesFunc(ctx, productID, currency, limit)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []stripe.Price
	for _, p := range g.prices[productID] {
		if p.Currency != currency {
			continue
		}
		if int64(len(out)) == limit {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *FakeGateway) CreatePrice(ctx context.Context, in stripe.PriceInput) (string, error) {
	g.mu.Lock()
	g.PricesCreated = append(g.PricesCreated, in)
	fn := g.CreatePriceFunc
	id := g.nextID("price")
	if fn == nil {
		g.prices[in.ProductID] = append(g.prices[in.ProductID], stripe.Price{
			ID:            id,
			UnitAmount:    in.UnitAmount,
			Currency:      in.Currency,
			Interval:      in.Interval,
			IntervalCount: in.IntervalCount,
		})
	}
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return id, nil
}

func (g *FakeGateway) CreateSubscription(ctx context.Context, in stripe.SubscriptionInput) (*stripe.Subscription, error) {
	g.mu.Lock()
	g.SubscriptionsCreated = append(g.SubscriptionsCreated, in)
	fn := g.CreateSubscriptionFunc
	id := g.nextID("sub")
	g.subscriptionMetadata[id] = in.Metadata
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return &stripe.Subscription{ID: id, Status: "incomplete", ClientSecret: id + "_secret"}, nil
}

func (g *FakeGateway) GetSubscriptionMetadata(ctx context.Context, subscriptionID string) (map[string]string, error) {
	if g.GetSubscriptionMetadataFunc != nil {
		return g.GetSubscriptionMetadataFunc(ctx, subscriptionID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	md, ok := g.subscriptionMetadata[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", subscriptionID)
	}
	return md, nil
}

func (g *FakeGateway) CreatePaymentIntent(ctx context.Context, in stripe.PaymentIntentInput) (*stripe.PaymentIntent, error) {
	g.mu.Lock()
	g.IntentsCreated = append(g.IntentsCreated, in)
	fn := g.CreatePaymentIntentFunc
	id := g.nextID("pi")
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method"}, nil
}

// CustomerCalls is safe to read while other goroutines are still calling the gateway.
func (g *FakeGateway) CustomerCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.CustomersCreated)
}

func (g *FakeGateway) PriceCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.PricesCreated)
}

// FakeMailer records every message. SendFunc, when set, decides the outcome.
type FakeMailer struct {
	SendFunc func(ctx context.Context, msg mailer.Message) (mailer.Result, error)

	mu   sync.Mutex
	Sent []mailer.Message
}

func (m *FakeMailer) Send(ctx context.Context, msg mailer.Message) (mailer.Result, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	n := len(m.Sent)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return mailer.Result{StatusCode: 202, MessageID: fmt.Sprintf("msg_%d", n)}, nil
}

func (m *FakeMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// FakeLocker is an in-process stand-in for the Redis locker.
type FakeLocker struct {
	AcquireFunc func(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error)

	mu   sync.Mutex
	held map[string]bool
}

func (l *FakeLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if l.AcquireFunc != nil {
		return l.AcquireFunc(ctx, name, ttl)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[name] {
		return nil, false, nil
	}
	l.held[name] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
		return nil
	}, true, nil
}
