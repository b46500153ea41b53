package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"donation-ledger/internal/app/http/middleware"
	"donation-ledger/internal/auth"
	"donation-ledger/internal/domain/users"
	"donation-ledger/internal/services/checkout"
	"donation-ledger/internal/services/prices"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockCustomers struct {
	ResolveFunc func(ctx context.Context, id users.Identity) (string, error)
}

func (m *mockCustomers) Resolve(ctx context.Context, id users.Identity) (string, error) {
	return m.ResolveFunc(ctx, id)
}

type mockPrices struct {
	ResolveFunc func(ctx context.Context, req prices.Request) (string, error)
}

func (m *mockPrices) Resolve(ctx context.Context, req prices.Request) (string, error) {
	return m.ResolveFunc(ctx, req)
}

type mockCheckout struct {
	CreateDonationIntentFunc    func(ctx context.Context, donor *users.Identity, req checkout.IntentRequest) (*checkout.IntentResult, error)
	CreateRecurringDonationFunc func(ctx context.Context, donor users.Identity, req checkout.SubscriptionRequest) (*checkout.SubscriptionResult, error)
}

func (m *mockCheckout) CreateDonationIntent(ctx context.Context, donor *users.Identity, req checkout.IntentRequest) (*checkout.IntentResult, error) {
	return m.CreateDonationIntentFunc(ctx, donor, req)
}

func (m *mockCheckout) CreateRecurringDonation(ctx context.Context, donor users.Identity, req checkout.SubscriptionRequest) (*checkout.SubscriptionResult, error) {
	return m.CreateRecurringDonationFunc(ctx, donor, req)
}

type fixture struct {
	router    *gin.Engine
	token     string
	customers *mockCustomers
	prices    *mockPrices
	checkout  *mockCheckout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	v, _ := auth.NewHMACVerifier("secret")
	token, err := v.IssueToken(users.Identity{UserID: "user_1", Email: "ada@example.com"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{token: token, customers: &mockCustomers{}, prices: &mockPrices{}, checkout: &mockCheckout{}}
	h := NewHandler(f.customers, f.prices, f.checkout, logger.Nop())

	r := gin.New()
	r.POST("/payments/intents", middleware.OptionalAuth(v), h.CreatePaymentIntent)
	authed := r.Group("/billing", middleware.AuthMiddleware(v))
	authed.POST("/customer", h.ResolveCustomer)
	authed.POST("/prices/resolve", h.ResolvePrice)
	authed.POST("/subscriptions", h.CreateSubscription)
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestResolveCustomer(t *testing.T) {
	f := newFixture(t)
	f.customers.ResolveFunc = func(_ context.Context, id users.Identity) (string, error) {
		if id.UserID != "user_1" {
			return "", fmt.Errorf("unexpected user %s", id.UserID)
		}
		return "cus_1", nil
	}

	w := f.do(http.MethodPost, "/billing/customer", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["customerId"] != "cus_1" {
		t.Errorf("body %v", body)
	}

	if w := f.do(http.MethodPost, "/billing/customer", "", false); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status %d", w.Code)
	}
}

func TestResolveCustomerUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.customers.ResolveFunc = func(context.Context, users.Identity) (string, error) {
		return "", fmt.Errorf("%w: stripe timeout", apperrors.ErrUpstream)
	}
	w := f.do(http.MethodPost, "/billing/customer", "", true)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", w.Code)
	}
	if strings.Contains(w.Body.String(), "stripe timeout") {
		t.Error("upstream detail leaked")
	}
}

func TestResolvePrice(t *testing.T) {
	f := newFixture(t)
	var got prices.Request
	f.prices.ResolveFunc = func(_ context.Context, req prices.Request) (string, error) {
		got = req
		return "price_1", nil
	}

	w := f.do(http.MethodPost, "/billing/prices/resolve", `{"campaignId":"camp_1","amount":1000,"currency":"gbp","interval":"quarterly"}`, true)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "price_1") {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if got.Interval != prices.Quarterly || got.Amount != 1000 {
		t.Errorf("request %+v", got)
	}
}

func TestResolvePriceValidation(t *testing.T) {
	f := newFixture(t)
	f.prices.ResolveFunc = func(context.Context, prices.Request) (string, error) {
		return "", fmt.Errorf("%w: interval must be monthly, quarterly or yearly", apperrors.ErrInvalidInput)
	}

	if w := f.do(http.MethodPost, "/billing/prices/resolve", `{"campaignId":"camp_1","amount":1000,"currency":"gbp","interval":"weekly"}`, true); w.Code != http.StatusBadRequest {
		t.Errorf("invalid interval status %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/billing/prices/resolve", `{"amount":"lots"}`, true); w.Code != http.StatusBadRequest {
		t.Errorf("unbindable body status %d", w.Code)
	}
}

func TestCreatePaymentIntentAnonymousAndAuthenticated(t *testing.T) {
	f := newFixture(t)
	var donors []*users.Identity
	f.checkout.CreateDonationIntentFunc = func(_ context.Context, donor *users.Identity, req checkout.IntentRequest) (*checkout.IntentResult, error) {
		donors = append(donors, donor)
		return &checkout.IntentResult{PaymentIntentID: "pi_1", ClientSecret: "pi_1_secret"}, nil
	}
	body := `{"campaignId":"camp_1","amount":2500,"currency":"gbp","donorName":"Ada","isGiftAid":true}`

	if w := f.do(http.MethodPost, "/payments/intents", body, false); w.Code != http.StatusCreated {
		t.Fatalf("anonymous status %d: %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodPost, "/payments/intents", body, true); w.Code != http.StatusCreated {
		t.Fatalf("authenticated status %d", w.Code)
	}
	if donors[0] != nil || donors[1] == nil || donors[1].UserID != "user_1" {
		t.Errorf("donors %v", donors)
	}
}

func TestCreateSubscription(t *testing.T) {
	f := newFixture(t)
	f.checkout.CreateRecurringDonationFunc = func(_ context.Context, donor users.Identity, req checkout.SubscriptionRequest) (*checkout.SubscriptionResult, error) {
		if req.Interval != prices.Monthly {
			return nil, errors.New("wrong interval")
		}
		return &checkout.SubscriptionResult{SubscriptionID: "sub_1", ClientSecret: "secret"}, nil
	}

	w := f.do(http.MethodPost, "/billing/subscriptions", `{"campaignId":"camp_1","amount":1000,"currency":"gbp","interval":"monthly"}`, true)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), "sub_1") {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}
