package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"donation-ledger/internal/domain/campaigns"
	model "donation-ledger/internal/domain/donations"
	deliveries "donation-ledger/internal/domain/webhooks"
	"donation-ledger/internal/repository"
	"donation-ledger/internal/services/donations"
	"donation-ledger/internal/testutil"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"github.com/stripe/stripe-go/v75"
	"gorm.io/gorm"
)

type fakeArchive struct {
	mu     sync.Mutex
	stored map[string][]byte
	err    error
}

func (a *fakeArchive) Store(_ context.Context, eventID, _ string, payload []byte, _ time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.stored == nil {
		a.stored = make(map[string][]byte)
	}
	a.stored[eventID] = payload
	return nil
}

type env struct {
	db         *gorm.DB
	store      *repository.Store
	gateway    *testutil.FakeGateway
	dispatcher *Dispatcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t, repository.Models()...)
	if err := db.Create(&campaigns.Campaign{ID: "camp_1", Name: "Roof fund", CollectedAmount: 10000, DonationCount: 4}).Error; err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	store := repository.NewGormStore(db)
	gateway := testutil.NewFakeGateway()

	ledger := donations.NewLedger(store.Campaigns, logger.Nop(), time.Second)
	recorder := donations.NewRecorder(store.Donations, ledger, logger.Nop(), time.Second)
	d := NewDispatcher(recorder, store.WebhookEvents, gateway, logger.Nop(), time.Second, time.Second)
	return &env{db: db, store: store, gateway: gateway, dispatcher: d}
}

func event(t *testing.T, id, eventType string, object any) (stripe.Event, []byte) {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := json.Marshal(map[string]any{"id": id, "object": "event", "type": eventType, "data": map[string]json.RawMessage{"object": raw}})
	if err != nil {
		t.Fatal(err)
	}
	var ev stripe.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatal(err)
	}
	return ev, payload
}

func paymentIntent(id string, amount int64) map[string]any {
	return map[string]any{
		"id":              id,
		"object":          "payment_intent",
		"amount":          amount,
		"amount_received": amount,
		"currency":        "gbp",
		"status":          "succeeded",
		"customer":        "cus_1",
		"metadata": map[string]string{
			model.MetaCampaignID: "camp_1",
			model.MetaDonorName:  "Ada",
			model.MetaIsGiftAid:  "false",
			model.MetaPlatform:   "ios",
		},
	}
}

func (e *env) totals(t *testing.T) (int64, int64) {
	t.Helper()
	c, err := e.store.Campaigns.GetByID(context.Background(), "camp_1")
	if err != nil {
		t.Fatal(err)
	}
	return c.CollectedAmount, c.DonationCount
}

func (e *env) deliveryStatus(t *testing.T, id string) string {
	t.Helper()
	var ev deliveries.Event
	if err := e.db.Where("id = ?", id).First(&ev).Error; err != nil {
		t.Fatalf("delivery %s: %v", id, err)
	}
	return ev.Status
}

func TestDispatchPaymentIntentSucceeded(t *testing.T) {
	e := newEnv(t)
	archive := &fakeArchive{}
	e.dispatcher.WithArchive(archive)

	ev, payload := event(t, "evt_1", EventPaymentIntentSucceeded, paymentIntent("ch_1", 2500))
	outcome, err := e.dispatcher.Dispatch(context.Background(), ev, payload)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if outcome != OutcomeReceived {
		t.Errorf("outcome = %q", outcome)
	}

	d, err := e.store.Donations.GetByID(context.Background(), "ch_1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Platform != "ios" || d.StripeCustomerID == nil || *d.StripeCustomerID != "cus_1" {
		t.Errorf("unexpected donation %+v", d)
	}
	if amount, count := e.totals(t); amount != 12500 || count != 5 {
		t.Errorf("campaign = %d/%d, want 12500/5", amount, count)
	}
	if e.deliveryStatus(t, "evt_1") != deliveries.StatusProcessed {
		t.Error("delivery should be marked processed")
	}
	if string(archive.stored["evt_1"]) != string(payload) {
		t.Error("payload was not archived")
	}
}

func TestDispatchRedeliveredEventIsDuplicate(t *testing.T) {
	e := newEnv(t)
	ev, payload := event(t, "evt_1", EventPaymentIntentSucceeded, paymentIntent("ch_1", 2500))

	if _, err := e.dispatcher.Dispatch(context.Background(), ev, payload); err != nil {
		t.Fatal(err)
	}
	outcome, err := e.dispatcher.Dispatch(context.Background(), ev, payload)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeDuplicate {
		t.Errorf("outcome = %q, want duplicate", outcome)
	}

	// A new event id for the same charge is still only counted once.
	ev2, payload2 := event(t, "evt_2", EventPaymentIntentSucceeded, paymentIntent("ch_1", 2500))
	if _, err := e.dispatcher.Dispatch(context.Background(), ev2, payload2); err != nil {
		t.Fatal(err)
	}

	if amount, count := e.totals(t); amount != 12500 || count != 5 {
		t.Errorf("campaign = %d/%d, want 12500/5", amount, count)
	}
}

func TestDispatchIgnoresInvoiceIntents(t *testing.T) {
	e := newEnv(t)
	pi := paymentIntent("pi_inv", 1500)
	pi["invoice"] = "in_1"
	ev, payload := event(t, "evt_1", EventPaymentIntentSucceeded, pi)

	outcome, err := e.dispatcher.Dispatch(context.Background(), ev, payload)
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("got %q, %v; want ignored", outcome, err)
	}
	if _, err := e.store.Donations.GetByID(context.Background(), "pi_inv"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("invoice intent should not be recorded: %v", err)
	}
}

func TestDispatchInvoiceFetchesSubscriptionMetadata(t *testing.T) {
	e := newEnv(t)
	e.gateway.SetSubscriptionMetadata("sub_1", map[string]string{
		model.MetaCampaignID: "camp_1",
		model.MetaDonorID:    "user_1",
		model.MetaIsGiftAid:  "true",
	})
	inv := map[string]any{
		"id":             "in_1",
		"object":         "invoice",
		"amount_paid":    1000,
		"currency":       "gbp",
		"subscription":   "sub_1",
		"payment_intent": "pi_recurring_1",
		"customer":       "cus_1",
	}
	ev, payload := event(t, "evt_inv", EventInvoicePaymentSucceeded, inv)

	outcome, err := e.dispatcher.Dispatch(context.Background(), ev, payload)
	if err != nil || outcome != OutcomeReceived {
		t.Fatalf("got %q, %v", outcome, err)
	}
	d, err := e.store.Donations.GetByID(context.Background(), "pi_recurring_1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != model.KindRecurring || d.SubscriptionID == nil || *d.SubscriptionID != "sub_1" || !d.IsGiftAid {
		t.Errorf("unexpected donation %+v", d)
	}
	if amount, _ := e.totals(t); amount != 11000 {
		t.Errorf("collected = %d, want 11000", amount)
	}
}

func TestDispatchInvoiceWithEmbeddedSubscription(t *testing.T) {
	e := newEnv(t)
	e.gateway.GetSubscriptionMetadataFunc = func(context.Context, string) (map[string]string, error) {
		t.Fatal("metadata is embedded and should not be fetched")
		return nil, nil
	}
	inv := map[string]any{
		"id":          "in_2",
		"object":      "invoice",
		"amount_paid": 700,
		"currency":    "gbp",
		"subscription": map[string]any{
			"id":       "sub_2",
			"object":   "subscription",
			"metadata": map[string]string{model.MetaCampaignID: "camp_1"},
		},
	}
	ev, payload := event(t, "evt_inv2", EventInvoicePaymentSucceeded, inv)

	if _, err := e.dispatcher.Dispatch(context.Background(), ev, payload); err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.Donations.GetByID(context.Background(), "in_2"); err != nil {
		t.Errorf("invoice without payment intent should be keyed by invoice id: %v", err)
	}
}

func TestDispatchInvoiceUsesSubscriptionDetails(t *testing.T) {
	e := newEnv(t)
	e.gateway.GetSubscriptionMetadataFunc = func(context.Context, string) (map[string]string, error) {
		t.Fatal("invoice carries subscription_details and should not be fetched")
		return nil, nil
	}
	inv := map[string]any{
		"id":             "in_4",
		"object":         "invoice",
		"amount_paid":    1200,
		"currency":       "gbp",
		"subscription":   "sub_4",
		"payment_intent": "pi_recurring_4",
		"subscription_details": map[string]any{
			"metadata": map[string]string{model.MetaCampaignID: "camp_1", model.MetaDonorName: "Grace"},
		},
	}
	ev, payload := event(t, "evt_inv4", EventInvoicePaymentSucceeded, inv)

	if _, err := e.dispatcher.Dispatch(context.Background(), ev, payload); err != nil {
		t.Fatal(err)
	}
	d, err := e.store.Donations.GetByID(context.Background(), "pi_recurring_4")
	if err != nil {
		t.Fatal(err)
	}
	if d.CampaignID != "camp_1" {
		t.Errorf("campaign = %q", d.CampaignID)
	}
	if amount, _ := e.totals(t); amount != 11200 {
		t.Errorf("collected = %d, want 11200", amount)
	}
}

func TestDispatchZeroAmountInvoiceIgnored(t *testing.T) {
	e := newEnv(t)
	inv := map[string]any{"id": "in_trial", "object": "invoice", "amount_paid": 0, "currency": "gbp", "subscription": "sub_1"}
	ev, payload := event(t, "evt_trial", EventInvoicePaymentSucceeded, inv)

	outcome, err := e.dispatcher.Dispatch(context.Background(), ev, payload)
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("got %q, %v; want ignored", outcome, err)
	}
}

func TestDispatchUnknownTypeIgnored(t *testing.T) {
	e := newEnv(t)
	ev, payload := event(t, "evt_x", "customer.created", map[string]any{"id": "cus_1"})

	outcome, err := e.dispatcher.Dispatch(context.Background(), ev, payload)
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("got %q, %v; want ignored", outcome, err)
	}
	if e.deliveryStatus(t, "evt_x") != deliveries.StatusIgnored {
		t.Error("delivery should be marked ignored")
	}
	if amount, count := e.totals(t); amount != 10000 || count != 4 {
		t.Errorf("campaign changed: %d/%d", amount, count)
	}
}

func TestDispatchFailureIsRetryable(t *testing.T) {
	e := newEnv(t)
	e.gateway.GetSubscriptionMetadataFunc = func(context.Context, string) (map[string]string, error) {
		return nil, errors.New("stripe unavailable")
	}
	inv := map[string]any{"id": "in_3", "object": "invoice", "amount_paid": 500, "currency": "gbp", "subscription": "sub_3"}
	ev, payload := event(t, "evt_fail", EventInvoicePaymentSucceeded, inv)

	if _, err := e.dispatcher.Dispatch(context.Background(), ev, payload); err == nil {
		t.Fatal("expected error")
	}
	if e.deliveryStatus(t, "evt_fail") != deliveries.StatusFailed {
		t.Error("delivery should be marked failed")
	}

	e.gateway.GetSubscriptionMetadataFunc = nil
	e.gateway.SetSubscriptionMetadata("sub_3", map[string]string{model.MetaCampaignID: "camp_1"})
	outcome, err := e.dispatcher.Dispatch(context.Background(), ev, payload)
	if err != nil || outcome != OutcomeReceived {
		t.Fatalf("retry got %q, %v", outcome, err)
	}
}

func TestDispatchMissingCampaignIsInvalid(t *testing.T) {
	e := newEnv(t)
	pi := paymentIntent("ch_9", 2500)
	pi["metadata"] = map[string]string{}
	ev, payload := event(t, "evt_9", EventPaymentIntentSucceeded, pi)

	if _, err := e.dispatcher.Dispatch(context.Background(), ev, payload); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestDispatchUnparseableObject(t *testing.T) {
	e := newEnv(t)
	ev := stripe.Event{ID: "evt_bad", Type: EventPaymentIntentSucceeded, Data: &stripe.EventData{Raw: json.RawMessage(`"not an object"`)}}

	if _, err := e.dispatcher.Dispatch(context.Background(), ev, nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestDispatchArchiveFailureDoesNotBlock(t *testing.T) {
	e := newEnv(t)
	e.dispatcher.WithArchive(&fakeArchive{err: errors.New("bucket missing")})
	ev, payload := event(t, "evt_1", EventPaymentIntentSucceeded, paymentIntent("ch_1", 2500))

	if outcome, err := e.dispatcher.Dispatch(context.Background(), ev, payload); err != nil || outcome != OutcomeReceived {
		t.Fatalf("got %q, %v", outcome, err)
	}
}
