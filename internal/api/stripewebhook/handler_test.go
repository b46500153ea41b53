package stripewebhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"donation-ledger/internal/domain/campaigns"
	stripeinfra "donation-ledger/internal/infra/stripe"
	"donation-ledger/internal/repository"
	"donation-ledger/internal/services/donations"
	"donation-ledger/internal/services/webhooks"
	"donation-ledger/internal/testutil"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
)

const webhookSecret = "whsec_handler_test"

func init() {
	gin.SetMode(gin.TestMode)
}

type mockDispatcher struct {
	DispatchFunc func(ctx context.Context, event stripe.Event, payload []byte) (webhooks.Outcome, error)
}

func (m *mockDispatcher) Dispatch(ctx context.Context, event stripe.Event, payload []byte) (webhooks.Outcome, error) {
	return m.DispatchFunc(ctx, event, payload)
}

func newRouter(d Dispatcher) *gin.Engine {
	h := NewHandler(stripeinfra.NewVerifier(webhookSecret), d, logger.Nop())
	r := gin.New()
	r.POST("/webhook", h.StripeWebhook)
	return r
}

func newStoreRouter(t *testing.T) (*gin.Engine, *repository.Store) {
	t.Helper()
	db := testutil.NewDB(t, repository.Models()...)
	if err := db.Create(&campaigns.Campaign{ID: "camp_1", Name: "Roof fund", CollectedAmount: 10000, DonationCount: 4}).Error; err != nil {
		t.Fatal(err)
	}
	store := repository.NewGormStore(db)
	ledger := donations.NewLedger(store.Campaigns, logger.Nop(), time.Second)
	recorder := donations.NewRecorder(store.Donations, ledger, logger.Nop(), time.Second)
	d := webhooks.NewDispatcher(recorder, store.WebhookEvents, testutil.NewFakeGateway(), logger.Nop(), time.Second, time.Second)
	return newRouter(d), store
}

func succeededPayload(eventID, chargeID string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": "payment_intent.succeeded",
  "data": {"object": {
    "id": %q, "object": "payment_intent", "amount": %d, "amount_received": %d, "currency": "gbp",
    "status": "succeeded",
    "metadata": {"campaignId": "camp_1", "donorId": "user_1", "donorName": "Ada", "isGiftAid": "true", "platform": "web"}
  }}
}`, eventID, chargeID, amount, amount))
}

func post(r http.Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set(stripeinfra.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func status(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body["status"]
}

func collected(t *testing.T, store *repository.Store) int64 {
	t.Helper()
	c, err := store.Campaigns.GetByID(context.Background(), "camp_1")
	if err != nil {
		t.Fatal(err)
	}
	return c.CollectedAmount
}

func TestWebhookRecordsDonationOnce(t *testing.T) {
	r, store := newStoreRouter(t)
	payload := succeededPayload("evt_1", "ch_1", 2500)
	sig := testutil.SignStripePayload(payload, webhookSecret, time.Now())

	w := post(r, payload, sig)
	if w.Code != http.StatusOK || status(t, w) != "received" {
		t.Fatalf("first delivery: %d %s", w.Code, w.Body.String())
	}
	if got := collected(t, store); got != 12500 {
		t.Fatalf("collected = %d, want 12500", got)
	}

	w = post(r, payload, sig)
	if w.Code != http.StatusOK || status(t, w) != "duplicate" {
		t.Fatalf("redelivery: %d %s", w.Code, w.Body.String())
	}
	if got := collected(t, store); got != 12500 {
		t.Fatalf("collected after redelivery = %d, want 12500", got)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	r, store := newStoreRouter(t)
	payload := succeededPayload("evt_1", "ch_1", 2500)

	for name, sig := range map[string]string{
		"missing":      "",
		"wrong secret": testutil.SignStripePayload(payload, "whsec_other", time.Now()),
		"garbage":      "t=1,v1=deadbeef",
	} {
		w := post(r, payload, sig)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", name, w.Code)
		}
	}
	if got := collected(t, store); got != 10000 {
		t.Errorf("collected = %d, nothing should change", got)
	}
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	r, _ := newStoreRouter(t)
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	w := post(r, payload, testutil.SignStripePayload(payload, webhookSecret, time.Now()))
	if w.Code != http.StatusOK || status(t, w) != "ignored" {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestWebhookMissingCampaignMetadataIsBadRequest(t *testing.T) {
	r, _ := newStoreRouter(t)
	payload := []byte(`{"id":"evt_3","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"ch_3","object":"payment_intent","amount":100,"currency":"gbp","metadata":{}}}}`)

	w := post(r, payload, testutil.SignStripePayload(payload, webhookSecret, time.Now()))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestWebhookProcessingFailureIs500(t *testing.T) {
	r := newRouter(&mockDispatcher{
		DispatchFunc: func(context.Context, stripe.Event, []byte) (webhooks.Outcome, error) {
			return "", errors.New("database is down")
		},
	})
	payload := succeededPayload("evt_1", "ch_1", 2500)

	w := post(r, payload, testutil.SignStripePayload(payload, webhookSecret, time.Now()))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "database") {
		t.Errorf("internal detail leaked: %s", w.Body.String())
	}
}

func TestWebhookPassesRawPayload(t *testing.T) {
	var got []byte
	r := newRouter(&mockDispatcher{
		DispatchFunc: func(_ context.Context, ev stripe.Event, payload []byte) (webhooks.Outcome, error) {
			got = payload
			return webhooks.OutcomeReceived, nil
		},
	})
	payload := succeededPayload("evt_1", "ch_1", 2500)

	if w := post(r, payload, testutil.SignStripePayload(payload, webhookSecret, time.Now())); w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !bytes.Equal(got, payload) {
		t.Error("dispatcher did not receive the exact request bytes")
	}
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	r := newRouter(&mockDispatcher{
		DispatchFunc: func(context.Context, stripe.Event, []byte) (webhooks.Outcome, error) {
			t.Fatal("oversized body must not be dispatched")
			return "", nil
		},
	})
	payload := bytes.Repeat([]byte("a"), maxBodyBytes+1)

	if w := post(r, payload, testutil.SignStripePayload(payload, webhookSecret, time.Now())); w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}
