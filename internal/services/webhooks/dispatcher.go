package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	model "donation-ledger/internal/domain/donations"
	deliveries "donation-ledger/internal/domain/webhooks"
	stripeinfra "donation-ledger/internal/infra/stripe"
	"donation-ledger/internal/repository"
	"donation-ledger/internal/services/donations"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"
)

// Outcome is what the webhook endpoint reports back to the provider.
type Outcome string

const (
	OutcomeReceived  Outcome = "received"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

const (
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
)

// Archiver keeps a copy of the raw payload. Failures never block processing.
type Archiver interface {
	Store(ctx context.Context, eventID, eventType string, payload []byte, receivedAt time.Time) error
}

// SubscriptionLookup fetches subscription metadata when an invoice does not embed it.
type SubscriptionLookup interface {
	GetSubscriptionMetadata(ctx context.Context, subscriptionID string) (map[string]string, error)
}

// Dispatcher routes verified provider events to the donation recorder.
type Dispatcher struct {
	recorder        *donations.Recorder
	deliveries      repository.WebhookEventRepository
	subscriptions   SubscriptionLookup
	archive         Archiver
	log             *logger.Logger
	storeTimeout    time.Duration
	providerTimeout time.Duration
	now             func() time.Time
}

func NewDispatcher(
	recorder *donations.Recorder,
	deliveryLog repository.WebhookEventRepository,
	subscriptions SubscriptionLookup,
	log *logger.Logger,
	storeTimeout, providerTimeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		recorder:        recorder,
		deliveries:      deliveryLog,
		subscriptions:   subscriptions,
		log:             log,
		storeTimeout:    storeTimeout,
		providerTimeout: providerTimeout,
		now:             time.Now,
	}
}

// WithArchive enables raw payload archiving.
func (d *Dispatcher) WithArchive(a Archiver) *Dispatcher {
	d.archive = a
	return d
}

// Dispatch handles one verified event. Unknown event types are acknowledged and ignored. An error
// means the provider should retry.
func (d *Dispatcher) Dispatch(ctx context.Context, event stripe.Event, payload []byte) (Outcome, error) {
	eventType := string(event.Type)
	log := d.log.WithContext(ctx).With(zap.String("event_id", event.ID), zap.String("event_type", eventType))

	if event.ID == "" {
		return "", fmt.Errorf("%w: event has no id", apperrors.ErrInvalidInput)
	}

	d.archivePayload(ctx, log, event.ID, eventType, payload)

	previous, err := d.begin(ctx, event.ID, eventType)
	if err != nil {
		return "", fmt.Errorf("log delivery %s: %w", event.ID, err)
	}
	if previous != nil && (previous.Status == deliveries.StatusProcessed || previous.Status == deliveries.StatusIgnored) {
		log.Info("event already handled", zap.String("status", previous.Status))
		return OutcomeDuplicate, nil
	}

	outcome, err := d.route(ctx, event)
	if err != nil {
		log.Error("event processing failed", zap.Error(err))
		d.finish(ctx, log, event.ID, deliveries.StatusFailed, err.Error())
		return "", err
	}

	status := deliveries.StatusProcessed
	if outcome == OutcomeIgnored {
		status = deliveries.StatusIgnored
	}
	d.finish(ctx, log, event.ID, status, "")
	log.Info("event handled", zap.String("outcome", string(outcome)))
	return outcome, nil
}

func (d *Dispatcher) route(ctx context.Context, event stripe.Event) (Outcome, error) {
	if event.Data == nil {
		return "", fmt.Errorf("%w: event %s has no data", apperrors.ErrInvalidInput, event.ID)
	}

	switch event.Type {
	case EventPaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return "", fmt.Errorf("%w: parse payment intent: %v", apperrors.ErrInvalidInput, err)
		}
		return d.handlePaymentIntent(ctx, &pi)

	case EventInvoicePaymentSucceeded:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return "", fmt.Errorf("%w: parse invoice: %v", apperrors.ErrInvalidInput, err)
		}
		return d.handleInvoice(ctx, &inv)

	default:
		return OutcomeIgnored, nil
	}
}

func (d *Dispatcher) handlePaymentIntent(ctx context.Context, pi *stripe.PaymentIntent) (Outcome, error) {
	// Intents that pay an invoice are recorded from invoice.payment_succeeded.
	if pi.Invoice != nil && pi.Invoice.ID != "" {
		return OutcomeIgnored, nil
	}

	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	ev := donations.ChargeEvent{
		ChargeID: pi.ID,
		Amount:   amount,
		Currency: string(pi.Currency),
		Status:   stripeinfra.NormalizePaymentStatus(string(pi.Status)),
		Kind:     model.KindOneTime,
		Metadata: pi.Metadata,
	}
	if pi.Customer != nil {
		ev.CustomerID = pi.Customer.ID
	}

	if _, err := d.recorder.Record(ctx, ev); err != nil {
		return "", err
	}
	return OutcomeReceived, nil
}

func (d *Dispatcher) handleInvoice(ctx context.Context, inv *stripe.Invoice) (Outcome, error) {
	if inv.AmountPaid == 0 || inv.Subscription == nil || inv.Subscription.ID == "" {
		return OutcomeIgnored, nil
	}

	metadata := inv.Subscription.Metadata
	if len(metadata) == 0 && inv.SubscriptionDetails != nil {
		metadata = inv.SubscriptionDetails.Metadata
	}
	if len(metadata) == 0 {
		md, err := d.subscriptionMetadata(ctx, inv.Subscription.ID)
		if err != nil {
			return "", err
		}
		metadata = md
	}

	chargeID := inv.ID
	if inv.PaymentIntent != nil && inv.PaymentIntent.ID != "" {
		chargeID = inv.PaymentIntent.ID
	}

	ev := donations.ChargeEvent{
		ChargeID:       chargeID,
		Amount:         inv.AmountPaid,
		Currency:       string(inv.Currency),
		Status:         model.StatusSucceeded,
		Kind:           model.KindRecurring,
		SubscriptionID: inv.Subscription.ID,
		Metadata:       metadata,
	}
	if inv.Customer != nil {
		ev.CustomerID = inv.Customer.ID
	}

	if _, err := d.recorder.Record(ctx, ev); err != nil {
		return "", err
	}
	return OutcomeReceived, nil
}

func (d *Dispatcher) subscriptionMetadata(ctx context.Context, id string) (map[string]string, error) {
	if d.subscriptions == nil {
		return nil, fmt.Errorf("%w: no subscription lookup configured", apperrors.ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, d.providerTimeout)
	defer cancel()
	md, err := d.subscriptions.GetSubscriptionMetadata(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %s metadata: %w", id, err)
	}
	return md, nil
}

func (d *Dispatcher) begin(ctx context.Context, id, eventType string) (*deliveries.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	return d.deliveries.Begin(ctx, id, eventType)
}

func (d *Dispatcher) finish(ctx context.Context, log *zap.Logger, id, status, errMsg string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.storeTimeout)
	defer cancel()
	if err := d.deliveries.Finish(ctx, id, status, errMsg); err != nil {
		log.Warn("failed to update delivery log", zap.String("status", status), zap.Error(err))
	}
}

func (d *Dispatcher) archivePayload(ctx context.Context, log *zap.Logger, id, eventType string, payload []byte) {
	if d.archive == nil || len(payload) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	if err := d.archive.Store(ctx, id, eventType, payload, d.now()); err != nil {
		log.Warn("failed to archive webhook payload", zap.Error(err))
	}
}
