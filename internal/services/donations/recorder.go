package donations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"donation-ledger/internal/domain/campaigns"
	model "donation-ledger/internal/domain/donations"
	"donation-ledger/internal/repository"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"go.uber.org/zap"
)

// ChargeEvent is a successful charge as the webhook layer understood it.
type ChargeEvent struct {
	ChargeID       string
	Amount         int64
	Currency       string
	Status         string
	Kind           string
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
}

type RecordResult struct {
	Donation      *model.Donation
	Created       bool
	LedgerApplied bool
}

// Recorder turns charge events into donation records and campaign increments.
type Recorder struct {
	donations repository.DonationRepository
	ledger    *Ledger
	log       *logger.Logger
	timeout   time.Duration
	now       func() time.Time
}

func NewRecorder(donations repository.DonationRepository, ledger *Ledger, log *logger.Logger, timeout time.Duration) *Recorder {
	return &Recorder{donations: donations, ledger: ledger, log: log, timeout: timeout, now: time.Now}
}

// Record stores the donation if its charge id is new, then makes sure the campaign has been
// credited for it. A repeat of an event that already completed changes nothing; a repeat of one
// that stopped between the two steps finishes the increment.
func (r *Recorder) Record(ctx context.Context, ev ChargeEvent) (*RecordResult, error) {
	d, err := r.build(ev)
	if err != nil {
		return nil, err
	}

	created, existing, err := r.create(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("record donation %s: %w", d.ID, err)
	}
	if !created {
		d = existing
		r.log.WithContext(ctx).Info("donation already recorded", zap.String("donation_id", d.ID))
	}

	applied, err := r.ledger.Apply(ctx, campaigns.LedgerEntry{
		DonationID:  d.ID,
		CampaignID:  d.CampaignID,
		AmountDelta: d.Amount,
		CountDelta:  1,
		AppliedAt:   r.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if created {
		r.log.WithContext(ctx).Info("donation recorded",
			zap.String("donation_id", d.ID),
			zap.String("campaign_id", d.CampaignID),
			zap.Int64("amount", d.Amount),
			zap.String("currency", d.Currency),
			zap.String("kind", d.Kind))
	}
	return &RecordResult{Donation: d, Created: created, LedgerApplied: applied}, nil
}

func (r *Recorder) create(ctx context.Context, d *model.Donation) (bool, *model.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.donations.CreateIfAbsent(ctx, d)
}

func (r *Recorder) build(ev ChargeEvent) (*model.Donation, error) {
	if strings.TrimSpace(ev.ChargeID) == "" {
		return nil, fmt.Errorf("%w: charge id is required", apperrors.ErrInvalidInput)
	}
	if err := model.ValidateAmount(ev.Amount); err != nil {
		return nil, err
	}
	currency, err := model.NormalizeCurrency(ev.Currency)
	if err != nil {
		return nil, err
	}
	campaignID := strings.TrimSpace(ev.Metadata[model.MetaCampaignID])
	if campaignID == "" {
		return nil, fmt.Errorf("%w: charge %s has no campaignId metadata", apperrors.ErrInvalidInput, ev.ChargeID)
	}

	kind := ev.Kind
	if kind == "" {
		kind = model.KindOneTime
	}
	status := ev.Status
	if status == "" {
		status = model.StatusSucceeded
	}

	return &model.Donation{
		ID:               ev.ChargeID,
		CampaignID:       campaignID,
		Amount:           ev.Amount,
		Currency:         currency,
		DonorID:          optional(ev.Metadata[model.MetaDonorID]),
		DonorName:        strings.TrimSpace(ev.Metadata[model.MetaDonorName]),
		IsGiftAid:        ev.Metadata[model.MetaIsGiftAid] == "true",
		Platform:         strings.TrimSpace(ev.Metadata[model.MetaPlatform]),
		PaymentStatus:    status,
		Kind:             kind,
		SubscriptionID:   optional(ev.SubscriptionID),
		StripeCustomerID: optional(ev.CustomerID),
		CreatedAt:        r.now().UTC(),
	}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
