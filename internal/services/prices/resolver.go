package prices

import (
	"context"
	"fmt"
	"strings"
	"time"

	model "donation-ledger/internal/domain/donations"
	"donation-ledger/internal/infra/stripe"
	"donation-ledger/internal/repository"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"go.uber.org/zap"
)

// Interval is the donor-facing billing frequency.
type Interval string

const (
	Monthly   Interval = "monthly"
	Quarterly Interval = "quarterly"
	Yearly    Interval = "yearly"
)

// Recurrence maps the interval onto the provider's (interval, interval_count) pair.
func (i Interval) Recurrence() (string, int64, bool) {
	switch Interval(strings.ToLower(string(i))) {
	case Monthly:
		return "month", 1, true
	case Quarterly:
		return "month", 3, true
	case Yearly:
		return "year", 1, true
	}
	return "", 0, false
}

type Request struct {
	CampaignID string
	Amount     int64
	Currency   string
	Interval   Interval
}

// Resolver finds or creates the recurring price for a campaign, amount, currency and interval.
type Resolver struct {
	campaigns       repository.CampaignRepository
	gateway         stripe.Gateway
	log             *logger.Logger
	scanLimit       int64
	storeTimeout    time.Duration
	providerTimeout time.Duration
}

func NewResolver(campaignRepo repository.CampaignRepository, gateway stripe.Gateway, log *logger.Logger, scanLimit int64, storeTimeout, providerTimeout time.Duration) *Resolver {
	if scanLimit <= 0 || scanLimit > 100 {
		scanLimit = 100
	}
	return &Resolver{
		campaigns:       campaignRepo,
		gateway:         gateway,
		log:             log,
		scanLimit:       scanLimit,
		storeTimeout:    storeTimeout,
		providerTimeout: providerTimeout,
	}
}

// Resolve reuses an active price with the exact amount, currency and recurrence when one is
// among the first scanLimit active prices of the campaign product; otherwise it creates one.
func (r *Resolver) Resolve(ctx context.Context, req Request) (string, error) {
	campaignID := strings.TrimSpace(req.CampaignID)
	if campaignID == "" {
		return "", fmt.Errorf("%w: campaignId is required", apperrors.ErrInvalidInput)
	}
	if err := model.ValidateAmount(req.Amount); err != nil {
		return "", err
	}
	currency, err := model.NormalizeCurrency(req.Currency)
	if err != nil {
		return "", err
	}
	interval, count, ok := req.Interval.Recurrence()
	if !ok {
		return "", fmt.Errorf("%w: interval must be monthly, quarterly or yearly", apperrors.ErrInvalidInput)
	}

	productID, err := r.ensureProduct(ctx, campaignID)
	if err != nil {
		return "", err
	}

	existing, err := r.listPrices(ctx, productID, currency)
	if err != nil {
		return "", err
	}
	for _, p := range existing {
		if p.UnitAmount == req.Amount && p.Currency == currency && p.Interval == interval && p.IntervalCount == count {
			return p.ID, nil
		}
	}
	if int64(len(existing)) >= r.scanLimit {
		r.log.WithContext(ctx).Warn("price scan window full, a matching price may exist beyond it",
			zap.String("product_id", productID), zap.Int64("scan_limit", r.scanLimit))
	}

	providerCtx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()
	priceID, err := r.gateway.CreatePrice(providerCtx, stripe.PriceInput{
		ProductID:     productID,
		UnitAmount:    req.Amount,
		Currency:      currency,
		Interval:      interval,
		IntervalCount: count,
		Metadata: map[string]string{
			model.MetaCampaignID: campaignID,
		},
		IdempotencyKey: fmt.Sprintf("price-%s-%d-%s-%s-%d", productID, req.Amount, currency, interval, count),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}

	r.log.WithContext(ctx).Info("recurring price created",
		zap.String("campaign_id", campaignID),
		zap.String("price_id", priceID),
		zap.Int64("amount", req.Amount),
		zap.String("interval", string(req.Interval)))
	return priceID, nil
}

// ensureProduct returns the campaign's provider product, creating and storing one on first use.
func (r *Resolver) ensureProduct(ctx context.Context, campaignID string) (string, error) {
	storeCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	campaign, err := r.campaigns.GetByID(storeCtx, campaignID)
	cancel()
	if err != nil {
		return "", err
	}
	if campaign.StripeProductID != nil && *campaign.StripeProductID != "" {
		return *campaign.StripeProductID, nil
	}

	name := campaign.Name
	if name == "" {
		name = "Campaign " + campaignID
	}
	providerCtx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	productID, err := r.gateway.CreateProduct(providerCtx, stripe.ProductInput{
		CampaignID:     campaignID,
		Name:           name,
		IdempotencyKey: "product-" + campaignID,
	})
	cancel()
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}

	storeCtx, cancel = context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	stored, err := r.campaigns.SetProductIfAbsent(storeCtx, campaignID, productID)
	if err != nil {
		return "", fmt.Errorf("save product for campaign %s: %w", campaignID, err)
	}
	return stored, nil
}

func (r *Resolver) listPrices(ctx context.Context, productID, currency string) ([]stripe.Price, error) {
	ctx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()
	prices, err := r.gateway.ListActivePrices(ctx, productID, currency, r.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}
	return prices, nil
}
