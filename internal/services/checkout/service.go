package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	model "donation-ledger/internal/domain/donations"
	"donation-ledger/internal/domain/users"
	"donation-ledger/internal/infra/stripe"
	"donation-ledger/internal/repository"
	"donation-ledger/internal/services/customers"
	"donation-ledger/internal/services/prices"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"go.uber.org/zap"
)

const defaultPlatform = "web"

type IntentRequest struct {
	CampaignID   string `json:"campaignId"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	DonorName    string `json:"donorName"`
	IsGiftAid    bool   `json:"isGiftAid"`
	Platform     string `json:"platform"`
	ReceiptEmail string `json:"receiptEmail"`
}

type IntentResult struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Status          string `json:"status"`
}

type SubscriptionRequest struct {
	CampaignID string          `json:"campaignId"`
	Amount     int64           `json:"amount"`
	Currency   string          `json:"currency"`
	Interval   prices.Interval `json:"interval"`
	DonorName  string          `json:"donorName"`
	IsGiftAid  bool            `json:"isGiftAid"`
	Platform   string          `json:"platform"`
}

type SubscriptionResult struct {
	SubscriptionID string `json:"subscriptionId"`
	PriceID        string `json:"priceId"`
	CustomerID     string `json:"customerId"`
	Status         string `json:"status"`
	ClientSecret   string `json:"clientSecret"`
}

// Service starts donations at the provider. The metadata it attaches is what the webhook path
// reads back when the charge succeeds.
type Service struct {
	campaigns       repository.CampaignRepository
	customers       *customers.Resolver
	prices          *prices.Resolver
	gateway         stripe.Gateway
	log             *logger.Logger
	storeTimeout    time.Duration
	providerTimeout time.Duration
}

func NewService(
	campaignRepo repository.CampaignRepository,
	customerResolver *customers.Resolver,
	priceResolver *prices.Resolver,
	gateway stripe.Gateway,
	log *logger.Logger,
	storeTimeout, providerTimeout time.Duration,
) *Service {
	return &Service{
		campaigns:       campaignRepo,
		customers:       customerResolver,
		prices:          priceResolver,
		gateway:         gateway,
		log:             log,
		storeTimeout:    storeTimeout,
		providerTimeout: providerTimeout,
	}
}

// CreateDonationIntent starts a one-time donation. donor is nil for anonymous donations.
func (s *Service) CreateDonationIntent(ctx context.Context, donor *users.Identity, req IntentRequest) (*IntentResult, error) {
	if err := model.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	currency, err := model.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	campaignID, err := s.requireCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	in := stripe.PaymentIntentInput{
		Amount:       req.Amount,
		Currency:     currency,
		ReceiptEmail: strings.TrimSpace(req.ReceiptEmail),
	}
	var donorID string
	if donor != nil && donor.UserID != "" {
		donorID = donor.UserID
		customerID, err := s.customers.Resolve(ctx, *donor)
		if err != nil {
			return nil, err
		}
		in.CustomerID = customerID
	}
	in.Metadata = model.MetadataFor(campaignID, donorID, strings.TrimSpace(req.DonorName), req.IsGiftAid, platform(req.Platform))

	providerCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	pi, err := s.gateway.CreatePaymentIntent(providerCtx, in)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}

	s.log.WithContext(ctx).Info("payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.String("campaign_id", campaignID),
		zap.Int64("amount", req.Amount))
	return &IntentResult{PaymentIntentID: pi.ID, ClientSecret: pi.ClientSecret, Status: pi.Status}, nil
}

// CreateRecurringDonation subscribes the donor to the campaign's recurring price. The
// subscription starts incomplete; the client confirms the first payment with ClientSecret.
func (s *Service) CreateRecurringDonation(ctx context.Context, donor users.Identity, req SubscriptionRequest) (*SubscriptionResult, error) {
	if donor.UserID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	priceID, err := s.prices.Resolve(ctx, prices.Request{
		CampaignID: req.CampaignID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Interval:   req.Interval,
	})
	if err != nil {
		return nil, err
	}
	customerID, err := s.customers.Resolve(ctx, donor)
	if err != nil {
		return nil, err
	}

	campaignID := strings.TrimSpace(req.CampaignID)
	providerCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	sub, err := s.gateway.CreateSubscription(providerCtx, stripe.SubscriptionInput{
		CustomerID: customerID,
		PriceID:    priceID,
		Metadata:   model.MetadataFor(campaignID, donor.UserID, strings.TrimSpace(req.DonorName), req.IsGiftAid, platform(req.Platform)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}

	s.log.WithContext(ctx).Info("recurring donation started",
		zap.String("subscription_id", sub.ID),
		zap.String("campaign_id", campaignID),
		zap.String("price_id", priceID))
	return &SubscriptionResult{
		SubscriptionID: sub.ID,
		PriceID:        priceID,
		CustomerID:     customerID,
		Status:         sub.Status,
		ClientSecret:   sub.ClientSecret,
	}, nil
}

func (s *Service) requireCampaign(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: campaignId is required", apperrors.ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if _, err := s.campaigns.GetByID(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

func platform(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return defaultPlatform
	}
	return p
}
