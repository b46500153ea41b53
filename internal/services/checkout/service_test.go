package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"donation-ledger/internal/domain/campaigns"
	model "donation-ledger/internal/domain/donations"
	"donation-ledger/internal/domain/users"
	"donation-ledger/internal/repository"
	"donation-ledger/internal/services/customers"
	"donation-ledger/internal/services/prices"
	"donation-ledger/internal/testutil"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"
)

func newService(t *testing.T) (*Service, *testutil.FakeGateway) {
	t.Helper()
	db := testutil.NewDB(t, repository.Models()...)
	if err := db.Create(&campaigns.Campaign{ID: "camp_1", Name: "Roof fund"}).Error; err != nil {
		t.Fatal(err)
	}
	store := repository.NewGormStore(db)
	gateway := testutil.NewFakeGateway()
	log := logger.Nop()

	cr := customers.NewResolver(store.Users, gateway, log, time.Second, time.Second)
	pr := prices.NewResolver(store.Campaigns, gateway, log, 100, time.Second, time.Second)
	return NewService(store.Campaigns, cr, pr, gateway, log, time.Second, time.Second), gateway
}

func TestCreateDonationIntentAnonymous(t *testing.T) {
	s, gateway := newService(t)

	res, err := s.CreateDonationIntent(context.Background(), nil, IntentRequest{
		CampaignID: "camp_1", Amount: 2500, Currency: "GBP", DonorName: "Ada", IsGiftAid: true,
	})
	if err != nil {
		t.Fatalf("CreateDonationIntent failed: %v", err)
	}
	if res.ClientSecret == "" {
		t.Error("missing client secret")
	}

	in := gateway.IntentsCreated[0]
	if in.CustomerID != "" || in.Currency != "gbp" {
		t.Errorf("unexpected intent input %+v", in)
	}
	if _, ok := in.Metadata[model.MetaDonorID]; ok {
		t.Error("anonymous intent should not carry donorId")
	}
	if in.Metadata[model.MetaCampaignID] != "camp_1" || in.Metadata[model.MetaIsGiftAid] != "true" || in.Metadata[model.MetaPlatform] != "web" {
		t.Errorf("unexpected metadata %v", in.Metadata)
	}
	if gateway.CustomerCalls() != 0 {
		t.Error("anonymous donations should not create customers")
	}
}

func TestCreateDonationIntentAuthenticated(t *testing.T) {
	s, gateway := newService(t)
	donor := &users.Identity{UserID: "user_1", Email: "ada@example.com"}

	if _, err := s.CreateDonationIntent(context.Background(), donor, IntentRequest{CampaignID: "camp_1", Amount: 1000, Currency: "gbp", Platform: "iOS"}); err != nil {
		t.Fatal(err)
	}
	in := gateway.IntentsCreated[0]
	if in.CustomerID == "" || in.Metadata[model.MetaDonorID] != "user_1" || in.Metadata[model.MetaPlatform] != "ios" {
		t.Errorf("unexpected intent input %+v", in)
	}
}

func TestCreateDonationIntentValidation(t *testing.T) {
	s, gateway := newService(t)

	if _, err := s.CreateDonationIntent(context.Background(), nil, IntentRequest{CampaignID: "camp_1", Amount: -5, Currency: "gbp"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("negative amount: %v", err)
	}
	if _, err := s.CreateDonationIntent(context.Background(), nil, IntentRequest{CampaignID: "ghost", Amount: 100, Currency: "gbp"}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("unknown campaign: %v", err)
	}
	if len(gateway.IntentsCreated) != 0 {
		t.Error("no intent should be created")
	}
}

func TestCreateRecurringDonation(t *testing.T) {
	s, gateway := newService(t)
	donor := users.Identity{UserID: "user_1", Email: "ada@example.com"}
	req := SubscriptionRequest{CampaignID: "camp_1", Amount: 1000, Currency: "gbp", Interval: prices.Monthly}

	first, err := s.CreateRecurringDonation(context.Background(), donor, req)
	if err != nil {
		t.Fatalf("CreateRecurringDonation failed: %v", err)
	}
	second, err := s.CreateRecurringDonation(context.Background(), donor, req)
	if err != nil {
		t.Fatal(err)
	}

	if first.PriceID != second.PriceID || first.CustomerID != second.CustomerID {
		t.Errorf("price or customer not reused: %+v vs %+v", first, second)
	}
	if gateway.PriceCalls() != 1 || gateway.CustomerCalls() != 1 {
		t.Errorf("prices created %d, customers created %d", gateway.PriceCalls(), gateway.CustomerCalls())
	}
	md := gateway.SubscriptionsCreated[0].Metadata
	if md[model.MetaCampaignID] != "camp_1" || md[model.MetaDonorID] != "user_1" {
		t.Errorf("unexpected subscription metadata %v", md)
	}
}

func TestCreateRecurringDonationNeedsDonor(t *testing.T) {
	s, _ := newService(t)
	_, err := s.CreateRecurringDonation(context.Background(), users.Identity{}, SubscriptionRequest{CampaignID: "camp_1", Amount: 1000, Currency: "gbp", Interval: prices.Monthly})
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}
