package notifications

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"donation-ledger/internal/domain/emails"
	"donation-ledger/internal/infra/mailer"
	"donation-ledger/internal/repository"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Locker serialises sends of the same receipt across instances.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

type ReceiptRequest struct {
	Email        string
	DonationID   string
	DonorName    string
	CampaignName string
}

type SendResult struct {
	Deduplicated bool   `json:"deduplicated"`
	StatusCode   int    `json:"statusCode,omitempty"`
	MessageID    string `json:"messageId,omitempty"`
	Message      string `json:"message"`
}

type Options struct {
	TemplateID   string
	StoreTimeout time.Duration
	EmailTimeout time.Duration
	LockTTL      time.Duration
}

// Dispatcher sends donation thank-you emails at most once per (donation, recipient) and keeps
// an audit row for every attempt.
type Dispatcher struct {
	donations repository.DonationRepository
	campaigns repository.CampaignRepository
	events    repository.EmailEventRepository
	mailer    mailer.Mailer
	locker    Locker
	log       *logger.Logger
	opts      Options
	now       func() time.Time
}

func NewDispatcher(store *repository.Store, m mailer.Mailer, log *logger.Logger, opts Options) *Dispatcher {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	return &Dispatcher{
		donations: store.Donations,
		campaigns: store.Campaigns,
		events:    store.EmailEvents,
		mailer:    m,
		log:       log,
		opts:      opts,
		now:       time.Now,
	}
}

// WithLocker enables the cross-instance send lock.
func (d *Dispatcher) WithLocker(l Locker) *Dispatcher {
	d.locker = l
	return d
}

func (d *Dispatcher) SendThankYou(ctx context.Context, req ReceiptRequest) (*SendResult, error) {
	recipient := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(recipient) {
		return nil, fmt.Errorf("%w: a valid email is required", apperrors.ErrInvalidInput)
	}
	donationID := strings.TrimSpace(req.DonationID)
	if donationID == "" {
		return nil, fmt.Errorf("%w: donationId is required", apperrors.ErrInvalidInput)
	}
	log := d.log.WithContext(ctx).With(zap.String("donation_id", donationID))

	storeCtx, cancel := context.WithTimeout(ctx, d.opts.StoreTimeout)
	donation, err := d.donations.GetByID(storeCtx, donationID)
	cancel()
	if err != nil {
		return nil, err
	}

	if sent, err := d.alreadySent(ctx, donationID, recipient); err != nil {
		return nil, err
	} else if sent {
		return deduplicated(), nil
	}

	if d.locker != nil {
		release, acquired, err := d.locker.Acquire(ctx, "receipt:"+donationID+":"+recipient, d.opts.LockTTL)
		if err != nil {
			// The audit check above still guards the common case.
			log.Warn("receipt lock unavailable", zap.Error(err))
		} else if !acquired {
			return deduplicated(), nil
		} else {
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("failed to release receipt lock", zap.Error(err))
				}
			}()
			if sent, err := d.alreadySent(ctx, donationID, recipient); err != nil {
				return nil, err
			} else if sent {
				return deduplicated(), nil
			}
		}
	}

	var organizationID string
	campaignName := strings.TrimSpace(req.CampaignName)
	storeCtx, cancel = context.WithTimeout(ctx, d.opts.StoreTimeout)
	campaign, err := d.campaigns.GetByID(storeCtx, donation.CampaignID)
	cancel()
	switch {
	case err == nil:
		organizationID = campaign.OrganizationID
		if campaignName == "" {
			campaignName = campaign.Name
		}
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		return nil, fmt.Errorf("load campaign %s: %w", donation.CampaignID, err)
	}

	donorName := strings.TrimSpace(req.DonorName)
	if donorName == "" {
		donorName = donation.DonorName
	}
	msg := thankYouMessage(recipient, donorName, campaignName, donation.Amount, donation.Currency, d.opts.TemplateID)

	emailCtx, cancel := context.WithTimeout(ctx, d.opts.EmailTimeout)
	res, sendErr := d.mailer.Send(emailCtx, msg)
	cancel()

	event := &emails.Event{
		ID:                uuid.NewString(),
		EventType:         emails.EventTypeThankYou,
		DonationID:        donationID,
		Recipient:         recipient,
		Status:            emails.StatusSuccess,
		OrganizationID:    organizationID,
		ProviderMessageID: res.MessageID,
		CreatedAt:         d.now().UTC(),
	}
	if sendErr != nil {
		event.Status = emails.StatusFailed
		event.ErrorMessage = sendErr.Error()
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.StoreTimeout)
	defer cancel()
	if err := d.events.Append(auditCtx, event); err != nil {
		log.Error("failed to append email audit event", zap.String("status", event.Status), zap.Error(err))
	}

	if sendErr != nil {
		log.Error("thank-you email failed", zap.Error(sendErr))
		return nil, fmt.Errorf("%w: send thank-you email: %v", apperrors.ErrUpstream, sendErr)
	}

	log.Info("thank-you email sent", zap.String("message_id", res.MessageID))
	return &SendResult{
		StatusCode: res.StatusCode,
		MessageID:  res.MessageID,
		Message:    "Thank-you email sent",
	}, nil
}

func (d *Dispatcher) alreadySent(ctx context.Context, donationID, recipient string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.StoreTimeout)
	defer cancel()
	sent, err := d.events.HasSuccessfulSend(ctx, emails.EventTypeThankYou, donationID, recipient)
	if err != nil {
		return false, fmt.Errorf("check email audit: %w", err)
	}
	return sent, nil
}

func deduplicated() *SendResult {
	return &SendResult{Deduplicated: true, Message: "Thank-you email already sent"}
}
