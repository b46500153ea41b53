package donations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-ledger/internal/domain/campaigns"
	"donation-ledger/internal/repository"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"go.uber.org/zap"
)

const (
	defaultLedgerAttempts = 3
	ledgerBackoff         = 100 * time.Millisecond
)

// Ledger applies donation deltas to campaign aggregates. Each donation id is applied at most once,
// so Apply can be called again for the same donation after any failure.
type Ledger struct {
	campaigns repository.CampaignRepository
	log       *logger.Logger
	timeout   time.Duration
	attempts  int
}

func NewLedger(campaigns repository.CampaignRepository, log *logger.Logger, timeout time.Duration) *Ledger {
	return &Ledger{campaigns: campaigns, log: log, timeout: timeout, attempts: defaultLedgerAttempts}
}

// Apply increments the campaign by the entry's deltas. It reports false when the donation had
// already been applied.
func (l *Ledger) Apply(ctx context.Context, e campaigns.LedgerEntry) (bool, error) {
	if e.DonationID == "" || e.CampaignID == "" {
		return false, fmt.Errorf("%w: ledger entry needs donation and campaign ids", apperrors.ErrInvalidInput)
	}

	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		applied, err := l.applyOnce(ctx, e)
		if err == nil {
			if applied {
				l.log.WithContext(ctx).Info("campaign aggregate incremented",
					zap.String("campaign_id", e.CampaignID),
					zap.String("donation_id", e.DonationID),
					zap.Int64("amount_delta", e.AmountDelta))
			}
			return applied, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, apperrors.ErrInvalidInput) {
			break
		}
		l.log.WithContext(ctx).Warn("ledger apply failed, retrying",
			zap.String("donation_id", e.DonationID), zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return false, fmt.Errorf("apply ledger entry %s: %w", e.DonationID, ctx.Err())
		case <-time.After(time.Duration(attempt) * ledgerBackoff):
		}
	}
	return false, fmt.Errorf("apply ledger entry %s: %w", e.DonationID, lastErr)
}

func (l *Ledger) applyOnce(ctx context.Context, e campaigns.LedgerEntry) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.campaigns.ApplyLedgerEntry(ctx, e)
}
