package donations

import (
	"fmt"
	"regexp"
	"strings"

	"donation-ledger/pkg/apperrors"
)

// Metadata keys carried on payment intents and subscriptions.
const (
	MetaCampaignID = "campaignId"
	MetaDonorID    = "donorId"
	MetaDonorName  = "donorName"
	MetaIsGiftAid  = "isGiftAid"
	MetaPlatform   = "platform"
)

var currencyPattern = regexp.MustCompile(`^[a-z]{3}$`)

// NormalizeCurrency lowercases an ISO 4217 code and rejects anything that is not three letters.
func NormalizeCurrency(c string) (string, error) {
	c = strings.ToLower(strings.TrimSpace(c))
	if !currencyPattern.MatchString(c) {
		return "", fmt.Errorf("%w: currency must be a 3-letter ISO code", apperrors.ErrInvalidInput)
	}
	return c, nil
}

func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be a positive integer in minor units", apperrors.ErrInvalidInput)
	}
	return nil
}

// MetadataFor builds the metadata bag that the webhook path reads back.
func MetadataFor(campaignID, donorID, donorName string, giftAid bool, platform string) map[string]string {
	md := map[string]string{
		MetaCampaignID: campaignID,
		MetaDonorName:  donorName,
		MetaIsGiftAid:  fmt.Sprint(giftAid),
		MetaPlatform:   platform,
	}
	if donorID != "" {
		md[MetaDonorID] = donorID
	}
	return md
}
