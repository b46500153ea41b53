package donations

import (
	"errors"
	"testing"

	"donation-ledger/pkg/apperrors"
)

func TestNormalizeCurrency(t *testing.T) {
	got, err := NormalizeCurrency(" GBP ")
	if err != nil || got != "gbp" {
		t.Fatalf("NormalizeCurrency = %q, %v", got, err)
	}
	for _, bad := range []string{"", "gb", "pounds", "12a"} {
		if _, err := NormalizeCurrency(bad); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("NormalizeCurrency(%q) should fail, got %v", bad, err)
		}
	}
}

func TestMetadataForOmitsAnonymousDonor(t *testing.T) {
	md := MetadataFor("camp_9", "", "Ada", true, "web")
	if _, ok := md[MetaDonorID]; ok {
		t.Fatal("anonymous donation should not carry donorId")
	}
	if md[MetaIsGiftAid] != "true" || md[MetaCampaignID] != "camp_9" {
		t.Fatalf("unexpected metadata %v", md)
	}
}
