package stripe

import (
	"fmt"
	"strings"

	"donation-ledger/pkg/apperrors"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

const SignatureHeader = "Stripe-Signature"

// Verifier authenticates webhook payloads against the endpoint secret. It must be given the
// exact request bytes; the signature is computed over the raw body.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

func (v *Verifier) Verify(payload []byte, header string) (stripe.Event, error) {
	if strings.TrimSpace(header) == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing %s header", apperrors.ErrInvalidSignature, SignatureHeader)
	}
	event, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidSignature, err)
	}
	return event, nil
}
