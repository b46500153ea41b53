package stripewebhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	stripeinfra "donation-ledger/internal/infra/stripe"
	"donation-ledger/internal/services/webhooks"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"
)

const maxBodyBytes = 65536

type Dispatcher interface {
	Dispatch(ctx context.Context, event stripe.Event, payload []byte) (webhooks.Outcome, error)
}

type Handler struct {
	verifier   *stripeinfra.Verifier
	dispatcher Dispatcher
	log        *logger.Logger
}

func NewHandler(verifier *stripeinfra.Verifier, dispatcher Dispatcher, log *logger.Logger) *Handler {
	return &Handler{verifier: verifier, dispatcher: dispatcher, log: log}
}

// StripeWebhook acknowledges an event only once it is fully recorded. Any 5xx makes Stripe
// deliver it again, which is safe because recording is idempotent.
func (h *Handler) StripeWebhook(c *gin.Context) {
	log := h.log.WithContext(c.Request.Context())

	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		log.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader(stripeinfra.SignatureHeader))
	if err != nil {
		log.Warn("stripe signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	outcome, err := h.dispatcher.Dispatch(c.Request.Context(), event, payload)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
