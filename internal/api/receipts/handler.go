package receipts

import (
	"context"
	"net/http"

	"donation-ledger/internal/api/respond"
	"donation-ledger/internal/services/notifications"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Sender interface {
	SendThankYou(ctx context.Context, req notifications.ReceiptRequest) (*notifications.SendResult, error)
}

type Handler struct {
	sender Sender
	log    *logger.Logger
}

func NewHandler(sender Sender, log *logger.Logger) *Handler {
	return &Handler{sender: sender, log: log}
}

// SendThankYou emails the donor once per donation and address; repeats report deduplicated.
func (h *Handler) SendThankYou(c *gin.Context) {
	var body struct {
		Email        string `json:"email"`
		DonationID   string `json:"donationId"`
		DonorName    string `json:"donorName"`
		CampaignName string `json:"campaignName"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.BadRequest(c, "Missing or invalid receipt request")
		return
	}

	res, err := h.sender.SendThankYou(c.Request.Context(), notifications.ReceiptRequest{
		Email:        body.Email,
		DonationID:   body.DonationID,
		DonorName:    body.DonorName,
		CampaignName: body.CampaignName,
	})
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
