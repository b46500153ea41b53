package campaigns

import (
	"context"
	"net/http"
	"time"

	"donation-ledger/internal/api/respond"
	"donation-ledger/internal/repository"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	campaigns repository.CampaignRepository
	log       *logger.Logger
	timeout   time.Duration
}

func NewHandler(campaigns repository.CampaignRepository, log *logger.Logger, timeout time.Duration) *Handler {
	return &Handler{campaigns: campaigns, log: log, timeout: timeout}
}

type CampaignTotals struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	OrganizationID  string    `json:"organizationId"`
	CollectedAmount int64     `json:"collectedAmount"`
	DonationCount   int64     `json:"donationCount"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// GetCampaign returns the public fundraising totals.
func (h *Handler) GetCampaign(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	campaign, err := h.campaigns.GetByID(ctx, c.Param("id"))
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, CampaignTotals{
		ID:              campaign.ID,
		Name:            campaign.Name,
		OrganizationID:  campaign.OrganizationID,
		CollectedAmount: campaign.CollectedAmount,
		DonationCount:   campaign.DonationCount,
		LastUpdated:     campaign.LastUpdated,
	})
}
