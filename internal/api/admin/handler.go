package admin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"donation-ledger/internal/api/respond"
	"donation-ledger/internal/domain/campaigns"
	"donation-ledger/internal/repository"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	campaigns repository.CampaignRepository
	donations repository.DonationRepository
	log       *logger.Logger
	timeout   time.Duration
}

func NewHandler(store *repository.Store, log *logger.Logger, timeout time.Duration) *Handler {
	return &Handler{campaigns: store.Campaigns, donations: store.Donations, log: log, timeout: timeout}
}

// UpsertCampaign creates or renames a campaign. Totals are never written here.
func (h *Handler) UpsertCampaign(c *gin.Context) {
	var body struct {
		Name           string `json:"name"`
		OrganizationID string `json:"organizationId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		respond.BadRequest(c, "Campaign name is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	id := c.Param("id")
	if err := h.campaigns.Upsert(ctx, &campaigns.Campaign{
		ID:             id,
		Name:           strings.TrimSpace(body.Name),
		OrganizationID: strings.TrimSpace(body.OrganizationID),
	}); err != nil {
		respond.Error(c, h.log, err)
		return
	}

	campaign, err := h.campaigns.GetByID(ctx, id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (h *Handler) GetDonation(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	donation, err := h.donations.GetByID(ctx, c.Param("id"))
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, donation)
}
