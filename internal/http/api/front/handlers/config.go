package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/giftvault/giftvault/internal/settings"
)

// publicConfigResponse is the response payload for public config.
type publicConfigResponse struct {
	SiteName              string `json:"site_name"`
	PurchaseRewardPercent int64  `json:"purchase_reward_percent"`
	RechargeRewardPercent int64  `json:"recharge_reward_percent"`
}

// GetPublicConfig returns public configuration for the front UI.
func GetPublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, publicConfigResponse{
		SiteName:              settings.StringValue(settings.SiteNameKey, settings.DefaultSiteName),
		PurchaseRewardPercent: settings.IntValue(settings.PurchaseRewardPercentKey, settings.DefaultPurchaseRewardPercent),
		RechargeRewardPercent: settings.IntValue(settings.RechargeRewardPercentKey, settings.DefaultRechargeRewardPercent),
	})
}
