package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/models"
	"github.com/giftvault/giftvault/internal/reward"
)

// RewardHandler handles loyalty reward endpoints.
type RewardHandler struct {
	db      *gorm.DB
	rewards *reward.Accruer
}

// NewRewardHandler constructs a RewardHandler.
func NewRewardHandler(db *gorm.DB, rewards *reward.Accruer) *RewardHandler {
	return &RewardHandler{db: db, rewards: rewards}
}

// Balance returns the user's current point total.
func (h *RewardHandler) Balance(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	points, errBalance := h.rewards.Balance(c.Request.Context(), userID)
	if errBalance != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

// List returns the user's reward grants, newest first.
func (h *RewardHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []models.Reward
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(200).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query rewards failed"})
		return
	}

	resp := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, gin.H{
			"id":              row.ID,
			"points":          row.Points,
			"type":            row.Type,
			"ledger_entry_id": row.LedgerEntryID,
			"expires_at":      row.ExpiresAt,
			"expired":         row.Expired,
			"created_at":      row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rewards": resp})
}
