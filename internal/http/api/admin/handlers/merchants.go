package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/giftvault/giftvault/internal/db"
	"github.com/giftvault/giftvault/internal/models"
)

// MerchantHandler handles admin operations for merchants.
type MerchantHandler struct {
	db *gorm.DB
}

// NewMerchantHandler constructs a MerchantHandler.
func NewMerchantHandler(db *gorm.DB) *MerchantHandler {
	return &MerchantHandler{db: db}
}

// createMerchantRequest captures the payload for creating a merchant.
type createMerchantRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Create persists a new merchant.
func (h *MerchantHandler) Create(c *gin.Context) {
	var body createMerchantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	var exists models.Merchant
	if errCheck := h.db.WithContext(c.Request.Context()).Where("name = ?", name).First(&exists).Error; errCheck == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "merchant already exists"})
		return
	}

	now := time.Now().UTC()
	merchant := models.Merchant{
		Name:      name,
		Category:  strings.TrimSpace(body.Category),
		IsEnabled: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&merchant).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create merchant failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatMerchant(&merchant))
}

// List returns merchants filtered by query parameters.
func (h *MerchantHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Merchant{})
	if nameQ := strings.TrimSpace(c.Query("name")); nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}
	if categoryQ := strings.TrimSpace(c.Query("category")); categoryQ != "" {
		q = q.Where("category = ?", categoryQ)
	}

	var rows []models.Merchant
	if errFind := q.Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list merchants failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, h.formatMerchant(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"merchants": out})
}

// updateMerchantRequest captures optional fields for merchant updates.
type updateMerchantRequest struct {
	Name      *string `json:"name"`
	Category  *string `json:"category"`
	IsEnabled *bool   `json:"is_enabled"`
}

// Update applies validated field changes to a merchant.
func (h *MerchantHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var merchant models.Merchant
	if errFind := h.db.WithContext(c.Request.Context()).First(&merchant, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var body updateMerchantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if body.Category != nil {
		updates["category"] = strings.TrimSpace(*body.Category)
	}
	if body.IsEnabled != nil {
		updates["is_enabled"] = *body.IsEnabled
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	updates["updated_at"] = time.Now().UTC()

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Merchant{}).
		Where("id = ?", id).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// formatMerchant maps a merchant model into a response payload.
func (h *MerchantHandler) formatMerchant(merchant *models.Merchant) gin.H {
	return gin.H{
		"id":         merchant.ID,
		"name":       merchant.Name,
		"category":   merchant.Category,
		"is_enabled": merchant.IsEnabled,
		"created_at": merchant.CreatedAt,
		"updated_at": merchant.UpdatedAt,
	}
}
