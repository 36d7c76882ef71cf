package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/config"
	"github.com/giftvault/giftvault/internal/http/api/admin/handlers"
	"github.com/giftvault/giftvault/internal/ledger"
	"github.com/giftvault/giftvault/internal/models"
	"github.com/giftvault/giftvault/internal/security"
)

// RegisterAdminRoutes registers admin authentication and management routes.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc *ledger.Service) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/login", authHandler.Login)
	group.POST("/login/totp", authHandler.LoginTOTP)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	cardHandler := handlers.NewGiftCardHandler(db, svc)
	authed.POST("/gift-cards", cardHandler.Create)
	authed.POST("/gift-cards/batch", cardHandler.BatchCreate)
	authed.GET("/gift-cards", cardHandler.List)
	authed.GET("/gift-cards/:id", cardHandler.Get)
	authed.GET("/gift-cards/:id/ledger", cardHandler.Ledger)
	authed.PUT("/gift-cards/:id/enabled", cardHandler.SetEnabled)

	merchantHandler := handlers.NewMerchantHandler(db)
	authed.POST("/merchants", merchantHandler.Create)
	authed.GET("/merchants", merchantHandler.List)
	authed.PUT("/merchants/:id", merchantHandler.Update)

	settingsHandler := handlers.NewSettingsHandler(db)
	authed.GET("/settings", settingsHandler.List)
	authed.PUT("/settings", settingsHandler.Put)

	dashboardHandler := handlers.NewDashboardHandler(db)
	authed.GET("/dashboard/overview", dashboardHandler.Overview)
}

// adminAuthMiddleware validates admin JWTs and loads the admin into context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin account is disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Next()
	}
}
