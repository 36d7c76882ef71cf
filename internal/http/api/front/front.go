package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/config"
	"github.com/giftvault/giftvault/internal/http/api/front/handlers"
	"github.com/giftvault/giftvault/internal/idempotency"
	"github.com/giftvault/giftvault/internal/ledger"
	"github.com/giftvault/giftvault/internal/models"
	"github.com/giftvault/giftvault/internal/reward"
	"github.com/giftvault/giftvault/internal/security"
)

// RegisterFrontRoutes registers public and authenticated front-end routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc *ledger.Service, rewards *reward.Accruer, notifier ledger.Notifier, idem idempotency.Store) {
	if r == nil || db == nil {
		return
	}

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	front.POST("/register", authHandler.Register)
	front.POST("/login", authHandler.Login)
	front.POST("/login/prepare", authHandler.LoginPrepare)
	front.POST("/login/totp", authHandler.LoginTOTP)
	front.POST("/reset-password", authHandler.ResetPassword)
	front.GET("/config", handlers.GetPublicConfig)

	authed := front.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg))

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile/password", profileHandler.ChangePassword)

	mfaHandler := handlers.NewMFAHandler(db)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	walletHandler := handlers.NewWalletHandler(db, rewards, notifier)
	authed.POST("/wallet/bind", walletHandler.Bind)

	cardHandler := handlers.NewGiftCardHandler(db, svc, idem)
	authed.GET("/gift-cards", cardHandler.List)
	authed.POST("/gift-cards", cardHandler.Purchase)
	authed.GET("/gift-cards/:id", cardHandler.Get)
	authed.POST("/gift-cards/:id/recharge", cardHandler.Recharge)
	authed.POST("/gift-cards/:id/spend", cardHandler.Spend)
	authed.GET("/gift-cards/:id/ledger", cardHandler.Ledger)

	rewardHandler := handlers.NewRewardHandler(db, rewards)
	authed.GET("/rewards", rewardHandler.List)
	authed.GET("/rewards/balance", rewardHandler.Balance)

	notificationHandler := handlers.NewNotificationHandler(db)
	authed.GET("/notifications", notificationHandler.List)
	authed.POST("/notifications/:id/read", notificationHandler.MarkRead)
	authed.POST("/notifications/read-all", notificationHandler.MarkAllRead)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
