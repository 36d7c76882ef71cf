package settings

// DB config keys and defaults for runtime-tunable settings.
const (
	// SiteNameKey is the DB config key for the storefront name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback storefront name.
	DefaultSiteName = "GiftVault"

	// PurchaseRewardPercentKey sets the loyalty rate for card purchases.
	PurchaseRewardPercentKey = "PURCHASE_REWARD_PERCENT"
	// RechargeRewardPercentKey sets the loyalty rate for card recharges.
	RechargeRewardPercentKey = "RECHARGE_REWARD_PERCENT"
	// WalletBindBonusPointsKey sets the flat bonus for a first wallet bind.
	WalletBindBonusPointsKey = "WALLET_BIND_BONUS_POINTS"
	// RewardExpiryDaysKey sets reward point lifetime; 0 means no expiry.
	RewardExpiryDaysKey = "REWARD_EXPIRY_DAYS"
	// NotificationRetentionDaysKey sets how long notifications are kept.
	NotificationRetentionDaysKey = "NOTIFICATION_RETENTION_DAYS"
	// IdempotencyTTLHoursKey sets how long idempotency keys are honored.
	IdempotencyTTLHoursKey = "IDEMPOTENCY_TTL_HOURS"

	// DefaultPurchaseRewardPercent is the fallback purchase rate (percent).
	DefaultPurchaseRewardPercent = 5
	// DefaultRechargeRewardPercent is the fallback recharge rate (percent).
	DefaultRechargeRewardPercent = 10
	// DefaultWalletBindBonusPoints is the fallback wallet bind bonus.
	DefaultWalletBindBonusPoints = 100
	// DefaultRewardExpiryDays is the fallback reward lifetime.
	DefaultRewardExpiryDays = 365
	// DefaultNotificationRetentionDays is the fallback retention window.
	DefaultNotificationRetentionDays = 90
	// DefaultIdempotencyTTLHours is the fallback idempotency key lifetime.
	DefaultIdempotencyTTLHours = 24
)
