package reward

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/metrics"
	"github.com/giftvault/giftvault/internal/models"
	"github.com/giftvault/giftvault/internal/settings"
)

// Accruer grants loyalty points and keeps users' cumulative totals.
type Accruer struct {
	db *gorm.DB
}

// NewAccruer constructs an Accruer.
func NewAccruer(db *gorm.DB) *Accruer {
	return &Accruer{db: db}
}

// ratePercent returns the configured accrual rate for a transaction type.
func ratePercent(rewardType models.RewardType) int64 {
	switch rewardType {
	case models.RewardTypePurchase:
		return settings.IntValue(settings.PurchaseRewardPercentKey, settings.DefaultPurchaseRewardPercent)
	case models.RewardTypeRecharge:
		return settings.IntValue(settings.RechargeRewardPercentKey, settings.DefaultRechargeRewardPercent)
	default:
		return 0
	}
}

// PointsFor computes floor(amount * rate) in whole points. Amounts are in
// cents and rates in whole percent, so a 10% rate on 2500 cents yields
// floor(25.00 * 0.10) = 2 points.
func PointsFor(amountFiatCents, percent int64) int64 {
	if amountFiatCents <= 0 || percent <= 0 {
		return 0
	}
	return amountFiatCents * percent / 10000
}

// AccrueTransaction persists a reward for a completed financial operation
// and increments the user's point total. Returns the points granted.
func (a *Accruer) AccrueTransaction(ctx context.Context, userID uint64, rewardType models.RewardType, amountFiatCents int64, ledgerEntryID *uint64) (int64, error) {
	points := PointsFor(amountFiatCents, ratePercent(rewardType))
	if points <= 0 {
		return 0, nil
	}
	if errGrant := a.grant(ctx, userID, rewardType, points, ledgerEntryID); errGrant != nil {
		return 0, errGrant
	}
	return points, nil
}

// AccrueEngagement grants a flat one-time bonus, e.g. for a first wallet
// bind. The caller decides the one-time condition.
func (a *Accruer) AccrueEngagement(ctx context.Context, userID uint64) (int64, error) {
	points := settings.IntValue(settings.WalletBindBonusPointsKey, settings.DefaultWalletBindBonusPoints)
	if points <= 0 {
		return 0, nil
	}
	if errGrant := a.grant(ctx, userID, models.RewardTypeEngagement, points, nil); errGrant != nil {
		return 0, errGrant
	}
	return points, nil
}

// grant writes the reward row and the user total in one transaction.
func (a *Accruer) grant(ctx context.Context, userID uint64, rewardType models.RewardType, points int64, ledgerEntryID *uint64) error {
	now := time.Now().UTC()
	var expiresAt *time.Time
	if days := settings.IntValue(settings.RewardExpiryDaysKey, settings.DefaultRewardExpiryDays); days > 0 {
		exp := now.AddDate(0, 0, int(days))
		expiresAt = &exp
	}

	errTx := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.Reward{
			UserID:        userID,
			Points:        points,
			Type:          rewardType,
			LedgerEntryID: ledgerEntryID,
			ExpiresAt:     expiresAt,
			CreatedAt:     now,
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return errCreate
		}
		total := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("reward_points", gorm.Expr("reward_points + ?", points))
		if total.Error != nil {
			return total.Error
		}
		if total.RowsAffected == 0 {
			return errors.New("reward: user not found")
		}
		return nil
	})
	if errTx != nil {
		return errTx
	}
	metrics.RewardPoints.WithLabelValues(string(rewardType)).Add(float64(points))
	return nil
}

// Balance returns the user's live point total (unexpired grants only).
func (a *Accruer) Balance(ctx context.Context, userID uint64) (int64, error) {
	var user models.User
	if errFind := a.db.WithContext(ctx).Select("id", "reward_points").
		First(&user, userID).Error; errFind != nil {
		return 0, errFind
	}
	return user.RewardPoints, nil
}

// SweepExpired marks overdue rewards expired and deducts their points from
// user totals. Called periodically by the scheduler.
func (a *Accruer) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	var due []models.Reward
	if errFind := a.db.WithContext(ctx).
		Where("expired = ? AND expires_at IS NOT NULL AND expires_at <= ?", false, now).
		Limit(500).
		Find(&due).Error; errFind != nil {
		return 0, errFind
	}

	swept := 0
	for i := range due {
		row := due[i]
		errTx := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			marked := tx.Model(&models.Reward{}).
				Where("id = ? AND expired = ?", row.ID, false).
				Update("expired", true)
			if marked.Error != nil {
				return marked.Error
			}
			if marked.RowsAffected == 0 {
				return nil // already swept by a concurrent run
			}
			// CASE keeps the expression portable across SQLite and Postgres.
			return tx.Model(&models.User{}).Where("id = ?", row.UserID).
				Update("reward_points", gorm.Expr(
					"CASE WHEN reward_points > ? THEN reward_points - ? ELSE 0 END",
					row.Points, row.Points)).Error
		})
		if errTx != nil {
			log.WithError(errTx).WithField("reward_id", row.ID).Warn("reward expiry sweep failed")
			continue
		}
		swept++
	}
	return swept, nil
}
