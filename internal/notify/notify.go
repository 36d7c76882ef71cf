package notify

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/models"
)

// dispatchTimeout bounds a single notification write.
const dispatchTimeout = 5 * time.Second

// dispatchAttempts is how many times a failed write is retried.
const dispatchAttempts = 3

// Service persists user notifications asynchronously.
//
// Dispatch is fire-and-forget with independent retries: the caller never
// waits and a persistent failure only produces log lines. Financial state
// is never coupled to notification delivery.
type Service struct {
	db *gorm.DB
}

// NewService constructs a notification service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Notify records a notification for the user in the background.
func (s *Service) Notify(_ context.Context, userID uint64, notifType, title, message string, giftCardID *uint64) {
	row := models.Notification{
		UserID:     userID,
		Type:       notifType,
		Title:      title,
		Message:    message,
		GiftCardID: giftCardID,
		CreatedAt:  time.Now().UTC(),
	}

	// Detached from the request context on purpose: a cancelled request
	// must not drop a notification for work that already committed.
	go func() {
		var lastErr error
		for attempt := 0; attempt < dispatchAttempts; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			lastErr = s.db.WithContext(ctx).Create(&row).Error
			cancel()
			if lastErr == nil {
				return
			}
			time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
		}
		log.WithError(lastErr).WithFields(log.Fields{
			"user_id": userID,
			"type":    notifType,
		}).Warn("notification dispatch failed")
	}()
}

// Prune deletes notifications older than the retention window. Returns the
// number of rows removed.
func (s *Service) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", olderThan).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
