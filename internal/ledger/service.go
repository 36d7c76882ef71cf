package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/giftvault/giftvault/internal/metrics"
	"github.com/giftvault/giftvault/internal/models"
)

// RewardAccruer grants loyalty points for completed financial operations.
// Accrual is a best-effort follow-up: failures are logged, never propagated
// into the financial result.
type RewardAccruer interface {
	AccrueTransaction(ctx context.Context, userID uint64, rewardType models.RewardType, amountFiatCents int64, ledgerEntryID *uint64) (int64, error)
}

// Notifier dispatches fire-and-forget user notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uint64, notifType, title, message string, giftCardID *uint64)
}

// ProofVerifier gates spends on privacy-enabled cards. The artifact is an
// opaque verified/unverified token; its contents never enter balance math.
type ProofVerifier interface {
	Verify(ctx context.Context, subject, artifact string) (bool, error)
}

// Service owns the authoritative card balances and the append-only ledger.
//
// Every mutation runs in a database transaction that locks the card row, so
// operations on the same card serialize while different cards proceed
// independently. The ledger entry is written in the same transaction as the
// balance update; a crash can never separate the two.
type Service struct {
	db       *gorm.DB
	accruer  RewardAccruer
	notifier Notifier
	verifier ProofVerifier
}

// NewService wires a ledger service with its collaborators. Accruer,
// notifier and verifier may be nil; the corresponding side effects or
// gates are skipped.
func NewService(db *gorm.DB, accruer RewardAccruer, notifier Notifier, verifier ProofVerifier) *Service {
	return &Service{db: db, accruer: accruer, notifier: notifier, verifier: verifier}
}

// nowUTC returns the current UTC time.
func nowUTC() time.Time { return time.Now().UTC() }

// newSerial generates a public card serial.
func newSerial() string {
	return "GV-" + strings.ToUpper(uuid.NewString()[:18])
}

// entryMetadata marshals operation detail into a JSON column value.
func entryMetadata(detail map[string]any) datatypes.JSON {
	if len(detail) == 0 {
		return nil
	}
	raw, errMarshal := json.Marshal(detail)
	if errMarshal != nil {
		return nil
	}
	return raw
}

// MintParams describes a card mint.
type MintParams struct {
	MerchantID *uint64    // Issuing merchant; nil for peer-issued cards.
	OwnerID    *uint64    // Purchasing user, when user-initiated.
	ParentID   *uint64    // Card this mint was split from, if any.
	Serial     string     // Optional serial; generated when empty.
	ExpiresAt  *time.Time // Optional expiry.

	FiatCents    int64 // Initial fiat value in cents; must be positive.
	CryptoMicros int64 // Initial crypto value in micro-units; non-negative.

	IsRechargeable   bool
	IsPrivacyEnabled bool

	// AwardPurchase grants purchase loyalty points to the owner. Internal
	// mints (change splits) leave it false so change never earns points.
	AwardPurchase bool
}

// Mint creates a card with its initial balance and the opening purchase
// ledger entry. Cards are always born active; a zero or negative initial
// balance is rejected.
func (s *Service) Mint(ctx context.Context, p MintParams) (*models.GiftCard, int64, error) {
	if p.FiatCents <= 0 {
		return nil, 0, NewPolicyError(ReasonInvalidInitialBalance, "initial balance must be positive")
	}
	if p.CryptoMicros < 0 {
		return nil, 0, NewPolicyError(ReasonInvalidAmount, "crypto amount cannot be negative")
	}

	serial := strings.TrimSpace(p.Serial)
	if serial == "" {
		serial = newSerial()
	}

	now := nowUTC()
	card := models.GiftCard{
		Serial:               serial,
		MerchantID:           p.MerchantID,
		OwnerID:              p.OwnerID,
		ParentID:             p.ParentID,
		BalanceFiatCents:     p.FiatCents,
		BalanceCryptoMicros:  p.CryptoMicros,
		OriginalFiatCents:    p.FiatCents,
		OriginalCryptoMicros: p.CryptoMicros,
		IsRechargeable:       p.IsRechargeable,
		IsPrivacyEnabled:     p.IsPrivacyEnabled,
		IsEnabled:            true,
		ExpiresAt:            p.ExpiresAt,
		Status:               models.CardStatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	var entry models.LedgerEntry
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&card).Error; errCreate != nil {
			return errCreate
		}
		entry = models.LedgerEntry{
			RequestID:          uuid.NewString(),
			GiftCardID:         card.ID,
			UserID:             p.OwnerID,
			Type:               models.EntryTypePurchase,
			Status:             models.EntryStatusCompleted,
			AmountFiatCents:    p.FiatCents,
			AmountCryptoMicros: p.CryptoMicros,
			CreatedAt:          now,
		}
		return tx.Create(&entry).Error
	})
	if errTx != nil {
		metrics.LedgerOps.WithLabelValues("mint", "error").Inc()
		return nil, 0, errTx
	}
	metrics.LedgerOps.WithLabelValues("mint", "ok").Inc()

	var points int64
	if p.AwardPurchase && p.OwnerID != nil && s.accruer != nil {
		granted, errAccrue := s.accruer.AccrueTransaction(ctx, *p.OwnerID, models.RewardTypePurchase, p.FiatCents, &entry.ID)
		if errAccrue != nil {
			log.WithError(errAccrue).WithField("card_id", card.ID).Warn("purchase reward accrual failed")
		} else {
			points = granted
		}
	}
	if p.OwnerID != nil && s.notifier != nil {
		s.notifier.Notify(ctx, *p.OwnerID, "purchase", "Gift card purchased",
			"Your gift card is ready to use.", &card.ID)
	}
	return &card, points, nil
}

// Get returns a card snapshot, lazily rederiving and persisting its status.
// Expiry is evaluated on access; there is no background expiry timer.
func (s *Service) Get(ctx context.Context, cardID uint64) (*models.GiftCard, error) {
	var card models.GiftCard
	if errFind := s.db.WithContext(ctx).First(&card, cardID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, errFind
	}
	if refreshStatus(&card, nowUTC()) {
		if errUpdate := s.db.WithContext(ctx).Model(&models.GiftCard{}).
			Where("id = ?", card.ID).
			Update("status", card.Status).Error; errUpdate != nil {
			log.WithError(errUpdate).WithField("card_id", card.ID).Warn("status refresh failed")
		}
	}
	return &card, nil
}

// RechargeParams describes a card top-up.
type RechargeParams struct {
	CardID uint64
	UserID uint64

	FiatCents    int64 // Must be positive.
	CryptoMicros int64 // Non-negative; supplied by the caller, never derived.

	IdempotencyKey *string
}

// RechargeResult is the outcome of a successful recharge.
type RechargeResult struct {
	Card         *models.GiftCard
	RewardPoints int64
}

// Recharge adds value to a rechargeable card. A successful recharge on an
// empty card is the only path back to active.
func (s *Service) Recharge(ctx context.Context, p RechargeParams) (*RechargeResult, error) {
	if p.FiatCents <= 0 {
		return nil, NewPolicyError(ReasonInvalidAmount, "recharge amount must be positive")
	}
	if p.CryptoMicros < 0 {
		return nil, NewPolicyError(ReasonInvalidAmount, "crypto amount cannot be negative")
	}

	now := nowUTC()
	var card models.GiftCard
	var entry models.LedgerEntry
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errLock := lockCard(tx, p.CardID, &card); errLock != nil {
			return errLock
		}
		if !card.IsEnabled {
			return NewPolicyError(ReasonCardDisabled, "card is disabled")
		}
		if DeriveStatus(card.BalanceFiatCents, card.ExpiresAt, now) == models.CardStatusExpired {
			return NewPolicyError(ReasonCardExpired, "card is expired")
		}
		if !card.IsRechargeable {
			return NewPolicyError(ReasonNotRechargeable, "card is not rechargeable")
		}

		entry = models.LedgerEntry{
			RequestID:          uuid.NewString(),
			GiftCardID:         card.ID,
			UserID:             &p.UserID,
			Type:               models.EntryTypeRecharge,
			Status:             models.EntryStatusCompleted,
			AmountFiatCents:    p.FiatCents,
			AmountCryptoMicros: p.CryptoMicros,
			IdempotencyKey:     p.IdempotencyKey,
			CreatedAt:          now,
		}
		if errCreate := tx.Create(&entry).Error; errCreate != nil {
			return errCreate
		}

		card.BalanceFiatCents += p.FiatCents
		card.BalanceCryptoMicros += p.CryptoMicros
		card.Status = DeriveStatus(card.BalanceFiatCents, card.ExpiresAt, now)
		card.UpdatedAt = now
		return tx.Model(&models.GiftCard{}).Where("id = ?", card.ID).Updates(map[string]any{
			"balance_fiat_cents":    card.BalanceFiatCents,
			"balance_crypto_micros": card.BalanceCryptoMicros,
			"status":                card.Status,
			"updated_at":            now,
		}).Error
	})
	if errTx != nil {
		metrics.LedgerOps.WithLabelValues("recharge", outcomeLabel(errTx)).Inc()
		return nil, errTx
	}
	metrics.LedgerOps.WithLabelValues("recharge", "ok").Inc()

	var points int64
	if s.accruer != nil {
		granted, errAccrue := s.accruer.AccrueTransaction(ctx, p.UserID, models.RewardTypeRecharge, p.FiatCents, &entry.ID)
		if errAccrue != nil {
			log.WithError(errAccrue).WithField("card_id", card.ID).Warn("recharge reward accrual failed")
		} else {
			points = granted
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, p.UserID, "recharge", "Card recharged",
			"Your gift card balance was topped up.", &card.ID)
	}
	return &RechargeResult{Card: &card, RewardPoints: points}, nil
}

// SpendParams describes a spend/partial redemption.
type SpendParams struct {
	CardID uint64
	UserID uint64

	FiatCents int64      // Amount to spend, in cents; must be positive.
	Mode      ChangeMode // What to do with leftover balance.

	ProofArtifact string // Required when the card is privacy-enabled.

	IdempotencyKey *string
}

// SpendResult is the outcome of a successful spend.
type SpendResult struct {
	Card            *models.GiftCard
	ChangeFiatCents int64
	NewCard         *models.GiftCard // Set only for ModeNewCard with change.
}

// Spend debits a card and issues change according to the handling mode.
// spend + change always equals the pre-call balance; an exact spend leaves
// the card empty rather than failing.
func (s *Service) Spend(ctx context.Context, p SpendParams) (*SpendResult, error) {
	if p.FiatCents <= 0 {
		return nil, NewPolicyError(ReasonInvalidAmount, "spend amount must be positive")
	}
	if !ValidChangeMode(p.Mode) {
		return nil, NewPolicyError(ReasonInvalidChangeMode, "unknown change handling mode %q", p.Mode)
	}

	// The proof gate talks to an external collaborator, so it runs before
	// the card row is locked. The privacy flag is immutable after mint,
	// which makes the unlocked pre-read safe.
	var probe models.GiftCard
	if errFind := s.db.WithContext(ctx).Select("id", "serial", "is_privacy_enabled").
		First(&probe, p.CardID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, errFind
	}
	if probe.IsPrivacyEnabled {
		if strings.TrimSpace(p.ProofArtifact) == "" {
			return nil, NewPolicyError(ReasonProofRequired, "card requires a privacy proof")
		}
		if s.verifier != nil {
			verified, errVerify := s.verifier.Verify(ctx, probe.Serial, p.ProofArtifact)
			if errVerify != nil {
				return nil, errVerify
			}
			if !verified {
				return nil, NewPolicyError(ReasonProofInvalid, "privacy proof rejected")
			}
		}
	}

	now := nowUTC()
	result := &SpendResult{}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card models.GiftCard
		if errLock := lockCard(tx, p.CardID, &card); errLock != nil {
			return errLock
		}
		if !card.IsEnabled {
			return NewPolicyError(ReasonCardDisabled, "card is disabled")
		}
		switch DeriveStatus(card.BalanceFiatCents, card.ExpiresAt, now) {
		case models.CardStatusExpired:
			return NewPolicyError(ReasonCardExpired, "card is expired")
		case models.CardStatusEmpty:
			return NewPolicyError(ReasonInsufficientBalance, "card is empty")
		}
		if p.FiatCents > card.BalanceFiatCents {
			return NewPolicyError(ReasonInsufficientBalance,
				"spend of %d exceeds balance of %d", p.FiatCents, card.BalanceFiatCents)
		}

		change := card.BalanceFiatCents - p.FiatCents
		cryptoShare := ProRataCrypto(card.BalanceCryptoMicros, card.BalanceFiatCents, p.FiatCents)
		cryptoRest := card.BalanceCryptoMicros - cryptoShare

		redeem := models.LedgerEntry{
			RequestID:          uuid.NewString(),
			GiftCardID:         card.ID,
			UserID:             &p.UserID,
			Type:               models.EntryTypeRedeem,
			Status:             models.EntryStatusCompleted,
			AmountFiatCents:    -p.FiatCents,
			AmountCryptoMicros: -cryptoShare,
			IdempotencyKey:     p.IdempotencyKey,
			Metadata:           entryMetadata(map[string]any{"change_mode": string(p.Mode)}),
			CreatedAt:          now,
		}
		if errCreate := tx.Create(&redeem).Error; errCreate != nil {
			return errCreate
		}

		newFiat := card.BalanceFiatCents - p.FiatCents
		newCrypto := card.BalanceCryptoMicros - cryptoShare

		if change > 0 && p.Mode != ModeKeep {
			// Drain the remainder off the original card.
			detail := map[string]any{"change_mode": string(p.Mode)}
			var child *models.GiftCard
			if p.Mode == ModeNewCard {
				child = &models.GiftCard{
					Serial:               newSerial(),
					MerchantID:           card.MerchantID,
					OwnerID:              &p.UserID,
					ParentID:             &card.ID,
					BalanceFiatCents:     change,
					BalanceCryptoMicros:  cryptoRest,
					OriginalFiatCents:    change,
					OriginalCryptoMicros: cryptoRest,
					IsRechargeable:       card.IsRechargeable,
					IsPrivacyEnabled:     card.IsPrivacyEnabled,
					IsEnabled:            true,
					ExpiresAt:            card.ExpiresAt,
					Status:               models.CardStatusActive,
					CreatedAt:            now,
					UpdatedAt:            now,
				}
				if errCreate := tx.Create(child).Error; errCreate != nil {
					return errCreate
				}
				opening := models.LedgerEntry{
					RequestID:          uuid.NewString(),
					GiftCardID:         child.ID,
					UserID:             &p.UserID,
					Type:               models.EntryTypePurchase,
					Status:             models.EntryStatusCompleted,
					AmountFiatCents:    change,
					AmountCryptoMicros: cryptoRest,
					Metadata:           entryMetadata(map[string]any{"split_from": card.ID}),
					CreatedAt:          now,
				}
				if errCreate := tx.Create(&opening).Error; errCreate != nil {
					return errCreate
				}
				detail["child_card_id"] = child.ID
				result.NewCard = child
			} else {
				// ModeRefund: credit change to the user's account balance
				// inside the same transaction so the drain and the credit
				// cannot be separated.
				credit := tx.Model(&models.User{}).Where("id = ?", p.UserID).
					Update("account_balance_cents", gorm.Expr("account_balance_cents + ?", change))
				if credit.Error != nil {
					return credit.Error
				}
				if credit.RowsAffected == 0 {
					return ErrUserNotFound
				}
				detail["credited_cents"] = change
			}

			refund := models.LedgerEntry{
				RequestID:          uuid.NewString(),
				GiftCardID:         card.ID,
				UserID:             &p.UserID,
				Type:               models.EntryTypeRefund,
				Status:             models.EntryStatusCompleted,
				AmountFiatCents:    -change,
				AmountCryptoMicros: -cryptoRest,
				Metadata:           entryMetadata(detail),
				CreatedAt:          now,
			}
			if errCreate := tx.Create(&refund).Error; errCreate != nil {
				return errCreate
			}
			newFiat = 0
			newCrypto = 0
		}

		card.BalanceFiatCents = newFiat
		card.BalanceCryptoMicros = newCrypto
		card.Status = DeriveStatus(newFiat, card.ExpiresAt, now)
		card.UpdatedAt = now
		if errUpdate := tx.Model(&models.GiftCard{}).Where("id = ?", card.ID).Updates(map[string]any{
			"balance_fiat_cents":    newFiat,
			"balance_crypto_micros": newCrypto,
			"status":                card.Status,
			"updated_at":            now,
		}).Error; errUpdate != nil {
			return errUpdate
		}

		result.Card = &card
		result.ChangeFiatCents = change
		return nil
	})
	if errTx != nil {
		metrics.LedgerOps.WithLabelValues("spend", outcomeLabel(errTx)).Inc()
		return nil, errTx
	}
	metrics.LedgerOps.WithLabelValues("spend", "ok").Inc()

	if s.notifier != nil {
		s.notifier.Notify(ctx, p.UserID, "redeem", "Card spent",
			"Your gift card was charged.", &result.Card.ID)
		if result.NewCard != nil {
			s.notifier.Notify(ctx, p.UserID, "change", "Change issued",
				"Your remaining balance moved to a new card.", &result.NewCard.ID)
		}
	}
	return result, nil
}

// Entries returns the full ledger history for a card, oldest first.
func (s *Service) Entries(ctx context.Context, cardID uint64) ([]models.LedgerEntry, error) {
	var exists int64
	if errCount := s.db.WithContext(ctx).Model(&models.GiftCard{}).
		Where("id = ?", cardID).Count(&exists).Error; errCount != nil {
		return nil, errCount
	}
	if exists == 0 {
		return nil, ErrCardNotFound
	}
	var entries []models.LedgerEntry
	if errFind := s.db.WithContext(ctx).
		Where("gift_card_id = ?", cardID).
		Order("id ASC").
		Find(&entries).Error; errFind != nil {
		return nil, errFind
	}
	return entries, nil
}

// ReplayBalance recomputes a card's balance from its completed ledger
// entries. A healthy card replays to exactly its stored balance.
func (s *Service) ReplayBalance(ctx context.Context, cardID uint64) (fiatCents, cryptoMicros int64, err error) {
	entries, errEntries := s.Entries(ctx, cardID)
	if errEntries != nil {
		return 0, 0, errEntries
	}
	for _, entry := range entries {
		if entry.Status != models.EntryStatusCompleted {
			continue
		}
		fiatCents += entry.AmountFiatCents
		cryptoMicros += entry.AmountCryptoMicros
	}
	return fiatCents, cryptoMicros, nil
}

// lockCard loads a card under a row lock, mapping missing rows to
// ErrCardNotFound. SQLite ignores the locking clause; its single-writer
// model serializes the transaction anyway.
func lockCard(tx *gorm.DB, cardID uint64, card *models.GiftCard) error {
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(card, cardID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrCardNotFound
		}
		return errFind
	}
	return nil
}

// outcomeLabel buckets an operation error for metrics.
func outcomeLabel(err error) string {
	if _, ok := PolicyReason(err); ok {
		return "policy"
	}
	if errors.Is(err, ErrCardNotFound) || errors.Is(err, ErrUserNotFound) {
		return "not_found"
	}
	return "error"
}
