package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbpkg "github.com/giftvault/giftvault/internal/db"
	"github.com/giftvault/giftvault/internal/idempotency"
	"github.com/giftvault/giftvault/internal/ledger"
	"github.com/giftvault/giftvault/internal/models"
	"github.com/giftvault/giftvault/internal/reward"
)

func setupGiftCardTest(t *testing.T) (*gorm.DB, *GiftCardHandler, models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	now := time.Now().UTC()
	user := models.User{Username: "cardholder", Password: "hash", Active: true, CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	svc := ledger.NewService(conn, reward.NewAccruer(conn), nil, nil)
	handler := NewGiftCardHandler(conn, svc, idempotency.NewGormStore(conn))
	return conn, handler, user
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	buf, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		t.Fatalf("marshal body: %v", errMarshal)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPurchaseMintsOwnedCard(t *testing.T) {
	_, handler, user := setupGiftCardTest(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("userID", user.ID)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards", gin.H{
		"fiat_cents":      5000,
		"crypto_micros":   250000,
		"is_rechargeable": true,
		"valid_days":      30,
	})

	handler.Purchase(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Card struct {
			ID               uint64 `json:"id"`
			OwnerID          uint64 `json:"owner_id"`
			BalanceFiatCents int64  `json:"balance_fiat_cents"`
			Status           string `json:"status"`
			ExpiresAt        *time.Time
		} `json:"card"`
		RewardPoints int64 `json:"reward_points"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Card.OwnerID != user.ID {
		t.Fatalf("expected owner %d, got %d", user.ID, resp.Card.OwnerID)
	}
	if resp.Card.BalanceFiatCents != 5000 || resp.Card.Status != string(models.CardStatusActive) {
		t.Fatalf("unexpected card: %+v", resp.Card)
	}
	// Default purchase rate is 5%: floor(50.00 * 0.05) = 2.
	if resp.RewardPoints != 2 {
		t.Fatalf("expected 2 reward points, got %d", resp.RewardPoints)
	}
}

func TestPurchaseRejectsDisabledMerchant(t *testing.T) {
	conn, handler, user := setupGiftCardTest(t)

	now := time.Now().UTC()
	merchant := models.Merchant{Name: "Closed Shop", IsEnabled: false, CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&merchant).Error; errCreate != nil {
		t.Fatalf("create merchant: %v", errCreate)
	}
	// Create drops zero-value fields whose column has a gorm default tag, so
	// the column must be flipped off with an explicit update.
	if errDisable := conn.Model(&merchant).Update("is_enabled", false).Error; errDisable != nil {
		t.Fatalf("disable merchant: %v", errDisable)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("userID", user.ID)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards", gin.H{
		"merchant_id": merchant.ID,
		"fiat_cents":  1000,
	})

	handler.Purchase(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func mintCardForUser(t *testing.T, handler *GiftCardHandler, user models.User, fiatCents int64, rechargeable bool) uint64 {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("userID", user.ID)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards", gin.H{
		"fiat_cents":      fiatCents,
		"is_rechargeable": rechargeable,
	})
	handler.Purchase(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("mint fixture: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Card struct {
			ID uint64 `json:"id"`
		} `json:"card"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode mint response: %v", errDecode)
	}
	return resp.Card.ID
}

func TestSpendPolicyErrorsReturnReason(t *testing.T) {
	_, handler, user := setupGiftCardTest(t)
	cardID := mintCardForUser(t, handler, user, 1000, false)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("userID", user.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(cardID, 10)}}
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards/spend", gin.H{
		"fiat_cents":  2000,
		"change_mode": "keep",
	})

	handler.Spend(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Reason != string(ledger.ReasonInsufficientBalance) {
		t.Fatalf("expected insufficient_balance reason, got %q", resp.Reason)
	}
}

func TestSpendHidesOtherUsersCards(t *testing.T) {
	conn, handler, user := setupGiftCardTest(t)
	cardID := mintCardForUser(t, handler, user, 1000, false)

	now := time.Now().UTC()
	stranger := models.User{Username: "stranger", Password: "hash", Active: true, CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&stranger).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("userID", stranger.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(cardID, 10)}}
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards/spend", gin.H{
		"fiat_cents": 100,
	})

	handler.Spend(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("ownership miss must look like 404, got %d", w.Code)
	}
}

func TestRechargeIdempotentReplay(t *testing.T) {
	conn, handler, user := setupGiftCardTest(t)
	cardID := mintCardForUser(t, handler, user, 1000, true)

	doRecharge := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set("userID", user.ID)
		c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(cardID, 10)}}
		c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards/recharge", gin.H{
			"fiat_cents": 500,
		})
		c.Request.Header.Set("Idempotency-Key", "topup-001")
		handler.Recharge(c)
		return w
	}

	first := doRecharge()
	if first.Code != http.StatusOK {
		t.Fatalf("first recharge: expected 200, got %d: %s", first.Code, first.Body.String())
	}
	if first.Header().Get("Idempotent-Replay") != "" {
		t.Fatalf("first request must not be a replay")
	}

	second := doRecharge()
	if second.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d: %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("expected replay marker header")
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay body mismatch:\nfirst:  %s\nsecond: %s", first.Body.String(), second.Body.String())
	}

	var card models.GiftCard
	if errFind := conn.First(&card, cardID).Error; errFind != nil {
		t.Fatalf("load card: %v", errFind)
	}
	if card.BalanceFiatCents != 1500 {
		t.Fatalf("recharge must apply exactly once, balance %d", card.BalanceFiatCents)
	}
}

func TestIdempotencyKeyScopedPerUser(t *testing.T) {
	conn, handler, alice := setupGiftCardTest(t)

	now := time.Now().UTC()
	bob := models.User{Username: "bob", Password: "hash", Active: true, CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&bob).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	aliceCard := mintCardForUser(t, handler, alice, 1000, true)
	bobCard := mintCardForUser(t, handler, bob, 1000, true)

	recharge := func(user models.User, cardID uint64) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set("userID", user.ID)
		c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(cardID, 10)}}
		c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards/recharge", gin.H{
			"fiat_cents": 500,
		})
		c.Request.Header.Set("Idempotency-Key", "shared-key-01")
		handler.Recharge(c)
		return w
	}

	first := recharge(alice, aliceCard)
	if first.Code != http.StatusOK {
		t.Fatalf("alice recharge: expected 200, got %d: %s", first.Code, first.Body.String())
	}

	second := recharge(bob, bobCard)
	if second.Code != http.StatusOK {
		t.Fatalf("bob recharge: expected 200, got %d: %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replay") != "" {
		t.Fatalf("another user's key must not replay")
	}
	var resp struct {
		Card struct {
			ID      uint64 `json:"id"`
			OwnerID uint64 `json:"owner_id"`
		} `json:"card"`
	}
	if errDecode := json.Unmarshal(second.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Card.ID != bobCard || resp.Card.OwnerID != bob.ID {
		t.Fatalf("response must describe bob's card, got %+v", resp.Card)
	}

	var card models.GiftCard
	if errFind := conn.First(&card, bobCard).Error; errFind != nil {
		t.Fatalf("load card: %v", errFind)
	}
	if card.BalanceFiatCents != 1500 {
		t.Fatalf("bob's recharge must apply, balance %d", card.BalanceFiatCents)
	}
}

func TestRechargeRejectsOversizedIdempotencyKey(t *testing.T) {
	_, handler, user := setupGiftCardTest(t)
	cardID := mintCardForUser(t, handler, user, 1000, true)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("userID", user.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(cardID, 10)}}
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards/recharge", gin.H{
		"fiat_cents": 500,
	})
	c.Request.Header.Set("Idempotency-Key", string(bytes.Repeat([]byte("k"), 129)))

	handler.Recharge(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSpendWithoutChangeModeKeepsRemainder(t *testing.T) {
	conn, handler, user := setupGiftCardTest(t)
	cardID := mintCardForUser(t, handler, user, 2000, false)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("userID", user.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(cardID, 10)}}
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards/spend", gin.H{
		"fiat_cents": 500,
	})

	handler.Spend(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]json.RawMessage
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if _, hasChangeCard := resp["change_card"]; hasChangeCard {
		t.Fatalf("keep mode must not mint a change card")
	}

	var card models.GiftCard
	if errFind := conn.First(&card, cardID).Error; errFind != nil {
		t.Fatalf("load card: %v", errFind)
	}
	if card.BalanceFiatCents != 1500 {
		t.Fatalf("remainder must stay on the card, balance %d", card.BalanceFiatCents)
	}
}

func TestLedgerListsEntriesInOrder(t *testing.T) {
	_, handler, user := setupGiftCardTest(t)
	cardID := mintCardForUser(t, handler, user, 2000, true)

	spend := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(spend)
	c.Set("userID", user.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(cardID, 10)}}
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards/spend", gin.H{
		"fiat_cents": 500,
	})
	handler.Spend(c)
	if spend.Code != http.StatusOK {
		t.Fatalf("spend fixture: expected 200, got %d: %s", spend.Code, spend.Body.String())
	}

	w := httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Set("userID", user.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(cardID, 10)}}
	c.Request = httptest.NewRequest(http.MethodGet, "/v0/front/gift-cards/ledger", nil)

	handler.Ledger(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Entries []struct {
			Type            string `json:"type"`
			AmountFiatCents int64  `json:"amount_fiat_cents"`
		} `json:"entries"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Entries))
	}
	if resp.Entries[0].Type != string(models.EntryTypePurchase) || resp.Entries[0].AmountFiatCents != 2000 {
		t.Fatalf("unexpected opening entry: %+v", resp.Entries[0])
	}
	if resp.Entries[1].Type != string(models.EntryTypeRedeem) || resp.Entries[1].AmountFiatCents != -500 {
		t.Fatalf("unexpected redeem entry: %+v", resp.Entries[1])
	}
}

func TestListFiltersByStatus(t *testing.T) {
	_, handler, user := setupGiftCardTest(t)
	activeID := mintCardForUser(t, handler, user, 2000, false)
	emptyID := mintCardForUser(t, handler, user, 500, false)

	drain := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(drain)
	c.Set("userID", user.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(emptyID, 10)}}
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/gift-cards/spend", gin.H{
		"fiat_cents": 500,
	})
	handler.Spend(c)
	if drain.Code != http.StatusOK {
		t.Fatalf("drain fixture: expected 200, got %d: %s", drain.Code, drain.Body.String())
	}

	w := httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Set("userID", user.ID)
	c.Request = httptest.NewRequest(http.MethodGet, "/v0/front/gift-cards?status=active", nil)

	handler.List(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Cards []struct {
			ID     uint64 `json:"id"`
			Status string `json:"status"`
		} `json:"cards"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if len(resp.Cards) != 1 || resp.Cards[0].ID != activeID {
		t.Fatalf("expected only the active card, got %+v", resp.Cards)
	}
}
