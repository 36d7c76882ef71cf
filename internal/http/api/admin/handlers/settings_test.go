package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbpkg "github.com/giftvault/giftvault/internal/db"
	"github.com/giftvault/giftvault/internal/models"
	"github.com/giftvault/giftvault/internal/settings"
)

func setupSettingsTest(t *testing.T) (*gorm.DB, *SettingsHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	t.Cleanup(func() {
		settings.StoreDBConfig(time.Now().UTC(), map[string]json.RawMessage{})
	})
	return conn, NewSettingsHandler(conn)
}

func TestSettingsPutUpsertsAndRefreshesSnapshot(t *testing.T) {
	conn, handler := setupSettingsTest(t)

	put := func(key string, value string) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = adminJSONRequest(t, http.MethodPut, "/v0/admin/settings", gin.H{
			"key":   key,
			"value": json.RawMessage(value),
		})
		handler.Put(c)
		if w.Code != http.StatusOK {
			t.Fatalf("put %s: expected 200, got %d: %s", key, w.Code, w.Body.String())
		}
	}

	put(settings.PurchaseRewardPercentKey, "15")
	if got := settings.IntValue(settings.PurchaseRewardPercentKey, settings.DefaultPurchaseRewardPercent); got != 15 {
		t.Fatalf("snapshot should see new value, got %d", got)
	}

	// Writing the same key again replaces the value.
	put(settings.PurchaseRewardPercentKey, "25")
	if got := settings.IntValue(settings.PurchaseRewardPercentKey, settings.DefaultPurchaseRewardPercent); got != 25 {
		t.Fatalf("snapshot should see updated value, got %d", got)
	}

	var count int64
	if errCount := conn.Model(&models.Setting{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count settings: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("upsert must not duplicate rows, got %d", count)
	}
}

func TestSettingsPutValidation(t *testing.T) {
	_, handler := setupSettingsTest(t)

	cases := []gin.H{
		{"key": "", "value": json.RawMessage("1")},
		{"key": "some.key"},
	}
	for i, body := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = adminJSONRequest(t, http.MethodPut, "/v0/admin/settings", body)
		handler.Put(c)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %d", i, w.Code)
		}
	}
}

func TestSettingsList(t *testing.T) {
	conn, handler := setupSettingsTest(t)

	rows := []models.Setting{
		{Key: "site.name", Value: json.RawMessage(`"GiftVault"`), UpdatedAt: time.Now().UTC()},
		{Key: "rewards.purchase_percent", Value: json.RawMessage("5"), UpdatedAt: time.Now().UTC()},
	}
	for i := range rows {
		if errCreate := conn.Create(&rows[i]).Error; errCreate != nil {
			t.Fatalf("create setting: %v", errCreate)
		}
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v0/admin/settings", nil)
	handler.List(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Settings []struct {
			Key string `json:"key"`
		} `json:"settings"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if len(resp.Settings) != 2 {
		t.Fatalf("expected 2 settings, got %d", len(resp.Settings))
	}
	if resp.Settings[0].Key != "rewards.purchase_percent" {
		t.Fatalf("expected key-ordered list, got %+v", resp.Settings)
	}
}
