package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/config"
	dbpkg "github.com/giftvault/giftvault/internal/db"
	"github.com/giftvault/giftvault/internal/models"
	"github.com/giftvault/giftvault/internal/security"
)

func setupAuthTest(t *testing.T) (*gorm.DB, *AuthHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	jwtCfg := config.JWTConfig{Secret: "test-secret", UserExpiry: time.Hour}
	return conn, NewAuthHandler(conn, jwtCfg)
}

func TestRegisterAndLogin(t *testing.T) {
	_, handler := setupAuthTest(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/register", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "s3cret",
	})
	handler.Register(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/login", gin.H{
		"username": "alice",
		"password": "s3cret",
	})
	handler.Login(c)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Username != "alice" || resp.Token == "" {
		t.Fatalf("unexpected login response: %+v", resp)
	}
	claims, errParse := security.ParseToken("test-secret", resp.Token)
	if errParse != nil {
		t.Fatalf("issued token must parse: %v", errParse)
	}
	if claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	_, handler := setupAuthTest(t)

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(t, http.MethodPost, "/v0/front/register", gin.H{
			"username": "bob",
			"password": "pw",
		})
		handler.Register(c)
		if w.Code != want {
			t.Fatalf("attempt %d: expected %d, got %d: %s", i, want, w.Code, w.Body.String())
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	conn, handler := setupAuthTest(t)

	hash, errHash := security.HashPassword("right")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	now := time.Now().UTC()
	user := models.User{Username: "carol", Password: hash, Active: true, CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/login", gin.H{
		"username": "carol",
		"password": "wrong",
	})
	handler.Login(c)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginRequiresTOTPWhenEnrolled(t *testing.T) {
	conn, handler := setupAuthTest(t)

	hash, errHash := security.HashPassword("pw")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	now := time.Now().UTC()
	user := models.User{Username: "dave", Password: hash, TOTPSecret: "JBSWY3DPEHPK3PXP", Active: true, CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/login", gin.H{
		"username": "dave",
		"password": "pw",
	})
	handler.Login(c)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 mfa gate, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/login/prepare", gin.H{
		"username": "dave",
	})
	handler.LoginPrepare(c)
	if w.Code != http.StatusOK {
		t.Fatalf("prepare: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		MFAEnabled bool `json:"mfa_enabled"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if !resp.MFAEnabled {
		t.Fatalf("expected mfa_enabled true")
	}
}

func TestLoginDisabledUser(t *testing.T) {
	conn, handler := setupAuthTest(t)

	hash, errHash := security.HashPassword("pw")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	now := time.Now().UTC()
	user := models.User{Username: "eve", Password: hash, Active: true, Disabled: true, CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/login", gin.H{
		"username": "eve",
		"password": "pw",
	})
	handler.Login(c)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestResetPassword(t *testing.T) {
	conn, handler := setupAuthTest(t)

	hash, errHash := security.HashPassword("old")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	now := time.Now().UTC()
	user := models.User{Username: "frank", Email: "frank@example.com", Password: hash, Active: true, CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/front/reset-password", gin.H{
		"username":     "frank",
		"email":        "frank@example.com",
		"new_password": "fresh",
	})
	handler.ResetPassword(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var reloaded models.User
	if errFind := conn.First(&reloaded, user.ID).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}
	if !security.CheckPassword(reloaded.Password, "fresh") {
		t.Fatalf("password was not updated")
	}
}
