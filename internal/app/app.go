package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/config"
	"github.com/giftvault/giftvault/internal/db"
	"github.com/giftvault/giftvault/internal/http/api/admin"
	adminhandlers "github.com/giftvault/giftvault/internal/http/api/admin/handlers"
	"github.com/giftvault/giftvault/internal/http/api/front"
	"github.com/giftvault/giftvault/internal/idempotency"
	"github.com/giftvault/giftvault/internal/ledger"
	"github.com/giftvault/giftvault/internal/logging"
	"github.com/giftvault/giftvault/internal/metrics"
	"github.com/giftvault/giftvault/internal/models"
	"github.com/giftvault/giftvault/internal/notify"
	"github.com/giftvault/giftvault/internal/proof"
	"github.com/giftvault/giftvault/internal/reward"
	"github.com/giftvault/giftvault/internal/security"
	"github.com/giftvault/giftvault/internal/settings"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the storefront API server with its background jobs.
func RunServer(ctx context.Context, appCfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log)

	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return errRefresh
	}
	if errSeed := ensureDefaultAdmin(ctx, conn); errSeed != nil {
		return errSeed
	}

	var verifier ledger.ProofVerifier
	if strings.TrimSpace(cfg.Proof.Secret) != "" {
		hmacVerifier, errVerifier := proof.NewHMACVerifier(cfg.Proof.Secret)
		if errVerifier != nil {
			return errVerifier
		}
		verifier = hmacVerifier
	}

	notifier := notify.NewService(conn)
	accruer := reward.NewAccruer(conn)
	svc := ledger.NewService(conn, accruer, notifier, verifier)

	var idemStore idempotency.Store
	gormIdem := idempotency.NewGormStore(conn)
	idemStore = gormIdem
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := client.Ping(ctx).Err(); errPing != nil {
			log.WithError(errPing).Warn("redis unreachable, falling back to database idempotency store")
		} else {
			idemStore = idempotency.NewRedisStore(client)
		}
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), metrics.GinMiddleware())

	front.RegisterFrontRoutes(engine, conn, cfg.JWT, svc, accruer, notifier, idemStore)
	admin.RegisterAdminRoutes(engine, conn, cfg.JWT, svc)
	registerOpsRoutes(engine, conn)

	scheduler, errScheduler := startScheduler(ctx, conn, accruer, notifier, gormIdem)
	if errScheduler != nil {
		return errScheduler
	}
	defer func() {
		if errShutdown := scheduler.Shutdown(); errShutdown != nil {
			log.WithError(errShutdown).Warn("scheduler shutdown failed")
		}
	}()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return <-errCh
	case errServe := <-errCh:
		return errServe
	}
}

// registerOpsRoutes wires the health and metrics endpoints.
func registerOpsRoutes(engine *gin.Engine, conn *gorm.DB) {
	healthHandler := adminhandlers.NewHealthHandler(conn)
	engine.GET("/healthz", healthHandler.Healthz)
	engine.GET("/metrics", metrics.Handler())
}

// startScheduler launches the periodic maintenance jobs: reward expiry,
// notification retention and idempotency key pruning. Card expiry is
// evaluated on access and needs no sweep.
func startScheduler(ctx context.Context, conn *gorm.DB, accruer *reward.Accruer, notifier *notify.Service, idem *idempotency.GormStore) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if _, errJob := scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			swept, errSweep := accruer.SweepExpired(ctx)
			if errSweep != nil {
				log.WithError(errSweep).Warn("reward expiry sweep failed")
				return
			}
			if swept > 0 {
				log.Infof("expired %d reward grants", swept)
			}
		}),
	); errJob != nil {
		return nil, errJob
	}

	if _, errJob := scheduler.NewJob(
		gocron.DurationJob(12*time.Hour),
		gocron.NewTask(func() {
			days := settings.IntValue(settings.NotificationRetentionDaysKey, settings.DefaultNotificationRetentionDays)
			cutoff := time.Now().UTC().AddDate(0, 0, -int(days))
			removed, errPrune := notifier.Prune(ctx, cutoff)
			if errPrune != nil {
				log.WithError(errPrune).Warn("notification prune failed")
				return
			}
			if removed > 0 {
				log.Infof("pruned %d notifications", removed)
			}
		}),
	); errJob != nil {
		return nil, errJob
	}

	if _, errJob := scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			removed, errPrune := idem.Prune(ctx)
			if errPrune != nil {
				log.WithError(errPrune).Warn("idempotency prune failed")
				return
			}
			if removed > 0 {
				log.Infof("pruned %d idempotency keys", removed)
			}
		}),
	); errJob != nil {
		return nil, errJob
	}

	scheduler.Start()
	return scheduler, nil
}

// ensureDefaultAdmin seeds an initial admin account on an empty install.
// The password comes from GIFTVAULT_ADMIN_PASSWORD or is generated and
// logged once.
func ensureDefaultAdmin(ctx context.Context, conn *gorm.DB) error {
	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}

	password := strings.TrimSpace(os.Getenv("GIFTVAULT_ADMIN_PASSWORD"))
	generated := password == ""
	if generated {
		buf := make([]byte, 12)
		if _, errRead := rand.Read(buf); errRead != nil {
			return errRead
		}
		password = hex.EncodeToString(buf)
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return errHash
	}
	now := time.Now().UTC()
	admin := models.Admin{
		Username:  "admin",
		Password:  hash,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		return errCreate
	}
	if generated {
		log.Infof("created default admin %q with password %s", admin.Username, password)
	} else {
		log.Infof("created default admin %q", admin.Username)
	}
	return nil
}
