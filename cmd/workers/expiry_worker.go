package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"citiproof/civic-portal/civic-portal-backend/internal/audit"
	"citiproof/civic-portal/civic-portal-backend/internal/config"
	"citiproof/civic-portal/civic-portal-backend/internal/identity"
	"citiproof/civic-portal/civic-portal-backend/internal/notifications"
	wsnotify "citiproof/civic-portal/civic-portal-backend/internal/notifications/websocket"
	"citiproof/civic-portal/civic-portal-backend/internal/reputation"
	"citiproof/civic-portal/civic-portal-backend/internal/verification"
)

// The expiry worker periodically sweeps overdue PENDING and IN_PROGRESS
// verification requests into EXPIRED. The API still checks deadlines lazily
// on every response, so the sweep only affects what stale requests report as
// their status; it never changes which operations succeed.
func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	identityService := identity.NewService(identity.NewRepository(db), logger)
	reputationService := reputation.NewService(reputation.NewRepository(db), identityService, logger)
	auditService := audit.NewService(audit.NewRepository(db), logger)
	wsManager := wsnotify.NewManager(logger)
	defer wsManager.Close()

	svc := verification.NewService(
		verification.NewRepository(db, auditService.RecorderFor),
		identity.NewOracle(identityService),
		reputationService,
		notifications.NewService(wsManager),
		logger)

	schedule := os.Getenv("EXPIRY_SWEEP_SCHEDULE")
	if schedule == "" {
		schedule = "@every 10m"
	}

	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		swept, err := svc.SweepExpired(context.Background())
		if err != nil {
			logger.Error("Expiry sweep failed", zap.Error(err))
			return
		}
		if swept > 0 {
			logger.Info("Expiry sweep completed", zap.Int("swept", swept))
		}
	})
	if err != nil {
		logger.Fatal("Invalid sweep schedule", zap.String("schedule", schedule), zap.Error(err))
	}

	c.Start()
	logger.Info("Expiry worker started", zap.String("schedule", schedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx := c.Stop()
	<-ctx.Done()
	logger.Info("Expiry worker exiting")
}
