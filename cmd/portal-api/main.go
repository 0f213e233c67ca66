package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"citiproof/civic-portal/civic-portal-backend/internal/audit"
	"citiproof/civic-portal/civic-portal-backend/internal/auth"
	"citiproof/civic-portal/civic-portal-backend/internal/config"
	"citiproof/civic-portal/civic-portal-backend/internal/evidence"
	"citiproof/civic-portal/civic-portal-backend/internal/identity"
	"citiproof/civic-portal/civic-portal-backend/internal/notifications"
	wsnotify "citiproof/civic-portal/civic-portal-backend/internal/notifications/websocket"
	"citiproof/civic-portal/civic-portal-backend/internal/reputation"
	"citiproof/civic-portal/civic-portal-backend/internal/verification"
	"citiproof/civic-portal/civic-portal-backend/pkg/storage"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	if os.Getenv("APP_ENV") == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Connect to database
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if cfg.Database.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxConnections)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}

	// Identity registry (the verification core's identity oracle)
	identityRepo := identity.NewRepository(db)
	identityService := identity.NewService(identityRepo, logger)
	identityHandler := identity.NewHandler(identityService, logger)
	oracle := identity.NewOracle(identityService)

	// Reputation ledger
	reputationRepo := reputation.NewRepository(db)
	reputationService := reputation.NewService(reputationRepo, identityService, logger)

	// Audit trail
	auditRepo := audit.NewRepository(db)
	auditService := audit.NewService(auditRepo, logger)
	auditHandler := audit.NewHandler(auditService, logger)

	// Notifications
	wsManager := wsnotify.NewManager(logger)
	defer wsManager.Close()
	notifyService := notifications.NewService(wsManager)

	// Verification core. Audit recording is bound through the repository so
	// entries share each operation's transaction.
	verificationRepo := verification.NewRepository(db, auditService.RecorderFor)
	verificationService := verification.NewService(
		verificationRepo, oracle, reputationService, notifyService, logger)
	if p := policyFromConfig(cfg.Verification); p != nil {
		if err := verificationService.SetPolicy(*p); err != nil {
			logger.Fatal("Invalid verification policy in config", zap.Error(err))
		}
	}
	verificationHandler := verification.NewHandler(verificationService, logger)

	// Evidence pinning
	ipfsClient := storage.NewIPFSClient(cfg.IPFS.APIURL)
	evidenceHandler := evidence.NewHandler(ipfsClient, logger)

	// Operator auth
	operators := make([]auth.Operator, 0, len(cfg.Security.Operators))
	for _, op := range cfg.Security.Operators {
		operators = append(operators, auth.Operator{
			Username:     op.Username,
			PasswordHash: op.PasswordHash,
			Roles:        op.Roles,
		})
	}
	authService := auth.NewService(cfg.Security.JWTSecret,
		time.Duration(cfg.Security.TokenTTLMinutes)*time.Minute, operators)
	authHandler := auth.NewHandler(authService)

	// Setup Router
	if os.Getenv("APP_ENV") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Wallet-Address")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		verificationHandler.RegisterRoutes(api)
		auditHandler.RegisterRoutes(api)
		identityHandler.RegisterRoutes(api)
		evidenceHandler.RegisterRoutes(api)
		authHandler.RegisterRoutes(api)

		admin := api.Group("", auth.Middleware(authService), auth.RequireRole(auth.RoleAdmin))
		{
			verificationHandler.RegisterAdminRoutes(admin)
			identityHandler.RegisterAdminRoutes(admin)
		}

		auditor := api.Group("", auth.Middleware(authService), auth.RequireRole(auth.RoleAuditor))
		{
			auditHandler.RegisterAuditorRoutes(auditor)
		}
	}

	// Live event stream
	router.GET("/ws", func(c *gin.Context) {
		if _, err := wsManager.HandleConnection(c.Writer, c.Request); err != nil {
			logger.Warn("WebSocket upgrade failed", zap.Error(err))
		}
	})

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

// policyFromConfig maps configured policy values; nil means keep defaults.
func policyFromConfig(vc config.VerificationConfig) *verification.Policy {
	if vc.DeadlineWindowHours == 0 && vc.MinReputationToVerify == 0 &&
		vc.BaseVerificationReward == 0 && vc.ApprovalThresholdPct == 0 {
		return nil
	}
	p := verification.DefaultPolicy()
	if vc.DeadlineWindowHours > 0 {
		p.DeadlineWindow = time.Duration(vc.DeadlineWindowHours) * time.Hour
	}
	if vc.MinReputationToVerify > 0 {
		p.MinReputationToVerify = vc.MinReputationToVerify
	}
	if vc.BaseVerificationReward > 0 {
		p.BaseVerificationReward = vc.BaseVerificationReward
	}
	if vc.ApprovalThresholdPct > 0 {
		p.ApprovalThresholdPct = vc.ApprovalThresholdPct
	}
	return &p
}
