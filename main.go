package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pvp-battle-server/config"
	"pvp-battle-server/handlers"
	"pvp-battle-server/models"
	"pvp-battle-server/services"
	"pvp-battle-server/utils"
	"pvp-battle-server/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	cfg.SetupLogging()

	if cfg.DatabaseURL == "" {
		logrus.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	if err := db.AutoMigrate(
		&models.PlayerProfile{},
		&models.BattleRecord{},
	); err != nil {
		logrus.WithError(err).Fatal("failed to migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	progressionService := services.NewProgressionService(db)
	httpClient := utils.NewHTTPClient(cfg.HTTPClientTimeout())

	// Tokens come from the auth service when configured, otherwise from the player table.
	var tokens services.TokenValidator = progressionService
	if cfg.AuthServiceURL != "" {
		tokens = services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.AuthServiceToken, httpClient)
	}

	var archive workers.ReportArchiver
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Archive(ctx, cfg.R2)
		if err != nil {
			logrus.WithError(err).Fatal("failed to initialize R2 client")
		}
		archive = r2
	}

	settlementWorker := workers.NewSettlementWorker(progressionService, archive, cfg.SettlementQueueSize, cfg.SettlementMaxAttempts, metrics)
	// Outlives ctx so settlements from shutdown disconnects are still persisted.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	settlementWorker.Start(workerCtx)

	if cfg.PlayerSyncURL != "" {
		workers.NewPlayerSyncWorker(db, cfg.PlayerSyncURL, cfg.ServiceToken, cfg.PlayerSyncInterval(), httpClient).Start(ctx)
	}

	coordinator := services.NewCoordinator(
		services.NewSessionRegistry(),
		services.NewMatchQueue(cfg.MaxPowerDifference, cfg.QueueTimeout()),
		progressionService,
		tokens,
		settlementWorker,
		services.CoordinatorOptions{
			DefaultMode:   models.ParseCombatMode(cfg.DefaultMode, models.ModeRealtime),
			TurnTimeout:   cfg.TurnTimeout(),
			InviteTimeout: cfg.InviteTimeout(),
			Validator:     services.NewAttackValidator(cfg.AttackValidation),
			Metrics:       metrics,
		},
	)

	sched, err := coordinator.StartHousekeeping(cfg.QueueSweepInterval())
	if err != nil {
		logrus.WithError(err).Fatal("failed to start scheduler")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Origins(), ","),
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Service-Token",
		MaxAge:       86400, // 24 hours
	}))

	handlers.SetupBattleRoutes(app, coordinator, registry, cfg.ServiceToken)
	handlers.SetupProgressionRoutes(app, progressionService, cfg.ServiceToken)
	handlers.SetupSocketRoutes(ctx, app, coordinator)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logrus.WithError(err).Error("server error")
			stop()
		}
	}()

	logrus.Infof("✅ PvP server running on http://localhost:%s (socket at /ws)", cfg.Port)
	logrus.Infof("✅ Matchmaking sweep every %s, queue timeout %s", cfg.QueueSweepInterval(), cfg.QueueTimeout())
	logrus.Infof("✅ Attack validation: %s, default mode: %s", cfg.AttackValidation, cfg.DefaultMode)
	if archive == nil {
		logrus.Info("⚠️  R2_BUCKET_NAME not set, battle reports are not archived")
	}
	logrus.Infof("✅ CORS configured for origins: %s", strings.Join(cfg.Origins(), ","))

	<-ctx.Done()
	logrus.Info("Shutting down server...")

	if err := sched.Shutdown(); err != nil {
		logrus.WithError(err).Warn("scheduler shutdown")
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
	coordinator.Shutdown()
	stopWorker()
	settlementWorker.Wait()
	logrus.Info("Server stopped")
}
