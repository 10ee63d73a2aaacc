package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"duel-engine/config"
	"duel-engine/handlers"
	"duel-engine/middleware"
	"duel-engine/models"
	"duel-engine/services"
	"duel-engine/utils"
	"duel-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := utils.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to build logger: ", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	gormHandles := services.NewGormHandleStore(db)
	var handles services.HandleStore = gormHandles
	var linker handlers.HandleLinker = gormHandles
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		cached := workers.NewCachedHandleStore(gormHandles, rdb, cfg.Redis.HandleTTL, logger.Named("handle-cache"))
		handles, linker = cached, cached
	}

	var sink services.MessageSink = workers.LogSink{Log: logger.Named("summary")}
	if cfg.NATS.URL != "" {
		nc, err := workers.ConnectNATS(cfg.NATS.URL, logger)
		if err != nil {
			logger.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer nc.Drain()
		sink = workers.NewNATSSink(nc, cfg.NATS.SubjectPrefix, logger.Named("nats-sink"))
	}

	judge := workers.NewCodeforcesClient(cfg.Judge.BaseURL, cfg.Judge.CatalogTTL, logger.Named("judge"))

	challengeService := services.NewChallengeService(db, handles, judge, sink, services.ChallengeConfig{
		SupportedLengths: cfg.Challenge.SupportedLengths,
		MinParticipants:  cfg.Challenge.MinParticipants,
		MaxParticipants:  cfg.Challenge.MaxParticipants,
		QueryTimeout:     cfg.Challenge.QueryTimeout,
		FanOut:           cfg.Challenge.FanOut,
	}, logger.Named("challenges"))

	tournamentCfg := services.DefaultTournamentConfig()
	tournamentCfg.SupportedLengths = cfg.Challenge.SupportedLengths
	tournamentCfg.QueryTimeout = cfg.Challenge.QueryTimeout
	tournamentCfg.FanOut = cfg.Challenge.FanOut
	tournamentService := services.NewTournamentService(db, challengeService, handles, judge, judge, sink, tournamentCfg, logger.Named("tournaments"))
	challengeService.SetCompletionListener(tournamentService)

	if cfg.R2Enabled() {
		archive, err := utils.NewR2Archive(ctx, utils.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
			Endpoint:        cfg.R2.Endpoint,
		})
		if err != nil {
			logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		tournamentService.Archive = archive
	}

	sched, err := services.StartTickScheduler(ctx, services.SchedulerConfig{
		ChallengeInterval: cfg.Scheduler.ChallengeInterval,
		ArenaInterval:     cfg.Scheduler.ArenaInterval,
		ReconcileInterval: cfg.Scheduler.ReconcileInterval,
	}, challengeService, tournamentService, logger.Named("scheduler"))
	if err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	app := fiber.New()
	origins := strings.Split(cfg.AllowedOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID",
		MaxAge:       86400,
	}))
	handlers.SetupHealthRoutes(app, db)

	// Everything below is gateway-only
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, logger.Named("gateway")))
	secured := app.Group("/", middleware.UserContextMiddleware())
	handlers.SetupChallengeRoutes(secured, challengeService, judge, linker)
	handlers.SetupTournamentRoutes(secured, tournamentService)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()
	logger.Info("server running", zap.String("addr", cfg.HTTPAddr))

	<-ctx.Done()
	logger.Info("shutting down")
	if err := sched.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}
