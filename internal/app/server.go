// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"fleetcheck-service/internal/cache"
	"fleetcheck-service/internal/config"
	"fleetcheck-service/internal/db"
	batchHandler "fleetcheck-service/internal/handlers/batch"
	reviewHandler "fleetcheck-service/internal/handlers/review"
	ticketHandler "fleetcheck-service/internal/handlers/tickets"
	vehicleHandler "fleetcheck-service/internal/handlers/vehicles"
	wsHandler "fleetcheck-service/internal/handlers/ws"
	"fleetcheck-service/internal/middleware"
	"fleetcheck-service/internal/registry"
	"fleetcheck-service/internal/repository/postgres"
	"fleetcheck-service/internal/scheduler"
	auditsvc "fleetcheck-service/internal/service/audit"
	batchsvc "fleetcheck-service/internal/service/batch"
	"fleetcheck-service/internal/service/classifier"
	compliancesvc "fleetcheck-service/internal/service/compliance"
	"fleetcheck-service/internal/service/flags"
	"fleetcheck-service/internal/service/inference"
	reviewsvc "fleetcheck-service/internal/service/review"
	ticketsvc "fleetcheck-service/internal/service/ticket"
	"fleetcheck-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg       config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	scheduler *scheduler.Scheduler
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.Default()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB()
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisCfg := db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	}

	redisClient, err := db.NewRedisClient(redisCfg)
	if err != nil {
		log.Fatalf("[REDIS] ❌ Failed to connect to Redis: %v", err)
	}
	log.Println("[REDIS] ✅ Connected successfully")

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	snapshotRepo := postgres.NewSnapshotRepository(pool)
	cacheRepo := postgres.NewComplianceCacheRepository(pool)
	flagRepo := postgres.NewFlagRepository(pool, dbWrapper)
	ticketRepo := postgres.NewTicketRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	fleetRepo := postgres.NewFleetRepository(pool)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger)
	go hub.Run()

	// ----- Registry verification -----
	adapters := []registry.Adapter{
		registry.NewNationalRegistryAdapter(registry.NationalRegistryConfig{
			BaseURL:  s.cfg.NationalBaseURL,
			APIKey:   s.cfg.NationalAPIKey,
			ClientID: s.cfg.NationalClientID,
		}),
		registry.NewStateTransportAdapter(registry.StateTransportConfig{
			BaseURL: s.cfg.StateBaseURL,
			Token:   s.cfg.StateToken,
		}),
	}
	normalizer := registry.NewNormalizer()
	verifier := registry.NewClient(adapters, normalizer, registry.ClientConfig{
		MaxAttempts:      s.cfg.MaxAttempts,
		BackoffBase:      s.cfg.BackoffBase,
		BreakerThreshold: s.cfg.BreakerThreshold,
		BreakerCooldown:  s.cfg.BreakerCooldown,
	}, logger)

	// ----- Services -----
	auditService := auditsvc.NewService(auditRepo, logger)
	decisionCache := cache.NewDecisionCache(redisClient)
	inferenceEngine := inference.NewEngine(logger)
	truckClassifier := classifier.NewClassifier(logger)
	flagComputer := flags.NewComputer()

	complianceEngine := compliancesvc.NewEngine(
		normalizer,
		inferenceEngine,
		truckClassifier,
		cacheRepo,
		fleetRepo,
		decisionCache,
		auditService,
		compliancesvc.Config{
			GPSWindow:  s.cfg.GPSWindow,
			FleetLimit: s.cfg.FleetLimit,
			CacheTTL:   s.cfg.CacheTTL,
		},
		logger,
	)

	ticketService := ticketsvc.NewService(ticketRepo, hub, logger)
	reviewDispatcher := reviewsvc.NewDispatcher(s.cfg.ReviewWebhookURL, flagRepo, ticketService, auditService, logger)

	orchestrator := batchsvc.NewOrchestrator(
		fleetRepo,
		verifier,
		snapshotRepo,
		flagRepo,
		flagComputer,
		complianceEngine,
		ticketService,
		reviewDispatcher,
		hub,
		batchsvc.Config{
			BatchSize:   s.cfg.BatchSize,
			Concurrency: s.cfg.BatchWorkers,
			Staleness:   s.cfg.BatchStaleness,
		},
		logger,
	)

	// ----- Scheduler -----
	s.scheduler = scheduler.New(orchestrator, s.cfg.BatchCron, s.cfg.BatchTimeout, logger)
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start batch scheduler: %w", err)
	}

	// ----- Handlers -----
	vehicleHandlerInst := vehicleHandler.NewVehicleHandler(
		verifier, complianceEngine, fleetRepo, snapshotRepo, cacheRepo, decisionCache, flagRepo, auditService, logger)
	batchHandlerInst := batchHandler.NewBatchHandler(orchestrator, logger)
	ticketHandlerInst := ticketHandler.NewTicketHandler(ticketService)
	reviewHandlerInst := reviewHandler.NewReviewHandler(reviewDispatcher, logger)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(s.cfg.AdminKey)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		VehicleHandler: vehicleHandlerInst,
		BatchHandler:   batchHandlerInst,
		TicketHandler:  ticketHandlerInst,
		ReviewHandler:  reviewHandlerInst,
		WSHandler:      wsHandlerInst,
		AuthMiddleware: authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	logger.Info("starting HTTP server", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Stop drains the cron scheduler; in-flight batch runs finish first.
func (s *Server) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
