package bootstrap

import (
	"context"
	"log"

	"ai-notebook-be/internal/config"
	"ai-notebook-be/internal/controller"
	"ai-notebook-be/internal/handler"
	"ai-notebook-be/internal/pkg/logger"
	"ai-notebook-be/internal/repository/memory"
	"ai-notebook-be/internal/repository/unitofwork"
	"ai-notebook-be/internal/service"
	"ai-notebook-be/internal/websocket"
	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/llm/factory"

	pktNats "ai-notebook-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SessionController     controller.ISessionController
	SyncController        controller.ISyncController
	DiagnosticsController controller.IDiagnosticsController

	// Background Services (Exposed for main.go to run)
	ConsumerService     service.IConsumerService
	PersistenceService  service.IPersistenceService
	NotificationService *service.NotificationService
	SyncService         service.ISyncService
	AssistantService    service.IAssistantService

	// WebSockets
	SyncHandler  *handler.SyncHandler
	WebSocketHub *websocket.Hub

	Logger logger.ILogger

	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
	pubSub  *gochannel.GoChannel
	cancel  context.CancelFunc
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	syncLogger := logger.NewIsolatedLogger(cfg.App.SyncLogFilePath)

	codec := lexical.NewCodec()
	split, err := lexical.ParseSplitPolicy(cfg.Sync.SplitMode, cfg.Sync.SplitMaxLevel)
	if err != nil {
		log.Fatalf("[FATAL] Invalid split policy: %v", err)
	}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// Initialize LLM Provider based on Config
	apiKey := cfg.Ai.HFToken
	baseURL := cfg.Ai.OllamaBaseURL
	if cfg.Ai.LLMProvider == "huggingface" {
		baseURL = cfg.Ai.HFBaseURL
	}
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, baseURL, apiKey)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 2.5 Infrastructure
	// NATS
	var publisher service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		publisher = natsPub
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsHub := websocket.NewHub(rdb, cfg.App.EventsChannel, syncLogger)

	// 3. Services
	sessionService := service.NewSessionService(uowFactory, codec)
	persistenceService := service.NewPersistenceService(pubSub, cfg.App.SaveCellsTopic, syncLogger)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.SaveCellsTopic,
		uowFactory,
		publisher,
		syncLogger,
	)

	syncService := service.NewSyncService(
		memory.NewWorkspaceRepository(cfg.Sync.SessionIdleTTL),
		sessionService,
		persistenceService,
		wsHub, // Hub implements NotificationDelivery
		publisher,
		codec,
		split,
		cfg.Sync,
		syncLogger,
	)
	assistantService := service.NewAssistantService(syncService, llmProvider, cfg.Ai.SystemPrompt, sysLogger)
	syncService.SetRefresher(assistantService)

	var notifService *service.NotificationService
	if natsSub != nil {
		notifService = service.NewNotificationService(natsSub, wsHub, syncLogger)
	}

	// 4. Controllers
	return &Container{
		SessionController:     controller.NewSessionController(sessionService),
		SyncController:        controller.NewSyncController(syncService, assistantService),
		DiagnosticsController: controller.NewDiagnosticsController(syncLogger, syncService),

		ConsumerService:     consumerService,
		PersistenceService:  persistenceService,
		NotificationService: notifService,
		SyncService:         syncService,
		AssistantService:    assistantService,

		SyncHandler:  handler.NewSyncHandler(syncService, wsHub, syncLogger),
		WebSocketHub: wsHub,

		Logger: sysLogger,

		natsPub: natsPub,
		natsSub: natsSub,
		rdb:     rdb,
		pubSub:  pubSub,
	}
}

// Start launches the background workers. They run until Close, so pending
// cell batches can still be persisted while the server drains.
func (c *Container) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel

	go c.WebSocketHub.Run(ctx)

	if err := c.PersistenceService.Start(ctx); err != nil {
		return err
	}

	go func() {
		c.Logger.Info("Container", "Starting Consumer Service", nil)
		if err := c.ConsumerService.Consume(ctx); err != nil {
			c.Logger.Error("Container", "Consumer stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	if c.NotificationService != nil {
		if err := c.NotificationService.Start(); err != nil {
			c.Logger.Warn("Container", "Notification relay disabled", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

// Close flushes open workspaces before tearing down the infrastructure.
func (c *Container) Close() {
	c.AssistantService.Shutdown()
	c.SyncService.Shutdown()
	if c.cancel != nil {
		c.cancel()
	}

	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close event bus: %v", err)
	}
	if err := c.rdb.Close(); err != nil {
		log.Printf("[WARN] Failed to close Redis: %v", err)
	}
	_ = c.Logger.Sync()
}
