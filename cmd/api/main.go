package main

import (
	"context"
	"log"

	"cosmic-chat/config"
	"cosmic-chat/internal/crypto"
	"cosmic-chat/internal/events"
	"cosmic-chat/internal/handler"
	appredis "cosmic-chat/internal/redis"
	"cosmic-chat/internal/repository"
	"cosmic-chat/internal/server"
	"cosmic-chat/internal/services"
	"cosmic-chat/internal/websocket"
	"cosmic-chat/pkg/database"
	"cosmic-chat/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logMode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		logMode = logger.ProductionMode
	}
	l := logger.New(logMode)
	logger.SetGlobalLogger(l)
	defer l.Logger.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	redisClient := appredis.NewClient(appredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	codec, err := crypto.NewCodec(cfg.MessageSecret, cfg.MessageKeyID)
	if err != nil {
		log.Fatalf("Failed to initialize message codec: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	bus := events.NewRedisEventBus(redisClient, l)
	if err := bus.Start(); err != nil {
		log.Fatalf("Failed to start event bus: %v", err)
	}
	defer bus.Stop()

	hub := websocket.NewHub()
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go hub.Run(hubCtx)

	bridge := websocket.NewRedisBridge(bus, hub)
	bridge.Attach()

	cache := appredis.NewCacheStore(redisClient, appredis.DefaultCacheConfig())
	limiter := appredis.NewRateLimiter(redisClient, appredis.DefaultRateLimitConfig())

	authService := services.NewAuthService(userRepo, cfg)
	userService := services.NewUserService(userRepo, cache, l)
	messageService := services.NewMessageService(messageRepo, userRepo, codec, bus, l, cfg.ConversationPageLimit)
	conversationService := services.NewConversationService(messageRepo, userService, messageService, l, cfg.AggregatorScanLimit)

	handlers := &server.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Message:      handler.NewMessageHandler(messageService),
		Conversation: handler.NewConversationHandler(conversationService),
		User:         handler.NewUserHandler(userService),
		WS:           websocket.NewHandler(authService, userService, hub),
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(handlers, authService, limiter, db)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
