package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"mitcstore/internal/adapter/api"
	"mitcstore/internal/adapter/api/handler"
	apimiddleware "mitcstore/internal/adapter/api/middleware"
	"mitcstore/internal/adapter/api/router"
	"mitcstore/internal/adapter/repository"
	domainrepo "mitcstore/internal/domain/repository"
	"mitcstore/internal/infrastructure/firebase"
	"mitcstore/internal/infrastructure/metrics"
	"mitcstore/internal/infrastructure/ratelimit"
	red "mitcstore/internal/infrastructure/redis"
	"mitcstore/internal/infrastructure/websocket"
	"mitcstore/internal/usecase"
	"mitcstore/pkg/config"
	"mitcstore/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opt, haveCredentials := firebaseCredentials(cfg)

	var authClient usecase.FirebaseAuthClient = firebase.DisabledAuthClient{}
	if haveCredentials {
		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
		if err != nil {
			logger.Error("Failed to initialize Firebase: %v", err)
			os.Exit(1)
		}

		fbAuth, err := firebaseApp.Auth(ctx)
		if err != nil {
			logger.Error("Failed to initialize Firebase Auth: %v", err)
			os.Exit(1)
		}
		authClient = firebase.NewFirebaseAuthClient(fbAuth)
	} else {
		logger.Warn("No Firebase service account configured; every caller is treated as a guest")
	}

	var store domainrepo.DocumentStore
	switch cfg.StorageDriver {
	case config.StorageDriverFirestore:
		if !haveCredentials {
			logger.Error("The firestore storage driver needs FIREBASE_SERVICE_ACCOUNT_JSON or FIREBASE_SERVICE_ACCOUNT_PATH")
			os.Exit(1)
		}
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
		if err != nil {
			logger.Error("Failed to create Firestore client: %v", err)
			os.Exit(1)
		}
		defer firestoreClient.Close()
		store = repository.NewFirestoreDocumentStore(firestoreClient)
	default:
		logger.Warn("Using the in-memory document store; data is lost on restart")
		store = repository.NewMemoryDocumentStore()
	}

	metrics.MustRegister()

	sessionRepo := repository.NewSessionRepository(store)
	messageRepo := repository.NewMessageRepository(store)
	orderRepo := repository.NewOrderRepository(store)
	userRepo := repository.NewUserRepository(store)

	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("Redis unavailable, profile cache disabled: %v", err)
		} else {
			defer redisClient.Close()
			userRepo = repository.NewUserRepoCacheDecorator(userRepo, redisClient, cfg.Redis.TTL)
			logger.Info("Profile cache enabled (ttl %s)", cfg.Redis.TTL)
		}
	}

	limiter := ratelimit.NewRateLimiter()
	limiter.SetPolicy(ratelimit.ActionSendMessage, ratelimit.Policy{
		Rate:  rate.Limit(cfg.Chat.MessageRate),
		Burst: cfg.Chat.MessageBurst,
	})
	if cfg.Chat.SessionRate > 0 && cfg.Chat.SessionBurst > 0 {
		limiter.SetPolicy(ratelimit.ActionOpenSession, ratelimit.Policy{
			Rate:  rate.Limit(cfg.Chat.SessionRate),
			Burst: cfg.Chat.SessionBurst,
		})
	}
	limiter.StartCleanupRoutine(ctx)

	identity := usecase.NewIdentityResolver()
	directory := usecase.NewSessionDirectory(sessionRepo)
	channel := usecase.NewMessageChannel(directory, sessionRepo, messageRepo, limiter)
	unread := usecase.NewUnreadCounter(sessionRepo)
	adminChat := usecase.NewAdminChatUseCase(directory, channel, unread, userRepo)

	wsManager := websocket.NewManager(websocket.Services{
		Directory: directory,
		Channel:   channel,
		Unread:    unread,
		AdminChat: adminChat,
	})
	wsManager.Start(ctx)

	pipeline := usecase.NewOrderPipeline(orderRepo, wsManager, cfg.StrictPipeline())

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc:  func(origin string) (bool, error) { return true, nil },
		AllowCredentials: true,
	}))

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)
	adminMiddleware := apimiddleware.NewAdminMiddleware(userRepo, cfg.Admin.UIDs)

	router.Setup(e, router.Handlers{
		Health:    handler.NewHealthHandler(store),
		Chat:      handler.NewChatHandler(identity, directory, channel, unread),
		AdminChat: handler.NewAdminChatHandler(adminChat),
		Order:     handler.NewOrderHandler(pipeline),
		WebSocket: handler.NewWebSocketHandler(wsManager, identity, adminMiddleware),
	}, authMiddleware, adminMiddleware, limiter)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		logger.Info("Starting server on port %s (storage=%s, pipeline=%s)...", cfg.ServerPort, cfg.StorageDriver, cfg.Orders.PipelineMode)
		if err := e.Start(":" + cfg.ServerPort); err != nil {
			logger.Info("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

// firebaseCredentials prefers inline service account JSON (production) over a
// file path (local development).
func firebaseCredentials(cfg *config.Config) (option.ClientOption, bool) {
	if cfg.FirebaseCredentialsJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		return option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON)), true
	}

	path := cfg.FirebaseCredentialsPath
	if path == "" {
		return nil, false
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Error("Service account file does not exist: %s", path)
		os.Exit(1)
	}

	logger.Info("Using Firebase service account from file: %s", path)
	return option.WithCredentialsFile(path), true
}
