package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	grpcclient "messaging-service/internal/grpc"
	"messaging-service/internal/handlers"
	"messaging-service/internal/logging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to init tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to db")
	}
	defer database.Close()

	userConn, err := grpcclient.Dial(cfg.GRPC.UserDirectoryAddr)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to user directory grpc")
	}
	defer userConn.Close()
	userClient := grpcclient.NewUserClient(userConn)

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	logger.WithFields(logrus.Fields{
		"mode":   rabbitmq.PublisherMode(publisher),
		"reason": rabbitmq.PublisherNoopReason(publisher),
	}).Info("event publisher ready")
	events := telemetry.NewEventEmitter(publisher, cfg.Telemetry.ServiceName, cfg.Telemetry.Environment, logger)

	hub := ws.NewHub(logger)
	defer hub.Close()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable, realtime delivery stays local")
		} else {
			fanout := ws.NewRedisFanout(rdb, hub, logger)
			go func() {
				if err := fanout.Run(ctx); err != nil {
					logger.WithError(err).Error("redis fanout stopped")
				}
			}()
		}
	}

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database, cfg.Messaging.MaxMessageLength)
	notificationRepo := repositories.NewNotificationRepo(database)

	messaging := service.NewMessagingService(conversationRepo, messageRepo, userClient, hub, events, logger, cfg.Messaging.MaxMessageLength)
	notifications := service.NewNotificationService(notificationRepo, hub, events, logger)

	if cfg.AMQP.URL != "" {
		consumer, err := rabbitmq.NewNotificationConsumer(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.NotificationQueue, notifications, logger)
		if err != nil {
			logger.WithError(err).Warn("notification consumer disabled")
		} else {
			defer consumer.Close()
			go func() {
				if err := consumer.Run(ctx); err != nil {
					logger.WithError(err).Error("notification consumer stopped")
				}
			}()
		}
	}

	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	gateway := ws.NewGateway(hub, messaging, notifications, verifier, logger, cfg.Server.CORSOrigins)
	conversationHandler := handlers.NewConversationHandler(messaging)
	notificationHandler := handlers.NewNotificationHandler(notifications)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(middleware.RequestID(), middleware.RequestLogger(logger))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", gateway.Handle)

	authMiddleware := middleware.AuthMiddleware(verifier)
	api := router.Group("/", authMiddleware)
	api.GET("/conversations", conversationHandler.ListConversations)
	api.GET("/conversations/:conversation_id", conversationHandler.GetMessages)
	api.PUT("/conversations/:conversation_id/read", conversationHandler.MarkRead)
	api.POST("/messages", conversationHandler.SendMessage)
	api.GET("/messages/unread-count", conversationHandler.UnreadCount)
	api.GET("/notifications", notificationHandler.List)
	api.GET("/notifications/unread-count", notificationHandler.UnreadCount)
	api.PUT("/notifications/read", notificationHandler.MarkAllRead)
	api.PUT("/notifications/:notification_id/read", notificationHandler.MarkRead)

	handlers.RegisterDebugRoutes(router, authMiddleware, notifications, events, cfg.Server.DebugRoutes)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "X-Device-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           corsHandler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("messaging service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}
