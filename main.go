package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"social-chat-service/internal/auth"
	"social-chat-service/internal/config"
	"social-chat-service/internal/db"
	"social-chat-service/internal/fanout"
	"social-chat-service/internal/handlers"
	"social-chat-service/internal/middleware"
	"social-chat-service/internal/observability"
	"social-chat-service/internal/rabbitmq"
	"social-chat-service/internal/registry"
	"social-chat-service/internal/repositories"
	"social-chat-service/internal/telemetry"
	"social-chat-service/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, "social-chat-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				log.Printf("tracer shutdown: %v", err)
			}
		}()
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.chat", "social-chat-service", cfg.Environment)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	presenceRepo := repositories.NewPresenceRepo(database)
	userRepo := repositories.NewUserRepo(database)

	reg := registry.New(presenceRepo)
	engine := fanout.NewEngine(conversationRepo, messageRepo, userRepo, reg)

	authenticator := auth.NewJWTAuthenticator([]byte(cfg.JWTSecret))

	conversationHandler := handlers.NewConversationHandler(conversationRepo, messageRepo, userRepo, engine)
	messageHandler := handlers.NewMessageHandler(engine)
	presenceHandler := handlers.NewPresenceHandler(presenceRepo)
	wsHandler := ws.NewHandler(reg, engine, authenticator, cfg.ClientSendBuf)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("social-chat-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(authenticator)

	router.POST("/conversations", authMiddleware, conversationHandler.StartConversation)
	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, conversationHandler.GetMessages)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, conversationHandler.PostMessage)
	router.PATCH("/messages/:message_id", authMiddleware, messageHandler.EditMessage)
	router.DELETE("/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.GET("/presence/:user_id", authMiddleware, presenceHandler.GetPresence)

	router.GET("/ws", wsHandler.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	if err := router.Run(cfg.ServerAddr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
