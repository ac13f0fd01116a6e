package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"community-chat/internal/auth"
	"community-chat/internal/config"
	"community-chat/internal/db"
	"community-chat/internal/handlers"
	"community-chat/internal/logging"
	"community-chat/internal/middleware"
	"community-chat/internal/observability"
	"community-chat/internal/rabbitmq"
	"community-chat/internal/realtime"
	"community-chat/internal/repositories"
	"community-chat/internal/seed"
	"community-chat/internal/telemetry"
	"community-chat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build token verifier")
	}

	seedData := seed.MustDefault()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditKey, cfg.ServiceName, cfg.Environment)
	mode, reason := rabbitmq.Describe(publisher)
	log.Info().Str("mode", mode).Str("reason", reason).Msg("event publisher ready")

	var source realtime.Source = realtime.OfflineSource{}
	var groupHandler *handlers.GroupHandler

	database, err := db.Connect(ctx, db.Options{DSN: cfg.DBDSN, Namespace: cfg.Namespace, MaxElapsed: cfg.DBRetryFor})
	if err != nil {
		log.Error().Err(err).Msg("database unavailable, chat runs on the local feed only")
	} else {
		defer database.Close()
		groupRepo := repositories.NewGroupRepo(database)
		memberRepo := repositories.NewMemberRepo(database)
		groupMessageRepo := repositories.NewGroupMessageRepo(database)

		var pgSource atomic.Pointer[realtime.PGSource]
		listener := realtime.NewListener(cfg.DBDSN, func(ev pq.ListenerEventType, err error) {
			if src := pgSource.Load(); src != nil {
				src.OnListenerEvent(ev, err)
			}
		})
		src, err := realtime.NewPGSource(realtime.PGConfig{
			Groups:   groupRepo,
			Members:  memberRepo,
			Messages: groupMessageRepo,
			Listener: listener,
			Prefix:   db.ChannelPrefix(cfg.Namespace),
		})
		if err != nil {
			log.Error().Err(err).Msg("live feed listener failed, chat runs on the local feed only")
			_ = listener.Close()
		} else {
			pgSource.Store(src)
			defer src.Close()
			source = src
		}
		groupHandler = handlers.NewGroupHandler(groupRepo, memberRepo, groupMessageRepo, source, seedData, cfg.MessageLimit, audit)
	}

	hub := ws.NewHub()
	chatView := ws.NewChatViewHandler(ws.ChatViewConfig{
		Hub:          hub,
		Source:       source,
		Groups:       seedData,
		Conversation: seedData.Conversation,
		Verifier:     verifier,
		MessageLimit: cfg.MessageLimit,
		DefaultGroup: cfg.DefaultGroup,
	})

	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)
	optionalAuth := middleware.OptionalAuthMiddleware(verifier)

	router.GET("/healthz", func(c *gin.Context) {
		status := "ok"
		if database == nil {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if groupHandler != nil {
		router.GET("/groups", optionalAuth, groupHandler.ListGroups)
		router.GET("/members", optionalAuth, groupHandler.ListMembers)
		router.GET("/groups/:group_id/messages", optionalAuth, groupHandler.GetGroupMessages)
		router.DELETE("/groups/:group_id/messages/:message_id", authMiddleware, groupHandler.DeleteGroupMessage)
	} else {
		unavailable := func(c *gin.Context) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
		}
		router.GET("/groups", unavailable)
		router.GET("/members", unavailable)
		router.GET("/groups/:group_id/messages", unavailable)
		router.DELETE("/groups/:group_id/messages/:message_id", unavailable)
	}

	router.GET("/ws/chat", chatView.Handle)
	handlers.RegisterDebugRoutes(router, audit, hub, cfg.DebugRoutes)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("community chat listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}
