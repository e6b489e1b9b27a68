package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/uxurimx/uxuri-sub001/internal/api"
	"github.com/uxurimx/uxuri-sub001/internal/chat"
	"github.com/uxurimx/uxuri-sub001/internal/config"
	"github.com/uxurimx/uxuri-sub001/internal/db"
	"github.com/uxurimx/uxuri-sub001/internal/middleware"
	"github.com/uxurimx/uxuri-sub001/internal/notify"
	"github.com/uxurimx/uxuri-sub001/internal/observ"
	"github.com/uxurimx/uxuri-sub001/internal/push"
	"github.com/uxurimx/uxuri-sub001/internal/realtime"
	"github.com/uxurimx/uxuri-sub001/internal/repository/postgres"
	"github.com/uxurimx/uxuri-sub001/internal/unread"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// ---------------------------------------------------------------
	// Schema
	//
	// Why migrate on boot?
	//   - The unique indexes on dm_key and entity_id are what keep
	//     concurrent find-or-create from making duplicate channels.
	//     Serving traffic against a schema without them is worse than
	//     not starting.
	// ---------------------------------------------------------------
	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	pool := database.Pool()
	channelRepo := postgres.NewChannelStore(pool)
	messageRepo := postgres.NewMessageStore(pool)
	userRepo := postgres.NewUserStore(pool)
	agentRepo := postgres.NewAgentStore(pool)
	roleRepo := postgres.NewRoleStore(pool)
	subRepo := postgres.NewPushSubscriptionStore(pool)

	// ---------------------------------------------------------------
	// Realtime
	//
	// Every node publishes to Redis and every node's hub listens on
	// realtime:*, so an event reaches a socket no matter which node
	// the socket is connected to.
	// ---------------------------------------------------------------
	grants := realtime.NewGrantSigner(cfg.JWTSecret, cfg.GrantTTL)
	hub := realtime.NewHub(rdb, grants, logger.Named("hub"))
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("start realtime hub: %w", err)
	}
	publisher := realtime.NewRedisPublisher(rdb)

	var sender push.Sender
	if cfg.PushEnabled() {
		sender = push.NewWebPushSender(push.WebPushOptions{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subscriber:      cfg.VAPIDSubject,
			TTL:             cfg.PushTTL,
		})
	} else {
		logger.Warn("VAPID keys not configured, web push disabled")
	}
	dispatcher := notify.NewDispatcher(publisher, subRepo, sender, cfg.PushTimeout, logger.Named("notify"))
	// Deferred after the Redis and Postgres closes, so it runs before
	// them: in-flight notifications still need both.
	defer dispatcher.Wait()

	resolver := chat.NewResolver(channelRepo, userRepo, agentRepo, logger.Named("chat"))

	handlers := api.Handlers{
		Health: api.NewHealthHandler(map[string]api.Check{
			"postgres": database.Health,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, logger),
		Channels: api.NewChannelHandler(resolver, channelRepo, logger),
		Messages: api.NewMessageHandler(messageRepo, channelRepo, userRepo, dispatcher, logger),
		Realtime: api.NewRealtimeHandler(realtime.NewAuthorizer(grants), hub, logger),
		Push:     api.NewPushHandler(subRepo, cfg.VAPIDPublicKey, logger),
		Unread: api.NewUnreadHandler(func(sessionID string) unread.Storage {
			return unread.NewRedisStorage(rdb, sessionID)
		}, publisher, logger),
		Roles: api.NewRoleHandler(roleRepo, logger),
		Users: api.NewUserHandler(userRepo, logger),
	}
	access := middleware.NewRoleResolver(roleRepo, userRepo)
	router := api.NewRouter(handlers, cfg.JWTSecret, access, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.Bool("web_push", sender != nil),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}
