// Package main runs the community board HTTP server with live chat and graceful shutdown.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/townboard/backend/config"
	"github.com/townboard/backend/internal/admin"
	"github.com/townboard/backend/internal/auth"
	"github.com/townboard/backend/internal/chat"
	"github.com/townboard/backend/internal/events"
	"github.com/townboard/backend/internal/metrics"
	"github.com/townboard/backend/internal/middleware"
	"github.com/townboard/backend/internal/moderation"
	"github.com/townboard/backend/internal/polls"
	"github.com/townboard/backend/internal/posts"
	"github.com/townboard/backend/pkg/database"
	"github.com/townboard/backend/pkg/redis"
	"github.com/townboard/backend/pkg/response"
)

type stores struct {
	posts    posts.Store
	polls    polls.Store
	accounts auth.Accounts
	close    func()
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer st.close()
	seedAdmin(ctx, cfg.Admin, st.accounts, logger)

	// Redis carries admin sessions and chat fan-out when configured.
	var (
		sessionStore auth.SessionStore = auth.NewMemorySessions()
		bus          chat.Bus
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		sessionStore = auth.NewRedisSessions(rdb.Client)
		bus = chat.NewRedisBus(rdb.Client, logger)
	} else {
		logger.Warn("REDIS_ADDR not set; sessions and chat are local to this instance")
	}

	var publisher events.VotePublisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.VoteTopic, logger)
		logger.Info("vote events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.VoteTopic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close vote publisher", zap.Error(err))
		}
	}()

	var classifier moderation.Classifier = moderation.Permissive{}
	if cfg.Moderation.APIKey != "" {
		classifier = moderation.NewClient(cfg.Moderation.URL, cfg.Moderation.APIKey, cfg.Moderation.Model, cfg.Moderation.Timeout, logger)
	} else {
		logger.Warn("OPENAI_API_KEY not set; moderation accepts all content")
	}

	hub := chat.NewHub(bus, logger)
	if err := hub.Start(); err != nil {
		logger.Fatal("chat subscribe", zap.Error(err))
	}
	defer hub.Stop()

	sessions := auth.NewSessionManager(cfg.Session.Secret, cfg.Session.TTL, sessionStore)
	authHandler := auth.NewHandler(st.accounts, sessions, auth.CookieOptions{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	}, logger)
	postHandler := posts.NewHandler(st.posts, classifier, publisher, logger)
	pollHandler := polls.NewHandler(st.polls, publisher, cfg.Poll.DefaultTTL, logger)
	adminHandler := admin.NewHandler(st.posts, st.polls, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	voteMetrics := metrics.NewVotes(registry, "board")
	postHandler.SetMetrics(voteMetrics)
	pollHandler.SetMetrics(voteMetrics)

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Fatal("trusted proxies", zap.Error(err))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api", middleware.Voter())
	postHandler.Register(api.Group("/posts"))
	pollHandler.Register(api.Group("/polls"))

	router.POST("/admin/login", authHandler.Login)
	adminGroup := router.Group("/admin", middleware.AdminSession(sessions, cfg.Session.CookieName))
	{
		adminGroup.POST("/logout", authHandler.Logout)
		adminGroup.POST("/polls", pollHandler.Create)
		adminHandler.Register(adminGroup)
	}

	router.GET("/ws", chat.ServeWs(hub, middleware.OriginAllowed(cfg.Server.CORSAllowedOrigins)))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Store.Driver == config.StoreMemory {
		logger.Warn("STORE_DRIVER=memory; board data is lost on restart")
		return &stores{
			posts:    posts.NewMemoryStore(),
			polls:    polls.NewMemoryStore(),
			accounts: auth.NewMemoryAccounts(),
			close:    func() {},
		}, nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return &stores{
		posts:    posts.NewRepository(pool),
		polls:    polls.NewRepository(pool),
		accounts: auth.NewRepository(pool),
		close:    pool.Close,
	}, nil
}

func seedAdmin(ctx context.Context, cfg config.AdminConfig, accounts auth.Accounts, logger *zap.Logger) {
	if cfg.BootstrapUsername == "" || cfg.BootstrapPassword == "" {
		return
	}
	_, err := auth.CreateAdmin(ctx, accounts, cfg.BootstrapUsername, cfg.BootstrapPassword)
	switch {
	case err == nil:
		logger.Info("bootstrap admin created", zap.String("username", cfg.BootstrapUsername))
	case errors.Is(err, auth.ErrAdminExists):
	default:
		logger.Fatal("bootstrap admin", zap.Error(err))
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
