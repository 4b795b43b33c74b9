package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callbridge/internal/auth"
	"callbridge/internal/calls"
	"callbridge/internal/config"
	"callbridge/internal/voiceai"
	"callbridge/pkg/logger"
	"callbridge/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// The gateway is built once from config and shared read-only across
	// request handlers.
	gateway, err := voiceai.NewClient(voiceai.ClientConfig{
		BaseURL:           cfg.VoiceAI.BaseURL,
		APIKey:            cfg.VoiceAI.APIKey,
		DefaultAgentID:    cfg.VoiceAI.AgentID,
		DefaultFromNumber: cfg.VoiceAI.FromNumber,
	})
	if err != nil {
		log.Error("voiceai gateway init failed", "err", err)
		os.Exit(1)
	}

	store := calls.NewPostgresStore(db)
	parker := calls.NewRedisParker(rdb, cfg.VoiceAI.ParkedEventTTL)
	engine := calls.NewEngine(store, parker, cfg.VoiceAI.WebhookSecret)
	callSvc := calls.NewService(store, gateway, engine)

	var authManager *auth.Manager
	if cfg.AuthEnabled() {
		authManager, err = auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("management API auth disabled (AUTH_JWT_SECRET not set)")
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:         cfg,
		db:          db,
		rdb:         rdb,
		authManager: authManager,
		callSvc:     callSvc,
		gateway:     gateway,
		engine:      engine,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
