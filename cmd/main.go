package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/config"
	"github.com/zapdesk/zapdesk/internal/dedup"
	"github.com/zapdesk/zapdesk/internal/gateway"
	"github.com/zapdesk/zapdesk/internal/identity"
	"github.com/zapdesk/zapdesk/internal/integrations"
	"github.com/zapdesk/zapdesk/internal/loaders"
	"github.com/zapdesk/zapdesk/internal/pipeline"
	"github.com/zapdesk/zapdesk/internal/providers"
	"github.com/zapdesk/zapdesk/internal/providers/baileys"
	"github.com/zapdesk/zapdesk/internal/providers/wweb"
	"github.com/zapdesk/zapdesk/internal/queues"
	"github.com/zapdesk/zapdesk/internal/routes"
	"github.com/zapdesk/zapdesk/internal/tickets"
	"github.com/zapdesk/zapdesk/internal/utils"
	"github.com/zapdesk/zapdesk/internal/ws"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Warning: Error loading .env file", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	cleanup := utils.InitLogger(cfg)
	defer cleanup()

	utils.Zlog.Info("Starting application",
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.ServerPort))

	db, err := loaders.NewPostgresClient(cfg.DatabaseURL, cfg.WorkerCount)
	if err != nil {
		utils.Zlog.Error("Failed to create database client", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			utils.Zlog.Error("Error closing database connection", zap.Error(err))
		}
	}()

	var cache dedup.Cache
	if cfg.RedisAddr != "" {
		dc, err := loaders.NewDedupCache(cfg.RedisAddr)
		if err != nil {
			utils.Zlog.Error("Failed to connect dedup cache, continuing without it", zap.Error(err))
		} else {
			cache = dc
			defer dc.Close()
		}
	}

	registry := providers.NewRegistry(baileys.NewAdapter(), wweb.NewAdapter())
	resolver := identity.NewResolver(db)
	manager := tickets.NewManager(db, tickets.NewProtocolGenerator(db), cfg.NPSWindow)
	router := queues.NewRouter(db)
	ledger := dedup.NewLedger(db, cache, cfg.DedupCacheTTL)
	dispatcher := integrations.NewDispatcher(db, cfg.DispatchAttempts, cfg.DispatchBackoff)
	gw := gateway.NewClient(cfg.GatewayURL, cfg.GatewaySecret)

	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := pipeline.New(registry, resolver, manager, router, ledger, dispatcher, db, gw, hub, pipeline.Options{
		Workers:          cfg.WorkerCount,
		ReactionRetries:  cfg.ReactionRetries,
		ReactionInterval: cfg.ReactionInterval,
	})
	p.Start(ctx)
	defer p.Stop()

	// Background sweep of expired NPS capture windows.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := manager.SweepExpiredNPS(ctx)
				if err != nil {
					utils.Zlog.Error("NPS sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					utils.Zlog.Info("Expired NPS capture windows", zap.Int64("count", n))
				}
			}
		}
	}()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	routes.SetupRoutes(engine, db, cfg, p, manager, hub)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		utils.Zlog.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Zlog.Error("Failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Zlog.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Zlog.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	utils.Zlog.Info("Server exited")
}
