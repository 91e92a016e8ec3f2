// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"craftbid/internal/apiserver/auth"
	"craftbid/internal/apiserver/server"
	"craftbid/internal/apiserver/sweeper"
	"craftbid/internal/apiserver/verification"
	"craftbid/internal/config"
	"craftbid/internal/shared/infra"
	"craftbid/internal/shared/metrics"
	"craftbid/pkg/logging"
)

func main() {
	// 加载配置（.env.{env} + {env}.yaml + 环境变量）
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化数据库、缓存、事件总线、对象存储
	in, err := infra.New(ctx, cfg, infra.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}
	defer in.Close()

	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if err := auth.EnsureAdminUser(ctx, in.Storage, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			log.Fatalf("Failed to bootstrap admin user: %v", err)
		}
	}

	m := metrics.NewMetrics("craftbid")
	sink := verification.NewRecordingSink(in.Storage, in.EventBus, logging.Default("verification"), m)
	svc := verification.NewService(in.Storage, sink, verification.NewMachine(cfg.Verification.AllowResubmission))

	sw, err := sweeper.NewSweeper(in.Storage, svc, sweeper.FromAppConfig(cfg.Verification), logging.Default("sweeper"), m)
	if err != nil {
		log.Fatalf("Invalid sweeper config: %v", err)
	}
	if cfg.Verification.SweeperEnabled {
		go sw.Start(ctx)
	} else {
		log.Println("Sweeper disabled, run cmd/auto-approve from cron instead")
	}

	h := server.NewHandler(in, svc, server.Options{
		Auth:        auth.ConfigFrom(cfg.Auth),
		Google:      auth.NewGoogleProvider(cfg.Auth.Google),
		FrontendURL: cfg.FrontendURL,
		Sweeper:     sw,
		Metrics:     m,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     h.Router(),
		ReadTimeout: 15 * time.Second,
		// WebSocket 连接长期存在，写超时由网关逐条设置
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		sw.Stop()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
