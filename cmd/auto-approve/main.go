// Package main 自动审核单次执行入口
//
// 用于由 cron 等外部调度器触发：执行一次扫描，把超时未处理的
// pending 档案自动通过，打印数量后退出。
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"craftbid/internal/apiserver/sweeper"
	"craftbid/internal/apiserver/verification"
	"craftbid/internal/config"
	"craftbid/internal/shared/infra"
	"craftbid/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 单次执行不需要对象存储；事件总线在配置了 Redis 时仍然推送给在线用户
	in, err := infra.New(ctx, cfg, infra.Options{WithoutDocuments: true})
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}
	defer in.Close()

	sink := verification.NewRecordingSink(in.Storage, in.EventBus, logging.Default("verification"), nil)
	svc := verification.NewService(in.Storage, sink, verification.NewMachine(cfg.Verification.AllowResubmission))

	sw, err := sweeper.NewSweeper(in.Storage, svc, sweeper.FromAppConfig(cfg.Verification), logging.Default("sweeper"), nil)
	if err != nil {
		log.Fatalf("Invalid sweeper config: %v", err)
	}

	result, err := sw.RunOnce(ctx, time.Now().UTC())
	if err != nil {
		log.Fatalf("Auto-approve failed: %v", err)
	}

	if result.Approved == 0 {
		fmt.Println("No artisans to auto-approve.")
		return
	}
	fmt.Printf("Auto-approved %d artisan(s).\n", result.Approved)
}
