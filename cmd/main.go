package main

import (
	"log"
	"os"

	"go.uber.org/zap"
	"price-alert-sentry/pkg/config"
	"price-alert-sentry/pkg/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志
	appLogger, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatal("初始化日志失败:", err)
	}
	defer appLogger.Sync()

	app := NewApp(cfg)
	if err := app.Start(); err != nil {
		zap.L().Fatal("❌ 启动失败", zap.Error(err))
	}

	app.WaitForShutdown()
	if err := app.Stop(); err != nil {
		zap.L().Error("❌ 异常退出", zap.Error(err))
		_ = appLogger.Sync()
		os.Exit(1)
	}
}
