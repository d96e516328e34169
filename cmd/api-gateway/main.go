// Package main 是应用程序入口
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
	"go.uber.org/zap"

	"github.com/quickmech/quickmech-backend/internal/common/cache"
	"github.com/quickmech/quickmech-backend/internal/common/config"
	"github.com/quickmech/quickmech-backend/internal/common/database"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/common/metrics"
	"github.com/quickmech/quickmech-backend/internal/common/tracing"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/scheduler"
)

func main() {
	// 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.GetLogger()

	log.Info("Starting QuickMech Backend",
		zap.String("version", "1.0.0"),
		zap.String("env", cfg.Server.Mode),
	)

	// 初始化数据库连接
	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// 同步表结构
	if err := db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Order{},
		&models.Review{},
		&models.Part{},
		&models.PartReservation{},
		&models.Payment{},
		&models.PaymentSplit{},
		&models.Wallet{},
		&models.WalletEntry{},
		&models.PayoutRequest{},
		&models.Notification{},
		&models.ChatMessage{},
	); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 初始化 Redis 连接
	redisClient, err := cache.Init(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Redis connected successfully")

	// 初始化指标
	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Server.Name)
	}

	// 初始化链路追踪
	tracer, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}

	// 设置 Gin 模式
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Server.Mode == "test" {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 设置路由并组装服务
	app := setupRouter(engine, cfg, log, db, redisClient)

	// 启动通知分发器
	dispatcherCtx, dispatcherCancel := context.WithCancel(context.Background())
	app.dispatcher.Start(dispatcherCtx)

	// 启动后台任务：预留过期、钱包结算、服务提醒、订单归档
	taskHandler := scheduler.NewTaskHandler(app.orderRepo, app.reservation, app.wallet, app.dispatcher, cfg)
	sched := scheduler.NewScheduler()
	scheduler.SetupTasks(sched, taskHandler)
	sched.Start()

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// 创建超时上下文用于优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 停止后台任务与通知分发
	sched.Stop()
	app.dispatcher.Stop()
	dispatcherCancel()

	// 关闭链路追踪
	if err := tracer.Shutdown(ctx); err != nil {
		log.Warn("Failed to shutdown tracer", zap.Error(err))
	}

	// 关闭数据库连接
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}

	log.Info("Server exited")
}
