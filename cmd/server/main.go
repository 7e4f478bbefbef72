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

	"feeledger/internal/config"
	"feeledger/internal/handler"
	"feeledger/internal/infrastructure/cache"
	"feeledger/internal/infrastructure/database"
	"feeledger/internal/infrastructure/lock"
	"feeledger/internal/infrastructure/mq"
	"feeledger/internal/job"
	"feeledger/internal/repository"
	"feeledger/internal/service"
	"feeledger/pkg/idgen"

	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用配置文件与环境变量:", err)
	}
}

func main() {
	configPath := os.Getenv("FEELEDGER_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg := config.LoadConfig(configPath)

	if err := idgen.Init(1); err != nil {
		log.Fatalf("初始化 ID 生成器失败: %v", err)
	}

	db := database.InitDB(&cfg.Database)
	if cfg.Database.Seed {
		if err := database.SeedDemoData(context.Background(), db); err != nil {
			log.Fatalf("写入演示数据失败: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assessmentRepo := repository.NewAssessmentRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// 状态变更与 outbox 消息同事务提交
	opts := []service.Option{
		service.WithOutbox(txnRepo, service.NewOutboxPublisher(outboxRepo, cfg.Kafka.Topic.PaymentResult)),
	}

	if cfg.Redis.Enabled {
		redisClient := cache.InitRedis(&cfg.Redis)
		defer cache.CloseRedis()
		opts = append(opts, service.WithCallbackLocker(lock.NewCallbackLocker(redisClient, cfg.Ledger.CallbackLockTTL())))
	}

	// Kafka 未开启时事件留在 outbox 表，开启后补发
	var outboxSender *job.OutboxSender
	if cfg.Kafka.Enabled {
		producer := mq.InitKafka(&cfg.Kafka)
		defer producer.Close()

		outboxSender = job.NewOutboxSender(outboxRepo, producer, cfg)
		go outboxSender.Start(ctx)
	}

	pendingMonitor := job.NewPendingMonitor(txnRepo, cfg)
	go pendingMonitor.Start(ctx)

	ledger := service.NewLedgerService(assessmentRepo, txnRepo, cfg, opts...)
	h := handler.NewHandler(ledger, service.NewReportService(ledger))
	router := handler.SetupRouter(h, cfg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 先停后台任务，再取消上下文
	if outboxSender != nil {
		outboxSender.Stop()
	}
	pendingMonitor.Stop()
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
