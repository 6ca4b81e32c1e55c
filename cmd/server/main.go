// Package main 是应用程序的入口点。
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

	"scope-chat-go/internal/config"
	"scope-chat-go/internal/handler"
	"scope-chat-go/internal/hub"
	"scope-chat-go/internal/middleware"
	"scope-chat-go/internal/model"
	"scope-chat-go/internal/pipeline"
	"scope-chat-go/internal/repository"
	"scope-chat-go/internal/service"
	"scope-chat-go/pkg/database"
	"scope-chat-go/pkg/es"
	"scope-chat-go/pkg/kafka"
	"scope-chat-go/pkg/llm"
	"scope-chat-go/pkg/log"
	"scope-chat-go/pkg/records"
	"scope-chat-go/pkg/storage"
	"scope-chat-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		panic(err)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、MinIO、ES、Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 审计表结构迁移
	if err := database.DB.AutoMigrate(&model.EstimateLog{}, &model.NotificationLog{}); err != nil {
		log.Fatal("审计表迁移失败", err)
	}

	// 4. 初始化 Repository
	sessionRepo := repository.NewSessionRepository(database.RDB)
	auditRepo := repository.NewAuditRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.SessionTokenExpireDays, cfg.JWT.AdminTokenExpireHours)
	llmClient := llm.NewClient(cfg.LLM)
	recordsClient := records.NewClient(cfg.Records)
	eventHub := hub.New()

	estimateService := service.NewEstimateService(llmClient, cfg.LLM, cfg.Catalog, auditRepo)
	summaryService := service.NewSummaryService(
		llmClient,
		recordsClient,
		cfg.LLM,
		cfg.Email,
		auditRepo,
		func(ctx context.Context, doc model.SummaryDocument) error {
			return es.IndexSummary(ctx, cfg.Elasticsearch.IndexName, doc)
		},
		kafka.ProduceArchiveTask,
	)
	sessionService := service.NewSessionService(sessionRepo, estimateService, summaryService, eventHub, cfg.Catalog)
	adminService := service.NewAdminService(cfg.Admin, jwtManager, auditRepo,
		func(ctx context.Context, query string, size int) ([]model.SummaryDocument, error) {
			return es.SearchSummaries(ctx, cfg.Elasticsearch.IndexName, query, size)
		})

	// 6. 初始化图片归档管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(cfg.MinIO)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// 无状态代理端点（公开访问）
		scope := apiV1.Group("/scope")
		{
			scope.POST("/estimate", handler.NewEstimateHandler(estimateService).Estimate)
			scope.POST("/summary", handler.NewSummaryHandler(summaryService).Summarize)
		}

		// 会话路由组
		sessions := apiV1.Group("/sessions")
		{
			sessionHandler := handler.NewSessionHandler(sessionService, jwtManager)
			// 创建会话无需认证
			sessions.POST("", sessionHandler.Create)

			// 其余会话操作需要会话令牌
			authed := sessions.Group("/")
			authed.Use(middleware.SessionAuthMiddleware(jwtManager))
			{
				authed.GET("/me", sessionHandler.Get)
				authed.POST("/messages", sessionHandler.SubmitMessage)
				authed.PUT("/contact", sessionHandler.UpdateContact)
				authed.POST("/summary", sessionHandler.SendSummary)
			}
		}

		// 管理端路由组
		admin := apiV1.Group("/admin")
		{
			adminHandler := handler.NewAdminHandler(adminService)
			admin.POST("/login", adminHandler.Login)

			authed := admin.Group("/")
			authed.Use(middleware.AdminAuthMiddleware(jwtManager))
			{
				authed.GET("/estimates", adminHandler.ListEstimates)
				authed.GET("/summaries/search", adminHandler.SearchSummaries)
			}
		}
	}

	// 会话事件 (WebSocket)
	r.GET("/ws/sessions/:token", handler.NewWSHandler(eventHub, jwtManager).Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个循环，会随进程退出自然结束。
	log.Info("服务已优雅关闭")
}
