package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-match-go/internal/api/handler"
	"resume-match-go/internal/api/router"
	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	appCoreLogger "resume-match-go/internal/logger"
	"resume-match-go/internal/matching"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"           //nolint:gochecknoglobals
	serviceName = "resume-match-go" //nolint:gochecknoglobals
)

// @title Resume Match API
// @version 1.0
// @description 简历与岗位匹配打分服务
// @BasePath /api/v1
func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appCoreLogger.Init(appCoreLogger.Config{Level: "info", Format: "json"})
		appCoreLogger.Fatal().Err(err).Msg("加载配置失败")
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 追踪导出器（未配置端点时为noop）
	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		glog.Fatalf("初始化追踪失败: %v", err)
	}
	defer func() {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFlush()
		if err := shutdownTracing(flushCtx); err != nil {
			glog.Warnf("追踪导出器关闭失败: %v", err)
		}
	}()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	if storageManager.Qdrant == nil {
		glog.Fatal("向量索引不可用，匹配服务无法启动")
	}
	if storageManager.MySQL == nil {
		glog.Fatal("文档存储不可用，匹配服务无法启动")
	}
	glog.Info("存储服务初始化成功")

	embedder, err := embedding.NewAliyunEmbedder(cfg.Embedding)
	if err != nil {
		glog.Fatalf("初始化Embedder失败: %v", err)
	}
	glog.Info("Embedder初始化成功")

	// 技能向量缓存：进程内 + Redis（Redis不可用时退化为进程内）
	var skillStore matching.SkillVectorStore
	if storageManager.Redis != nil {
		skillStore = storageManager.Redis
	}
	skillEmbeddings := matching.NewSkillEmbeddingCache(embedder, skillStore)

	retriever := matching.NewRetriever(storageManager.Qdrant)

	skillMatcher := matching.NewSkillMatcher(retriever, skillEmbeddings, matching.SkillMatcherConfig{
		SemanticThreshold: cfg.Matcher.SemanticThreshold,
		EvidenceThreshold: cfg.Matcher.EvidenceThreshold,
		TargetK:           cfg.Matcher.TargetK,
		Lambda:            cfg.Matcher.MMRLambda,
	})

	matcher, err := matching.NewMatcher(
		storageManager.MySQL,
		storageManager.Qdrant,
		retriever,
		embedder,
		skillMatcher,
		matching.WithWeights(matching.Weights{
			Semantic: cfg.Matcher.SemanticWeight,
			Keyword:  cfg.Matcher.KeywordWeight,
			Years:    cfg.Matcher.YearsWeight,
		}),
		matching.WithCandidatePoolSize(cfg.Matcher.CandidatePoolSize),
	)
	if err != nil {
		glog.Fatalf("初始化匹配器失败: %v", err)
	}
	glog.Info("匹配器初始化成功")

	matchHandler := handler.NewMatchHandler(matcher, retriever, embedder)

	// HTTP入口span，与存储层的客户端span串成完整链路
	serverTracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		serverTracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, &cfg.Server, matchHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

func initLogger(cfg *config.Config) {
	appCoreLogger.Init(cfg.Logger)
	appCoreLogger.Logger = appCoreLogger.Logger.With().
		Str("app", serviceName).
		Str("version", version).
		Logger()

	// 把Hertz框架日志接到同一个zerolog实例上
	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
	if cfg.Logger.Level == "debug" {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}
}
