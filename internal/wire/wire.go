//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"storybook-ai-api/internal/application/project"
	appprompt "storybook-ai-api/internal/application/prompt"
	"storybook-ai-api/internal/application/story"
	"storybook-ai-api/internal/application/usage"
	"storybook-ai-api/internal/application/visual"
	"storybook-ai-api/internal/config"
	"storybook-ai-api/internal/domain/repository"
	"storybook-ai-api/internal/domain/service"
	"storybook-ai-api/internal/infrastructure/imagegen"
	"storybook-ai-api/internal/infrastructure/llm"
	"storybook-ai-api/internal/infrastructure/persistence/jsonfile"
	"storybook-ai-api/internal/infrastructure/persistence/memstore"
	redisstore "storybook-ai-api/internal/infrastructure/persistence/redis"
	"storybook-ai-api/internal/interfaces/http/handler"
	"storybook-ai-api/internal/interfaces/http/middleware"
	"storybook-ai-api/internal/interfaces/http/router"
	wfchain "storybook-ai-api/internal/workflow/chain"
	workflowport "storybook-ai-api/internal/workflow/port"
	"storybook-ai-api/pkg/logger"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		DataSet,
		LLMSet,
		StorySet,
		VisualSet,
		RouterSet,
	)
	return nil, nil, nil
}

// DataSet 存储层提供者集合
var DataSet = wire.NewSet(
	ProvideRedisClient,
	ProvideSessionStore,
	ProvideProjectRepository,
)

// LLMSet 模型工厂与工作流链提供者集合
var LLMSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	usage.NewRecorder,
	wire.Bind(new(service.LLMUsageRecorder), new(*usage.Recorder)),
	wfchain.NewStoryTextChain,
	wfchain.NewSceneSummaryChain,
	wfchain.NewCharacterExtractChain,
	wfchain.NewCharacterProfileChain,
)

// StorySet 故事生成与角色抽取提供者集合
var StorySet = wire.NewSet(
	ProvideGenerator,
	story.NewExtractor,
)

// VisualSet 视觉一致性提供者集合
var VisualSet = wire.NewSet(
	ProvideImageClient,
	ProvideComposer,
	ProvideSceneSummarizer,
	wire.Bind(new(visual.SceneSummarizer), new(*appprompt.SceneSummarizer)),
	ProvideOrchestrator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	project.NewService,
	ProvideHealthHandler,
	handler.NewStoryHandler,
	handler.NewProjectHandler,
	handler.NewVisualHandler,
	wire.Struct(new(router.Handlers), "*"),
	ProvideRateLimiter,
	router.New,
)

// ProvideRedisClient 提供 Redis 客户端
// 会话驱动为 memory 且未启用限流时返回 nil，不建立连接
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redisstore.Client, func(), error) {
	if cfg.Session.Driver != "redis" && !cfg.Security.RateLimit.Enabled {
		logger.Info(ctx, "redis disabled, using in-process session store")
		return nil, func() {}, nil
	}

	client, err := redisstore.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideSessionStore 根据配置选择会话存储驱动
func ProvideSessionStore(cfg *config.Config, client *redisstore.Client) repository.SessionStore {
	if cfg.Session.Driver == "redis" && client != nil {
		return redisstore.NewSessionStore(client, cfg.Session.KeyPrefix, cfg.Session.TTL)
	}
	return memstore.NewSessionStore()
}

// ProvideProjectRepository 提供项目仓储（JSON 文档目录）
func ProvideProjectRepository(cfg *config.Config) (repository.ProjectRepository, error) {
	return jsonfile.NewProjectRepository(cfg.Storage.DataDir)
}

// ProvideGenerator 提供故事生成器
func ProvideGenerator(cfg *config.Config, textChain *wfchain.StoryTextChain) *story.Generator {
	return story.NewGenerator(textChain, cfg.Story.DefaultNumPages, cfg.Story.DefaultWordsPerPage)
}

// ProvideImageClient 提供图像生成客户端
func ProvideImageClient(cfg *config.Config) (service.ImageConversationClient, error) {
	return imagegen.NewClient(cfg.ImageGen)
}

// ProvideComposer 提供图像提示词组装器
func ProvideComposer(cfg *config.Config) *appprompt.Composer {
	return appprompt.NewComposer(cfg.Story.MaxPromptChars)
}

// ProvideSceneSummarizer 提供带本地缓存的场景摘要器
func ProvideSceneSummarizer(cfg *config.Config, chain *wfchain.SceneSummaryChain) *appprompt.SceneSummarizer {
	adapter := story.NewSceneSummaryAdapter(chain, cfg.LLM.DefaultProvider, "")
	return appprompt.NewSceneSummarizer(adapter, cfg.Cache.SceneSummaryTTL)
}

// ProvideOrchestrator 提供视觉上下文编排器
func ProvideOrchestrator(
	client service.ImageConversationClient,
	store repository.SessionStore,
	composer *appprompt.Composer,
	summarizer visual.SceneSummarizer,
	cfg *config.Config,
) *visual.Orchestrator {
	return visual.NewOrchestrator(client, store, composer, summarizer, cfg.ImageGen.Size, cfg.ImageGen.Quality)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, client *redisstore.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(client, cfg.Storage.DataDir, cfg.App.Version)
}

// ProvideRateLimiter 提供限流器，Redis 未启用时返回 nil（中间件放行）
func ProvideRateLimiter(client *redisstore.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redisstore.NewRateLimiter(client)
}
