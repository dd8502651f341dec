// Package kbsvc provides the tenant knowledge base server implementation.
package kbsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/tenant-kb/internal/kb/biz"
	"github.com/kart-io/tenant-kb/internal/kb/handler"
	"github.com/kart-io/tenant-kb/internal/kb/metrics"
	"github.com/kart-io/tenant-kb/internal/kb/router"
	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/component/database"
	"github.com/kart-io/tenant-kb/pkg/component/milvus"
	"github.com/kart-io/tenant-kb/pkg/component/redis"
	"github.com/kart-io/tenant-kb/pkg/infra/app"
	"github.com/kart-io/tenant-kb/pkg/infra/middleware"
	"github.com/kart-io/tenant-kb/pkg/infra/pool"
	"github.com/kart-io/tenant-kb/pkg/infra/server"
	"github.com/kart-io/tenant-kb/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/tenant-kb/pkg/llm/ollama"
	_ "github.com/kart-io/tenant-kb/pkg/llm/openai"
	"github.com/kart-io/tenant-kb/pkg/llm/resilience"
	cacheopts "github.com/kart-io/tenant-kb/pkg/options/cache"
	dbopts "github.com/kart-io/tenant-kb/pkg/options/database"
	httpopts "github.com/kart-io/tenant-kb/pkg/options/http"
	kbopts "github.com/kart-io/tenant-kb/pkg/options/kb"
	llmopts "github.com/kart-io/tenant-kb/pkg/options/llm"
	logopts "github.com/kart-io/tenant-kb/pkg/options/logger"
	milvusopts "github.com/kart-io/tenant-kb/pkg/options/milvus"
)

// Name is the name of the application.
const Name = "tenant-kb"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	DatabaseOptions  *dbopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	KBOptions        *kbopts.Options
	CacheOptions     *cacheopts.Options
	// CORSOrigins 为空时不启用 CORS。
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// Server represents the knowledge base server.
type Server struct {
	srv         *server.Manager
	engine      *gin.Engine
	milvus      *milvus.Client
	collections *biz.CollectionManager
	validate    bool

	backgroundPool *pool.Pool
	indexPool      *pool.Pool
	closers        []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting tenant knowledge base service...")

	s := &Server{validate: cfg.KBOptions.ValidateOnStartup}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	// 2. 初始化 Redis 客户端（答案缓存与向量缓存共用），连接失败时降级
	var redisClient *goredis.Client
	if cfg.CacheOptions.Active() {
		rc, err := redis.New(ctx, cfg.CacheOptions.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		} else {
			redisClient = rc.Client()
			s.closers = append(s.closers, func() { _ = rc.Close() })
			logger.Infow("Redis cache initialized",
				"addr", cfg.CacheOptions.Redis.String(),
				"answer_ttl", cfg.CacheOptions.TTL,
				"embedding_cache", cfg.CacheOptions.EmbeddingEnabled,
			)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 3. 初始化 LLM 供应商
	rawEmbedder, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	var embedder llm.EmbeddingProvider = resilience.WrapEmbedding(rawEmbedder, nil, nil)
	if redisClient != nil && cfg.CacheOptions.EmbeddingEnabled {
		embedder = llm.NewCachedEmbeddingProvider(embedder, redisClient, &llm.EmbeddingCacheConfig{
			TTL:       cfg.CacheOptions.EmbeddingTTL,
			KeyPrefix: "kb:emb:" + cfg.EmbeddingOptions.Model + ":",
		})
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	rawChat, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	chatProvider := resilience.WrapChat(rawChat, nil, nil)
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 4. 初始化 Milvus 客户端与向量存储，首次使用时才建立连接
	milvusClient, err := milvus.New(cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	s.milvus = milvusClient
	s.closers = append(s.closers, func() { _ = milvusClient.Close(context.Background()) })
	vectorStore := store.NewMilvusStore(milvusClient, embedder)
	logger.Infow("Vector store initialized", "address", cfg.MilvusOptions.Address, "lazy", true)

	// 5. 初始化租户数据库
	dbClient, err := database.New(ctx, cfg.DatabaseOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.closers = append(s.closers, func() { _ = dbClient.Close() })
	tenants := store.NewTenantStore(dbClient.DB())
	if cfg.DatabaseOptions.AutoMigrate {
		if err := tenants.AutoMigrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate tenant tables: %w", err)
		}
	}
	logger.Infow("Tenant store initialized", "driver", cfg.DatabaseOptions.Driver)

	// 6. 初始化 Biz 层
	m := metrics.Global()
	collections := biz.NewCollectionManager(vectorStore, tenants, m)
	documents := biz.NewDocumentIndex(collections, vectorStore, m)
	entities := biz.NewEntityStore(collections, vectorStore, cfg.KBOptions.EntityAlpha, m)
	searchRouter := biz.NewSearchRouter(collections, vectorStore, cfg.KBOptions.RouterAlpha, m)
	composer := biz.NewComposer(tenants, searchRouter, entities, chatProvider, biz.ComposerConfig{
		TopK:              cfg.KBOptions.TopK,
		StructuredTopK:    cfg.KBOptions.StructuredTopK,
		UseStructuredData: cfg.KBOptions.UseStructuredData,
		Temperature:       cfg.KBOptions.Temperature,
		Defaults: model.TenantDefaults{
			Language:        cfg.KBOptions.DefaultLanguage,
			Tone:            cfg.KBOptions.DefaultTone,
			MaxAnswerTokens: cfg.KBOptions.MaxTokens,
		},
	})
	var answerCache *biz.AnswerCache
	if redisClient != nil && cfg.CacheOptions.Enabled {
		answerCache = biz.NewAnswerCache(redisClient, &biz.AnswerCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.TTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix,
		})
	}
	chatService := biz.NewChatService(composer, chatProvider, answerCache, m)
	s.collections = collections
	logger.Infow("Knowledge base services initialized",
		"top_k", cfg.KBOptions.TopK,
		"structured", cfg.KBOptions.UseStructuredData,
		"answer_cache", answerCache != nil,
	)

	// 7. 初始化协程池
	if s.backgroundPool, err = pool.NewPool("kb-background", pool.BackgroundPool, nil); err != nil {
		return nil, fmt.Errorf("failed to create background pool: %w", err)
	}
	if s.indexPool, err = pool.NewPool("kb-index", pool.IndexPool, nil); err != nil {
		return nil, fmt.Errorf("failed to create index pool: %w", err)
	}

	// 8. 初始化 Handler 层与 HTTP 服务
	kbHandler := handler.New(handler.Deps{
		Collections: collections,
		Documents:   documents,
		Entities:    entities,
		Router:      searchRouter,
		Chat:        chatService,
		Metrics:     m,
		IndexPool:   s.indexPool,
	})

	mw := middleware.Options{
		Timeout: middleware.TimeoutConfig{
			Timeout:      cfg.HTTPOptions.RequestTimeout,
			SkipSuffixes: []string{router.StreamSuffix},
		},
	}
	if len(cfg.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig
		cors.AllowOrigins = cfg.CORSOrigins
		mw.CORS = &cors
	}
	httpServer := server.NewHTTPServer(cfg.HTTPOptions, middleware.Chain(mw)...)
	router.Register(httpServer.Engine(), kbHandler)
	s.engine = httpServer.Engine()

	s.srv = server.NewManager(
		server.WithServer(httpServer),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	)

	ok = true
	logger.Info("Tenant knowledge base service is ready")
	return s, nil
}

// Run starts the server and blocks until ctx ends or a termination signal
// arrives.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 预热连接与校验都在后台执行，不阻塞服务启动
	err := s.backgroundPool.SubmitWithContext(ctx, func(ctx context.Context) {
		if err := s.milvus.Connect(ctx); err != nil {
			logger.Warnw("milvus unreachable, requests degrade until it recovers", "error", err.Error())
			return
		}
		if s.validate {
			s.collections.ValidateAll(ctx)
		}
	})
	if err != nil {
		logger.Warnw("failed to schedule milvus warm-up", "error", err.Error())
	}
	return s.srv.Run(ctx)
}

func (s *Server) close() {
	for _, p := range []*pool.Pool{s.indexPool, s.backgroundPool} {
		if p == nil {
			continue
		}
		if err := p.Release(10 * time.Second); err != nil {
			logger.Warnw("worker pool release timed out", "name", p.Name(), "error", err.Error())
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  HTTP: %s\n", cfg.HTTPOptions.Addr)
	fmt.Printf("  Milvus: %s\n", cfg.MilvusOptions.Address)
	fmt.Printf("  Database: %s\n", cfg.DatabaseOptions.Driver)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
}
