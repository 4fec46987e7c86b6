package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-research-be/internal/config"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/memory"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/internal/service"
	"ai-research-be/pkg/embedding"
	"ai-research-be/pkg/llm/factory"
	"ai-research-be/pkg/rag/answer"
	"ai-research-be/pkg/rag/refiner"
	"ai-research-be/pkg/rag/retriever"
	"ai-research-be/pkg/rag/threadmgr"
	"ai-research-be/pkg/threads"
	"ai-research-be/pkg/vectorstore"

	pktNats "ai-research-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Function-level API surface
	ResearchService   service.IResearchService
	LiveSourceService service.ILiveSourceService

	// Background Services (Exposed for main.go to run)
	ConsumerService  service.IConsumerService
	IngestionService service.IIngestionService
	ThreadManager    *threadmgr.Manager
	VectorStore      *vectorstore.Store

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Embedding Provider based on Config
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	// LLM Provider for the stateless fallback completion path
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// Thread cache backend: in-process by default, Redis when configured
	// so multiple replicas share one thread map.
	var threadCache memory.ThreadCache
	if cfg.App.UseRedis {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		threadCache = memory.NewRedisThreadCache(rdb)
		log.Printf("[INFO] Using Thread Cache: REDIS")
	} else {
		threadCache = memory.NewThreadCacheRepository()
		log.Printf("[INFO] Using Thread Cache: MEMORY")
	}

	// 3. Core engine
	vectorStore := vectorstore.NewStore(
		uowFactory,
		embeddingProvider,
		sysLogger,
		vectorstore.WithChunking(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
	)

	remoteAPI := threads.NewClient(
		cfg.Assistant.BaseURL,
		cfg.Assistant.APIKey,
		cfg.Assistant.AssistantID,
	)

	threadManager := threadmgr.NewManager(
		threadCache,
		uowFactory,
		remoteAPI,
		llmProvider,
		memory.NewFallbackMessageStore(),
		sysLogger,
		threadmgr.Config{
			PollAttempts: cfg.Threads.PollAttempts,
			PollDelay:    time.Duration(cfg.Threads.PollDelaySeconds) * time.Second,
		},
	)

	ret := retriever.NewRetriever(
		vectorStore,
		uowFactory,
		sysLogger,
		retriever.WithMaxContextLength(cfg.Retrieval.MaxContextLength),
	)
	ref := refiner.NewRefiner(threadManager, sysLogger)
	assistant := answer.NewAssistant(threadManager, sysLogger)

	// 4. Services
	publisherService := service.NewPublisherService(cfg.Keys.LiveEntryTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.LiveEntryTopic,
		vectorStore,
	)
	ingestionService := service.NewIngestionService(uowFactory, publisherService, sysLogger)
	liveSourceService := service.NewLiveSourceService(uowFactory, vectorStore, natsPub, sysLogger)

	researchService := service.NewResearchService(
		uowFactory,
		vectorStore,
		ret,
		ref,
		assistant,
		threadManager,
		sysLogger,
	)

	return &Container{
		ResearchService:   researchService,
		LiveSourceService: liveSourceService,
		ConsumerService:   consumerService,
		IngestionService:  ingestionService,
		ThreadManager:     threadManager,
		VectorStore:       vectorStore,
		Logger:            sysLogger,
	}
}
