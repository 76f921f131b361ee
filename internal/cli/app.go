package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"

	"messenger-connector/internal/config"
	"messenger-connector/internal/domain/entities"
	"messenger-connector/internal/domain/interfaces/repository"
	Iservices "messenger-connector/internal/domain/interfaces/services"
	"messenger-connector/internal/infra/cache"
	"messenger-connector/internal/infra/handlers"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/infra/metrics"
	"messenger-connector/internal/infra/provider"
	repo "messenger-connector/internal/infra/repository"
	"messenger-connector/internal/infra/routes"
	"messenger-connector/internal/infra/services"
	"messenger-connector/internal/infra/vectorstore"
	"messenger-connector/internal/middleware"
	client "messenger-connector/internal/pkg"
	"messenger-connector/internal/prompts"
)

// app holds the wired components of the webhook server.
type app struct {
	router    *mux.Router
	webhooks  *handlers.HttpHandlers
	retrieval *services.RetrievalService
	closers   []func() error
}

func (a *app) close(log *logger.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn(fmt.Sprintf("Failed to release resource: %v", err))
		}
	}
}

type stores struct {
	conversations repository.Repository[entities.Conversation]
	products      repository.Repository[entities.Product]
	orders        repository.Repository[entities.Order]
	workers       repository.Repository[entities.Worker]
	summaries     repository.Repository[entities.Summary]
}

func newStores(ctx context.Context, cfg *config.Config, httpClient *http.Client, log *logger.Logger, m *metrics.Metrics, a *app) (stores, error) {
	if cfg.StoreBackend == config.StoreMongo {
		mongoClient, err := client.MongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return stores{}, err
		}
		a.closers = append(a.closers, func() error { return mongoClient.Disconnect(context.Background()) })
		return mongoStores(mongoClient.Database(cfg.MongoDatabase), m), nil
	}

	airtable := repo.AirtableConfig{
		APIURL:   cfg.AirtableAPIURL,
		APIKey:   cfg.AirtableAPIKey,
		BaseID:   cfg.AirtableBaseID,
		Attempts: uint(cfg.SendRetries),
	}
	return stores{
		conversations: repo.NewAirtableRepository[entities.Conversation](airtable, httpClient, log, m),
		products:      repo.NewAirtableRepository[entities.Product](airtable, httpClient, log, m),
		orders:        repo.NewAirtableRepository[entities.Order](airtable, httpClient, log, m),
		workers:       repo.NewAirtableRepository[entities.Worker](airtable, httpClient, log, m),
		summaries:     repo.NewAirtableRepository[entities.Summary](airtable, httpClient, log, m),
	}, nil
}

func mongoStores(db *mongo.Database, m *metrics.Metrics) stores {
	return stores{
		conversations: repo.NewMongoRepository[entities.Conversation](db, m),
		products:      repo.NewMongoRepository[entities.Product](db, m),
		orders:        repo.NewMongoRepository[entities.Order](db, m),
		workers:       repo.NewMongoRepository[entities.Worker](db, m),
		summaries:     repo.NewMongoRepository[entities.Summary](db, m),
	}
}

// newRetrieval opens the embedding cache and returns the retrieval service,
// without building the index.
func newRetrieval(cfg *config.Config, log *logger.Logger, m *metrics.Metrics, a *app) (*services.RetrievalService, error) {
	embedder := services.NewEmbeddingService(services.EmbeddingConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.EmbeddingModel,
		Timeout: cfg.HTTPTimeout,
	}, log, m)

	var embeddingCache *vectorstore.Cache
	if cfg.EmbeddingCachePath != "" {
		var err error
		embeddingCache, err = vectorstore.OpenCache(cfg.EmbeddingCachePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, embeddingCache.Close)
	}

	splitter := vectorstore.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	return services.NewRetrievalService(cfg.KnowledgeDir, cfg.TopK, splitter, embedder, embeddingCache, log), nil
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{}
	m := metrics.Registry(cfg.MetricsNamespace)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	p, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	st, err := newStores(ctx, cfg, httpClient, log, m, a)
	if err != nil {
		return nil, err
	}

	chat := func(kind, model string) *services.QueryAIService {
		return services.NewQueryAIService(services.ChatConfig{
			APIKey:      cfg.ChatAPIKey,
			BaseURL:     cfg.ChatBaseURL,
			Model:       model,
			Temperature: cfg.ChatTemperature,
			Timeout:     cfg.HTTPTimeout,
			Kind:        kind,
		}, log, m)
	}
	replyAI := chat("reply", cfg.ChatModel)

	intentService, err := services.NewIntentService(chat("extraction", cfg.ChatModel), p, log)
	if err != nil {
		a.close(log)
		return nil, err
	}

	messenger := provider.NewMessengerProvider(provider.MessengerConfig{
		GraphAPIURL:     cfg.GraphAPIURL,
		GraphAPIVersion: cfg.GraphAPIVersion,
		PageAccessToken: cfg.PageAccessToken,
		Attempts:        uint(cfg.SendRetries),
	}, log, httpClient, m)

	channelService := services.NewChannelService(
		log,
		services.NewConversationService(st.conversations, cfg.Tables.Conversations, log),
		intentService,
		replyAI,
		services.NewOrderService(st.products, st.orders, cfg.Tables.Products, cfg.Tables.Orders, log),
		services.NewWorkerService(st.workers, cfg.Tables.Workers, log),
		services.NewSummaryService(st.summaries, chat("summary", cfg.ChatModel), p, cfg.Tables.Summaries, cfg.SummaryThreshold, cfg.HistoryWindow, log),
		messenger,
		p,
	)
	channelService.HistoryWindow = cfg.HistoryWindow

	if cfg.RetrievalEnabled() {
		retrieval, err := newRetrieval(cfg, log, m, a)
		if err != nil {
			a.close(log)
			return nil, err
		}
		if _, err := retrieval.Build(ctx); err != nil {
			log.Warn(fmt.Sprintf("Knowledge index unavailable, answering without retrieval: %v", err))
		}
		a.retrieval = retrieval
		channelService.RetrievalService = retrieval

		if cfg.DraftEnabled() {
			channelService.DraftAIService = services.NewQueryAIService(services.ChatConfig{
				APIKey:  cfg.OpenAIAPIKey,
				BaseURL: cfg.OpenAIBaseURL,
				Model:   cfg.DraftModel,
				Timeout: cfg.HTTPTimeout,
				Kind:    "draft",
			}, log, m)
		}
	}

	var deduplicator Iservices.IDeduplicator
	if cfg.RedisAddr != "" {
		redisDedup := cache.NewRedisDeduplicator(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.DedupTTL, log)
		if err := redisDedup.Ping(ctx); err != nil {
			log.Warn(fmt.Sprintf("Redis unreachable, duplicates may be processed: %v", err))
		}
		a.closers = append(a.closers, redisDedup.Close)
		deduplicator = redisDedup
	} else {
		deduplicator = cache.NewMemoryDeduplicator(cfg.DedupTTL)
	}

	httpHandlers := handlers.NewHttpHandlers(log, cfg.VerifyToken, cfg.AppSecret, cfg.AsyncProcessing, channelService, deduplicator, m)

	a.webhooks = httpHandlers
	a.router = mux.NewRouter()
	a.router.Use(middleware.LoggingMiddleware(log, m))
	routes.NewRoutes(a.router, httpHandlers).Init()

	return a, nil
}
