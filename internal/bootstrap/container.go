package bootstrap

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"lupa-be/internal/config"
	"lupa-be/internal/controller"
	"lupa-be/internal/handler"
	"lupa-be/internal/pkg/logger"
	"lupa-be/internal/repository/memory"
	"lupa-be/internal/repository/unitofwork"
	"lupa-be/internal/service"
	"lupa-be/internal/websocket"
	"lupa-be/pkg/blob"
	"lupa-be/pkg/crawl"
	"lupa-be/pkg/embedding"
	"lupa-be/pkg/embedding/jina"
	"lupa-be/pkg/events"
	"lupa-be/pkg/ingestion"
	"lupa-be/pkg/kv"
	"lupa-be/pkg/parser"
	"lupa-be/pkg/secret"
	"lupa-be/pkg/taskqueue"
	"lupa-be/pkg/vector"

	pktNats "lupa-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const syncDurable = "lupa-sync"

type Container struct {
	// Controllers
	ProjectController    controller.IProjectController
	DocumentController   controller.IDocumentController
	DeploymentController controller.IDeploymentController

	// WebSockets & Sync
	SyncHandler  *handler.SyncHandler
	WebSocketHub *websocket.Hub

	// Background Services (Exposed for main.go to run)
	IngestionService service.IIngestionService
	RefreshScheduler *service.RefreshScheduler
	SyncService      *service.SyncService

	Logger logger.ILogger

	natsSub *pktNats.Subscriber
	closers []func()
}

// NewContainer wires every component. db may be nil when the memory driver
// is configured.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c := &Container{Logger: sysLogger}

	var uowFactory unitofwork.RepositoryFactory
	if cfg.Database.Driver == "memory" || db == nil {
		uowFactory = memory.NewRepositoryFactory(memory.NewDatabase())
		log.Printf("[INFO] Using in-memory repositories")
	} else {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}

	// 2. Key-value store and Redis
	var rdb *redis.Client
	var pointers kv.Store = kv.NewMemoryStore()
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.Redis.URL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		pointers = kv.NewRedisStore(rdb)
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	// 3. WebSocket hub and event bus
	wsLogger := logger.NewIsolatedLogger("logs/sync.log")
	c.WebSocketHub = websocket.NewHub(rdb, wsLogger)
	c.SyncService = service.NewSyncService(c.WebSocketHub, wsLogger)

	publisher := c.SyncService.Publisher()
	if cfg.Nats.URL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.Nats.URL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			publisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
		natsSub, err := pktNats.NewSubscriber(cfg.Nats.URL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			c.natsSub = natsSub
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// 4. Blob store
	var blobs blob.Store
	switch cfg.Blob.Driver {
	case "http":
		blobs = blob.NewHTTPStore(cfg.Blob.BaseURL, cfg.Blob.Token, httpClient)
	default:
		blobs = blob.NewLocalStore(cfg.Blob.LocalRoot, cfg.Blob.BaseURL)
	}

	// 5. Task queue
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermillLogger)
	queue := taskqueue.New(pubSub, pubSub, sysLogger)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 6. Ingestion collaborators
	keyPool := crawl.NewKeyPool(cfg.Crawl.Keys...)
	crawler := crawl.NewClient(keyPool,
		crawl.WithBaseURL(cfg.Crawl.BaseURL),
		crawl.WithHTTPClient(httpClient),
		crawl.WithRate(cfg.Crawl.RatePerSecond),
	)

	var parserOpts []parser.LlamaParseOption
	if cfg.Parser.LlamaParseURL != "" {
		parserOpts = append(parserOpts, parser.WithLlamaParseURL(cfg.Parser.LlamaParseURL))
	}
	parsers, err := parser.NewDefaultRegistry(blobs.Get, cfg.Parser.LlamaParseKey, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("parser registry: %w", err)
	}

	embedder := newEmbeddingProvider(cfg.Embedding)

	resolver, err := newVectorResolver(cfg.Vector, pointers, httpClient)
	if err != nil {
		return nil, err
	}

	// 7. Services
	snapshotStore := service.NewSnapshotStore(uowFactory, publisher, sysLogger)
	steps := &ingestion.Steps{
		HTTPClient: httpClient,
		Blobs:      blobs,
		Parsers:    parsers,
		Crawler:    crawler,
		Indexer:    service.NewSnapshotIndexer(uowFactory, embedder, sysLogger),
		ScrapeOptions: crawl.ScrapeOptions{
			Timeout: cfg.Crawl.Timeout,
			WaitFor: cfg.Crawl.WaitFor,
		},
	}
	orchestrator := ingestion.NewOrchestrator(snapshotStore, steps, ingestion.WithLogger(sysLogger))
	limiter := ingestion.NewLimiter(cfg.Ingestion.GeneralConcurrency, cfg.Ingestion.WebsiteConcurrency)

	var deploymentOpts []service.DeploymentServiceOption
	if resolver != nil {
		deploymentOpts = append(deploymentOpts, service.WithVectorResolver(resolver))
	}

	projectService := service.NewProjectService(uowFactory, sysLogger)
	documentService := service.NewDocumentService(uowFactory, queue, blobs, keyPool.Len(), sysLogger)
	deploymentService := service.NewDeploymentService(uowFactory, pointers, publisher, queue, blobs, sysLogger, deploymentOpts...)
	searchService := service.NewSearchService(uowFactory, resolver, embedder, sysLogger)

	c.IngestionService = service.NewIngestionService(queue, orchestrator, limiter, deploymentService, sysLogger)
	c.RefreshScheduler = service.NewRefreshScheduler(documentService, cfg.Ingestion.RefreshInterval, sysLogger)

	// 8. Controllers
	c.ProjectController = controller.NewProjectController(projectService)
	c.DocumentController = controller.NewDocumentController(documentService, projectService)
	c.DeploymentController = controller.NewDeploymentController(deploymentService, searchService, projectService)
	c.SyncHandler = handler.NewSyncHandler(c.WebSocketHub, projectService, wsLogger)

	return c, nil
}

// Start launches the background workers. They stop when ctx is cancelled.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if c.natsSub != nil {
		if err := c.natsSub.Subscribe(ctx, events.Subject(">"), syncDurable, c.SyncService.Forward); err != nil {
			return fmt.Errorf("subscribe sync events: %w", err)
		}
	}

	if err := c.IngestionService.Start(ctx); err != nil {
		return err
	}
	go c.RefreshScheduler.Run(ctx)
	return nil
}

func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func newEmbeddingProvider(cfg config.EmbeddingConfig) embedding.EmbeddingProvider {
	switch cfg.Provider {
	case "ollama":
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.OllamaModel)
		return embedding.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)
	case "jina":
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
		return jina.NewJinaProvider(cfg.JinaKey)
	case "gemini":
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
		return embedding.NewGeminiProvider(cfg.GeminiKey)
	default:
		log.Printf("[INFO] No embedding provider configured, pgvector search disabled")
		return nil
	}
}

// newVectorResolver returns nil when no management API is configured.
func newVectorResolver(cfg config.VectorConfig, pointers kv.Store, httpClient *http.Client) (*vector.Resolver, error) {
	if cfg.ManagementURL == "" {
		return nil, nil
	}
	cipher, err := secret.NewCipher(cfg.CacheSecret)
	if err != nil {
		return nil, fmt.Errorf("vector cache cipher: %w", err)
	}
	cache := vector.NewConfigCache(pointers, cipher, vector.SystemClock, cfg.CacheTTL)
	mgmt := vector.NewManagementClient(cfg.ManagementURL, cfg.APIKey, httpClient)
	return vector.NewResolver(cache, pointers, mgmt, httpClient), nil
}
