package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"pricing_server/adapter/out/ai"
	"pricing_server/adapter/out/attachment"
	"pricing_server/adapter/out/graph"
	"pricing_server/adapter/out/mongodb"
	"pricing_server/adapter/out/persistence"
	"pricing_server/adapter/out/provider/gmail"
	"pricing_server/adapter/out/realtime"
	"pricing_server/config"
	"pricing_server/core/port/out"
	"pricing_server/core/service/classifier"
	"pricing_server/core/service/extractor"
	"pricing_server/core/service/resolver"
	"pricing_server/core/service/scheduler"
	"pricing_server/infra/database"
	"pricing_server/pkg/cache"
	"pricing_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client
	Neo4j   neo4j.DriverWithContext

	// Repositories
	TaskRepo       out.TaskRepository
	TaskDomainRepo out.TaskDomainRepository
	PriceRepo      out.ResolvedPriceRepository

	// Evidence side channels (nil when the backing store is not configured)
	EvidenceArchive out.EvidenceArchive
	ContactGraph    out.ContactGraph

	// Mailbox fleet
	Fleet *gmail.Fleet

	// Extraction
	Oracle      *ai.Extractor
	Parser      *attachment.Parser
	LinkFetcher *attachment.LinkFetcher

	// Cache
	Cache *cache.RedisCache

	// Realtime
	RealtimeAdapter *realtime.SSEAdapter
	SSEHub          *realtime.SSEHub

	// Core services
	Classifier        *classifier.Classifier
	Extractor         *extractor.Extractor
	Collector         *resolver.Collector
	Resolver          *resolver.Resolver
	ResolutionService *resolver.Service
	Scheduler         *scheduler.Scheduler
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	fail := func(err error) (*Dependencies, func(), error) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		return nil, nil, err
	}

	// Database (pgxpool, health checks)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("postgres: %w", err))
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx, repository adapters)
	sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("sqlx: %w", err))
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	deps.TaskRepo = persistence.NewTaskRepository(sqlDB)
	deps.TaskDomainRepo = persistence.NewTaskDomainRepository(sqlDB)
	deps.PriceRepo = persistence.NewResolvedPriceRepository(sqlDB)

	// Redis (resolved-price cache, optional)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed, running without cache: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
			deps.Cache = cache.NewRedisCache(redisClient)
		}
	}

	// MongoDB (evidence archive, optional)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			logger.Warn("MongoDB connection failed, running without evidence archive: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			evidence := mongodb.NewEvidenceAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := evidence.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("Failed to ensure evidence indexes: %v", err)
			}
			deps.EvidenceArchive = evidence
		}
	}

	// Neo4j (contact graph, optional)
	if cfg.Neo4jURL != "" {
		neo4jDriver, err := graph.NewDriver(cfg.Neo4jURL, cfg.Neo4jUsername, cfg.Neo4jPassword)
		if err != nil {
			logger.Warn("Neo4j connection failed, running without contact graph: %v", err)
		} else {
			deps.Neo4j = neo4jDriver
			cleanups = append(cleanups, func() {
				neo4jDriver.Close(context.Background())
			})

			contacts := graph.NewContactAdapter(neo4jDriver, "neo4j")
			if err := contacts.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("Failed to ensure contact graph indexes: %v", err)
			}
			deps.ContactGraph = contacts
		}
	}

	// Mailbox fleet. The whole pipeline mines operator mailboxes, so a
	// missing Gmail setup is a hard error rather than a degraded mode.
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/drive.readonly",
		},
		Endpoint: google.Endpoint,
	}
	tokens, err := loadGmailTokens(cfg.GmailTokensFile)
	if err != nil {
		return fail(fmt.Errorf("gmail tokens: %w", err))
	}
	fleet, err := gmail.NewFleet(context.Background(), oauthCfg, tokens)
	if err != nil {
		return fail(fmt.Errorf("gmail fleet: %w", err))
	}
	deps.Fleet = fleet

	accounts := cfg.MailboxAccounts
	if len(accounts) == 0 {
		accounts = fleet.Accounts()
	}
	outbound := cfg.OutboundMailboxes
	if len(outbound) == 0 {
		outbound = accounts
	}

	// Spreadsheet links are fetched with the referencing account's own
	// OAuth client so privately shared sheets export too.
	sheetClients := make(map[string]*http.Client, len(tokens))
	for account, token := range tokens {
		sheetClients[account] = oauthCfg.Client(context.Background(), token)
	}

	// Extraction
	deps.Oracle = ai.NewExtractor(ai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
	})
	deps.Parser = attachment.NewParser()
	deps.LinkFetcher = attachment.NewLinkFetcher(sheetClients)

	// Realtime (SSE)
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	deps.RealtimeAdapter = realtime.NewSSEAdapter(zlog)
	deps.SSEHub = realtime.NewSSEHub(deps.RealtimeAdapter, zlog)

	// Core pipeline
	deps.Classifier = classifier.New(outbound)
	deps.Extractor = extractor.New(deps.Oracle, deps.Parser, deps.LinkFetcher, deps.Classifier.IsOutbound)
	deps.Collector = resolver.NewCollector(fleet, deps.Classifier, accounts, cfg.SearchCap)
	deps.Resolver = resolver.New(deps.Collector, deps.Extractor, deps.EvidenceArchive, deps.ContactGraph, resolver.Config{
		MaxSourcesPerBand:  cfg.MaxSourcesPerBand,
		MaxAttemptsPerBand: cfg.MaxAttemptsPerBand,
	})

	var resolvedCache out.Cache
	if deps.Cache != nil {
		resolvedCache = deps.Cache
	}
	deps.ResolutionService = resolver.NewService(deps.Resolver, deps.PriceRepo, resolvedCache)

	deps.Scheduler = scheduler.New(
		deps.TaskRepo,
		deps.TaskDomainRepo,
		deps.PriceRepo,
		deps.Resolver,
		deps.RealtimeAdapter,
		scheduler.Config{RecoveryGrace: cfg.RecoveryGrace},
	)

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}

// loadGmailTokens reads the account -> oauth2 token map stored by the token
// provisioning script.
func loadGmailTokens(path string) (map[string]*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tokens map[string]*oauth2.Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return tokens, nil
}

func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.Ping(ctx); err != nil {
		return err
	}

	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	return nil
}
