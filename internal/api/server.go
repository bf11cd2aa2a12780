package api

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/careloop/leadscout/internal/config"
	"github.com/careloop/leadscout/internal/exa"
	"github.com/careloop/leadscout/internal/llm"
	"github.com/careloop/leadscout/internal/notify"
	"github.com/careloop/leadscout/internal/parser"
	"github.com/careloop/leadscout/internal/ratelimit"
	"github.com/careloop/leadscout/internal/store"
	"github.com/careloop/leadscout/pkg/database"
)

// searchProvider is the slice of the Exa client the handlers use.
type searchProvider interface {
	Search(ctx context.Context, query string) ([]exa.Result, error)
	ListItems(ctx context.Context, websetID string) ([]exa.WebsetItem, error)
}

type queryExpander interface {
	Expand(ctx context.Context, rawQuery string) string
}

type leadScorer interface {
	Score(ctx context.Context, leads []llm.LeadSummary, requirement string) map[int64]llm.ScoreResult
}

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	db        *database.Clients
	store     *store.Store
	limiter   *ratelimit.Limiter
	provider  searchProvider
	expander  queryExpander
	scorer    leadScorer
	extractor parser.ItemExtractor
	notifier  *notify.Notifier
}

func NewServer(cfg *config.Config, db *database.Clients, producer sarama.SyncProducer) *Server {
	app := fiber.New()

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestTimeout,
	}))
	app.Use(cache.New(cache.Config{
		Expiration:   cfg.Server.CacheExpiration,
		CacheControl: true,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet
		},
	}))

	var sink notify.Sink
	if producer != nil {
		sink = notify.NewKafkaSink(producer, cfg.Kafka.Topic)
	} else {
		sink = notify.NewHTTPSink(cfg.Notify.URL)
	}

	llmClient := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)

	server := &Server{
		app:       app,
		cfg:       cfg,
		db:        db,
		store:     store.New(db.DB),
		limiter:   ratelimit.New(db.Redis, cfg.Search.RateLimit, cfg.Search.RateLimitWindow),
		provider:  exa.NewClient(cfg.Exa.APIKey, cfg.Exa.BaseURL),
		expander:  llm.NewQueryExpander(llmClient),
		scorer:    llm.NewScorer(llmClient),
		extractor: parser.NewExaWebsetExtractor(),
		notifier:  notify.NewNotifier(sink),
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	// Public routes
	api.Post("/login", s.handleLogin)
	api.Post("/webhooks/exa", s.handleExaWebhook)

	// Monitoring
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Protected routes
	protected := api.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(s.cfg.JWT.Secret),
	}))
	protected.Post("/search", s.handleSearch)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
