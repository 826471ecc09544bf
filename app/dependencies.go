package app

import (
	"context"
	"fmt"

	"github.com/graph-gophers/graphql-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/upb/book-feed/config"
	"github.com/upb/book-feed/graph"
	"github.com/upb/book-feed/handlers"
	"github.com/upb/book-feed/internal/observability"
	"github.com/upb/book-feed/services/catalog"
	"github.com/upb/book-feed/services/permissions"
	"github.com/upb/book-feed/services/pubsub"
	"github.com/upb/book-feed/services/republish"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// Services
	Catalog     *catalog.CatalogService
	Broker      *pubsub.Broker
	Shield      *permissions.Shield
	Republisher *republish.Service

	// GraphQL
	Resolver *graph.Resolver
	Schema   *graphql.Schema
	GraphQL  *handlers.GraphQLHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics(cfg)
	deps.initServices(cfg)

	if err := deps.initSchema(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("topic", cfg.Feed.Topic),
		zap.Duration("republish_interval", cfg.Feed.Interval))
	return deps, nil
}

// initMetrics creates an isolated registry so tests can build several
// dependency sets side by side.
func (d *Dependencies) initMetrics(cfg *config.Config) {
	if !cfg.Observability.MetricsEnabled {
		d.Logger.Info("metrics disabled")
		return
	}
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = observability.NewMetrics(d.Registry)
}

func (d *Dependencies) initServices(cfg *config.Config) {
	d.Catalog = catalog.NewCatalogService()
	d.Broker = pubsub.NewBroker(cfg.Feed.SubscriberBuffer, d.Metrics, d.Logger.Named("pubsub"))
	d.Shield = graph.NewShield(graph.NewCheckRule(d.Logger), d.Metrics, d.Logger.Named("permissions"))
	d.Republisher = republish.NewService(d.Catalog, d.Broker, cfg.Feed.Topic, cfg.Feed.Interval, d.Logger.Named("republish"))
}

func (d *Dependencies) initSchema(cfg *config.Config) error {
	d.Resolver = graph.NewResolver(d.Catalog, d.Broker, d.Shield, cfg.Feed.Topic, d.Metrics, d.Logger.Named("graph"))

	schema, err := graph.NewSchema(d.Resolver, graph.SchemaOptions{
		MaxParallelism:           cfg.GraphQL.MaxParallelism,
		SubscribeResolverTimeout: cfg.GraphQL.SubscribeResolverTimeout,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.Schema = schema
	d.GraphQL = handlers.NewGraphQLHandler(schema, d.Logger.Named("transport"))
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	if d.Broker != nil && d.Config != nil {
		if n := d.Broker.Count(d.Config.Feed.Topic); n > 0 {
			d.Logger.Info("closing with active subscribers", zap.Int("subscribers", n))
		}
	}

	if d.GraphQL != nil {
		d.GraphQL.Shutdown()
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return nil
}
