package graph

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/graph-gophers/graphql-go"
	"github.com/upb/book-feed/internal/observability"
	"go.uber.org/zap"
)

//go:embed schema.graphql
var SDL string

// SchemaOptions tunes schema execution.
type SchemaOptions struct {
	MaxParallelism           int
	SubscribeResolverTimeout time.Duration
}

// NewSchema parses SDL against resolver.
func NewSchema(resolver *Resolver, opts SchemaOptions, logger *zap.Logger) (*graphql.Schema, error) {
	schemaOpts := []graphql.SchemaOpt{
		graphql.Logger(&observability.PanicLogger{Logger: logger}),
	}
	if opts.MaxParallelism > 0 {
		schemaOpts = append(schemaOpts, graphql.MaxParallelism(opts.MaxParallelism))
	}
	if opts.SubscribeResolverTimeout > 0 {
		schemaOpts = append(schemaOpts, graphql.SubscribeResolverTimeout(opts.SubscribeResolverTimeout))
	}

	schema, err := graphql.ParseSchema(SDL, resolver, schemaOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return schema, nil
}
