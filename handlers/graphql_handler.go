package handlers

import (
	"context"
	"net/http"

	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/graph-gophers/graphql-transport-ws/graphqlws"
	"github.com/upb/book-feed/graph"
	"github.com/upb/book-feed/utils"
	"go.uber.org/zap"
)

// GraphQLHandler serves queries over HTTP POST and subscriptions over
// graphql-ws websockets on the same path.
type GraphQLHandler struct {
	handler http.Handler
	conns   context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// NewGraphQLHandler creates a new GraphQLHandler
func NewGraphQLHandler(schema *graphql.Schema, logger *zap.Logger) *GraphQLHandler {
	conns, cancel := context.WithCancel(context.Background())
	h := &GraphQLHandler{conns: conns, cancel: cancel, logger: logger}

	queries := &relay.Handler{Schema: schema}
	h.handler = graphqlws.NewHandlerFunc(graph.NewSubscriptions(schema), h.postOnly(queries),
		graphqlws.WithContextGenerator(graphqlws.ContextGeneratorFunc(h.connectionContext)))
	return h
}

// ServeHTTP implements http.Handler
func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// Shutdown ends every open websocket connection and its subscriptions.
// Hijacked connections are not tracked by http.Server, so register it
// with RegisterOnShutdown.
func (h *GraphQLHandler) Shutdown() {
	h.logger.Info("closing websocket subscriptions")
	h.cancel()
}

// connectionContext carries the upgrade request's values (request ID,
// decision cache) but lives until Shutdown. The request context itself is
// cancelled as soon as the upgrade handler returns.
func (h *GraphQLHandler) connectionContext(_ context.Context, r *http.Request) (context.Context, error) {
	return valuesFrom{Context: h.conns, values: r.Context()}, nil
}

// valuesFrom takes cancellation from Context and values from values.
type valuesFrom struct {
	context.Context
	values context.Context
}

func (c valuesFrom) Value(key interface{}) interface{} {
	return c.values.Value(key)
}

// postOnly rejects non-websocket requests other than POST.
func (h *GraphQLHandler) postOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			if err := utils.WriteMethodNotAllowed(w, http.MethodPost); err != nil {
				h.logger.Error("failed to write method not allowed response", zap.Error(err))
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}
