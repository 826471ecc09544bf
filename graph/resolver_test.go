package graph

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/book-feed/services/catalog"
	"github.com/upb/book-feed/services/permissions"
	"github.com/upb/book-feed/services/pubsub"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	booksQuery       = `{ books { title author } }`
	bookSubscription = `subscription { book { title author } }`
)

type testServer struct {
	catalog *catalog.CatalogService
	broker  *pubsub.Broker
	schema  *graphql.Schema
	subs    *Subscriptions
}

func newTestServer(t *testing.T, shield *permissions.Shield) *testServer {
	t.Helper()
	logger := zap.NewNop()
	cat := catalog.NewCatalogService()
	broker := pubsub.NewBroker(4, nil, logger)
	resolver := NewResolver(cat, broker, shield, "book", nil, logger)

	schema, err := NewSchema(resolver, SchemaOptions{SubscribeResolverTimeout: time.Second}, logger)
	require.NoError(t, err)

	return &testServer{catalog: cat, broker: broker, schema: schema, subs: NewSubscriptions(schema)}
}

// switchableRule returns a no_cache rule whose answer can be flipped.
func switchableRule(initial bool) (*permissions.Rule, *atomic.Bool) {
	var allowed atomic.Bool
	allowed.Store(initial)
	rule := permissions.NewRule("check", permissions.CacheNone, func(context.Context, permissions.FieldRef) (bool, error) {
		return allowed.Load(), nil
	})
	return rule, &allowed
}

func waitForSubscribers(t *testing.T, broker *pubsub.Broker, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return broker.Count("book") == n
	}, time.Second, 5*time.Millisecond)
}

func receive(t *testing.T, c <-chan interface{}) *graphql.Response {
	t.Helper()
	select {
	case v, ok := <-c:
		require.True(t, ok, "subscription channel closed")
		resp, isResp := v.(*graphql.Response)
		require.True(t, isResp, "unexpected payload %T", v)
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription payload received")
		return nil
	}
}

func TestQueryBooks(t *testing.T) {
	rule, _ := switchableRule(false)
	srv := newTestServer(t, NewShield(rule, nil, zap.NewNop()))

	for i := 0; i < 3; i++ {
		resp := srv.schema.Exec(context.Background(), booksQuery, "", nil)
		require.Empty(t, resp.Errors)
		assert.JSONEq(t, `{"books":[
			{"title":"Harry Potter and the Chamber of Secrets","author":"J.K. Rowling"},
			{"title":"Jurassic Park","author":"Michael Crichton"}
		]}`, string(resp.Data))
	}
}

func TestQueryBooks_DeniedFieldDoesNotAbortOthers(t *testing.T) {
	perms := permissions.Map{
		Types: map[string]permissions.Policy{"Book": permissions.Allow()},
		Fields: map[permissions.FieldRef]permissions.Policy{
			{Type: "Query", Field: "books"}: permissions.Allow(),
			{Type: "Book", Field: "author"}: permissions.Deny(),
		},
	}
	srv := newTestServer(t, permissions.NewShield(perms, permissions.Deny(), nil, zap.NewNop()))

	resp := srv.schema.Exec(context.Background(), booksQuery, "", nil)

	require.Len(t, resp.Errors, 2)
	for _, e := range resp.Errors {
		assert.Equal(t, "Not Authorised!", e.Message)
		assert.Equal(t, "forbidden", e.Extensions["code"])
	}
	assert.JSONEq(t, `{"books":[
		{"title":"Harry Potter and the Chamber of Secrets","author":null},
		{"title":"Jurassic Park","author":null}
	]}`, string(resp.Data))
}

func TestQueryBooks_FallbackDeny(t *testing.T) {
	srv := newTestServer(t, permissions.NewShield(permissions.Map{}, permissions.Deny(), nil, zap.NewNop()))

	resp := srv.schema.Exec(context.Background(), booksQuery, "", nil)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Not Authorised!", resp.Errors[0].Message)
	assert.JSONEq(t, `{"books":null}`, string(resp.Data))
}

func TestSubscriptionBook_Delivers(t *testing.T) {
	rule, _ := switchableRule(true)
	srv := newTestServer(t, NewShield(rule, nil, zap.NewNop()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := srv.subs.Subscribe(ctx, bookSubscription, "", nil)
	require.NoError(t, err)
	waitForSubscribers(t, srv.broker, 1)

	first, _ := srv.catalog.First()
	srv.broker.Publish("book", first)

	resp := receive(t, c)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"book":{"title":"Harry Potter and the Chamber of Secrets","author":"J.K. Rowling"}}`, string(resp.Data))
}

func TestSubscriptionBook_EstablishIsNotGated(t *testing.T) {
	rule, _ := switchableRule(false)
	srv := newTestServer(t, NewShield(rule, nil, zap.NewNop()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := srv.subs.Subscribe(ctx, bookSubscription, "", nil)

	require.NoError(t, err)
	waitForSubscribers(t, srv.broker, 1)

	first, _ := srv.catalog.First()
	srv.broker.Publish("book", first)

	resp := receive(t, c)
	assertWithheld(t, resp)
}

func TestSubscriptionBook_WithheldDeliveryHidesBook(t *testing.T) {
	tests := []struct {
		name  string
		query string
		alias string
	}{
		{"typename only", `subscription { book { __typename } }`, "book"},
		{"all fields", bookSubscription, "book"},
		{"aliased", `subscription { latest: book { title } }`, "latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, _ := switchableRule(false)
			srv := newTestServer(t, NewShield(rule, nil, zap.NewNop()))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			c, err := srv.subs.Subscribe(ctx, tt.query, "", nil)
			require.NoError(t, err)
			waitForSubscribers(t, srv.broker, 1)

			first, _ := srv.catalog.First()
			srv.broker.Publish("book", first)

			resp := receive(t, c)
			assert.JSONEq(t, `{"`+tt.alias+`":null}`, string(resp.Data))
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, "Not Authorised!", resp.Errors[0].Message)
			assert.Equal(t, []interface{}{tt.alias}, resp.Errors[0].Path)
			assert.Equal(t, "forbidden", resp.Errors[0].Extensions["code"])
		})
	}
}

func assertWithheld(t *testing.T, resp *graphql.Response) {
	t.Helper()
	assert.JSONEq(t, `{"book":null}`, string(resp.Data))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Not Authorised!", resp.Errors[0].Message)
	assert.Equal(t, []interface{}{"book"}, resp.Errors[0].Path)
}

func TestSubscriptionBook_RuleChangeRejectsLaterDeliveries(t *testing.T) {
	rule, allowed := switchableRule(true)
	srv := newTestServer(t, NewShield(rule, nil, zap.NewNop()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := srv.subs.Subscribe(ctx, bookSubscription, "", nil)
	require.NoError(t, err)
	waitForSubscribers(t, srv.broker, 1)
	first, _ := srv.catalog.First()

	srv.broker.Publish("book", first)
	assert.Empty(t, receive(t, c).Errors)

	allowed.Store(false)
	srv.broker.Publish("book", first)
	assertWithheld(t, receive(t, c))

	// The stream stays open and recovers once the rule allows again.
	assert.Equal(t, 1, srv.broker.Count("book"))
	allowed.Store(true)
	srv.broker.Publish("book", first)
	assert.Empty(t, receive(t, c).Errors)
}

func TestSubscriptionBook_DisconnectDeregisters(t *testing.T) {
	rule, _ := switchableRule(true)
	srv := newTestServer(t, NewShield(rule, nil, zap.NewNop()))

	keepCtx, keepCancel := context.WithCancel(context.Background())
	defer keepCancel()
	_, err := srv.subs.Subscribe(keepCtx, bookSubscription, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	c, err := srv.subs.Subscribe(ctx, bookSubscription, "", nil)
	require.NoError(t, err)
	waitForSubscribers(t, srv.broker, 2)

	cancel()

	waitForSubscribers(t, srv.broker, 1)

	// Drain until graphql-go closes the stream; nothing else may arrive.
	first, _ := srv.catalog.First()
	srv.broker.Publish("book", first)
	for range c {
	}
}

func TestCheckRule_LogsEveryEvaluation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rule := NewCheckRule(zap.New(core))
	shield := NewShield(rule, nil, zap.NewNop())

	for i := 0; i < 3; i++ {
		require.NoError(t, shield.Check(context.Background(), "Subscription", "book"))
	}

	assert.Equal(t, 3, logs.FilterMessage(RuleCheckBanner).Len())
	assert.Equal(t, permissions.CacheNone, rule.Cache())
}

func TestDefaultPermissions(t *testing.T) {
	rule := NewCheckRule(zap.NewNop())
	shield := NewShield(rule, nil, zap.NewNop())

	assert.Equal(t, permissions.DecisionAllow, shield.PolicyFor(permissions.FieldRef{Type: "Query", Field: "books"}).Decision())
	assert.Equal(t, permissions.DecisionAllow, shield.PolicyFor(permissions.FieldRef{Type: "Book", Field: "title"}).Decision())
	assert.Equal(t, permissions.DecisionEvaluate, shield.PolicyFor(permissions.FieldRef{Type: "Subscription", Field: "book"}).Decision())
	assert.Equal(t, permissions.DecisionDeny, shield.PolicyFor(permissions.FieldRef{Type: "Mutation", Field: "addBook"}).Decision())
}
