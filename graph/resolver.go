package graph

import (
	"context"

	"github.com/upb/book-feed/internal/observability"
	"github.com/upb/book-feed/models"
	"github.com/upb/book-feed/services/permissions"
	"github.com/upb/book-feed/services/pubsub"
	"go.uber.org/zap"
)

// BookLister supplies the books served by Query.books.
type BookLister interface {
	List() []models.Book
}

// TopicSubscriber registers listeners on a topic.
type TopicSubscriber interface {
	Subscribe(ctx context.Context, topic string) *pubsub.Subscription
}

// Resolver is the root resolver for Query and Subscription fields.
type Resolver struct {
	books   BookLister
	topics  TopicSubscriber
	shield  *permissions.Shield
	topic   string
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewResolver creates a new Resolver
func NewResolver(
	books BookLister,
	topics TopicSubscriber,
	shield *permissions.Shield,
	topic string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		books:   books,
		topics:  topics,
		shield:  shield,
		topic:   topic,
		metrics: metrics,
		logger:  logger,
	}
}

// Books resolves Query.books.
func (r *Resolver) Books(ctx context.Context) (*[]*bookResolver, error) {
	return permissions.Guard(ctx, r.shield, "Query", "books", func() (*[]*bookResolver, error) {
		books := r.books.List()
		out := make([]*bookResolver, len(books))
		for i := range books {
			out[i] = &bookResolver{book: books[i], shield: r.shield}
		}
		return &out, nil
	})
}

// Book establishes Subscription.book. Opening the stream is not checked
// against the shield; only each delivery is (see resolveDelivery). Serve
// it through Subscriptions so withheld deliveries carry their error.
// TODO: gate establishment once a real authorization policy exists.
func (r *Resolver) Book(ctx context.Context) (<-chan *bookResolver, error) {
	sub := r.topics.Subscribe(ctx, r.topic)
	r.metrics.RecordSubscription()

	logger := observability.WithRequestID(ctx, r.logger).With(
		zap.String("topic", r.topic),
		zap.String("subscription_id", sub.ID.String()))
	logger.Info("subscription established")

	out := make(chan *bookResolver)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				logger.Info("subscription closed")
				return
			case book, ok := <-sub.C:
				if !ok {
					return
				}
				select {
				case out <- r.resolveDelivery(ctx, book):
				case <-ctx.Done():
					logger.Info("subscription closed")
					return
				}
			}
		}
	}()
	return out, nil
}

// resolveDelivery is the resolve step of Subscription.book: the payload
// passes through unchanged when the shield allows it. A withheld delivery
// resolves to nil; Subscriptions reports it as an authorization error on
// the root field. Each delivery gets its own decision cache.
func (r *Resolver) resolveDelivery(ctx context.Context, payload models.Book) *bookResolver {
	book, err := permissions.Guard(permissions.NewContext(ctx), r.shield, "Subscription", "book", func() (models.Book, error) {
		return payload, nil
	})
	if err != nil {
		return nil
	}
	return &bookResolver{book: book, shield: r.shield}
}

// bookResolver resolves Book fields.
type bookResolver struct {
	book   models.Book
	shield *permissions.Shield
}

func (b *bookResolver) Title(ctx context.Context) (*string, error) {
	return b.field(ctx, "title", b.book.Title)
}

func (b *bookResolver) Author(ctx context.Context) (*string, error) {
	return b.field(ctx, "author", b.book.Author)
}

func (b *bookResolver) field(ctx context.Context, name, value string) (*string, error) {
	return permissions.Guard(ctx, b.shield, "Book", name, func() (*string, error) {
		return &value, nil
	})
}
