package pubsub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/book-feed/internal/observability"
	"github.com/upb/book-feed/models"
	"go.uber.org/zap"
)

// DefaultBufferSize is the per-subscriber delivery buffer.
const DefaultBufferSize = 16

// Subscription is one listener registered on a topic.
type Subscription struct {
	ID    uuid.UUID
	Topic string
	C     <-chan models.Book

	ch     chan models.Book
	done   chan struct{}
	broker *Broker
	once   sync.Once
}

// Close deregisters the subscription and closes C. It is safe to call
// more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.broker.remove(s)
	})
}

// Broker is a process-local topic registry. Delivery is at-most-once: a
// payload published while a subscriber's buffer is full is dropped for
// that subscriber, and nothing is retained for absent subscribers.
type Broker struct {
	mu         sync.RWMutex
	topics     map[string]map[uuid.UUID]*Subscription
	bufferSize int
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewBroker creates a new Broker. bufferSize <= 0 selects DefaultBufferSize.
func NewBroker(bufferSize int, metrics *observability.Metrics, logger *zap.Logger) *Broker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broker{
		topics:     make(map[string]map[uuid.UUID]*Subscription),
		bufferSize: bufferSize,
		metrics:    metrics,
		logger:     logger,
	}
}

// Subscribe registers a listener on topic. The registration is removed
// when ctx is done or Close is called, whichever happens first.
func (b *Broker) Subscribe(ctx context.Context, topic string) *Subscription {
	ch := make(chan models.Book, b.bufferSize)
	sub := &Subscription{
		ID:     uuid.New(),
		Topic:  topic,
		C:      ch,
		ch:     ch,
		done:   make(chan struct{}),
		broker: b,
	}

	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[uuid.UUID]*Subscription)
		b.topics[topic] = subs
	}
	subs[sub.ID] = sub
	n := len(subs)
	b.mu.Unlock()

	b.metrics.SetSubscribers(topic, n)
	b.logger.Debug("subscriber registered",
		zap.String("topic", topic),
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("subscribers", n))

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub
}

// Publish fans payload out to every current subscriber of topic without
// blocking. It returns the number of subscribers that received it.
func (b *Broker) Publish(topic string, payload models.Book) int {
	b.mu.RLock()
	delivered, dropped := 0, 0
	for _, sub := range b.topics[topic] {
		select {
		case sub.ch <- payload:
			delivered++
		default:
			dropped++
		}
	}
	b.mu.RUnlock()

	b.metrics.RecordPublish(topic, dropped)
	if dropped > 0 {
		b.logger.Debug("deliveries dropped",
			zap.String("topic", topic),
			zap.Int("dropped", dropped))
	}
	return delivered
}

// Count returns the number of subscribers currently registered on topic.
func (b *Broker) Count(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	subs, ok := b.topics[sub.Topic]
	if ok {
		if _, exists := subs[sub.ID]; exists {
			delete(subs, sub.ID)
			close(sub.ch)
		}
		if len(subs) == 0 {
			delete(b.topics, sub.Topic)
		}
	}
	n := len(b.topics[sub.Topic])
	b.mu.Unlock()

	b.metrics.SetSubscribers(sub.Topic, n)
	b.logger.Debug("subscriber removed",
		zap.String("topic", sub.Topic),
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("subscribers", n))
}
