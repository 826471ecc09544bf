package republish

import (
	"context"
	"time"

	"github.com/upb/book-feed/models"
	"go.uber.org/zap"
)

// Source supplies the payload to republish.
type Source interface {
	First() (models.Book, bool)
}

// Publisher delivers a payload to every subscriber of a topic.
type Publisher interface {
	Publish(topic string, payload models.Book) int
}

// Service republishes the first catalog entry on a fixed interval.
type Service struct {
	source    Source
	publisher Publisher
	topic     string
	interval  time.Duration
	logger    *zap.Logger
}

// NewService creates a new republish Service
func NewService(source Source, publisher Publisher, topic string, interval time.Duration, logger *zap.Logger) *Service {
	return &Service{
		source:    source,
		publisher: publisher,
		topic:     topic,
		interval:  interval,
		logger:    logger,
	}
}

// Run publishes once per interval until ctx is done. The first publish
// happens one interval after Run starts.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("republish timer started",
		zap.String("topic", s.topic),
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("republish timer stopped", zap.String("topic", s.topic))
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick performs a single publish.
func (s *Service) Tick() {
	book, ok := s.source.First()
	if !ok {
		s.logger.Warn("nothing to republish: catalog is empty")
		return
	}
	n := s.publisher.Publish(s.topic, book)
	s.logger.Debug("payload republished",
		zap.String("topic", s.topic),
		zap.String("title", book.Title),
		zap.Int("delivered", n))
}
