package logonly

import (
	"context"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"go.uber.org/zap"
)

// Publisher logs items instead of publishing them
type Publisher struct {
	delay  time.Duration
	logger *zap.Logger
}

// New creates a dry-run publisher that takes delay per item
func New(delay time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{delay: delay, logger: logger}
}

// Publish logs the item after the configured delay
func (p *Publisher) Publish(ctx context.Context, item domain.ContentItem) error {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	p.logger.Info("dry run publish",
		zap.String("item_id", item.ID),
		zap.String("title", item.Title),
		zap.Strings("tags", item.Tags),
		zap.Int("attachments", len(item.Attachments)))

	return nil
}
