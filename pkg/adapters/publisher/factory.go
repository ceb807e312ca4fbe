package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/dapub/pkg/adapters/publisher/logonly"
	"github.com/aescanero/dapub/pkg/adapters/publisher/s3stage"
	"github.com/aescanero/dapub/pkg/adapters/publisher/webhook"
	"github.com/aescanero/dapub/pkg/ports"
	"go.uber.org/zap"
)

// Config holds publisher configuration
type Config struct {
	Provider string

	// Webhook
	Endpoint   string
	Token      string
	Timeout    time.Duration
	RetryCount int

	// Attachment staging, enabled when Bucket is set
	Staging s3stage.Config

	// Dry run
	Delay time.Duration

	Logger *zap.Logger
}

// NewPublisher creates a new publisher based on provider
func NewPublisher(ctx context.Context, cfg *Config) (ports.Publisher, error) {
	switch cfg.Provider {
	case "webhook":
		var stager webhook.Stager
		if cfg.Staging.Bucket != "" {
			s, err := s3stage.New(ctx, &cfg.Staging, cfg.Logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create attachment stager: %w", err)
			}
			stager = s
		}
		return webhook.New(&webhook.Config{
			Endpoint:   cfg.Endpoint,
			Token:      cfg.Token,
			Timeout:    cfg.Timeout,
			RetryCount: cfg.RetryCount,
			Stager:     stager,
			Logger:     cfg.Logger,
		})
	case "log":
		return logonly.New(cfg.Delay, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported publisher provider: %s", cfg.Provider)
	}
}
