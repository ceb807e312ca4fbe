package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stager turns local attachments into URLs the platform can fetch
type Stager interface {
	Stage(ctx context.Context, itemID string, attachments []domain.Attachment) ([]domain.Attachment, error)
	Commit()
	Release(ctx context.Context) error
}

// Config holds webhook publisher configuration
type Config struct {
	Endpoint   string
	Token      string
	Timeout    time.Duration
	RetryCount int
	Stager     Stager
	Logger     *zap.Logger
}

// Publisher posts content items to a platform endpoint
type Publisher struct {
	client   *resty.Client
	endpoint string
	stager   Stager
	logger   *zap.Logger
}

type publishRequest struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title,omitempty"`
	Body        string                 `json:"body,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Attachments []domain.Attachment    `json:"attachments,omitempty"`
	SourceRef   string                 `json:"source_ref,omitempty"`
	Extras      map[string]interface{} `json:"extras,omitempty"`
}

type publishResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// New creates a webhook publisher
func New(cfg *Config) (*Publisher, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("webhook endpoint is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	if cfg.RetryCount > 0 {
		client.SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			})
	}

	return &Publisher{
		client:   client,
		endpoint: cfg.Endpoint,
		stager:   cfg.Stager,
		logger:   logger,
	}, nil
}

// Publish posts one item. Any non-2xx answer is an error.
func (p *Publisher) Publish(ctx context.Context, item domain.ContentItem) error {
	itemID := item.ID
	if itemID == "" {
		itemID = uuid.New().String()
	}

	attachments := item.Attachments
	if p.stager != nil && hasLocalFiles(attachments) {
		staged, err := p.stager.Stage(ctx, itemID, attachments)
		if err != nil {
			return fmt.Errorf("failed to stage attachments: %w", err)
		}
		attachments = staged
	}

	req := publishRequest{
		ID:          itemID,
		Title:       item.Title,
		Body:        item.Body,
		Tags:        item.Tags,
		Attachments: attachments,
		SourceRef:   item.SourceRef,
		Extras:      item.Extras,
	}

	var result publishResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(p.endpoint)
	if err != nil {
		return fmt.Errorf("publish request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("platform rejected item: status %d: %s",
			resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	if p.stager != nil {
		p.stager.Commit()
	}

	p.logger.Info("item published",
		zap.String("item_id", itemID),
		zap.String("remote_id", result.ID),
		zap.String("remote_url", result.URL),
		zap.Duration("latency", resp.Time()))

	return nil
}

// Cleanup removes attachments staged for an item that was not published
func (p *Publisher) Cleanup(ctx context.Context) error {
	if p.stager == nil {
		return nil
	}
	return p.stager.Release(ctx)
}

func hasLocalFiles(attachments []domain.Attachment) bool {
	for _, a := range attachments {
		if a.URL == "" && a.Path != "" {
			return true
		}
	}
	return false
}
