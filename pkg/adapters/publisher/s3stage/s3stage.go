package s3stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Config holds configuration for S3-compatible attachment staging
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	PublicURL string
	Prefix    string
}

// ObjectAPI is the subset of the S3 client used by the stager
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Stager uploads local attachment files and rewrites them to public URLs.
// Keys uploaded since the last Commit are pending and removed by Release.
type Stager struct {
	client    ObjectAPI
	bucket    string
	publicURL string
	prefix    string
	logger    *zap.Logger

	mu      sync.Mutex
	pending []string
}

// New creates a stager backed by an S3-compatible endpoint
func New(ctx context.Context, cfg *Config, logger *zap.Logger) (*Stager, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		endpointURL := fmt.Sprintf("%s://%s", scheme, normalizeEndpoint(cfg.Endpoint))
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, opts...), cfg.Bucket, cfg.PublicURL, cfg.Prefix, logger), nil
}

// NewWithClient creates a stager on top of an existing client
func NewWithClient(client ObjectAPI, bucket, publicURL, prefix string, logger *zap.Logger) *Stager {
	return &Stager{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		prefix:    strings.Trim(prefix, "/"),
		logger:    logger,
	}
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}
	return endpoint
}

// Stage uploads every attachment that has a local path and no URL.
// The returned slice is a copy; attachments already carrying a URL are
// passed through untouched.
func (s *Stager) Stage(ctx context.Context, itemID string, attachments []domain.Attachment) ([]domain.Attachment, error) {
	out := make([]domain.Attachment, len(attachments))
	copy(out, attachments)

	for i, a := range out {
		if a.URL != "" || a.Path == "" {
			continue
		}

		key := s.objectKey(itemID, i, a.Path)
		contentType, err := s.upload(ctx, key, a)
		if err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", a.Path, err)
		}

		s.mu.Lock()
		s.pending = append(s.pending, key)
		s.mu.Unlock()

		out[i].URL = fmt.Sprintf("%s/%s", s.publicURL, key)
		out[i].ContentType = contentType

		s.logger.Debug("attachment staged",
			zap.String("item_id", itemID),
			zap.String("key", key))
	}

	return out, nil
}

func (s *Stager) upload(ctx context.Context, key string, a domain.Attachment) (string, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	contentType := a.ContentType
	if contentType == "" {
		mt, err := mimetype.DetectReader(f)
		if err != nil {
			return "", fmt.Errorf("failed to detect content type: %w", err)
		}
		contentType = mt.String()
		if _, err := f.Seek(0, 0); err != nil {
			return "", err
		}
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return contentType, nil
}

func (s *Stager) objectKey(itemID string, index int, filePath string) string {
	name := fmt.Sprintf("%d-%s", index, filepath.Base(filePath))
	if s.prefix == "" {
		return path.Join(itemID, name)
	}
	return path.Join(s.prefix, itemID, name)
}

// Commit forgets the pending keys once the platform references them
func (s *Stager) Commit() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Release deletes every pending key
func (s *Stager) Release(ctx context.Context) error {
	s.mu.Lock()
	keys := s.pending
	s.pending = nil
	s.mu.Unlock()

	var errs []error
	for _, key := range keys {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
			continue
		}
		s.logger.Debug("staged attachment removed", zap.String("key", key))
	}

	return errors.Join(errs...)
}

// Pending returns the keys uploaded since the last Commit
func (s *Stager) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pending...)
}
