package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StateStore implements ports.StateStore using Redis
type StateStore struct {
	client *redis.Client
	logger *zap.Logger
	key    string
	ttl    time.Duration
}

// NewStateStore creates a Redis state store for one orchestrator instance.
// A ttl of zero keeps the snapshot until it is cleared.
func NewStateStore(client *redis.Client, instanceID string, ttl time.Duration, logger *zap.Logger) *StateStore {
	return &StateStore{
		client: client,
		logger: logger,
		key:    getStateKey(instanceID),
		ttl:    ttl,
	}
}

// Get retrieves the snapshot, or nil when none is stored
func (s *StateStore) Get(ctx context.Context) (*domain.JobState, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	st, err := domain.DecodeState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return st, nil
}

// Set persists the snapshot
func (s *StateStore) Set(ctx context.Context, st *domain.JobState) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	s.logger.Debug("state saved",
		zap.String("run_id", st.RunID),
		zap.String("status", string(st.Status)),
		zap.Int("current_index", st.CurrentIndex))

	return nil
}

// Clear deletes the snapshot
func (s *StateStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}

	s.logger.Debug("state cleared", zap.String("key", s.key))
	return nil
}

// getStateKey returns the Redis key for an orchestrator instance
func getStateKey(instanceID string) string {
	return fmt.Sprintf("dapub:state:%s", instanceID)
}
