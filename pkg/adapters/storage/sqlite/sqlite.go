package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// snapshotRecord is one persisted snapshot per orchestrator instance
type snapshotRecord struct {
	InstanceID string `gorm:"type:text;primaryKey"`
	RunID      string `gorm:"type:text;index"`
	Status     string `gorm:"type:text"`
	Payload    string `gorm:"type:text;not null"`
	UpdatedAt  time.Time
}

// TableName returns the table name for GORM mapping
func (snapshotRecord) TableName() string {
	return "run_snapshots"
}

// StateStore implements ports.StateStore on a local SQLite database
type StateStore struct {
	db         *gorm.DB
	instanceID string
	logger     *zap.Logger
}

// Open opens (and migrates) the SQLite database at path
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&snapshotRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// NewStateStore creates a SQLite state store for one orchestrator instance
func NewStateStore(db *gorm.DB, instanceID string, logger *zap.Logger) *StateStore {
	return &StateStore{
		db:         db,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Get returns the stored snapshot or nil
func (s *StateStore) Get(ctx context.Context) (*domain.JobState, error) {
	var rec snapshotRecord
	err := s.db.WithContext(ctx).Where("instance_id = ?", s.instanceID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	st, err := domain.DecodeState([]byte(rec.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return st, nil
}

// Set upserts the snapshot
func (s *StateStore) Set(ctx context.Context, st *domain.JobState) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	rec := snapshotRecord{
		InstanceID: s.instanceID,
		RunID:      st.RunID,
		Status:     string(st.Status),
		Payload:    string(data),
		UpdatedAt:  time.Now(),
	}

	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	s.logger.Debug("state saved",
		zap.String("run_id", st.RunID),
		zap.String("status", string(st.Status)))

	return nil
}

// Clear deletes the snapshot
func (s *StateStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Where("instance_id = ?", s.instanceID).Delete(&snapshotRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}
