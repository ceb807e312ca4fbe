package orchestrator

import (
	"fmt"

	"github.com/aescanero/dapub/pkg/domain"
)

// Validator validates run requests
type Validator struct{}

// NewValidator creates a new run validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the items and configuration of a run.
// Every error wraps domain.ErrConfig.
func (v *Validator) Validate(items []domain.ContentItem, cfg domain.RunConfig) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item is required", domain.ErrConfig)
	}

	if err := v.ValidateConfig(cfg); err != nil {
		return err
	}

	for i, item := range items {
		if err := v.validateItem(item); err != nil {
			return fmt.Errorf("%w: item %d: %v", domain.ErrConfig, i, err)
		}
	}

	return nil
}

// ValidateConfig checks the interval settings of a run configuration
func (v *Validator) ValidateConfig(cfg domain.RunConfig) error {
	switch cfg.IntervalMode {
	case domain.IntervalModeFixed:
		if cfg.FixedSeconds <= 0 {
			return fmt.Errorf("%w: fixed interval must be positive, got %d", domain.ErrConfig, cfg.FixedSeconds)
		}
	case domain.IntervalModeRandom:
		if cfg.MinSeconds <= 0 {
			return fmt.Errorf("%w: minimum interval must be positive, got %d", domain.ErrConfig, cfg.MinSeconds)
		}
		if cfg.MinSeconds > cfg.MaxSeconds {
			return fmt.Errorf("%w: minimum interval %d exceeds maximum %d", domain.ErrConfig, cfg.MinSeconds, cfg.MaxSeconds)
		}
	case "":
		return fmt.Errorf("%w: interval mode is required", domain.ErrConfig)
	default:
		return fmt.Errorf("%w: unknown interval mode %q", domain.ErrConfig, cfg.IntervalMode)
	}

	return nil
}

// validateItem rejects items that carry nothing to publish
func (v *Validator) validateItem(item domain.ContentItem) error {
	if item.Title == "" && item.Body == "" && len(item.Attachments) == 0 {
		return fmt.Errorf("item has no title, body or attachments")
	}

	for j, a := range item.Attachments {
		if a.Path == "" && a.URL == "" {
			return fmt.Errorf("attachment %d has neither path nor url", j)
		}
	}

	return nil
}
