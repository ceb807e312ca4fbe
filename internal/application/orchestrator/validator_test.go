package orchestrator

import (
	"testing"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()
	good := []domain.ContentItem{{Title: "t"}}

	tests := []struct {
		name    string
		items   []domain.ContentItem
		cfg     domain.RunConfig
		wantErr bool
	}{
		{"fixed", good, domain.RunConfig{IntervalMode: domain.IntervalModeFixed, FixedSeconds: 30}, false},
		{"random", good, domain.RunConfig{IntervalMode: domain.IntervalModeRandom, MinSeconds: 5, MaxSeconds: 10}, false},
		{"random equal bounds", good, domain.RunConfig{IntervalMode: domain.IntervalModeRandom, MinSeconds: 5, MaxSeconds: 5}, false},
		{"no items", nil, domain.RunConfig{IntervalMode: domain.IntervalModeFixed, FixedSeconds: 1}, true},
		{"fixed zero", good, domain.RunConfig{IntervalMode: domain.IntervalModeFixed}, true},
		{"fixed negative", good, domain.RunConfig{IntervalMode: domain.IntervalModeFixed, FixedSeconds: -1}, true},
		{"random zero min", good, domain.RunConfig{IntervalMode: domain.IntervalModeRandom, MaxSeconds: 5}, true},
		{"random min above max", good, domain.RunConfig{IntervalMode: domain.IntervalModeRandom, MinSeconds: 9, MaxSeconds: 5}, true},
		{"missing mode", good, domain.RunConfig{FixedSeconds: 5}, true},
		{"unknown mode", good, domain.RunConfig{IntervalMode: "hourly", FixedSeconds: 5}, true},
		{"empty item", []domain.ContentItem{{ID: "only-id"}}, domain.RunConfig{IntervalMode: domain.IntervalModeFixed, FixedSeconds: 1}, true},
		{"attachment only", []domain.ContentItem{{Attachments: []domain.Attachment{{URL: "https://x/y.png"}}}}, domain.RunConfig{IntervalMode: domain.IntervalModeFixed, FixedSeconds: 1}, false},
		{"empty attachment", []domain.ContentItem{{Title: "t", Attachments: []domain.Attachment{{ContentType: "image/png"}}}}, domain.RunConfig{IntervalMode: domain.IntervalModeFixed, FixedSeconds: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.items, tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}
