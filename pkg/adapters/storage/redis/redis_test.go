package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, instanceID string, ttl time.Duration) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStateStore(client, instanceID, ttl, zap.NewNop()), mr
}

func sampleState() *domain.JobState {
	started := time.Date(2026, 5, 4, 10, 0, 0, 500, time.UTC)
	finished := started.Add(time.Hour)
	return &domain.JobState{
		RunID:  "run-7",
		Status: domain.JobStatusFailed,
		Items: []domain.ContentItem{
			{ID: "a", Title: "A", Body: "body", SourceRef: "crm:1"},
			{ID: "b", Attachments: []domain.Attachment{{URL: "https://cdn/x.jpg", ContentType: "image/jpeg"}}},
		},
		TotalItems:    2,
		CurrentIndex:  1,
		CurrentAction: "failed on item 2 of 2",
		Config:        domain.RunConfig{IntervalMode: domain.IntervalModeRandom, MinSeconds: 5, MaxSeconds: 9},
		StartedAt:     started,
		UpdatedAt:     finished,
		FinishedAt:    &finished,
		LastError:     "publish failed: item 1: timeout",
	}
}

func TestStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, "node-1", 0)

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := sampleState()
	require.NoError(t, store.Set(ctx, want))
	assert.True(t, mr.Exists("dapub:state:node-1"))

	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear(ctx))
	assert.False(t, mr.Exists("dapub:state:node-1"))

	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStateStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, "node-ttl", time.Hour)

	require.NoError(t, store.Set(ctx, sampleState()))
	assert.Equal(t, time.Hour, mr.TTL("dapub:state:node-ttl"))

	mr.FastForward(2 * time.Hour)
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStateStore_InstancesAreIsolated(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	a := NewStateStore(client, "a", 0, zap.NewNop())
	b := NewStateStore(client, "b", 0, zap.NewNop())

	require.NoError(t, a.Set(ctx, sampleState()))

	got, err := b.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStateStore_CorruptPayload(t *testing.T) {
	store, mr := newTestStore(t, "bad", 0)
	require.NoError(t, mr.Set("dapub:state:bad", "{not json"))

	_, err := store.Get(context.Background())
	assert.Error(t, err)
}

func TestStateStore_SetNil(t *testing.T) {
	store, _ := newTestStore(t, "nil", 0)
	assert.Error(t, store.Set(context.Background(), nil))
}

func TestStateStore_NumericExtrasRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, "node-num", 0)

	st := sampleState()
	st.Items[0].Extras = map[string]interface{}{
		"product_id": 42,
		"sku":        int64(9007199254740993),
		"price":      19.99,
		"nested":     map[string]interface{}{"qty": uint8(3)},
		"sizes":      []interface{}{38, 40.5},
		"label":      "sale",
	}
	want := st.Clone()
	require.NoError(t, store.Set(ctx, st))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, &want, got)
	assert.Equal(t, json.Number("42"), got.Items[0].Extras["product_id"])
	assert.Equal(t, json.Number("9007199254740993"), got.Items[0].Extras["sku"])
}
