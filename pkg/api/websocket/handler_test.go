package websocket_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aescanero/dapub/pkg/adapters/events"
	"github.com/aescanero/dapub/pkg/adapters/events/memory"
	ws "github.com/aescanero/dapub/pkg/api/websocket"
	"github.com/aescanero/dapub/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T, query string) (*memory.EventBus, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := memory.NewEventBus()
	handler := ws.NewHandler(bus, "", zap.NewNop())

	router := gin.New()
	router.GET("/api/v1/runs/ws", handler.HandleRunStream)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/runs/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return bus.Subscribers(events.DefaultTopic) == 1
	}, 2*time.Second, 10*time.Millisecond)

	return bus, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.ProgressEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev domain.ProgressEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHandleRunStream_ForwardsEvents(t *testing.T) {
	bus, conn := setup(t, "")

	err := bus.Publish(context.Background(), events.DefaultTopic, domain.ProgressEvent{
		ID:    "e1",
		Kind:  domain.EventKindStarted,
		RunID: "r1",
		Data:  domain.EventData{Total: domain.IntPtr(3)},
	})
	require.NoError(t, err)

	ev := readEvent(t, conn)
	assert.Equal(t, domain.EventKindStarted, ev.Kind)
	require.NotNil(t, ev.Data.Total)
	assert.Equal(t, 3, *ev.Data.Total)
}

func TestHandleRunStream_FiltersByRunID(t *testing.T) {
	bus, conn := setup(t, "?run_id=wanted")

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.DefaultTopic, domain.ProgressEvent{ID: "1", Kind: domain.EventKindStarted, RunID: "other"}))
	require.NoError(t, bus.Publish(ctx, events.DefaultTopic, domain.ProgressEvent{ID: "2", Kind: domain.EventKindCompleted, RunID: "wanted"}))

	ev := readEvent(t, conn)
	assert.Equal(t, "2", ev.ID)
	assert.Equal(t, "wanted", ev.RunID)
}

func TestHandleRunStream_UnsubscribesOnClose(t *testing.T) {
	bus, conn := setup(t, "")

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return bus.Subscribers(events.DefaultTopic) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
