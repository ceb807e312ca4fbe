// Package websocket provides real-time progress streaming via WebSocket.
//
// Clients connect to /api/v1/runs/ws and receive every progress event
// published on the event bus as a JSON text message. The run_id query
// parameter restricts the stream to one run.
package websocket
