// Package devserver implements a websocket diagnostics/telemetry hub: a
// dev console connects over /ws and receives live compiler diagnostics
// (§6.4 JSON-lines, pushed whenever a build finishes) and periodic
// scheduler/actor runtime telemetry (ready-queue depth, process count,
// GC collection count), grounded on the teacher's internal/web/websocket.go
// and ws_client.go.
package devserver

import (
	"context"
	"sync"
	"time"

	"github.com/snowdamiz/meshcore/internal/diagnostics"
	"github.com/snowdamiz/meshcore/internal/logging"
)

var log = logging.NewSubsystemLogger("DVSRV")

// Message types a devserver hub sends to connected clients.
const (
	MsgTypeConnected   = "connected"
	MsgTypeDiagnostics = "diagnostics"
	MsgTypeTelemetry   = "telemetry"
	MsgTypePong        = "pong"
	MsgTypeError       = "error"
)

// Message is one message sent to or received from a dev console client.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// DiagnosticsPayload is MsgTypeDiagnostics's payload: one module's
// diagnostics from a completed build.
type DiagnosticsPayload struct {
	ModuleName  string                   `json:"module_name"`
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
}

// TelemetryPayload is MsgTypeTelemetry's payload: a snapshot of runtime
// state, pushed on a timer.
type TelemetryPayload struct {
	ReadyQueueDepth int `json:"ready_queue_depth"`
	ProcessCount    int `json:"process_count"`
	GCCollections   int `json:"gc_collections"`
}

// Hub maintains the set of connected dev-console clients and broadcasts
// diagnostics/telemetry to all of them. Unlike the teacher's per-agent
// Hub, every devserver client receives every broadcast — there is no
// per-connection routing concern here.
type Hub struct {
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan *Message

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub constructs a Hub; call Run in a goroutine to start its loop.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan *Message, 256),
		clients:    make(map[*wsClient]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes register/unregister/broadcast events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			log.Debug("client registered", "total", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Debug("client unregistered", "total", n)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				c.send(msg)
			}
			h.mu.RUnlock()
		}
	}
}

// Stop shuts down the hub and closes every connected client.
func (h *Hub) Stop() {
	h.cancel()
}

// BroadcastToAll queues msg for delivery to every connected client,
// dropping it if the broadcast buffer is full rather than blocking a
// build or telemetry tick on a slow consumer.
func (h *Hub) BroadcastToAll(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		log.Warn("broadcast buffer full, dropping message", "type", msg.Type)
	}
}

// PublishDiagnostics broadcasts one module's diagnostics from a completed
// build.
func (h *Hub) PublishDiagnostics(moduleName string, bag *diagnostics.Bag) {
	h.BroadcastToAll(&Message{
		Type: MsgTypeDiagnostics,
		Payload: DiagnosticsPayload{
			ModuleName:  moduleName,
			Diagnostics: bag.All(),
		},
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TelemetrySource is the runtime state a devserver polls on a timer.
// internal/scheduler.Scheduler satisfies this via ReadyQueueDepth/
// ProcessCount; gcCollections is tracked separately since GC runs per
// actor heap rather than on one scheduler-wide counter.
type TelemetrySource interface {
	ReadyQueueDepth() int
	ProcessCount() int
}

// RunTelemetryLoop periodically broadcasts a TelemetryPayload built from
// source and gcCollections until ctx is cancelled. gcCollections is a
// caller-supplied counter so callers that hook gc.TryTrigger/gc.Force can
// feed their own running total in.
func (h *Hub) RunTelemetryLoop(ctx context.Context, source TelemetrySource, gcCollections func() int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			collections := 0
			if gcCollections != nil {
				collections = gcCollections()
			}
			h.BroadcastToAll(&Message{
				Type: MsgTypeTelemetry,
				Payload: TelemetryPayload{
					ReadyQueueDepth: source.ReadyQueueDepth(),
					ProcessCount:    source.ProcessCount(),
					GCCollections:   collections,
				},
			})
		}
	}
}
