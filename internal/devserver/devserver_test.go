package devserver

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/snowdamiz/meshcore/internal/diagnostics"
)

type fixedTelemetry struct {
	depth, procs int
}

func (f fixedTelemetry) ReadyQueueDepth() int { return f.depth }
func (f fixedTelemetry) ProcessCount() int    { return f.procs }

func dialDevServer(t *testing.T, addr string) *websocket.Conn {
	t.Helper()

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func newTestServer(t *testing.T) (*Server, *Hub) {
	t.Helper()

	hub := NewHub()
	go hub.Run()

	cfg := DefaultConfig()
	cfg.ListenAddr = "localhost:0"
	server := NewServer(cfg, hub)
	require.NoError(t, server.Start())

	t.Cleanup(func() {
		_ = server.Stop()
		hub.Stop()
	})

	return server, hub
}

func TestClientReceivesConnectedMessage(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dialDevServer(t, server.Addr())

	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeConnected, msg.Type)
}

func TestPublishDiagnosticsReachesClient(t *testing.T) {
	server, hub := newTestServer(t)
	conn := dialDevServer(t, server.Addr())

	// Drain the connected message.
	_ = readMessage(t, conn)

	bag := &diagnostics.Bag{}
	bag.Addf("E001", diagnostics.SeverityError, "Main.msh", "unbound variable foo")

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.PublishDiagnostics("Main", bag)

	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeDiagnostics, msg.Type)

	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Main", payload["module_name"])
}

func TestRunTelemetryLoopBroadcastsSnapshot(t *testing.T) {
	server, hub := newTestServer(t)
	conn := dialDevServer(t, server.Addr())
	_ = readMessage(t, conn)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	source := fixedTelemetry{depth: 3, procs: 7}
	collections := 0
	go hub.RunTelemetryLoop(t.Context(), source, func() int { return collections }, 20*time.Millisecond)

	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeTelemetry, msg.Type)

	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 3, payload["ready_queue_depth"])
	require.EqualValues(t, 7, payload["process_count"])
}

func TestClientCountDropsOnDisconnect(t *testing.T) {
	server, hub := newTestServer(t)
	conn := dialDevServer(t, server.Addr())
	_ = readMessage(t, conn)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcastBufferFullDropsWithoutBlocking(t *testing.T) {
	hub := NewHub()
	// Intentionally do not call Run; fill the broadcast channel and
	// confirm BroadcastToAll never blocks once it's full.
	for i := 0; i < 256+1; i++ {
		hub.BroadcastToAll(&Message{Type: MsgTypeTelemetry})
	}
}

func TestDevServerAddrHasPort(t *testing.T) {
	server, _ := newTestServer(t)
	require.True(t, strings.Contains(server.Addr(), ":"))
}
