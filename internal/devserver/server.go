package devserver

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader upgrades an HTTP connection to a websocket, mirroring the
// teacher's origin-checking policy for a locally-run dev tool: allow
// same-origin and no-Origin requests, used here without a configurable
// allowlist since devserver only ever binds to localhost.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// Config configures a Server.
type Config struct {
	// ListenAddr is the address the HTTP/websocket server binds to.
	ListenAddr string
}

// DefaultConfig returns sane defaults for local development use.
func DefaultConfig() Config {
	return Config{ListenAddr: "localhost:7337"}
}

// Server is an HTTP server exposing a single /ws endpoint that streams
// compiler diagnostics and scheduler/actor telemetry to connected dev
// consoles.
type Server struct {
	cfg Config
	hub *Hub

	mux *http.ServeMux
	srv *http.Server

	listener net.Listener

	mu      sync.Mutex
	started bool
}

// NewServer constructs a Server wrapping hub. Callers own hub's lifecycle
// (call hub.Run in a goroutine before Start, hub.Stop after Stop).
func NewServer(cfg Config, hub *Hub) *Server {
	s := &Server{cfg: cfg, hub: hub, mux: http.NewServeMux()}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	return s
}

// Start begins listening and serving in a background goroutine. It
// returns once the listener is bound, not once the server has stopped.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.srv = &http.Server{
		Handler:     s.mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	log.Info("starting dev server", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("server exited", "error", err)
		}
	}()

	s.started = true
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	s.started = false
	return err
}

// Addr returns the bound listen address. Only valid after Start succeeds.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn)
	s.hub.register <- client

	client.send(&Message{
		Type: MsgTypeConnected,
		Payload: map[string]any{
			"time": time.Now().UTC().Format(time.RFC3339),
		},
	})

	go client.writePump()
	go client.readPump()
}
