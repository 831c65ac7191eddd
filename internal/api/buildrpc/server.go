package buildrpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/snowdamiz/meshcore/internal/logging"
)

var log = logging.NewSubsystemLogger("BLDRPC")

// ServerConfig holds configuration for the BuildService gRPC server,
// mirroring the teacher's keepalive/listen-address shape.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g. "localhost:7420").
	ListenAddr string

	// ServerPingTime is the duration after which the server pings the
	// client. Zero means 5 minutes.
	ServerPingTime time.Duration

	// ServerPingTimeout is how long the server waits for a ping ack.
	// Zero means 1 minute.
	ServerPingTimeout time.Duration

	// ClientPingMinWait is the minimum time between client pings. Zero
	// means 5 seconds.
	ClientPingMinWait time.Duration

	// ClientAllowPingWithoutStream allows client pings with no active
	// streams.
	ClientAllowPingWithoutStream bool
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:                   "localhost:7420",
		ServerPingTime:               5 * time.Minute,
		ServerPingTimeout:            1 * time.Minute,
		ClientPingMinWait:            5 * time.Second,
		ClientAllowPingWithoutStream: true,
	}
}

// Server is the gRPC server hosting BuildService.
type Server struct {
	cfg ServerConfig
	svc *Service

	grpcServer *grpc.Server
	listener   net.Listener

	started bool
	mu      sync.RWMutex

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewServer constructs a Server that will serve svc once Start is called.
func NewServer(cfg ServerConfig, svc *Service) *Server {
	return &Server{
		cfg:  cfg,
		svc:  svc,
		quit: make(chan struct{}),
	}
}

// Start starts listening and serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("buildrpc: server already started")
	}

	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("buildrpc: listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = lis

	s.grpcServer = grpc.NewServer(s.buildServerOptions()...)
	RegisterBuildServiceServer(s.grpcServer, s.svc)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info("BuildService listening", "addr", s.cfg.ListenAddr)
		if err := s.grpcServer.Serve(lis); err != nil {
			select {
			case <-s.quit:
			default:
				log.Error("BuildService serve error", "error", err)
			}
		}
	}()

	s.started = true
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	close(s.quit)
	s.grpcServer.GracefulStop()
	s.wg.Wait()

	s.started = false
	log.Info("BuildService stopped")
	return nil
}

// Addr returns the address the server is listening on, empty if not
// started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) buildServerOptions() []grpc.ServerOption {
	pingTime := s.cfg.ServerPingTime
	if pingTime == 0 {
		pingTime = 5 * time.Minute
	}
	pingTimeout := s.cfg.ServerPingTimeout
	if pingTimeout == 0 {
		pingTimeout = 1 * time.Minute
	}
	pingMinWait := s.cfg.ClientPingMinWait
	if pingMinWait == 0 {
		pingMinWait = 5 * time.Second
	}

	serverKeepalive := keepalive.ServerParameters{
		Time:    pingTime,
		Timeout: pingTimeout,
	}
	clientKeepalive := keepalive.EnforcementPolicy{
		MinTime:             pingMinWait,
		PermitWithoutStream: s.cfg.ClientAllowPingWithoutStream,
	}

	return []grpc.ServerOption{
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.KeepaliveParams(serverKeepalive),
		grpc.KeepaliveEnforcementPolicy(clientKeepalive),
		grpc.ChainUnaryInterceptor(s.loggingUnaryInterceptor, s.validationUnaryInterceptor),
		grpc.ChainStreamInterceptor(s.loggingStreamInterceptor),
	}
}

func (s *Server) loggingUnaryInterceptor(
	ctx context.Context, req interface{},
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	duration := time.Since(start)
	if err != nil {
		log.Warn("RPC failed", "method", info.FullMethod, "duration", duration, "error", err)
	} else {
		log.Debug("RPC completed", "method", info.FullMethod, "duration", duration)
	}
	return resp, err
}

func (s *Server) validationUnaryInterceptor(
	ctx context.Context, req interface{},
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
) (interface{}, error) {
	select {
	case <-s.quit:
		return nil, status.Error(codes.Unavailable, "server is shutting down")
	default:
	}
	return handler(ctx, req)
}

func (s *Server) loggingStreamInterceptor(
	srv interface{}, ss grpc.ServerStream,
	info *grpc.StreamServerInfo, handler grpc.StreamHandler,
) error {
	start := time.Now()
	err := handler(srv, ss)
	duration := time.Since(start)
	if err != nil {
		log.Warn("stream RPC failed", "method", info.FullMethod, "duration", duration, "error", err)
	} else {
		log.Debug("stream RPC completed", "method", info.FullMethod, "duration", duration)
	}
	return err
}
