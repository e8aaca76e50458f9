package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server manages the gRPC and HTTP servers
type Server struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server
	handler    http.Handler
	logger     logrus.FieldLogger

	grpcPort        int
	httpPort        int
	shutdownTimeout time.Duration
}

// Config contains server configuration
type Config struct {
	GRPCPort int
	HTTPPort int

	// ShutdownTimeout bounds graceful shutdown of the HTTP server
	ShutdownTimeout time.Duration

	Handlers *Handlers
	Logger   logrus.FieldLogger

	// PeerHandler, when set, is mounted at PeerPath for cache peering
	PeerHandler http.Handler
	PeerPath    string
}

// New creates a new server with the given configuration
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &Server{
		grpcServer:      grpc.NewServer(),
		health:          health.NewServer(),
		logger:          logger,
		grpcPort:        cfg.GRPCPort,
		httpPort:        cfg.HTTPPort,
		shutdownTimeout: timeout,
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	mux, err := NewServeMux(cfg.Handlers, s.health)
	if err != nil {
		return nil, err
	}
	var root http.Handler = mux
	if cfg.PeerHandler != nil && cfg.PeerPath != "" {
		routes := http.NewServeMux()
		routes.Handle(cfg.PeerPath, cfg.PeerHandler)
		routes.Handle("/", mux)
		root = routes
	}
	s.handler = withRequestID(withAccessLog(logger, root))
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.httpPort),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// NewServeMux builds the HTTP routes, including /healthz backed by hs
func NewServeMux(h *Handlers, hs healthpb.HealthServer) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.JSONBuiltin{}),
		runtime.WithMarshalerOption("application/x-www-form-urlencoded", NewFormMarshaler()),
		runtime.WithHealthzEndpoint(localHealthClient{server: hs}),
		runtime.WithDisablePathLengthFallback(),
	)
	if h != nil {
		if err := h.Register(mux); err != nil {
			return nil, fmt.Errorf("failed to register routes: %w", err)
		}
	}
	return mux, nil
}

// Handler returns the HTTP handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves gRPC and HTTP until ctx is cancelled or either server fails
func (s *Server) Run(ctx context.Context) error {
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.grpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port %d: %w", s.grpcPort, err)
	}
	httpListener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		_ = grpcListener.Close()
		return fmt.Errorf("failed to listen on HTTP port %d: %w", s.httpPort, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.WithField("addr", grpcListener.Addr().String()).Info("gRPC server listening")
		if err := s.grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.logger.WithField("addr", httpListener.Addr().String()).Info("HTTP server listening")
		if err := s.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g.Go(func() error {
		<-ctx.Done()
		return s.stop()
	})

	return g.Wait()
}

func (s *Server) stop() error {
	s.logger.Info("Shutting down servers")
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.grpcServer.GracefulStop()
	return err
}

// localHealthClient answers health checks in process so /healthz needs no
// loopback connection. Methods other than Check are not used by the gateway.
type localHealthClient struct {
	healthpb.HealthClient
	server healthpb.HealthServer
}

func (c localHealthClient) Check(ctx context.Context, in *healthpb.HealthCheckRequest, _ ...grpc.CallOption) (*healthpb.HealthCheckResponse, error) {
	return c.server.Check(ctx, in)
}
