// Package grpc serves the prediction API over gRPC.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ekisa-team/predictd/internal/service"
)

// RequestIDKey is the metadata key carrying the request id.
const RequestIDKey = "x-request-id"

// Server is the gRPC front of the prediction service.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     *slog.Logger
	addr       string
}

// NewServer creates a gRPC server exposing svc and the standard health service.
func NewServer(addr string, svc *service.Predict, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		recoveryInterceptor(logger),
		loggingInterceptor(logger),
	))
	gs := grpc.NewServer(opts...)

	RegisterPredictorServer(gs, &predictorServer{service: svc})

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	st := healthpb.HealthCheckResponse_SERVING
	if !svc.Handle().Available() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(ServiceName, st)

	return &Server{
		grpcServer: gs,
		health:     hs,
		logger:     logger,
		addr:       addr,
	}
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc: failed to listen on %s: %w", s.addr, err)
	}

	return s.Serve(l)
}

// Serve serves on l until Stop.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("gRPC server started", "addr", l.Addr().String())

	if err := s.grpcServer.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc: server failed: %w", err)
	}

	return nil
}

// Stop drains in-flight calls, or stops hard once ctx is done.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("Shutting down gRPC server")
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
	}
}

type predictorServer struct {
	service *service.Predict
}

func (p *predictorServer) Predict(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	prediction, err := p.service.PredictPayload(ctx, "grpc", in.AsMap())
	if err != nil {
		return nil, toStatus(err)
	}

	values := make([]any, len(prediction.Predictions))
	for i, v := range prediction.Predictions {
		values[i] = v
	}

	out, err := structpb.NewStruct(map[string]any{"predictions": values})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode predictions: %v", err)
	}

	return out, nil
}

// CodeFor maps a service error kind to a gRPC status code.
func CodeFor(kind service.Kind) codes.Code {
	switch kind {
	case service.KindModelUnavailable:
		return codes.Unavailable
	case service.KindInvalidInput:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

func toStatus(err error) error {
	return status.Error(CodeFor(service.KindOf(err)), err.Error())
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		requestID := uuid.NewString()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(RequestIDKey); len(ids) > 0 && ids[0] != "" {
				requestID = ids[0]
			}
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, requestID))

		resp, err := handler(ctx, req)

		logger.InfoContext(ctx, "gRPC request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
			"request_id", requestID,
		)

		return resp, err
	}
}

func recoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "Panic recovered", "method", info.FullMethod, "panic", r)
				resp, err = nil, status.Error(codes.Internal, "Internal Server Error")
			}
		}()

		return handler(ctx, req)
	}
}
