// Package server implements the gRPC clock exchange service and the HTTP
// observability endpoints of eventcore
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nainya/eventcore/internal/logger"
	"github.com/nainya/eventcore/internal/metrics"
	"github.com/nainya/eventcore/pkg/hlc"
	"github.com/nainya/eventcore/pkg/layout"
)

// Server implements ClockServiceServer over a hybrid logical clock
type Server struct {
	clock   *hlc.Clock
	codec   layout.Handler
	metrics *metrics.Metrics
	log     *logger.Logger

	startTime time.Time
}

// NewServer creates a clock service instance
func NewServer(clock *hlc.Clock, m *metrics.Metrics, log *logger.Logger) (*Server, error) {
	if clock == nil {
		return nil, errors.New("server: clock is required")
	}
	codec, err := layout.Resolve(layout.Timestamp())
	if err != nil {
		return nil, fmt.Errorf("server: timestamp codec: %w", err)
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Server{
		clock:     clock,
		codec:     codec,
		metrics:   m,
		log:       log,
		startTime: time.Now(),
	}, nil
}

// EncodeTimestamp returns the wire form of ts
func EncodeTimestamp(ts hlc.HybridTimestamp) ([]byte, error) {
	codec, err := layout.Resolve(layout.Timestamp())
	if err != nil {
		return nil, err
	}
	return layout.Marshal(codec, ts)
}

// DecodeTimestamp parses the wire form of a timestamp
func DecodeTimestamp(data []byte) (hlc.HybridTimestamp, error) {
	codec, err := layout.Resolve(layout.Timestamp())
	if err != nil {
		return hlc.HybridTimestamp{}, err
	}
	v, err := layout.Unmarshal(codec, data)
	if err != nil {
		return hlc.HybridTimestamp{}, err
	}
	return v.(hlc.HybridTimestamp), nil
}

func (s *Server) reply(kind string, ts hlc.HybridTimestamp, err error) (*wrapperspb.BytesValue, error) {
	s.metrics.RecordClockUpdate(kind, ts, err)
	if err != nil {
		if errors.Is(err, hlc.ErrTimeNotAvailable) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "clock update failed: %v", err)
	}
	b, err := layout.Marshal(s.codec, ts)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode timestamp: %v", err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Now(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	b, err := layout.Marshal(s.codec, s.clock.Now())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode timestamp: %v", err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Update(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	ts, err := s.clock.Update()
	return s.reply("local", ts, err)
}

func (s *Server) Observe(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	v, err := layout.Unmarshal(s.codec, req.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid timestamp: %v", err)
	}
	ts, err := s.clock.Observe(v.(hlc.HybridTimestamp))
	return s.reply("receive", ts, err)
}

// Uptime returns the time since the server was created
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// NewGRPCServer creates a gRPC server with the clock and health services
// registered and the metrics interceptor installed
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(GrpcMetricsInterceptor(s.metrics, s.log)),
	}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterClockServiceServer(gs, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ClockServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}
