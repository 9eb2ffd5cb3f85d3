// gRPC service descriptor and client for the clock exchange service
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ClockServiceName is the fully qualified gRPC service name
const ClockServiceName = "eventcore.v1.Clock"

const (
	methodNow     = "/" + ClockServiceName + "/Now"
	methodUpdate  = "/" + ClockServiceName + "/Update"
	methodObserve = "/" + ClockServiceName + "/Observe"
)

// ClockServiceServer is the server API of the clock exchange service.
// Timestamps travel as the codec's Timestamp encoding.
type ClockServiceServer interface {
	// Now returns the last issued timestamp
	Now(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	// Update advances the clock for a local or send event
	Update(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	// Observe merges a remote timestamp and returns the new local one
	Observe(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// RegisterClockServiceServer registers srv with s
func RegisterClockServiceServer(s grpc.ServiceRegistrar, srv ClockServiceServer) {
	s.RegisterService(&ClockServiceDesc, srv)
}

func clockNowHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClockServiceServer).Now(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodNow}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClockServiceServer).Now(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func clockUpdateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClockServiceServer).Update(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodUpdate}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClockServiceServer).Update(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func clockObserveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClockServiceServer).Observe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodObserve}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClockServiceServer).Observe(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ClockServiceDesc describes the clock exchange service for grpc.Server
var ClockServiceDesc = grpc.ServiceDesc{
	ServiceName: ClockServiceName,
	HandlerType: (*ClockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Now", Handler: clockNowHandler},
		{MethodName: "Update", Handler: clockUpdateHandler},
		{MethodName: "Observe", Handler: clockObserveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eventcore/v1/clock.proto",
}

// ClockServiceClient calls the clock exchange service
type ClockServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewClockServiceClient creates a client on cc
func NewClockServiceClient(cc grpc.ClientConnInterface) *ClockServiceClient {
	return &ClockServiceClient{cc: cc}
}

func (c *ClockServiceClient) Now(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, methodNow, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ClockServiceClient) Update(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, methodUpdate, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ClockServiceClient) Observe(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, methodObserve, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
