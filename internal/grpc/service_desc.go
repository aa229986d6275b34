package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name, also used as the
// health-check key.
const ServiceName = "dashboard.v1.Dashboard"

const (
	methodGetStats        = "/" + ServiceName + "/GetStats"
	methodListEvaluations = "/" + ServiceName + "/ListEvaluations"
	methodListTickets     = "/" + ServiceName + "/ListTickets"
)

// DashboardServer is the server API. Requests and responses are
// google.protobuf.Struct values carrying the same JSON shapes as the HTTP API.
type DashboardServer interface {
	GetStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListEvaluations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListTickets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv DashboardServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DashboardServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DashboardServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var dashboardServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStats", Handler: unaryHandler(methodGetStats, DashboardServer.GetStats)},
		{MethodName: "ListEvaluations", Handler: unaryHandler(methodListEvaluations, DashboardServer.ListEvaluations)},
		{MethodName: "ListTickets", Handler: unaryHandler(methodListTickets, DashboardServer.ListTickets)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dashboard/v1/dashboard.proto",
}

func RegisterDashboardServer(s grpc.ServiceRegistrar, srv DashboardServer) {
	s.RegisterService(&dashboardServiceDesc, srv)
}

// DashboardClient calls the Dashboard service over conn.
type DashboardClient struct {
	cc grpc.ClientConnInterface
}

func NewDashboardClient(cc grpc.ClientConnInterface) *DashboardClient {
	return &DashboardClient{cc: cc}
}

func (c *DashboardClient) invoke(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DashboardClient) GetStats(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetStats, req, opts...)
}

func (c *DashboardClient) ListEvaluations(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListEvaluations, req, opts...)
}

func (c *DashboardClient) ListTickets(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListTickets, req, opts...)
}
