package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "predictd.v1.Predictor"

	// PredictMethod is the full method name of the unary Predict call.
	PredictMethod = "/" + ServiceName + "/Predict"
)

// PredictorServer is the server API for the predictd.v1.Predictor service.
// Requests and responses are google.protobuf.Struct values shaped like the
// HTTP bodies: {"inputs": [[...]]} in, {"predictions": [...]} out.
type PredictorServer interface {
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the predictd.v1.Predictor service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Predict",
			Handler:    predictHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "predictd/v1/predictor.proto",
}

// RegisterPredictorServer registers srv on s.
func RegisterPredictorServer(s grpc.ServiceRegistrar, srv PredictorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).Predict(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PredictMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictorServer).Predict(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

// PredictorClient is the client API for the predictd.v1.Predictor service.
type PredictorClient struct {
	cc grpc.ClientConnInterface
}

// NewPredictorClient creates a client on cc.
func NewPredictorClient(cc grpc.ClientConnInterface) *PredictorClient {
	return &PredictorClient{cc: cc}
}

// Predict calls predictd.v1.Predictor/Predict.
func (c *PredictorClient) Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PredictMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
