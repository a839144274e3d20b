package enrich

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// LookupServer is the server API for the Lookup gRPC service.
//
// Protobuf well-known wrapper types are used so no protoc step is needed:
// the request is the plaintext value, the reply is profile JSON.
type LookupServer interface {
	Profile(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedLookupServer can be embedded to have forward compatible implementations.
type UnimplementedLookupServer struct{}

func (UnimplementedLookupServer) Profile(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Profile not implemented")
}

func RegisterLookupServer(s grpc.ServiceRegistrar, srv LookupServer) {
	s.RegisterService(&Lookup_ServiceDesc, srv)
}

// LookupClient is the client API for the Lookup gRPC service.
type LookupClient interface {
	Profile(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type lookupClient struct{ cc grpc.ClientConnInterface }

func NewLookupClient(cc grpc.ClientConnInterface) LookupClient { return &lookupClient{cc: cc} }

const profileMethod = "/xdao.sealsweep.enrich.v1.Lookup/Profile"

func (c *lookupClient) Profile(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, profileMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Lookup_Profile_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LookupServer).Profile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: profileMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LookupServer).Profile(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Lookup_ServiceDesc is the grpc.ServiceDesc for the Lookup service.
var Lookup_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "xdao.sealsweep.enrich.v1.Lookup",
	HandlerType: (*LookupServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Profile", Handler: _Lookup_Profile_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lookup.proto",
}
