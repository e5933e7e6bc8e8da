package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "statement.v1.StatementExtractor"

// StatementExtractorServer is served over well-known protobuf types so no
// generated stubs are needed.
type StatementExtractorServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Submit(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	GetJob(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	CancelJob(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	ParseManual(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterStatementExtractorServer(s grpc.ServiceRegistrar, srv StatementExtractorServer) {
	s.RegisterService(&StatementExtractorServiceDesc, srv)
}

// unary builds a method handler for one request type.
func unary[Req any, PReq interface{ *Req }, Resp any](name string, call func(StatementExtractorServer, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(StatementExtractorServer)
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(impl, ctx, req.(PReq))
			})
		},
	}
}

var StatementExtractorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatementExtractorServer)(nil),
	Methods: []grpc.MethodDesc{
		unary[structpb.Struct]("Extract", StatementExtractorServer.Extract),
		unary[structpb.Struct]("Submit", StatementExtractorServer.Submit),
		unary[wrapperspb.StringValue]("GetJob", StatementExtractorServer.GetJob),
		unary[wrapperspb.StringValue]("CancelJob", StatementExtractorServer.CancelJob),
		unary[structpb.Struct]("ParseManual", StatementExtractorServer.ParseManual),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "statement/v1/statement.proto",
}

// Client is a thin caller for StatementExtractor.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *Client) Extract(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "Extract", in, out, opts...)
}

func (c *Client) Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	return out, c.invoke(ctx, "Submit", in, out, opts...)
}

func (c *Client) GetJob(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "GetJob", in, out, opts...)
}

func (c *Client) CancelJob(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	return out, c.invoke(ctx, "CancelJob", in, out, opts...)
}

func (c *Client) ParseManual(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "ParseManual", in, out, opts...)
}
