package serve

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zero-day-ai/attack-kb/tool"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToolServiceName is the fully qualified gRPC service name.
const ToolServiceName = "attackkb.v1.ToolService"

// Full method names.
const (
	ListToolsMethod = "/" + ToolServiceName + "/ListTools"
	ExecuteMethod   = "/" + ToolServiceName + "/Execute"
)

// ToolServiceServer is the server API for attackkb.v1.ToolService.
type ToolServiceServer interface {
	ListTools(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ToolServiceDesc describes attackkb.v1.ToolService. Messages are
// google.protobuf.Struct values, so no generated code is needed.
var ToolServiceDesc = grpc.ServiceDesc{
	ServiceName: ToolServiceName,
	HandlerType: (*ToolServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListTools", Handler: listToolsHandler},
		{MethodName: "Execute", Handler: executeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "attackkb/v1/tool_service.proto",
}

// RegisterToolServiceServer registers srv on s.
func RegisterToolServiceServer(s grpc.ServiceRegistrar, srv ToolServiceServer) {
	s.RegisterService(&ToolServiceDesc, srv)
}

func listToolsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ToolServiceServer).ListTools(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListToolsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolServiceServer).ListTools(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ToolServiceServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExecuteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolServiceServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ToolServiceClient is the client API for attackkb.v1.ToolService.
type ToolServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewToolServiceClient returns a client over cc.
func NewToolServiceClient(cc grpc.ClientConnInterface) *ToolServiceClient {
	return &ToolServiceClient{cc: cc}
}

// ListTools calls ListTools.
func (c *ToolServiceClient) ListTools(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListToolsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Execute calls Execute.
func (c *ToolServiceClient) Execute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ExecuteMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Call executes a tool and decodes the response.
func (c *ToolServiceClient) Call(ctx context.Context, req Request, opts ...grpc.CallOption) (*Response, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out, err := c.Execute(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := convert(out.AsMap(), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// toolService implements ToolServiceServer over a dispatcher.
type toolService struct {
	tools      *tool.Registry
	dispatcher *dispatcher
}

func newToolService(tools *tool.Registry, d *dispatcher) *toolService {
	return &toolService{tools: tools, dispatcher: d}
}

func (s *toolService) ListTools(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	descriptors := s.tools.Descriptors()
	list := make([]any, 0, len(descriptors))
	for _, d := range descriptors {
		var m map[string]any
		if err := convert(d, &m); err != nil {
			return nil, status.Errorf(codes.Internal, "failed to encode descriptor %s: %v", d.Name, err)
		}
		list = append(list, m)
	}

	out, err := structpb.NewStruct(map[string]any{
		"tools": list,
		"count": len(list),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode tool list: %v", err)
	}
	return out, nil
}

func (s *toolService) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req Request
	if err := convert(in.AsMap(), &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if req.Method != "" && req.Method != MethodExecute {
		return nil, status.Errorf(codes.InvalidArgument, "method %q is not valid for Execute", req.Method)
	}

	resp := s.dispatcher.handle(ctx, req)

	out, err := toStruct(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// convert moves v into out through its JSON form.
func convert(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func toStruct(v any) (*structpb.Struct, error) {
	var m map[string]any
	if err := convert(v, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
