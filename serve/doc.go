// Package serve exposes a tool registry over gRPC or over stdio.
//
// The gRPC transport implements attackkb.v1.ToolService with two unary
// methods whose messages are google.protobuf.Struct values:
//
//	ListTools(Struct{})                                    -> {"tools": [...], "count": n}
//	Execute(Struct{"tool", "arguments", "timeout_ms"?, "id"?}) -> {"id", "tool", "result" | "error"}
//
// Tool failures are not RPC failures: they come back as a structured
// "error" object (see package toolerr). Only a request that cannot be
// decoded fails with codes.InvalidArgument. The standard gRPC health
// service reports SERVING while every tool is healthy or degraded.
//
// The stdio transport reads one JSON request per line and writes one JSON
// response per line, using the same request and response shapes:
//
//	{"tool": "query_technique", "arguments": {"technique_id": "T1059.001"}}
//	{"method": "list_tools"}
//
// # Usage
//
//	tools, _ := toolset.New(engine)
//	err := serve.Run(ctx, tools,
//	    serve.WithPort(50051),
//	    serve.WithRateLimit(200, 50),
//	    serve.WithRegistryFromEnv(),
//	)
//
// Both transports share the same dispatcher, so rate limiting, per-call
// timeouts and request IDs behave the same way.
package serve
