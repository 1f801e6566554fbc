// Package tool defines named, schema-described operations and the registry
// that transports dispatch to.
//
// A Tool has a name, a version, a description, JSON schemas for its
// arguments and its result, an Execute function over plain JSON values and
// a health check. Tools are assembled with the fluent Config builder:
//
//	t, err := tool.New(tool.NewConfig().
//		SetName("list_tactics").
//		SetDescription("List every ATT&CK tactic").
//		SetOutputSchema(schema.Object(map[string]schema.JSON{
//			"results": schema.Array(schema.FromType(query.Tactic{})),
//			"count":   schema.Int(),
//		}, "results", "count")).
//		SetExecuteFunc(func(ctx context.Context, input map[string]any) (map[string]any, error) {
//			...
//		}))
//
// Execute validates the arguments before calling the function and the
// result after it. Every error it returns is a *toolerr.Error.
//
// A Registry holds the tools a server exposes, in registration order.
package tool
