// Package toolerr provides the structured error type returned by
// knowledge-base tools.
//
// An Error names the tool and operation that failed, carries a stable code
// (NOT_FOUND, INVALID_INPUT, DATASET_MALFORMED, ...) and an ErrorClass that
// tells a caller whether retrying can help. Transports serialize it as the
// "error" member of a tool result instead of failing the call.
//
// FromError converts the kberr taxonomy into tool errors:
//
//	out, err := engine.ResolveByID(ctx, id)
//	if err != nil {
//		return nil, toolerr.FromError("query_technique", "resolve", err)
//	}
//
// Recovery hints can be registered per tool and code with Register; FromError
// and EnrichError attach them.
package toolerr
