// Package attackkb is an in-memory MITRE ATT&CK knowledge base.
//
// Open reads a STIX 2.x bundle once, indexes its techniques, tactics,
// mitigations and detections, and returns a KB whose query engine answers
// read-only lookups:
//
//	kb, err := attackkb.Open(ctx, attackkb.WithFile("enterprise-attack.json.gz"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	t, err := kb.Engine().ResolveByID(ctx, "T1059.001")
//	matches, err := kb.Engine().FuzzyResolveByName(ctx, "phishing")
//	mitigations, err := kb.Engine().Mitigations(ctx, "T1566.001")
//
// The index is immutable after Open and may be shared by any number of
// goroutines. Query failures match ErrNotFound or ErrInvalidArgument with
// errors.Is; a dataset that is not a bundle fails Open with
// ErrDatasetMalformed.
//
// # Packages
//
//   - stix: dataset sources (file, Redis) and bundle decoding
//   - index: entity classification and the by-ID, by-name and adjacency index
//   - query: the query engine and its result records
//   - toolset, tool, schema, toolerr: the engine exposed as named tools
//   - serve: gRPC and stdio transports for the tools
//   - registry: etcd self registration
//   - config: attack-kb.yaml loading
package attackkb
