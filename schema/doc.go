// Package schema provides the JSON Schema subset used to describe and
// validate tool arguments and results.
//
// Schemas are built with small constructors:
//
//	args := schema.Object(map[string]schema.JSON{
//		"technique_id": schema.StringWithDesc("ATT&CK technique ID, e.g. T1059.001").
//			WithPattern(`^[Tt]\d{4}(\.\d{3})?$`),
//		"tech_name": schema.StringWithDesc("Technique name fragment"),
//	}).Closed()
//
//	err := args.Validate(map[string]any{"technique_id": "T1059.001"})
//
// Validation errors name the offending path ("technique_id: expected string,
// got float64") so they can be returned to callers unchanged.
//
// FromType derives an object schema from a Go struct using its json tags;
// the tool layer uses it to describe result records.
package schema
