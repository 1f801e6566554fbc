// Package health provides the health checks a knowledge-base server reports.
//
//   - IndexCheck: the index was built and holds techniques and tactics
//   - FileCheck: a dataset file exists and is readable
//   - NetworkCheck: a TCP dependency (redis, etcd) is reachable
//   - Combine: aggregate several checks into one status
//
// Checks return types.HealthStatus values; the serve package maps them onto
// the gRPC health service.
package health
