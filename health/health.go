package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/zero-day-ai/attack-kb/index"
	"github.com/zero-day-ai/attack-kb/types"
)

// DefaultDialTimeout bounds NetworkCheck when ctx has no deadline.
const DefaultDialTimeout = 5 * time.Second

// IndexCheck reports whether idx can answer queries. An index without
// techniques or tactics is unhealthy; one built from a bundle with
// undecodable entries is degraded. The build diagnostics are attached as
// details.
func IndexCheck(idx *index.Index) types.HealthStatus {
	if idx == nil {
		return types.NewUnhealthyStatus("knowledge base is not loaded", nil)
	}

	diag := idx.Diagnostics()
	details := map[string]any{
		"techniques":    diag.Entities[index.KindTechnique],
		"tactics":       diag.Entities[index.KindTactic],
		"mitigations":   diag.Entities[index.KindMitigation],
		"detections":    diag.Entities[index.KindDetection],
		"relationships": diag.Relationships,
		"dangling_refs": diag.DanglingRefs,
		"undecodable":   diag.Undecodable,
	}

	switch {
	case diag.Entities[index.KindTechnique] == 0 || diag.Entities[index.KindTactic] == 0:
		return types.NewUnhealthyStatus("knowledge base has no techniques or tactics", details)
	case diag.Undecodable > 0:
		return types.NewDegradedStatus(
			fmt.Sprintf("%d dataset entries could not be decoded", diag.Undecodable),
			details,
		)
	default:
		return types.HealthStatus{
			Status: types.StatusHealthy,
			Message: fmt.Sprintf("%d techniques across %d tactics",
				diag.Entities[index.KindTechnique], diag.Entities[index.KindTactic]),
			Details: details,
		}
	}
}

// NetworkCheck verifies TCP connectivity to address ("host:port").
//
// Example:
//
//	status := health.NetworkCheck(ctx, "localhost:6379")
func NetworkCheck(ctx context.Context, address string) types.HealthStatus {
	if _, _, err := net.SplitHostPort(address); err != nil {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("invalid address %q", address),
			map[string]any{"error": err.Error()},
		)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDialTimeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("failed to connect to %s", address),
			map[string]any{"address": address, "error": err.Error()},
		)
	}
	conn.Close()

	return types.NewHealthyStatus(fmt.Sprintf("connected to %s", address))
}

// FileCheck verifies that a regular file exists at path and can be opened.
func FileCheck(path string) types.HealthStatus {
	if path == "" {
		return types.NewUnhealthyStatus("path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewUnhealthyStatus(
				fmt.Sprintf("%s does not exist", path),
				map[string]any{"path": path},
			)
		}
		return types.NewUnhealthyStatus(
			fmt.Sprintf("failed to stat %s", path),
			map[string]any{"path": path, "error": err.Error()},
		)
	}
	if info.IsDir() {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("%s is a directory", path),
			map[string]any{"path": path},
		)
	}

	f, err := os.Open(path)
	if err != nil {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("%s is not readable", path),
			map[string]any{"path": path, "error": err.Error()},
		)
	}
	f.Close()

	return types.NewHealthyStatus(fmt.Sprintf("%s is readable (%d bytes)", path, info.Size()))
}

// Combine aggregates checks. Any unhealthy (or unknown) check makes the
// result unhealthy, otherwise any degraded check makes it degraded. The
// messages of the failing checks are listed in the details.
func Combine(checks ...types.HealthStatus) types.HealthStatus {
	if len(checks) == 0 {
		return types.NewHealthyStatus("no checks provided")
	}

	var unhealthy, degraded []string
	for _, check := range checks {
		msg := check.Message
		if msg == "" {
			msg = "unnamed check"
		}

		switch check.Status {
		case types.StatusHealthy:
		case types.StatusDegraded:
			degraded = append(degraded, msg)
		default:
			unhealthy = append(unhealthy, msg)
		}
	}

	details := map[string]any{
		"total":     len(checks),
		"unhealthy": len(unhealthy),
		"degraded":  len(degraded),
	}

	switch {
	case len(unhealthy) > 0:
		details["failed_checks"] = unhealthy
		return types.NewUnhealthyStatus(fmt.Sprintf("%d check(s) failed", len(unhealthy)), details)
	case len(degraded) > 0:
		details["degraded_checks"] = degraded
		return types.NewDegradedStatus(fmt.Sprintf("%d check(s) degraded", len(degraded)), details)
	default:
		return types.NewHealthyStatus(fmt.Sprintf("all %d check(s) passed", len(checks)))
	}
}
