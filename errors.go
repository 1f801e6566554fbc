package attackkb

import (
	"io"
	"log/slog"

	"github.com/zero-day-ai/attack-kb/kberr"
)

// Sentinel errors, re-exported from kberr for callers that only import
// this package.
var (
	// ErrDatasetMalformed indicates the dataset is not a STIX bundle.
	ErrDatasetMalformed = kberr.ErrDatasetMalformed

	// ErrNotFound indicates a well-formed query referenced an unknown ID.
	ErrNotFound = kberr.ErrNotFound

	// ErrInvalidArgument indicates a query was malformed.
	ErrInvalidArgument = kberr.ErrInvalidArgument
)

// CloseWithLog closes closer and logs any error at warning level. It is
// meant for defer statements.
//
//	defer attackkb.CloseWithLog(src, logger, "redis source")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
