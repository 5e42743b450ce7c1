// Package logbase provides logging helpers shared across the daemon.
package logbase

import (
	"context"
	"log/slog"
	"os"
)

// Fatal logs the message at error level and terminates the process. It is
// meant for unrecoverable startup failures, not for runtime errors.
func Fatal(log *slog.Logger, msg string, args ...any) {
	log.Error(msg, args...)
	os.Exit(1)
}

func FatalContext(ctx context.Context, log *slog.Logger, msg string, args ...any) {
	log.ErrorContext(ctx, msg, args...)
	os.Exit(1)
}
