package pg

import "context"

// logger is the slog-compatible subset the migration runner needs.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}
