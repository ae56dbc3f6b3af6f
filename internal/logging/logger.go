// Package logging defines the structured logger the agent's layers depend
// on, keeping them decoupled from the concrete backend (slog today).
package logging

import "context"

// Logger logs structured key-value pairs with a context, e.g.:
//
//	log.Info(ctx, "dataitem placed", "dataitem_id", id, "bucket", bucket)
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)

	Warn(ctx context.Context, msg string, args ...any)

	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger carrying the given pairs on every record.
	With(args ...any) Logger
}
