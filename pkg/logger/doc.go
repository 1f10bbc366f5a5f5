// Package logger builds the service's slog.Logger: JSON in production, text
// in development, with static service attributes and optional per-record
// attribute extraction from context (request ids and the like).
package logger
