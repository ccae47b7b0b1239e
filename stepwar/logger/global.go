package logger

import (
	"log/slog"
	"time"
)

// LogObservation logs one sample submission outcome.
func LogObservation(userID string, steps int64, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "observation"),
		slog.String("user_id", userID),
		slog.Int64("steps", steps),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Warn("Observation rejected", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Observation recorded", attrs...)
	}
}

// LogSync logs reconciliation events.
func LogSync(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sync")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogSystem logs system events.
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs error events.
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
