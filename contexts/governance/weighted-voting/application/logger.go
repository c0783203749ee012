package application

import "log/slog"

// Module is the structured-log module tag shared by every layer.
const Module = "governance/weighted-voting"

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
