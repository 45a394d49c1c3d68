package internal

import "log/slog"

// LevelTrace is a logging level below [slog.LevelDebug] used for per-segment
// and per-tick tracing that is too noisy for ordinary debug output.
const LevelTrace slog.Level = slog.LevelDebug - 2

// LogAttrs returns attrs unmodified when enabled is true and nil otherwise,
// so the call site can pass a non-nil result straight to
// [slog.Logger.LogAttrs] and skip the logging call on a nil one. The attrs
// themselves are built by the caller either way.
func LogAttrs(enabled bool, attrs ...slog.Attr) []slog.Attr {
	if !enabled {
		return nil
	}
	return attrs
}
