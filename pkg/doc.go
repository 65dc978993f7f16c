// Package pkg provides shared utilities for the usbasync transfer stack.
//
// This package contains functionality used across the coordination core
// and the engine backends:
//
//   - Structured logging via Go's standard [log/slog] package
//   - The sentinel error taxonomy shared with the event-processing engine
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with transfer-stack context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentGroup, "transfer submitted", "endpoint", 0x81)
//
// # Errors
//
// Engine failures are reported as sentinel values mapped from raw engine
// result codes:
//
//	if errors.Is(err, pkg.ErrNoDevice) {
//	    // Handle device disconnect
//	}
package pkg
