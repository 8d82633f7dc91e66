// Package vmconfig centralizes the handful of environment-driven knobs
// vmarmcore reads at process start, following the teacher's own use of
// xyproto/env for configuration.
package vmconfig

import "github.com/xyproto/env/v2"

// StrictSymbols reports whether the custom linker should treat an
// unresolved symbol required by a relocation as a load failure (strict)
// instead of the historical permissive behavior of continuing with a zero
// address (spec.md Open Question, resolved in DESIGN.md).
func StrictSymbols() bool {
	return env.Bool("VMARMCORE_STRICT_SYMBOLS")
}

// LogLevel returns the configured logrus level name (see internal/vmlog).
func LogLevel() string {
	return env.Str("VMARMCORE_LOG_LEVEL", "info")
}
