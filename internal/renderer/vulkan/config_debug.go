//go:build debug

package vulkan

// DiagnosticsDefault is true in debug builds.
const DiagnosticsDefault = true
