//go:build !debug

package vulkan

// DiagnosticsDefault is false unless built with the debug tag.
const DiagnosticsDefault = false
