package vulkan

import "github.com/go-gl/mathgl/mgl32"

const (
	khrSurfaceExtensionName                = "VK_KHR_surface"
	khrSwapchainExtensionName              = "VK_KHR_swapchain"
	khrPortabilitySubsetExtensionName      = "VK_KHR_portability_subset"
	khrPortabilityEnumerationExtensionName = "VK_KHR_portability_enumeration"
	extDebugUtilsExtensionName             = "VK_EXT_debug_utils"

	khronosValidationLayerName = "VK_LAYER_KHRONOS_validation"
)

// Config controls how the renderer connects to the driver.
type Config struct {
	ApplicationName    string
	ApplicationVersion Version
	EngineName         string
	APIVersion         Version

	// Diagnostics enables the debug-utils extension, the validation layers
	// and the debug messenger. Every listed layer must be installed.
	Diagnostics      bool
	ValidationLayers []string

	MaxFramesInFlight int
	ClearColor        mgl32.Vec4
}

func DefaultConfig(applicationName string) Config {
	return Config{
		ApplicationName:    applicationName,
		ApplicationVersion: MakeVersion(1, 0, 0),
		EngineName:         "vkngwrapper renderer",
		APIVersion:         Vulkan1_2,
		Diagnostics:        DiagnosticsDefault,
		ValidationLayers:   []string{khronosValidationLayerName},
		MaxFramesInFlight:  2,
		ClearColor:         mgl32.Vec4{0, 0, 0.2, 1},
	}
}
