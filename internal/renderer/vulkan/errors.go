package vulkan

import "github.com/cockroachdb/errors"

var (
	ErrDriver                 = errors.New("graphics driver call failed")
	ErrInvalidState           = errors.New("invalid state transition")
	ErrValidationLayerMissing = errors.New("required validation layer not available")
	ErrSurfaceCreation        = errors.New("failed to create window surface")
	ErrDeviceCreation         = errors.New("failed to create logical device")
	ErrNoPhysicalDevice       = errors.New("no devices which support Vulkan were found")
	ErrNoSuitableDevice       = errors.New("no physical devices were found which meet the requirements")
	ErrNoDepthFormat          = errors.New("failed to find a supported depth format")
	ErrNoMemoryType           = errors.New("failed to find a suitable memory type")
	ErrSwapchainOutOfDate     = errors.New("swapchain is out of date")
	ErrNotInitialized         = errors.New("renderer is not initialized")
)
