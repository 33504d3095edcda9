package vulkan

import (
	"github.com/vkngwrapper/renderer/internal/containers"
	"github.com/vkngwrapper/renderer/internal/logger"
	"github.com/vkngwrapper/renderer/internal/memory"
)

// SwapchainSupportInfo is what a surface offers on one physical device. The
// format and present mode lists are owned; call Release when discarding it.
type SwapchainSupportInfo struct {
	Capabilities SurfaceCapabilities
	formats      *containers.Darray[SurfaceFormat]
	presentModes *containers.Darray[PresentMode]
}

func (s *SwapchainSupportInfo) Formats() []SurfaceFormat {
	if s == nil {
		return nil
	}
	return s.formats.Items()
}

func (s *SwapchainSupportInfo) PresentModes() []PresentMode {
	if s == nil {
		return nil
	}
	return s.presentModes.Items()
}

// Release frees the owned lists. It is safe on a nil or released value.
func (s *SwapchainSupportInfo) Release() {
	if s == nil {
		return
	}
	s.formats.Release()
	s.presentModes.Release()
	s.formats = nil
	s.presentModes = nil
	s.Capabilities = SurfaceCapabilities{}
}

// querySwapchainSupport reads capabilities, formats and present modes for
// surface. A failed query leaves the remaining lists empty, which callers
// treat as inadequate support.
func querySwapchainSupport(
	instance InstanceDriver,
	device PhysicalDevice,
	surface Surface,
	log *logger.Logger,
	mem *memory.Tracker,
) *SwapchainSupportInfo {
	info := &SwapchainSupportInfo{}

	capabilities, res := instance.GetPhysicalDeviceSurfaceCapabilities(surface, device)
	if res != Success {
		log.Errorf("Failed to query surface capabilities (VkResult: %d)", int32(res))
		return info
	}
	info.Capabilities = capabilities

	formats, res := instance.GetPhysicalDeviceSurfaceFormats(surface, device)
	if res != Success {
		log.Errorf("Failed to query surface formats (VkResult: %d)", int32(res))
		return info
	}
	if len(formats) > 0 {
		info.formats = containers.DarrayFrom(mem, memory.TagRenderer, formats)
	}

	presentModes, res := instance.GetPhysicalDeviceSurfacePresentModes(surface, device)
	if res != Success {
		log.Errorf("Failed to query present modes (VkResult: %d)", int32(res))
		return info
	}
	if len(presentModes) > 0 {
		info.presentModes = containers.DarrayFrom(mem, memory.TagRenderer, presentModes)
	}

	log.Debugf("Swapchain support queried: %d formats, %d present modes",
		info.formats.Len(), info.presentModes.Len())
	return info
}
