package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/renderer/internal/renderer/vulkan"
)

// InstanceDriver wraps a live instance together with its surface and
// debug-utils extensions.
type InstanceDriver struct {
	driver  core1_0.CoreInstanceDriver
	surface khr_surface.ExtensionDriver
	debug   ext_debug_utils.ExtensionDriver

	physicalDevices *registry[core1_0.PhysicalDevice]
	surfaces        *registry[khr_surface.Surface]
	messengers      *registry[ext_debug_utils.DebugUtilsMessenger]
}

var _ vulkan.InstanceDriver = (*InstanceDriver)(nil)

// Instance exposes the wrapped instance for platform surface creation.
func (i *InstanceDriver) Instance() core1_0.Instance {
	return i.driver.Instance()
}

// SurfaceExtension exposes the surface extension for platform surface
// creation.
func (i *InstanceDriver) SurfaceExtension() khr_surface.ExtensionDriver {
	return i.surface
}

// AdoptSurface registers a surface created outside the adapter.
func (i *InstanceDriver) AdoptSurface(surface khr_surface.Surface) vulkan.Surface {
	return vulkan.Surface(i.surfaces.add(surface))
}

func (i *InstanceDriver) physicalDevice(handle vulkan.PhysicalDevice) core1_0.PhysicalDevice {
	device, _ := i.physicalDevices.get(uintptr(handle))
	return device
}

func (i *InstanceDriver) surfaceOf(handle vulkan.Surface) khr_surface.Surface {
	surface, _ := i.surfaces.get(uintptr(handle))
	return surface
}

func (i *InstanceDriver) EnumeratePhysicalDevices() ([]vulkan.PhysicalDevice, vulkan.Result) {
	devices, res, err := i.driver.EnumeratePhysicalDevices()
	if err != nil {
		return nil, result(res, err)
	}

	handles := make([]vulkan.PhysicalDevice, 0, len(devices))
	for _, device := range devices {
		handles = append(handles, vulkan.PhysicalDevice(i.physicalDevices.add(device)))
	}
	return handles, result(res, nil)
}

func (i *InstanceDriver) GetPhysicalDeviceProperties(device vulkan.PhysicalDevice) (vulkan.PhysicalDeviceProperties, vulkan.Result) {
	properties, err := i.driver.GetPhysicalDeviceProperties(i.physicalDevice(device))
	if err != nil {
		return vulkan.PhysicalDeviceProperties{}, vulkan.ErrorInitializationFailed
	}
	return vulkan.PhysicalDeviceProperties{
		DeviceName:        properties.DriverName,
		DeviceType:        vulkan.DeviceType(properties.DriverType),
		VendorID:          properties.VendorID,
		DeviceID:          properties.DeviceID,
		DriverVersion:     vulkan.Version(properties.DriverVersion),
		APIVersion:        vulkan.Version(properties.APIVersion),
		PipelineCacheUUID: properties.PipelineCacheUUID,
	}, vulkan.Success
}

func (i *InstanceDriver) GetPhysicalDeviceFeatures(device vulkan.PhysicalDevice) vulkan.PhysicalDeviceFeatures {
	features := i.driver.GetPhysicalDeviceFeatures(i.physicalDevice(device))
	return vulkan.PhysicalDeviceFeatures{
		SamplerAnisotropy: features.SamplerAnisotropy,
		GeometryShader:    features.GeometryShader,
	}
}

func (i *InstanceDriver) GetPhysicalDeviceMemoryProperties(device vulkan.PhysicalDevice) vulkan.MemoryProperties {
	properties := i.driver.GetPhysicalDeviceMemoryProperties(i.physicalDevice(device))

	var out vulkan.MemoryProperties
	for _, memoryType := range properties.MemoryTypes {
		out.MemoryTypes = append(out.MemoryTypes, vulkan.MemoryType{
			PropertyFlags: vulkan.MemoryPropertyFlags(memoryType.PropertyFlags),
			HeapIndex:     memoryType.HeapIndex,
		})
	}
	for _, heap := range properties.MemoryHeaps {
		out.MemoryHeaps = append(out.MemoryHeaps, vulkan.MemoryHeap{
			Size:  uint64(heap.Size),
			Flags: vulkan.MemoryHeapFlags(heap.Flags),
		})
	}
	return out
}

func (i *InstanceDriver) GetPhysicalDeviceQueueFamilyProperties(device vulkan.PhysicalDevice) []vulkan.QueueFamilyProperties {
	families := i.driver.GetPhysicalDeviceQueueFamilyProperties(i.physicalDevice(device))

	out := make([]vulkan.QueueFamilyProperties, 0, len(families))
	for _, family := range families {
		out = append(out, vulkan.QueueFamilyProperties{
			Flags:      vulkan.QueueFlags(family.QueueFlags),
			QueueCount: family.QueueCount,
		})
	}
	return out
}

func (i *InstanceDriver) GetPhysicalDeviceFormatProperties(device vulkan.PhysicalDevice, format vulkan.Format) vulkan.FormatProperties {
	properties := i.driver.GetPhysicalDeviceFormatProperties(i.physicalDevice(device), core1_0.Format(format))
	return vulkan.FormatProperties{
		LinearTilingFeatures:  vulkan.FormatFeatureFlags(properties.LinearTilingFeatures),
		OptimalTilingFeatures: vulkan.FormatFeatureFlags(properties.OptimalTilingFeatures),
		BufferFeatures:        vulkan.FormatFeatureFlags(properties.BufferFeatures),
	}
}

func (i *InstanceDriver) EnumerateDeviceExtensionProperties(device vulkan.PhysicalDevice) ([]string, vulkan.Result) {
	extensions, res, err := i.driver.EnumerateDeviceExtensionProperties(i.physicalDevice(device))
	return sortedKeys(extensions), result(res, err)
}

func (i *InstanceDriver) GetPhysicalDeviceSurfaceSupport(surface vulkan.Surface, device vulkan.PhysicalDevice, queueFamilyIndex int) (bool, vulkan.Result) {
	supported, res, err := i.surface.GetPhysicalDeviceSurfaceSupport(i.surfaceOf(surface), i.physicalDevice(device), queueFamilyIndex)
	return supported, result(res, err)
}

func (i *InstanceDriver) GetPhysicalDeviceSurfaceCapabilities(surface vulkan.Surface, device vulkan.PhysicalDevice) (vulkan.SurfaceCapabilities, vulkan.Result) {
	capabilities, res, err := i.surface.GetPhysicalDeviceSurfaceCapabilities(i.surfaceOf(surface), i.physicalDevice(device))
	if err != nil {
		return vulkan.SurfaceCapabilities{}, result(res, err)
	}
	return vulkan.SurfaceCapabilities{
		MinImageCount:    uint32(capabilities.MinImageCount),
		MaxImageCount:    uint32(capabilities.MaxImageCount),
		CurrentExtent:    toExtent(capabilities.CurrentExtent),
		MinImageExtent:   toExtent(capabilities.MinImageExtent),
		MaxImageExtent:   toExtent(capabilities.MaxImageExtent),
		CurrentTransform: vulkan.SurfaceTransformFlags(capabilities.CurrentTransform),
	}, result(res, nil)
}

func (i *InstanceDriver) GetPhysicalDeviceSurfaceFormats(surface vulkan.Surface, device vulkan.PhysicalDevice) ([]vulkan.SurfaceFormat, vulkan.Result) {
	formats, res, err := i.surface.GetPhysicalDeviceSurfaceFormats(i.surfaceOf(surface), i.physicalDevice(device))
	if err != nil {
		return nil, result(res, err)
	}

	out := make([]vulkan.SurfaceFormat, 0, len(formats))
	for _, format := range formats {
		out = append(out, vulkan.SurfaceFormat{
			Format:     vulkan.Format(format.Format),
			ColorSpace: vulkan.ColorSpace(format.ColorSpace),
		})
	}
	return out, result(res, nil)
}

func (i *InstanceDriver) GetPhysicalDeviceSurfacePresentModes(surface vulkan.Surface, device vulkan.PhysicalDevice) ([]vulkan.PresentMode, vulkan.Result) {
	modes, res, err := i.surface.GetPhysicalDeviceSurfacePresentModes(i.surfaceOf(surface), i.physicalDevice(device))
	if err != nil {
		return nil, result(res, err)
	}

	out := make([]vulkan.PresentMode, 0, len(modes))
	for _, mode := range modes {
		out = append(out, vulkan.PresentMode(mode))
	}
	return out, result(res, nil)
}

func (i *InstanceDriver) DestroySurface(surface vulkan.Surface) {
	if s, ok := i.surfaces.remove(uintptr(surface)); ok {
		i.surface.DestroySurface(s, nil)
	}
}

func (i *InstanceDriver) CreateDebugMessenger(info vulkan.DebugMessengerCreateInfo) (vulkan.DebugMessenger, vulkan.Result) {
	if i.debug == nil {
		return 0, vulkan.ErrorExtensionNotPresent
	}

	callback := info.Callback
	messenger, res, err := i.debug.CreateDebugUtilsMessenger(nil, ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.DebugUtilsMessageSeverityFlags(info.Severities),
		MessageType:     ext_debug_utils.DebugUtilsMessageTypeFlags(info.Types),
		UserCallback: func(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
			return callback(vulkan.DebugSeverity(severity), vulkan.DebugMessageType(msgType), data.Message)
		},
	})
	if err != nil {
		return 0, result(res, err)
	}
	return vulkan.DebugMessenger(i.messengers.add(messenger)), vulkan.Success
}

func (i *InstanceDriver) DestroyDebugMessenger(messenger vulkan.DebugMessenger) {
	if m, ok := i.messengers.remove(uintptr(messenger)); ok {
		i.debug.DestroyDebugUtilsMessenger(m, nil)
	}
}

func (i *InstanceDriver) CreateDevice(device vulkan.PhysicalDevice, info vulkan.DeviceCreateInfo) (vulkan.DeviceDriver, vulkan.Result) {
	queues := make([]core1_0.DeviceQueueCreateInfo, 0, len(info.QueueCreateInfos))
	for _, q := range info.QueueCreateInfos {
		queues = append(queues, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: q.QueueFamilyIndex,
			QueuePriorities:  q.QueuePriorities,
		})
	}

	handle, res, err := i.driver.CreateDevice(i.physicalDevice(device), nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queues,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: info.EnabledFeatures.SamplerAnisotropy,
			GeometryShader:    info.EnabledFeatures.GeometryShader,
		},
		EnabledExtensionNames: info.EnabledExtensionNames,
	})
	if err != nil {
		return nil, result(res, err)
	}

	driver, err := buildDeviceDriver(i.driver, handle)
	if err != nil {
		return nil, vulkan.ErrorInitializationFailed
	}
	return newDeviceDriver(driver, khr_swapchain.CreateExtensionDriverFromCoreDriver(driver), i.surfaceOf), vulkan.Success
}

// deviceBuilder turns a created device handle into the driver that
// dispatches its calls.
type deviceBuilder interface {
	BuildDeviceDriver(device core1_0.Device) (core1_0.CoreDeviceDriver, error)
}

var _ deviceBuilder = core1_0.CoreInstanceDriver(nil)

func buildDeviceDriver(builder deviceBuilder, device core1_0.Device) (core1_0.CoreDeviceDriver, error) {
	driver, err := builder.BuildDeviceDriver(device)
	if err != nil {
		return nil, errors.Wrap(err, "build device driver")
	}
	return driver, nil
}

func (i *InstanceDriver) DestroyInstance() {
	i.driver.DestroyInstance(nil)
}
