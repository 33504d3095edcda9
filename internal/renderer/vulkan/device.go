package vulkan

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/logger"
	"github.com/vkngwrapper/renderer/internal/memory"
)

// Device pairs the selected physical device with the logical device built on
// it. Queue family indices are -1 until selection succeeds.
type Device struct {
	PhysicalDevice   PhysicalDevice
	Driver           DeviceDriver
	SwapchainSupport *SwapchainSupportInfo

	GraphicsQueueIndex int
	PresentQueueIndex  int
	TransferQueueIndex int

	GraphicsQueue Queue
	PresentQueue  Queue
	TransferQueue Queue

	GraphicsCommandPool CommandPool

	Properties PhysicalDeviceProperties
	Features   PhysicalDeviceFeatures
	Memory     MemoryProperties

	DepthFormat Format

	instance InstanceDriver
	surface  Surface
	log      *logger.Logger
	mem      *memory.Tracker
}

func newDevice(instance InstanceDriver, surface Surface, log *logger.Logger, mem *memory.Tracker) *Device {
	return &Device{
		GraphicsQueueIndex: -1,
		PresentQueueIndex:  -1,
		TransferQueueIndex: -1,
		instance:           instance,
		surface:            surface,
		log:                log,
		mem:                mem,
	}
}

// CreateDevice selects a physical device able to present to surface and
// builds a logical device with one queue per distinct family.
func CreateDevice(instance InstanceDriver, surface Surface, log *logger.Logger, mem *memory.Tracker) (*Device, error) {
	d := newDevice(instance, surface, log, mem)

	log.Infof("Selecting Vulkan physical device...")
	if err := d.selectPhysicalDevice(); err != nil {
		log.Fatalf("Failed to select a suitable Vulkan physical device.")
		return nil, err
	}
	log.Infof("Vulkan physical device selected successfully.")

	if err := d.createLogicalDevice(); err != nil {
		d.Destroy()
		return nil, err
	}

	if err := d.createCommandPool(); err != nil {
		d.Destroy()
		return nil, err
	}

	return d, nil
}

// uniqueQueueFamilies returns the distinct families among graphics, present
// and transfer, in that order.
func (d *Device) uniqueQueueFamilies() []int {
	indices := []int{d.GraphicsQueueIndex}
	for _, index := range []int{d.PresentQueueIndex, d.TransferQueueIndex} {
		seen := false
		for _, existing := range indices {
			if existing == index {
				seen = true
				break
			}
		}
		if !seen {
			indices = append(indices, index)
		}
	}
	return indices
}

func (d *Device) createLogicalDevice() error {
	d.log.Infof("Creating logical device...")

	families := d.instance.GetPhysicalDeviceQueueFamilyProperties(d.PhysicalDevice)

	var queueCreateInfos []DeviceQueueCreateInfo
	for _, index := range d.uniqueQueueFamilies() {
		available := 0
		if index >= 0 && index < len(families) {
			available = families[index].QueueCount
		}

		// Some hardware exposes a single queue per family.
		queueCreateInfos = append(queueCreateInfos, DeviceQueueCreateInfo{
			QueueFamilyIndex: index,
			QueuePriorities:  []float32{1.0},
		})
		d.log.Infof("Queue family %d: requesting %d queue(s) (available: %d)", index, 1, available)
	}

	extensionNames := []string{khrSwapchainExtensionName}

	available, res := d.instance.EnumerateDeviceExtensionProperties(d.PhysicalDevice)
	if res != Success {
		d.log.Warnf("Unable to enumerate device extensions (VkResult: %d)", int32(res))
	}
	for _, name := range available {
		if name == khrPortabilitySubsetExtensionName {
			d.log.Infof("%s extension detected", khrPortabilitySubsetExtensionName)
			extensionNames = append(extensionNames, khrPortabilitySubsetExtensionName)
			break
		}
	}

	d.log.Infof("Enabling %d device extension(s):", len(extensionNames))
	for _, name := range extensionNames {
		d.log.Infof("  %s", name)
	}

	driver, res := d.instance.CreateDevice(d.PhysicalDevice, DeviceCreateInfo{
		QueueCreateInfos: queueCreateInfos,
		EnabledFeatures: PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err := check(d.log, res, "vkCreateDevice"); err != nil {
		d.log.Fatalf("Failed to create logical device. VkResult: %d", int32(res))
		return errors.Mark(errors.Wrap(err, "create logical device"), ErrDeviceCreation)
	}
	d.Driver = driver
	d.log.Infof("Logical device created.")

	// Exactly one queue was requested per family.
	d.GraphicsQueue = driver.GetQueue(d.GraphicsQueueIndex, 0)
	d.PresentQueue = driver.GetQueue(d.PresentQueueIndex, 0)
	d.TransferQueue = driver.GetQueue(d.TransferQueueIndex, 0)

	d.log.Infof("Queues obtained:")
	d.log.Infof("  Graphics queue: family %d, queue 0", d.GraphicsQueueIndex)
	d.log.Infof("  Present queue:  family %d, queue 0", d.PresentQueueIndex)
	d.log.Infof("  Transfer queue: family %d, queue 0", d.TransferQueueIndex)
	return nil
}

func (d *Device) createCommandPool() error {
	pool, res := d.Driver.CreateCommandPool(CommandPoolCreateInfo{
		QueueFamilyIndex: d.GraphicsQueueIndex,
		Flags:            CommandPoolCreateResetBuffer,
	})
	if err := check(d.log, res, "vkCreateCommandPool"); err != nil {
		d.log.Fatalf("Failed to create graphics command pool.")
		return errors.Wrap(err, "create graphics command pool")
	}
	d.GraphicsCommandPool = pool
	d.log.Infof("Graphics command pool created.")
	return nil
}

// Destroy releases the logical device and cached support data. The physical
// device belongs to the driver and is only forgotten.
func (d *Device) Destroy() {
	if d.Driver != nil && d.GraphicsCommandPool != 0 {
		d.log.Infof("Destroying command pools...")
		d.Driver.DestroyCommandPool(d.GraphicsCommandPool)
	}
	d.GraphicsCommandPool = 0

	d.GraphicsQueue = 0
	d.PresentQueue = 0
	d.TransferQueue = 0

	d.log.Infof("Destroying logical device...")
	if d.Driver != nil {
		d.Driver.DestroyDevice()
		d.Driver = nil
	}

	d.log.Infof("Releasing physical device resources...")
	d.PhysicalDevice = 0

	d.SwapchainSupport.Release()
	d.SwapchainSupport = nil

	d.GraphicsQueueIndex = -1
	d.PresentQueueIndex = -1
	d.TransferQueueIndex = -1
}

// QuerySwapchainSupport refreshes the cached support info, releasing the
// previous lists.
func (d *Device) QuerySwapchainSupport() {
	previous := d.SwapchainSupport
	d.SwapchainSupport = querySwapchainSupport(d.instance, d.PhysicalDevice, d.surface, d.log, d.mem)
	previous.Release()
}

var depthFormatCandidates = []Format{
	FormatD32SFloat,
	FormatD32SFloatS8UInt,
	FormatD24UnormS8UInt,
}

// DetectDepthFormat stores the first depth format usable as an optimally
// tiled depth-stencil attachment.
func (d *Device) DetectDepthFormat() bool {
	for _, candidate := range depthFormatCandidates {
		props := d.instance.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, candidate)
		if props.OptimalTilingFeatures&FormatFeatureDepthStencilAttachment != 0 {
			d.DepthFormat = candidate
			d.log.Infof("Selected depth format: %d", int32(candidate))
			return true
		}
	}

	d.log.Fatalf("Failed to find a supported depth format.")
	return false
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has all of flags, or -1.
func (d *Device) FindMemoryIndex(typeFilter uint32, flags MemoryPropertyFlags) int {
	for i, memoryType := range d.Memory.MemoryTypes {
		if typeFilter&(1<<uint(i)) != 0 && memoryType.PropertyFlags&flags == flags {
			return i
		}
	}

	d.log.Warnf("Unable to find suitable memory type!")
	return -1
}
