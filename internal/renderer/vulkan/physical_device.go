package vulkan

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/containers"
	"github.com/vkngwrapper/renderer/internal/memory"
)

// PhysicalDeviceRequirements describes what a candidate device must offer.
type PhysicalDeviceRequirements struct {
	Graphics          bool
	Present           bool
	Compute           bool
	Transfer          bool
	SamplerAnisotropy bool
	DiscreteGPU       bool

	DeviceExtensionNames *containers.Darray[string]
}

type queueFamilyInfo struct {
	graphicsFamilyIndex int
	presentFamilyIndex  int
	computeFamilyIndex  int
	transferFamilyIndex int
}

// minTransferScoreStart is above any possible capability count.
const minTransferScoreStart = 255

func yesNo(index int) string {
	if index != -1 {
		return "YES"
	}
	return "NO"
}

// meetsRequirements probes candidate against req. It never mutates d. On
// success the returned support info is owned by the caller; on failure
// anything it allocated has been released.
func (d *Device) meetsRequirements(
	candidate PhysicalDevice,
	properties *PhysicalDeviceProperties,
	features *PhysicalDeviceFeatures,
	req *PhysicalDeviceRequirements,
) (queueFamilyInfo, *SwapchainSupportInfo, bool) {
	info := queueFamilyInfo{
		graphicsFamilyIndex: -1,
		presentFamilyIndex:  -1,
		computeFamilyIndex:  -1,
		transferFamilyIndex: -1,
	}
	name := properties.DeviceName

	if req.DiscreteGPU && properties.DeviceType != DeviceTypeDiscreteGPU {
		d.log.Infof("Physical device '%s' rejected: not a discrete GPU.", name)
		return info, nil, false
	}

	families := d.instance.GetPhysicalDeviceQueueFamilyProperties(candidate)
	if len(families) == 0 {
		d.log.Warnf("Physical device '%s' has no queue families", name)
		return info, nil, false
	}

	d.log.Infof("Evaluating %d queue families for device '%s'...", len(families), name)

	// Lower scores are more specialized; a transfer-only family scores 1.
	minTransferScore := minTransferScoreStart
	for i, family := range families {
		score := 0

		if family.Flags&QueueGraphics != 0 {
			info.graphicsFamilyIndex = i
			score++
			d.log.Debugf("  Queue family %d: Graphics support found", i)
		}

		if family.Flags&QueueCompute != 0 {
			info.computeFamilyIndex = i
			score++
			d.log.Debugf("  Queue family %d: Compute support found", i)
		}

		if family.Flags&QueueTransfer != 0 {
			score++
			d.log.Debugf("  Queue family %d: Transfer support found (score: %d)", i, score)
			if score < minTransferScore {
				minTransferScore = score
				info.transferFamilyIndex = i
				d.log.Infof("  Queue family %d selected as transfer queue (score: %d)", i, score)
			}
		}

		if req.Present && d.surface != 0 {
			supported, res := d.instance.GetPhysicalDeviceSurfaceSupport(d.surface, candidate, i)
			if res != Success {
				// The surface may not be ready this early; keep scanning.
				d.log.Errorf("  Queue family %d: Failed to query present support (VkResult: %d)", i, int32(res))
				continue
			}
			if supported {
				info.presentFamilyIndex = i
				d.log.Infof("  Queue family %d: Present support found", i)
			} else {
				d.log.Debugf("  Queue family %d: No present support", i)
			}
		}
	}

	d.log.Infof("Device '%s' queue family summary:", name)
	d.log.Infof("  Graphics: %s (index: %d)", yesNo(info.graphicsFamilyIndex), info.graphicsFamilyIndex)
	d.log.Infof("  Present:  %s (index: %d)", yesNo(info.presentFamilyIndex), info.presentFamilyIndex)
	d.log.Infof("  Compute:  %s (index: %d)", yesNo(info.computeFamilyIndex), info.computeFamilyIndex)
	d.log.Infof("  Transfer: %s (index: %d)", yesNo(info.transferFamilyIndex), info.transferFamilyIndex)

	switch {
	case req.Graphics && info.graphicsFamilyIndex == -1:
		d.log.Infof("Device '%s' rejected: No graphics queue family", name)
		return info, nil, false
	case req.Present && info.presentFamilyIndex == -1:
		d.log.Infof("Device '%s' rejected: No present queue family", name)
		return info, nil, false
	case req.Compute && info.computeFamilyIndex == -1:
		d.log.Infof("Device '%s' rejected: No compute queue family", name)
		return info, nil, false
	case req.Transfer && info.transferFamilyIndex == -1:
		d.log.Infof("Device '%s' rejected: No transfer queue family", name)
		return info, nil, false
	}

	d.log.Debugf("Querying swapchain support...")
	support := querySwapchainSupport(d.instance, candidate, d.surface, d.log, d.mem)
	if len(support.Formats()) < 1 || len(support.PresentModes()) < 1 {
		d.log.Infof("Device '%s' rejected: Insufficient swapchain support", name)
		d.log.Debugf("  Formats: %d, Present modes: %d", len(support.Formats()), len(support.PresentModes()))
		support.Release()
		return info, nil, false
	}
	d.log.Infof("  Swapchain support: %d formats, %d present modes",
		len(support.Formats()), len(support.PresentModes()))

	if req.DeviceExtensionNames != nil {
		available, res := d.instance.EnumerateDeviceExtensionProperties(candidate)
		if res != Success || len(available) == 0 {
			d.log.Infof("Device '%s' rejected: No extensions available", name)
			support.Release()
			return info, nil, false
		}

		d.log.Debugf("Checking %d required extensions against %d available extensions",
			req.DeviceExtensionNames.Len(), len(available))
		for _, required := range req.DeviceExtensionNames.Items() {
			found := false
			for _, ext := range available {
				if ext == required {
					found = true
					d.log.Debugf("  Extension '%s' found", required)
					break
				}
			}
			if !found {
				d.log.Infof("Device '%s' rejected: Required extension '%s' not found", name, required)
				support.Release()
				return info, nil, false
			}
		}
	}

	if req.SamplerAnisotropy && !features.SamplerAnisotropy {
		d.log.Infof("Device '%s' rejected: samplerAnisotropy not supported", name)
		support.Release()
		return info, nil, false
	}

	d.log.Infof("Device '%s' meets all requirements!", name)
	return info, support, true
}

// selectPhysicalDevice picks the first device that meets the renderer's
// requirements. d is left untouched when none does.
func (d *Device) selectPhysicalDevice() error {
	devices, res := d.instance.EnumeratePhysicalDevices()
	if err := check(d.log, res, "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if len(devices) == 0 {
		d.log.Errorf("No Vulkan physical devices found.")
		return errors.WithStack(ErrNoPhysicalDevice)
	}

	for _, candidate := range devices {
		properties, res := d.instance.GetPhysicalDeviceProperties(candidate)
		if res != Success {
			d.log.Warnf("Skipping physical device: properties query failed (VkResult: %d)", int32(res))
			continue
		}
		features := d.instance.GetPhysicalDeviceFeatures(candidate)
		memoryProperties := d.instance.GetPhysicalDeviceMemoryProperties(candidate)

		req := PhysicalDeviceRequirements{
			Graphics:          true,
			Present:           true,
			Compute:           true,
			Transfer:          true,
			SamplerAnisotropy: true,
			DiscreteGPU:       false,
			DeviceExtensionNames: containers.DarrayFrom(d.mem, memory.TagRenderer, []string{
				khrSwapchainExtensionName,
			}),
		}

		queueInfo, support, ok := d.meetsRequirements(candidate, &properties, &features, &req)
		req.DeviceExtensionNames.Release()
		if !ok {
			continue
		}

		d.logSelection(&properties, &memoryProperties)

		d.PhysicalDevice = candidate
		d.GraphicsQueueIndex = queueInfo.graphicsFamilyIndex
		d.PresentQueueIndex = queueInfo.presentFamilyIndex
		d.TransferQueueIndex = queueInfo.transferFamilyIndex
		d.Properties = properties
		d.Features = features
		d.Memory = memoryProperties
		d.SwapchainSupport = support
		return nil
	}

	d.log.Errorf("No physical devices were found which meet the requirements.")
	return errors.WithStack(ErrNoSuitableDevice)
}

func (d *Device) logSelection(properties *PhysicalDeviceProperties, memoryProperties *MemoryProperties) {
	d.log.Infof("Selected device: '%s'.", properties.DeviceName)
	d.log.Infof("GPU type is %s.", properties.DeviceType)
	d.log.Infof("GPU Driver version: %s", properties.DriverVersion)
	d.log.Infof("Vulkan API version: %s", properties.APIVersion)
	d.log.Debugf("Pipeline cache UUID: %s", properties.PipelineCacheUUID)

	for _, heap := range memoryProperties.MemoryHeaps {
		gib := float64(heap.Size) / 1024 / 1024 / 1024
		if heap.Flags&MemoryHeapDeviceLocal != 0 {
			d.log.Infof("Local GPU memory: %.2f GiB", gib)
		} else {
			d.log.Infof("Shared System memory: %.2f GiB", gib)
		}
	}
}
