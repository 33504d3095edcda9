package vulkan

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/containers"
	"github.com/vkngwrapper/renderer/internal/logger"
	"github.com/vkngwrapper/renderer/internal/memory"
)

// Swapchain is the chain of presentable images bound to the window surface.
// It is always rebuilt whole; nothing is patched in place.
type Swapchain struct {
	Handle      SwapchainHandle
	ImageFormat SurfaceFormat
	Extent      Extent2D
	ImageCount  int

	// Depth is nil when the device has no usable depth format.
	Depth *Attachment

	images *containers.Darray[Image]
	views  *containers.Darray[ImageView]

	device  *Device
	surface Surface
	log     *logger.Logger
	mem     *memory.Tracker
}

// CreateSwapchain negotiates format, extent and image count against the
// device's cached support info and builds the swapchain.
func CreateSwapchain(device *Device, surface Surface, width, height uint32, log *logger.Logger, mem *memory.Tracker) (*Swapchain, error) {
	s := &Swapchain{
		device:  device,
		surface: surface,
		log:     log,
		mem:     mem,
	}
	if err := s.create(width, height); err != nil {
		s.destroy()
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) Images() []Image {
	return s.images.Items()
}

func (s *Swapchain) Views() []ImageView {
	return s.views.Items()
}

func chooseSurfaceFormat(formats []SurfaceFormat) SurfaceFormat {
	for _, format := range formats {
		if format.Format == FormatB8G8R8A8SRGB && format.ColorSpace == ColorSpaceSRGBNonlinear {
			return format
		}
	}
	return formats[0]
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func chooseExtent(capabilities *SurfaceCapabilities, width, height uint32) Extent2D {
	if capabilities.CurrentExtent.Width != UndefinedExtent {
		return capabilities.CurrentExtent
	}
	return Extent2D{
		Width:  clampUint32(width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clampUint32(height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

// chooseImageCount asks for one image over the minimum. A zero maximum means
// the surface sets no upper bound.
func chooseImageCount(capabilities *SurfaceCapabilities) uint32 {
	count := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && count > capabilities.MaxImageCount {
		count = capabilities.MaxImageCount
	}
	return count
}

func (s *Swapchain) create(width, height uint32) error {
	support := s.device.SwapchainSupport
	if len(support.Formats()) == 0 {
		s.log.Fatalf("Failed to create Vulkan swapchain: no surface formats available.")
		return errors.New("create swapchain: no surface formats available")
	}

	s.ImageFormat = chooseSurfaceFormat(support.Formats())
	s.Extent = chooseExtent(&support.Capabilities, width, height)
	imageCount := chooseImageCount(&support.Capabilities)

	handle, res := s.device.Driver.CreateSwapchain(SwapchainCreateInfo{
		Surface:          s.surface,
		MinImageCount:    imageCount,
		ImageFormat:      s.ImageFormat.Format,
		ImageColorSpace:  s.ImageFormat.ColorSpace,
		ImageExtent:      s.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       ImageUsageColorAttachment,
		ImageSharingMode: SharingModeExclusive,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   CompositeAlphaOpaque,
		// FIFO is the one mode every implementation must support.
		PresentMode: PresentModeFIFO,
		Clipped:     true,
	})
	if err := check(s.log, res, "vkCreateSwapchainKHR"); err != nil {
		s.log.Fatalf("Failed to create Vulkan swapchain. VkResult: %d", int32(res))
		return errors.Wrap(err, "create swapchain")
	}
	s.Handle = handle

	images, res := s.device.Driver.GetSwapchainImages(handle)
	if err := check(s.log, res, "vkGetSwapchainImagesKHR"); err != nil {
		return errors.Wrap(err, "get swapchain images")
	}
	s.images = containers.DarrayFrom(s.mem, memory.TagRenderer, images)
	s.ImageCount = len(images)

	s.views = containers.NewDarray[ImageView](s.mem, memory.TagRenderer, len(images))
	for _, image := range images {
		view, res := s.device.Driver.CreateImageView(ImageViewCreateInfo{
			Image:  image,
			Format: s.ImageFormat.Format,
			Aspect: ImageAspectColor,
		})
		if err := check(s.log, res, "vkCreateImageView"); err != nil {
			return errors.Wrap(err, "create swapchain image view")
		}
		s.views.Push(view)
	}

	if s.device.DepthFormat != FormatUndefined {
		depth, err := s.device.createAttachment(
			s.Extent.Width, s.Extent.Height,
			s.device.DepthFormat,
			ImageUsageDepthStencilAttachment,
			ImageAspectDepth,
		)
		if err != nil {
			s.log.Fatalf("Failed to create depth attachment.")
			return errors.Wrap(err, "create depth attachment")
		}
		s.Depth = depth
	}

	s.log.Infof("Vulkan swapchain created successfully: %dx%d, %d images.",
		s.Extent.Width, s.Extent.Height, s.ImageCount)
	return nil
}

func (s *Swapchain) destroy() {
	driver := s.device.Driver

	s.Depth.destroy(driver)
	s.Depth = nil

	for _, view := range s.views.Items() {
		if view != 0 {
			driver.DestroyImageView(view)
		}
	}
	s.views.Release()
	s.views = nil

	if s.Handle != 0 {
		driver.DestroySwapchain(s.Handle)
		s.Handle = 0
	}

	// The images belong to the swapchain handle; only the list is ours.
	s.images.Release()
	s.images = nil
	s.ImageCount = 0
}

// Destroy releases the views, the swapchain and the image list.
func (s *Swapchain) Destroy() {
	if s == nil {
		return
	}
	s.log.Infof("Destroying Vulkan swapchain...")
	s.destroy()
}

// Recreate rebuilds the swapchain at the new size from freshly queried
// surface support.
func (s *Swapchain) Recreate(width, height uint32) error {
	s.device.QuerySwapchainSupport()
	s.destroy()
	if err := s.create(width, height); err != nil {
		s.destroy()
		return err
	}
	return nil
}

// AcquireNextImage returns the index of the next image to render into.
// A suboptimal swapchain still yields a usable image.
func (s *Swapchain) AcquireNextImage(timeout uint64, imageAvailable Semaphore, fence FenceHandle) (int, error) {
	index, res := s.device.Driver.AcquireNextImage(s.Handle, timeout, imageAvailable, fence)
	switch res {
	case Success, Suboptimal:
		return index, nil
	case ErrorOutOfDate:
		return -1, errors.Mark(errors.WithStack(&ResultError{Op: "vkAcquireNextImageKHR", Result: res}), ErrSwapchainOutOfDate)
	}

	s.log.Errorf("Failed to acquire next swapchain image. VkResult: %d", int32(res))
	return -1, check(s.log, res, "vkAcquireNextImageKHR")
}

// Present queues imageIndex for display once renderComplete is signaled.
// Failures are logged only; the next acquire or resize drives recovery.
func (s *Swapchain) Present(presentQueue Queue, imageIndex int, renderComplete Semaphore) {
	res := s.device.Driver.QueuePresent(presentQueue, PresentInfo{
		WaitSemaphores: []Semaphore{renderComplete},
		Swapchains:     []SwapchainHandle{s.Handle},
		ImageIndices:   []int{imageIndex},
	})
	if res != Success {
		s.log.Errorf("Failed to present swapchain image. VkResult: %d", int32(res))
	}
}
