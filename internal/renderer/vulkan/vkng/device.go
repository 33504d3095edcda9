package vkng

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/renderer/internal/renderer/vulkan"
)

type queueKey struct {
	family, index int
}

// DeviceDriver wraps a logical device and its swapchain extension.
type DeviceDriver struct {
	driver    core1_0.CoreDeviceDriver
	swapchain khr_swapchain.ExtensionDriver
	surfaceOf func(vulkan.Surface) khr_surface.Surface

	queueHandles map[queueKey]uintptr
	queues       *registry[core1_0.Queue]

	pools          *registry[core1_0.CommandPool]
	poolBuffers    map[uintptr][]uintptr
	commandBuffers *registry[core1_0.CommandBuffer]

	renderPasses *registry[core1_0.RenderPass]
	framebuffers *registry[core1_0.Framebuffer]
	images       *registry[core1_0.Image]
	memory       *registry[core1_0.DeviceMemory]
	views        *registry[core1_0.ImageView]
	semaphores   *registry[core1_0.Semaphore]
	fences       *registry[core1_0.Fence]

	swapchains      *registry[khr_swapchain.Swapchain]
	swapchainImages map[uintptr][]uintptr
}

var _ vulkan.DeviceDriver = (*DeviceDriver)(nil)

func newDeviceDriver(driver core1_0.CoreDeviceDriver, swapchain khr_swapchain.ExtensionDriver, surfaceOf func(vulkan.Surface) khr_surface.Surface) *DeviceDriver {
	return &DeviceDriver{
		driver:          driver,
		swapchain:       swapchain,
		surfaceOf:       surfaceOf,
		queueHandles:    map[queueKey]uintptr{},
		queues:          newRegistry[core1_0.Queue](),
		pools:           newRegistry[core1_0.CommandPool](),
		poolBuffers:     map[uintptr][]uintptr{},
		commandBuffers:  newRegistry[core1_0.CommandBuffer](),
		renderPasses:    newRegistry[core1_0.RenderPass](),
		framebuffers:    newRegistry[core1_0.Framebuffer](),
		images:          newRegistry[core1_0.Image](),
		memory:          newRegistry[core1_0.DeviceMemory](),
		views:           newRegistry[core1_0.ImageView](),
		semaphores:      newRegistry[core1_0.Semaphore](),
		fences:          newRegistry[core1_0.Fence](),
		swapchains:      newRegistry[khr_swapchain.Swapchain](),
		swapchainImages: map[uintptr][]uintptr{},
	}
}

func (d *DeviceDriver) queue(handle vulkan.Queue) core1_0.Queue {
	q, _ := d.queues.get(uintptr(handle))
	return q
}

func (d *DeviceDriver) commandBuffer(handle vulkan.CommandBufferHandle) core1_0.CommandBuffer {
	b, _ := d.commandBuffers.get(uintptr(handle))
	return b
}

func (d *DeviceDriver) semaphoreList(handles []vulkan.Semaphore) []core1_0.Semaphore {
	if len(handles) == 0 {
		return nil
	}
	out := make([]core1_0.Semaphore, 0, len(handles))
	for _, h := range handles {
		s, _ := d.semaphores.get(uintptr(h))
		out = append(out, s)
	}
	return out
}

func (d *DeviceDriver) fenceList(handles []vulkan.FenceHandle) []core1_0.Fence {
	out := make([]core1_0.Fence, 0, len(handles))
	for _, h := range handles {
		f, _ := d.fences.get(uintptr(h))
		out = append(out, f)
	}
	return out
}

// GetQueue hands back the same handle for repeated lookups of one queue.
func (d *DeviceDriver) GetQueue(queueFamilyIndex, queueIndex int) vulkan.Queue {
	key := queueKey{family: queueFamilyIndex, index: queueIndex}
	if handle, ok := d.queueHandles[key]; ok {
		return vulkan.Queue(handle)
	}

	handle := d.queues.add(d.driver.GetQueue(queueFamilyIndex, queueIndex))
	d.queueHandles[key] = handle
	return vulkan.Queue(handle)
}

func (d *DeviceDriver) DeviceWaitIdle() vulkan.Result {
	return result(d.driver.DeviceWaitIdle())
}

func (d *DeviceDriver) QueueWaitIdle(queue vulkan.Queue) vulkan.Result {
	return result(d.driver.QueueWaitIdle(d.queue(queue)))
}

func (d *DeviceDriver) QueueSubmit(queue vulkan.Queue, fence vulkan.FenceHandle, submits ...vulkan.SubmitInfo) vulkan.Result {
	infos := make([]core1_0.SubmitInfo, 0, len(submits))
	for _, submit := range submits {
		info := core1_0.SubmitInfo{
			WaitSemaphores:   d.semaphoreList(submit.WaitSemaphores),
			SignalSemaphores: d.semaphoreList(submit.SignalSemaphores),
		}
		for _, stage := range submit.WaitDstStageMask {
			info.WaitDstStageMask = append(info.WaitDstStageMask, core1_0.PipelineStageFlags(stage))
		}
		for _, buffer := range submit.CommandBuffers {
			info.CommandBuffers = append(info.CommandBuffers, d.commandBuffer(buffer))
		}
		infos = append(infos, info)
	}

	var signal *core1_0.Fence
	if f, ok := d.fences.get(uintptr(fence)); ok {
		signal = &f
	}
	return result(d.driver.QueueSubmit(d.queue(queue), signal, infos...))
}

func (d *DeviceDriver) CreateCommandPool(info vulkan.CommandPoolCreateInfo) (vulkan.CommandPool, vulkan.Result) {
	pool, res, err := d.driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: info.QueueFamilyIndex,
		Flags:            core1_0.CommandPoolCreateFlags(info.Flags),
	})
	if err != nil {
		return 0, result(res, err)
	}
	return vulkan.CommandPool(d.pools.add(pool)), vulkan.Success
}

// DestroyCommandPool also forgets every buffer still allocated from the
// pool, since the driver frees them with it.
func (d *DeviceDriver) DestroyCommandPool(pool vulkan.CommandPool) {
	p, ok := d.pools.remove(uintptr(pool))
	if !ok {
		return
	}
	for _, buffer := range d.poolBuffers[uintptr(pool)] {
		d.commandBuffers.remove(buffer)
	}
	delete(d.poolBuffers, uintptr(pool))
	d.driver.DestroyCommandPool(p, nil)
}

func (d *DeviceDriver) AllocateCommandBuffers(info vulkan.CommandBufferAllocateInfo) ([]vulkan.CommandBufferHandle, vulkan.Result) {
	pool, ok := d.pools.get(uintptr(info.CommandPool))
	if !ok {
		return nil, vulkan.ErrorInitializationFailed
	}

	buffers, res, err := d.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevel(info.Level),
		CommandBufferCount: info.Count,
	})
	if err != nil {
		return nil, result(res, err)
	}

	handles := make([]vulkan.CommandBufferHandle, 0, len(buffers))
	for _, buffer := range buffers {
		handle := d.commandBuffers.add(buffer)
		d.poolBuffers[uintptr(info.CommandPool)] = append(d.poolBuffers[uintptr(info.CommandPool)], handle)
		handles = append(handles, vulkan.CommandBufferHandle(handle))
	}
	return handles, vulkan.Success
}

func (d *DeviceDriver) FreeCommandBuffers(pool vulkan.CommandPool, buffers ...vulkan.CommandBufferHandle) {
	freed := make([]core1_0.CommandBuffer, 0, len(buffers))
	for _, handle := range buffers {
		if buffer, ok := d.commandBuffers.remove(uintptr(handle)); ok {
			freed = append(freed, buffer)
		}
	}

	owned := d.poolBuffers[uintptr(pool)][:0]
	for _, handle := range d.poolBuffers[uintptr(pool)] {
		if _, ok := d.commandBuffers.get(handle); ok {
			owned = append(owned, handle)
		}
	}
	d.poolBuffers[uintptr(pool)] = owned

	if len(freed) > 0 {
		d.driver.FreeCommandBuffers(freed...)
	}
}

func (d *DeviceDriver) BeginCommandBuffer(buffer vulkan.CommandBufferHandle, flags vulkan.CommandBufferUsageFlags) vulkan.Result {
	return result(d.driver.BeginCommandBuffer(d.commandBuffer(buffer), core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageFlags(flags),
	}))
}

func (d *DeviceDriver) EndCommandBuffer(buffer vulkan.CommandBufferHandle) vulkan.Result {
	return result(d.driver.EndCommandBuffer(d.commandBuffer(buffer)))
}

func (d *DeviceDriver) ResetCommandBuffer(buffer vulkan.CommandBufferHandle) vulkan.Result {
	return result(d.driver.ResetCommandBuffer(d.commandBuffer(buffer), 0))
}

func (d *DeviceDriver) CmdBeginRenderPass(buffer vulkan.CommandBufferHandle, info vulkan.RenderPassBeginInfo) {
	renderPass, _ := d.renderPasses.get(uintptr(info.RenderPass))
	framebuffer, _ := d.framebuffers.get(uintptr(info.Framebuffer))

	// The renderer validates the pass before recording, so a wrapper error
	// here can only be a malformed clear value and is dropped.
	_ = d.driver.CmdBeginRenderPass(d.commandBuffer(buffer), core1_0.SubpassContentsInline, core1_0.RenderPassBeginInfo{
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		RenderArea: core1_0.Rect2D{
			Offset: core1_0.Offset2D{X: int(info.RenderArea.X), Y: int(info.RenderArea.Y)},
			Extent: core1_0.Extent2D{Width: int(info.RenderArea.Width), Height: int(info.RenderArea.Height)},
		},
		ClearValues: []core1_0.ClearValue{
			core1_0.ClearValueFloat(info.ClearColor),
			core1_0.ClearValueDepthStencil{Depth: info.ClearDepth, Stencil: info.ClearStencil},
		},
	})
}

func (d *DeviceDriver) CmdEndRenderPass(buffer vulkan.CommandBufferHandle) {
	d.driver.CmdEndRenderPass(d.commandBuffer(buffer))
}

func (d *DeviceDriver) CreateRenderPass(info vulkan.RenderPassCreateInfo) (vulkan.RenderPassHandle, vulkan.Result) {
	options := core1_0.RenderPassCreateInfo{}
	for _, a := range info.Attachments {
		options.Attachments = append(options.Attachments, core1_0.AttachmentDescription{
			Format:         core1_0.Format(a.Format),
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOp(a.LoadOp),
			StoreOp:        core1_0.AttachmentStoreOp(a.StoreOp),
			StencilLoadOp:  core1_0.AttachmentLoadOp(a.StencilLoadOp),
			StencilStoreOp: core1_0.AttachmentStoreOp(a.StencilStoreOp),
			InitialLayout:  core1_0.ImageLayout(a.InitialLayout),
			FinalLayout:    core1_0.ImageLayout(a.FinalLayout),
		})
	}
	for _, s := range info.Subpasses {
		subpass := core1_0.SubpassDescription{PipelineBindPoint: core1_0.PipelineBindPointGraphics}
		for _, ref := range s.ColorAttachments {
			subpass.ColorAttachments = append(subpass.ColorAttachments, attachmentReference(ref))
		}
		if s.DepthStencilAttachment != nil {
			depth := attachmentReference(*s.DepthStencilAttachment)
			subpass.DepthStencilAttachment = &depth
		}
		options.Subpasses = append(options.Subpasses, subpass)
	}
	for _, dep := range info.SubpassDependencies {
		options.SubpassDependencies = append(options.SubpassDependencies, core1_0.SubpassDependency{
			SrcSubpass:    dep.SrcSubpass,
			DstSubpass:    dep.DstSubpass,
			SrcStageMask:  core1_0.PipelineStageFlags(dep.SrcStageMask),
			SrcAccessMask: core1_0.AccessFlags(dep.SrcAccessMask),
			DstStageMask:  core1_0.PipelineStageFlags(dep.DstStageMask),
			DstAccessMask: core1_0.AccessFlags(dep.DstAccessMask),
		})
	}

	renderPass, res, err := d.driver.CreateRenderPass(nil, options)
	if err != nil {
		return 0, result(res, err)
	}
	return vulkan.RenderPassHandle(d.renderPasses.add(renderPass)), vulkan.Success
}

func attachmentReference(ref vulkan.AttachmentReference) core1_0.AttachmentReference {
	return core1_0.AttachmentReference{
		Attachment: ref.Attachment,
		Layout:     core1_0.ImageLayout(ref.Layout),
	}
}

func (d *DeviceDriver) DestroyRenderPass(renderPass vulkan.RenderPassHandle) {
	if rp, ok := d.renderPasses.remove(uintptr(renderPass)); ok {
		d.driver.DestroyRenderPass(rp, nil)
	}
}

func (d *DeviceDriver) CreateFramebuffer(info vulkan.FramebufferCreateInfo) (vulkan.Framebuffer, vulkan.Result) {
	renderPass, ok := d.renderPasses.get(uintptr(info.RenderPass))
	if !ok {
		return 0, vulkan.ErrorInitializationFailed
	}

	attachments := make([]core1_0.ImageView, 0, len(info.Attachments))
	for _, handle := range info.Attachments {
		view, _ := d.views.get(uintptr(handle))
		attachments = append(attachments, view)
	}

	framebuffer, res, err := d.driver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  renderPass,
		Layers:      1,
		Attachments: attachments,
		Width:       int(info.Width),
		Height:      int(info.Height),
	})
	if err != nil {
		return 0, result(res, err)
	}
	return vulkan.Framebuffer(d.framebuffers.add(framebuffer)), vulkan.Success
}

func (d *DeviceDriver) DestroyFramebuffer(framebuffer vulkan.Framebuffer) {
	if fb, ok := d.framebuffers.remove(uintptr(framebuffer)); ok {
		d.driver.DestroyFramebuffer(fb, nil)
	}
}

func (d *DeviceDriver) CreateImage(info vulkan.ImageCreateInfo) (vulkan.Image, vulkan.Result) {
	image, res, err := d.driver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  int(info.Width),
			Height: int(info.Height),
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        core1_0.Format(info.Format),
		Tiling:        core1_0.ImageTiling(info.Tiling),
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         core1_0.ImageUsageFlags(info.Usage),
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return 0, result(res, err)
	}
	return vulkan.Image(d.images.add(image)), vulkan.Success
}

func (d *DeviceDriver) DestroyImage(image vulkan.Image) {
	if img, ok := d.images.remove(uintptr(image)); ok {
		d.driver.DestroyImage(img, nil)
	}
}

func (d *DeviceDriver) GetImageMemoryRequirements(image vulkan.Image) vulkan.MemoryRequirements {
	img, _ := d.images.get(uintptr(image))
	reqs := d.driver.GetImageMemoryRequirements(img)
	return vulkan.MemoryRequirements{
		Size:           uint64(reqs.Size),
		MemoryTypeBits: reqs.MemoryTypeBits,
	}
}

func (d *DeviceDriver) AllocateMemory(size uint64, memoryTypeIndex int) (vulkan.DeviceMemory, vulkan.Result) {
	memory, res, err := d.driver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  int(size),
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return 0, result(res, err)
	}
	return vulkan.DeviceMemory(d.memory.add(memory)), vulkan.Success
}

func (d *DeviceDriver) FreeMemory(memory vulkan.DeviceMemory) {
	if mem, ok := d.memory.remove(uintptr(memory)); ok {
		d.driver.FreeMemory(mem, nil)
	}
}

func (d *DeviceDriver) BindImageMemory(image vulkan.Image, memory vulkan.DeviceMemory) vulkan.Result {
	img, _ := d.images.get(uintptr(image))
	mem, _ := d.memory.get(uintptr(memory))
	return result(d.driver.BindImageMemory(img, mem, 0))
}

func (d *DeviceDriver) CreateImageView(info vulkan.ImageViewCreateInfo) (vulkan.ImageView, vulkan.Result) {
	image, ok := d.images.get(uintptr(info.Image))
	if !ok {
		return 0, vulkan.ErrorInitializationFailed
	}

	view, res, err := d.driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.Format(info.Format),
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectFlags(info.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return 0, result(res, err)
	}
	return vulkan.ImageView(d.views.add(view)), vulkan.Success
}

func (d *DeviceDriver) DestroyImageView(view vulkan.ImageView) {
	if v, ok := d.views.remove(uintptr(view)); ok {
		d.driver.DestroyImageView(v, nil)
	}
}

func (d *DeviceDriver) CreateSemaphore() (vulkan.Semaphore, vulkan.Result) {
	semaphore, res, err := d.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return 0, result(res, err)
	}
	return vulkan.Semaphore(d.semaphores.add(semaphore)), vulkan.Success
}

func (d *DeviceDriver) DestroySemaphore(semaphore vulkan.Semaphore) {
	if s, ok := d.semaphores.remove(uintptr(semaphore)); ok {
		d.driver.DestroySemaphore(s, nil)
	}
}

func (d *DeviceDriver) CreateFence(signaled bool) (vulkan.FenceHandle, vulkan.Result) {
	var options core1_0.FenceCreateInfo
	if signaled {
		options.Flags = core1_0.FenceCreateSignaled
	}

	fence, res, err := d.driver.CreateFence(nil, options)
	if err != nil {
		return 0, result(res, err)
	}
	return vulkan.FenceHandle(d.fences.add(fence)), vulkan.Success
}

func (d *DeviceDriver) DestroyFence(fence vulkan.FenceHandle) {
	if f, ok := d.fences.remove(uintptr(fence)); ok {
		d.driver.DestroyFence(f, nil)
	}
}

func (d *DeviceDriver) WaitForFences(ns uint64, fences ...vulkan.FenceHandle) vulkan.Result {
	return result(d.driver.WaitForFences(true, timeout(ns), d.fenceList(fences)...))
}

func (d *DeviceDriver) ResetFences(fences ...vulkan.FenceHandle) vulkan.Result {
	return result(d.driver.ResetFences(d.fenceList(fences)...))
}

func (d *DeviceDriver) CreateSwapchain(info vulkan.SwapchainCreateInfo) (vulkan.SwapchainHandle, vulkan.Result) {
	swapchain, res, err := d.swapchain.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface:            d.surfaceOf(info.Surface),
		MinImageCount:      int(info.MinImageCount),
		ImageFormat:        core1_0.Format(info.ImageFormat),
		ImageColorSpace:    khr_surface.ColorSpace(info.ImageColorSpace),
		ImageExtent:        fromExtent(info.ImageExtent),
		ImageArrayLayers:   int(info.ImageArrayLayers),
		ImageUsage:         core1_0.ImageUsageFlags(info.ImageUsage),
		ImageSharingMode:   core1_0.SharingMode(info.ImageSharingMode),
		QueueFamilyIndices: info.QueueFamilyIndices,
		PreTransform:       khr_surface.SurfaceTransformFlags(info.PreTransform),
		CompositeAlpha:     khr_surface.CompositeAlphaFlags(info.CompositeAlpha),
		PresentMode:        khr_surface.PresentMode(info.PresentMode),
		Clipped:            info.Clipped,
	})
	if err != nil {
		return 0, result(res, err)
	}
	return vulkan.SwapchainHandle(d.swapchains.add(swapchain)), vulkan.Success
}

// DestroySwapchain drops the swapchain's image handles; the images belong to
// the swapchain and are never destroyed individually.
func (d *DeviceDriver) DestroySwapchain(swapchain vulkan.SwapchainHandle) {
	s, ok := d.swapchains.remove(uintptr(swapchain))
	if !ok {
		return
	}
	for _, image := range d.swapchainImages[uintptr(swapchain)] {
		d.images.remove(image)
	}
	delete(d.swapchainImages, uintptr(swapchain))
	d.swapchain.DestroySwapchain(s, nil)
}

func (d *DeviceDriver) GetSwapchainImages(swapchain vulkan.SwapchainHandle) ([]vulkan.Image, vulkan.Result) {
	s, ok := d.swapchains.get(uintptr(swapchain))
	if !ok {
		return nil, vulkan.ErrorInitializationFailed
	}

	images, res, err := d.swapchain.GetSwapchainImages(s)
	if err != nil {
		return nil, result(res, err)
	}

	for _, image := range d.swapchainImages[uintptr(swapchain)] {
		d.images.remove(image)
	}
	handles := make([]vulkan.Image, 0, len(images))
	owned := make([]uintptr, 0, len(images))
	for _, image := range images {
		handle := d.images.add(image)
		owned = append(owned, handle)
		handles = append(handles, vulkan.Image(handle))
	}
	d.swapchainImages[uintptr(swapchain)] = owned
	return handles, result(res, nil)
}

func (d *DeviceDriver) AcquireNextImage(swapchain vulkan.SwapchainHandle, ns uint64, semaphore vulkan.Semaphore, fence vulkan.FenceHandle) (int, vulkan.Result) {
	s, _ := d.swapchains.get(uintptr(swapchain))

	var signal *core1_0.Semaphore
	if sem, ok := d.semaphores.get(uintptr(semaphore)); ok {
		signal = &sem
	}
	var f *core1_0.Fence
	if fen, ok := d.fences.get(uintptr(fence)); ok {
		f = &fen
	}

	index, res, err := d.swapchain.AcquireNextImage(s, timeout(ns), signal, f)
	return index, result(res, err)
}

func (d *DeviceDriver) QueuePresent(queue vulkan.Queue, info vulkan.PresentInfo) vulkan.Result {
	swapchains := make([]khr_swapchain.Swapchain, 0, len(info.Swapchains))
	for _, handle := range info.Swapchains {
		s, _ := d.swapchains.get(uintptr(handle))
		swapchains = append(swapchains, s)
	}

	return result(d.swapchain.QueuePresent(d.queue(queue), khr_swapchain.PresentInfo{
		WaitSemaphores: d.semaphoreList(info.WaitSemaphores),
		Swapchains:     swapchains,
		ImageIndices:   info.ImageIndices,
	}))
}

func (d *DeviceDriver) DestroyDevice() {
	d.driver.DestroyDevice(nil)
}
