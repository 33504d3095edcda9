// Package vulkan is the renderer's graphics-device layer: it connects to the
// driver, picks and configures a device, owns the swapchain and drives the
// per-frame command buffer and render pass lifecycle.
//
// Everything is reached through an explicitly owned Context; the package
// holds no global renderer state. All calls must come from one goroutine.
package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/vkngwrapper/renderer/internal/logger"
	"github.com/vkngwrapper/renderer/internal/memory"
)

// Context is the state of one running renderer.
type Context struct {
	ID uuid.UUID

	Instance       InstanceDriver
	DebugMessenger DebugMessenger
	Surface        Surface

	Device         *Device
	Swapchain      *Swapchain
	MainRenderPass *RenderPass

	// GraphicsCommandBuffers holds one buffer per swapchain image.
	GraphicsCommandBuffers []*CommandBuffer

	// Indexed by the current frame.
	ImageAvailableSemaphores []Semaphore
	QueueCompleteSemaphores  []Semaphore
	InFlightFences           []*Fence

	// ImagesInFlight maps each swapchain image to the fence of the frame
	// that last rendered into it. Entries are nil until first use.
	ImagesInFlight []*Fence

	FramebufferWidth  uint32
	FramebufferHeight uint32

	ImageIndex   int
	CurrentFrame int
	FrameDelta   float64

	RecreatingSwapchain bool

	// The generations differ while a resize is waiting to be applied.
	framebufferSizeGeneration     uint64
	framebufferSizeLastGeneration uint64

	config   Config
	window   Window
	log      *logger.Logger
	mem      *memory.Tracker
	shutdown bool
}

// Initialize connects to the driver and builds everything needed to render
// into window. On failure whatever was created is torn down again.
func Initialize(cfg Config, window Window, global GlobalDriver, log *logger.Logger, mem *memory.Tracker) (*Context, error) {
	if cfg.MaxFramesInFlight < 1 {
		cfg.MaxFramesInFlight = 1
	}

	id := uuid.New()
	c := &Context{
		ID:     id,
		config: cfg,
		window: window,
		log:    log.With("renderer", id.String()),
		mem:    mem,
	}
	c.FramebufferWidth, c.FramebufferHeight = window.FramebufferSize()

	if err := c.initialize(global); err != nil {
		c.Shutdown()
		return nil, err
	}

	c.log.Infof("Vulkan renderer initialized successfully.")
	return c, nil
}

func (c *Context) initialize(global GlobalDriver) error {
	if err := c.createInstance(global); err != nil {
		return err
	}
	if err := c.setupDebugMessenger(); err != nil {
		return err
	}
	if err := c.createSurface(); err != nil {
		return err
	}

	device, err := CreateDevice(c.Instance, c.Surface, c.log, c.mem)
	if err != nil {
		return err
	}
	c.Device = device

	if !c.Device.DetectDepthFormat() {
		return errors.WithStack(ErrNoDepthFormat)
	}

	swapchain, err := CreateSwapchain(c.Device, c.Surface, c.FramebufferWidth, c.FramebufferHeight, c.log, c.mem)
	if err != nil {
		return err
	}
	c.Swapchain = swapchain

	renderPass, err := CreateRenderPass(c.Device, c.Swapchain,
		c.renderArea(), c.config.ClearColor, 1.0, 0)
	if err != nil {
		return err
	}
	c.MainRenderPass = renderPass

	if err := c.createCommandBuffers(); err != nil {
		return err
	}
	return c.createSyncObjects()
}

func (c *Context) renderArea() mgl32.Vec4 {
	return mgl32.Vec4{0, 0, float32(c.Swapchain.Extent.Width), float32(c.Swapchain.Extent.Height)}
}

func (c *Context) createCommandBuffers() error {
	c.GraphicsCommandBuffers = make([]*CommandBuffer, 0, c.Swapchain.ImageCount)
	for i := 0; i < c.Swapchain.ImageCount; i++ {
		cb, err := AllocateCommandBuffer(c.Device, c.Device.GraphicsCommandPool, true)
		if err != nil {
			c.log.Fatalf("Failed to allocate graphics command buffer %d.", i)
			return errors.Wrapf(err, "allocate graphics command buffer %d", i)
		}
		c.GraphicsCommandBuffers = append(c.GraphicsCommandBuffers, cb)
	}
	c.log.Infof("Vulkan command buffers created.")
	return nil
}

func (c *Context) freeCommandBuffers() {
	for _, cb := range c.GraphicsCommandBuffers {
		cb.Free()
	}
	c.GraphicsCommandBuffers = nil
}

func (c *Context) createSyncObjects() error {
	frames := c.config.MaxFramesInFlight
	c.ImageAvailableSemaphores = make([]Semaphore, 0, frames)
	c.QueueCompleteSemaphores = make([]Semaphore, 0, frames)
	c.InFlightFences = make([]*Fence, 0, frames)

	for i := 0; i < frames; i++ {
		for _, list := range []*[]Semaphore{&c.ImageAvailableSemaphores, &c.QueueCompleteSemaphores} {
			semaphore, res := c.Device.Driver.CreateSemaphore()
			if err := check(c.log, res, "vkCreateSemaphore"); err != nil {
				c.log.Fatalf("Failed to create frame semaphores.")
				return errors.Wrap(err, "create semaphore")
			}
			*list = append(*list, semaphore)
		}

		// Signaled, so the first frame does not wait on a fence that was
		// never submitted.
		fence, err := CreateFence(c.Device, true)
		if err != nil {
			c.log.Fatalf("Failed to create in-flight fence.")
			return err
		}
		c.InFlightFences = append(c.InFlightFences, fence)
	}

	c.ImagesInFlight = make([]*Fence, c.Swapchain.ImageCount)
	return nil
}

func (c *Context) destroySyncObjects() {
	if c.Device == nil || c.Device.Driver == nil {
		return
	}
	for _, semaphore := range c.ImageAvailableSemaphores {
		c.Device.Driver.DestroySemaphore(semaphore)
	}
	for _, semaphore := range c.QueueCompleteSemaphores {
		c.Device.Driver.DestroySemaphore(semaphore)
	}
	for _, fence := range c.InFlightFences {
		fence.Destroy()
	}
	c.ImageAvailableSemaphores = nil
	c.QueueCompleteSemaphores = nil
	c.InFlightFences = nil
	c.ImagesInFlight = nil
}

// WaitIdle blocks until the device has finished all submitted work.
func (c *Context) WaitIdle() error {
	if c.Device == nil || c.Device.Driver == nil {
		return errors.WithStack(ErrNotInitialized)
	}
	return check(c.log, c.Device.Driver.DeviceWaitIdle(), "vkDeviceWaitIdle")
}

// Shutdown destroys everything Initialize created, in reverse order. It is
// safe to call more than once and on a partially initialized Context.
func (c *Context) Shutdown() {
	if c == nil || c.shutdown {
		return
	}
	c.shutdown = true

	if c.Device != nil && c.Device.Driver != nil {
		// Best effort; teardown proceeds regardless.
		_ = c.WaitIdle()
	}

	c.log.Debugf("Destroying Vulkan sync objects...")
	c.destroySyncObjects()

	c.log.Debugf("Freeing Vulkan command buffers...")
	c.freeCommandBuffers()

	c.log.Debugf("Destroying Vulkan render pass...")
	c.MainRenderPass.Destroy()
	c.MainRenderPass = nil

	c.Swapchain.Destroy()
	c.Swapchain = nil

	if c.Device != nil {
		c.log.Debugf("Destroying Vulkan device...")
		c.Device.Destroy()
		c.Device = nil
	}

	if c.Instance != nil {
		if c.Surface != 0 {
			c.log.Debugf("Destroying Vulkan surface...")
			c.Instance.DestroySurface(c.Surface)
			c.Surface = 0
		}
		if c.DebugMessenger != 0 {
			c.log.Debugf("Destroying Vulkan debugger...")
			c.Instance.DestroyDebugMessenger(c.DebugMessenger)
			c.DebugMessenger = 0
		}
		c.log.Debugf("Destroying Vulkan instance...")
		c.Instance.DestroyInstance()
		c.Instance = nil
	}

	c.log.Infof("Vulkan renderer shut down.")
}
