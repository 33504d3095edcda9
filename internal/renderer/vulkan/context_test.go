package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/renderer/internal/memory"
)

func renderFrame(t *testing.T, c *Context) {
	t.Helper()
	ok, err := c.BeginFrame(1.0 / 60)
	require.NoError(t, err)
	require.True(t, ok, "frame was skipped")
	require.NoError(t, c.EndFrame(1.0/60))
}

func TestInitialize(t *testing.T) {
	r := newTestRig()
	c := r.initialize(t, true)
	defer c.Shutdown()

	assert.NotZero(t, c.ID)
	assert.Equal(t, r.instance, c.Instance)
	assert.Equal(t, DebugMessenger(0x77), c.DebugMessenger)
	assert.Equal(t, Surface(0x55), c.Surface)
	require.NotNil(t, c.Device)
	assert.Equal(t, FormatD32SFloat, c.Device.DepthFormat)

	require.NotNil(t, c.Swapchain)
	assert.Equal(t, Extent2D{Width: 800, Height: 600}, c.Swapchain.Extent)
	assert.Equal(t, 3, c.Swapchain.ImageCount)

	require.NotNil(t, c.MainRenderPass)
	assert.Equal(t, mgl32.Vec4{0, 0, 800, 600}, c.MainRenderPass.RenderArea)
	assert.Equal(t, mgl32.Vec4{0, 0, 0.2, 1}, c.MainRenderPass.ClearColor)
	assert.Equal(t, float32(1.0), c.MainRenderPass.Depth)

	assert.Len(t, c.GraphicsCommandBuffers, 3)
	for _, cb := range c.GraphicsCommandBuffers {
		assert.Equal(t, CommandBufferStateReady, cb.State)
	}

	assert.Len(t, c.ImageAvailableSemaphores, 2)
	assert.Len(t, c.QueueCompleteSemaphores, 2)
	require.Len(t, c.InFlightFences, 2)
	for _, fence := range c.InFlightFences {
		assert.True(t, fence.Signaled)
	}
	assert.Equal(t, []*Fence{nil, nil, nil}, c.ImagesInFlight)
	assert.Contains(t, r.logs.String(), "Vulkan renderer initialized successfully.")
}

func TestInitializeClampsFramesInFlight(t *testing.T) {
	r := newTestRig()
	cfg := r.config(false)
	cfg.MaxFramesInFlight = 0

	c, err := Initialize(cfg, r.window, r.global, r.log, r.mem)
	require.NoError(t, err)
	defer c.Shutdown()

	assert.Len(t, c.InFlightFences, 1)
	renderFrame(t, c)
	renderFrame(t, c)
	assert.Equal(t, 0, c.CurrentFrame)
}

func TestShutdown(t *testing.T) {
	r := newTestRig()
	c := r.initialize(t, true)
	renderFrame(t, c)

	c.Shutdown()

	assert.Less(t, r.calls.index("DestroyFence"), r.calls.index("DestroyRenderPass"))
	assert.Less(t, r.calls.index("DestroyRenderPass"), r.calls.index("DestroySwapchain"))
	assert.Less(t, r.calls.index("DestroySwapchain"), r.calls.index("DestroyCommandPool"))
	assert.Less(t, r.calls.index("DestroyCommandPool"), r.calls.index("DestroyDevice"))
	assert.Less(t, r.calls.index("DestroyDevice"), r.calls.index("DestroySurface"))
	assert.Less(t, r.calls.index("DestroySurface"), r.calls.index("DestroyDebugMessenger"))
	assert.Less(t, r.calls.index("DestroyDebugMessenger"), r.calls.index("DestroyInstance"))

	assert.Zero(t, r.device().liveObjects())
	assert.Zero(t, r.mem.Usage(memory.TagRenderer))
	assert.Nil(t, c.Device)
	assert.Nil(t, c.Swapchain)
	assert.Nil(t, c.MainRenderPass)
	assert.Nil(t, c.Instance)

	c.Shutdown()
	assert.Equal(t, 1, r.calls.count("DestroyInstance"))
	assert.Equal(t, 1, r.calls.count("DestroyDevice"))
}

func TestFramesAfterShutdownFail(t *testing.T) {
	r := newTestRig()
	c := r.initialize(t, false)
	c.Shutdown()

	_, err := c.BeginFrame(0)
	assert.True(t, errors.Is(err, ErrNotInitialized))
	assert.True(t, errors.Is(c.EndFrame(0), ErrNotInitialized))
	assert.True(t, errors.Is(c.WaitIdle(), ErrNotInitialized))
}

func TestFrameLoop(t *testing.T) {
	r := newTestRig()
	c := r.initialize(t, false)
	defer c.Shutdown()

	for i := 0; i < 5; i++ {
		renderFrame(t, c)
	}

	dev := r.device()
	require.Len(t, dev.submits, 5)
	require.Len(t, dev.presents, 5)
	assert.Len(t, dev.renderPassBegins, 5)
	assert.Equal(t, 1, c.CurrentFrame)
	assert.Equal(t, 1.0/60, c.FrameDelta)

	for i, submit := range dev.submits {
		frame := i % 2
		assert.Equal(t, []Semaphore{c.ImageAvailableSemaphores[frame]}, submit.WaitSemaphores)
		assert.Equal(t, []Semaphore{c.QueueCompleteSemaphores[frame]}, submit.SignalSemaphores)
		assert.Equal(t, []PipelineStageFlags{PipelineStageColorAttachmentOutput}, submit.WaitDstStageMask)
	}
	for i, present := range dev.presents {
		assert.Equal(t, []int{i % 3}, present.ImageIndices)
		assert.Equal(t, []Semaphore{c.QueueCompleteSemaphores[i%2]}, present.WaitSemaphores)
	}

	// Frames 3 and 4 reused images 0 and 1 with the other frame's fence.
	assert.Same(t, c.InFlightFences[1], c.ImagesInFlight[0])
	assert.Same(t, c.InFlightFences[0], c.ImagesInFlight[1])
	assert.Same(t, c.InFlightFences[0], c.ImagesInFlight[2])
	assert.Equal(t, RenderPassStateSubmitted, c.MainRenderPass.State)
}

func TestEndFrameSubmitFailure(t *testing.T) {
	r := newTestRig()
	c := r.initialize(t, false)
	defer c.Shutdown()

	ok, err := c.BeginFrame(0)
	require.NoError(t, err)
	require.True(t, ok)

	r.device().results["QueueSubmit"] = ErrorDeviceLost
	err = c.EndFrame(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDriver))
	assert.Empty(t, r.device().presents)
	assert.Contains(t, r.logs.String(), "vkQueueSubmit failed")
}

func TestFrameAfterSubmitFailureDoesNotWait(t *testing.T) {
	r := newTestRig()
	c := r.initialize(t, false)
	defer c.Shutdown()

	ok, err := c.BeginFrame(0)
	require.NoError(t, err)
	require.True(t, ok)

	dev := r.device()
	dev.results["QueueSubmit"] = ErrorDeviceLost
	require.Error(t, c.EndFrame(0))

	// The failed frame keeps its slot and its fence stays waitable.
	assert.Equal(t, 0, c.CurrentFrame)
	assert.True(t, c.InFlightFences[0].Signaled)
	assert.Nil(t, c.ImagesInFlight[0])

	delete(dev.results, "QueueSubmit")
	renderFrame(t, c)
	renderFrame(t, c)

	assert.Zero(t, r.calls.count("WaitForFences"))
	require.Len(t, dev.submits, 2)
	assert.Same(t, c.InFlightFences[0], c.ImagesInFlight[1])
	assert.Same(t, c.InFlightFences[1], c.ImagesInFlight[2])
}

func TestResizeRebuildsSwapchain(t *testing.T) {
	r := newTestRig()
	c := r.initialize(t, false)
	defer c.Shutdown()
	renderFrame(t, c)

	r.physical.capabilities.MinImageCount = 3
	c.Resized(1280, 720)
	assert.Contains(t, r.logs.String(), "w/h/gen: 1280/720/1")

	ok, err := c.BeginFrame(0)
	require.NoError(t, err)
	assert.False(t, ok, "the resize frame is skipped")

	assert.Equal(t, 2, r.calls.count("CreateSwapchain"))
	assert.Equal(t, Extent2D{Width: 1280, Height: 720}, c.Swapchain.Extent)
	assert.Equal(t, 4, c.Swapchain.ImageCount)
	assert.Len(t, c.GraphicsCommandBuffers, 4)
	assert.Len(t, c.MainRenderPass.Framebuffers(), 4)
	assert.Len(t, c.ImagesInFlight, 4)
	assert.Equal(t, mgl32.Vec4{0, 0, 1280, 720}, c.MainRenderPass.RenderArea)
	assert.False(t, c.RecreatingSwapchain)

	dev := r.device()
	assert.Equal(t, 4, dev.live["CommandBuffer"])
	assert.Equal(t, 4, dev.live["Framebuffer"])
	assert.Equal(t, 1, dev.live["Swapchain"])

	renderFrame(t, c)
	last := dev.renderPassBegins[len(dev.renderPassBegins)-1]
	assert.Equal(t, Rect2D{Width: 1280, Height: 720}, last.RenderArea)

	// Size is in sync again; nothing more to rebuild.
	renderFrame(t, c)
	assert.Equal(t, 2, r.calls.count("CreateSwapchain"))
}

func TestZeroSizedResizeIsDeferred(t *testing.T) {
	r := newTestRig()
	c := r.initialize(t, false)
	defer c.Shutdown()

	c.Resized(0, 600)
	for i := 0; i < 3; i++ {
		ok, err := c.BeginFrame(0)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, r.calls.count("CreateSwapchain"))
	assert.Contains(t, r.logs.String(), "window is < 1 in a dimension")

	c.Resized(640, 480)
	ok, err := c.BeginFrame(0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, r.calls.count("CreateSwapchain"))
	assert.Equal(t, Extent2D{Width: 640, Height: 480}, c.Swapchain.Extent)

	renderFrame(t, c)
}

func TestOutOfDateAcquireRecreates(t *testing.T) {
	r := newTestRig()
	c := r.initialize(t, false)
	defer c.Shutdown()

	r.device().acquireResults = []Result{ErrorOutOfDate}
	ok, err := c.BeginFrame(0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, r.calls.count("CreateSwapchain"))
	assert.Empty(t, r.device().renderPassBegins)

	// The frame's fence was not reset, so the retry does not block.
	renderFrame(t, c)
	assert.Zero(t, r.calls.count("WaitForFences"))
	assert.Equal(t, 1, r.calls.count("ResetFences"))
}

func TestBeginFrameWhileRecreatingIsSkipped(t *testing.T) {
	r := newTestRig()
	c := r.initialize(t, false)
	defer c.Shutdown()

	c.RecreatingSwapchain = true
	before := r.calls.count("DeviceWaitIdle")

	ok, err := c.BeginFrame(0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before+1, r.calls.count("DeviceWaitIdle"))
	assert.Zero(t, r.calls.count("AcquireNextImage"))
}

func TestInitializeWithoutDepthFormatCleansUp(t *testing.T) {
	r := newTestRig()
	r.physical.formatProperties = nil

	c, err := Initialize(r.config(false), r.window, r.global, r.log, r.mem)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, ErrNoDepthFormat))

	assert.Zero(t, r.calls.count("CreateSwapchain"))
	assert.Equal(t, 1, r.calls.count("DestroyDevice"))
	assert.Equal(t, 1, r.calls.count("DestroySurface"))
	assert.Equal(t, 1, r.calls.count("DestroyInstance"))
	assert.Zero(t, r.device().liveObjects())
	assert.Zero(t, r.mem.Usage(memory.TagRenderer))
}

func TestInitializeWithoutDevice(t *testing.T) {
	p := newFakePhysicalDevice("no swapchain")
	p.extensions = nil
	r := newTestRig(p)

	_, err := Initialize(r.config(false), r.window, r.global, r.log, r.mem)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSuitableDevice))
	assert.Zero(t, r.calls.count("CreateDevice"))
	assert.Equal(t, 1, r.calls.count("DestroySurface"))
	assert.Equal(t, 1, r.calls.count("DestroyInstance"))
}
