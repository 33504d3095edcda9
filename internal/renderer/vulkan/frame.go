package vulkan

import (
	"github.com/cockroachdb/errors"
)

// Resized records a new framebuffer size. The swapchain is rebuilt by the
// next BeginFrame, never from here.
func (c *Context) Resized(width, height uint32) {
	c.FramebufferWidth = width
	c.FramebufferHeight = height
	c.framebufferSizeGeneration++

	c.log.Infof("Vulkan renderer backend resized: w/h/gen: %d/%d/%d",
		width, height, c.framebufferSizeGeneration)
}

// BeginFrame prepares the next swapchain image for recording. It returns
// false when the frame should be skipped, e.g. while the swapchain is being
// rebuilt.
func (c *Context) BeginFrame(delta float64) (bool, error) {
	if c.shutdown || c.Device == nil {
		return false, errors.WithStack(ErrNotInitialized)
	}
	c.FrameDelta = delta

	if c.RecreatingSwapchain {
		if err := c.WaitIdle(); err != nil {
			c.log.Errorf("BeginFrame device wait idle failed.")
			return false, err
		}
		c.log.Infof("Recreating swapchain, booting.")
		return false, nil
	}

	if c.framebufferSizeGeneration != c.framebufferSizeLastGeneration {
		if err := c.WaitIdle(); err != nil {
			c.log.Errorf("BeginFrame device wait idle failed.")
			return false, err
		}
		if err := c.recreateSwapchain(); err != nil {
			return false, err
		}
		c.log.Infof("Resized, booting.")
		return false, nil
	}

	if !c.InFlightFences[c.CurrentFrame].Wait(NoTimeout) {
		c.log.Warnf("In-flight fence wait failure!")
		return false, nil
	}

	imageIndex, err := c.Swapchain.AcquireNextImage(NoTimeout, c.ImageAvailableSemaphores[c.CurrentFrame], 0)
	if errors.Is(err, ErrSwapchainOutOfDate) {
		c.log.Infof("Swapchain out of date, recreating.")
		if err := c.recreateSwapchain(); err != nil {
			return false, err
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.ImageIndex = imageIndex

	cb := c.GraphicsCommandBuffers[imageIndex]
	if cb.State == CommandBufferStateSubmitted {
		if err := cb.Reset(); err != nil {
			return false, err
		}
	}
	if err := cb.Begin(false, false, false); err != nil {
		return false, err
	}

	c.MainRenderPass.RenderArea = c.renderArea()
	if err := c.MainRenderPass.Begin(cb, imageIndex); err != nil {
		return false, err
	}
	return true, nil
}

// EndFrame closes the frame opened by BeginFrame, submits it and presents
// the image.
func (c *Context) EndFrame(delta float64) error {
	if c.shutdown || c.Device == nil {
		return errors.WithStack(ErrNotInitialized)
	}
	c.FrameDelta = delta

	cb := c.GraphicsCommandBuffers[c.ImageIndex]
	if err := c.MainRenderPass.End(cb); err != nil {
		return err
	}
	if err := cb.End(); err != nil {
		return err
	}

	// A previous frame may still be using this image.
	if previous := c.ImagesInFlight[c.ImageIndex]; previous != nil {
		previous.Wait(NoTimeout)
	}
	fence := c.InFlightFences[c.CurrentFrame]
	if err := fence.Reset(); err != nil {
		return err
	}

	res := c.Device.Driver.QueueSubmit(c.Device.GraphicsQueue, fence.Handle, SubmitInfo{
		WaitSemaphores:   []Semaphore{c.ImageAvailableSemaphores[c.CurrentFrame]},
		WaitDstStageMask: []PipelineStageFlags{PipelineStageColorAttachmentOutput},
		CommandBuffers:   []CommandBufferHandle{cb.Handle},
		SignalSemaphores: []Semaphore{c.QueueCompleteSemaphores[c.CurrentFrame]},
	})
	if err := check(c.log, res, "vkQueueSubmit"); err != nil {
		c.log.Errorf("vkQueueSubmit failed with result: %s", res)
		// No work was queued against the fence, so nothing will signal it.
		fence.Signaled = true
		return err
	}
	c.ImagesInFlight[c.ImageIndex] = fence

	if err := cb.MarkSubmitted(); err != nil {
		return err
	}
	if err := c.MainRenderPass.MarkSubmitted(); err != nil {
		return err
	}

	c.Swapchain.Present(c.Device.PresentQueue, c.ImageIndex, c.QueueCompleteSemaphores[c.CurrentFrame])

	c.CurrentFrame = (c.CurrentFrame + 1) % c.config.MaxFramesInFlight
	return nil
}

// recreateSwapchain rebuilds the swapchain and everything sized by it at the
// cached framebuffer size.
func (c *Context) recreateSwapchain() error {
	if c.RecreatingSwapchain {
		c.log.Debugf("recreateSwapchain called when already recreating. Booting.")
		return nil
	}
	if c.FramebufferWidth == 0 || c.FramebufferHeight == 0 {
		c.log.Debugf("recreateSwapchain called when window is < 1 in a dimension. Booting.")
		return nil
	}

	c.RecreatingSwapchain = true
	defer func() { c.RecreatingSwapchain = false }()

	if err := c.WaitIdle(); err != nil {
		return err
	}

	if err := c.Swapchain.Recreate(c.FramebufferWidth, c.FramebufferHeight); err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}
	c.framebufferSizeLastGeneration = c.framebufferSizeGeneration

	c.freeCommandBuffers()
	if err := c.MainRenderPass.RecreateFramebuffers(c.Swapchain); err != nil {
		return err
	}
	c.MainRenderPass.RenderArea = c.renderArea()
	if err := c.createCommandBuffers(); err != nil {
		return err
	}

	c.ImagesInFlight = make([]*Fence, c.Swapchain.ImageCount)
	return nil
}
