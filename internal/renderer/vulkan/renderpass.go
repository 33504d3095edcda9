package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/renderer/internal/containers"
	"github.com/vkngwrapper/renderer/internal/logger"
	"github.com/vkngwrapper/renderer/internal/memory"
)

type RenderPassState int

const (
	RenderPassStateNotAllocated RenderPassState = iota
	RenderPassStateReady
	RenderPassStateRecording
	RenderPassStateInRenderPass
	RenderPassStateRecordingEnded
	RenderPassStateSubmitted
)

var renderPassStateNames = [...]string{
	RenderPassStateNotAllocated:   "NOT_ALLOCATED",
	RenderPassStateReady:          "READY",
	RenderPassStateRecording:      "RECORDING",
	RenderPassStateInRenderPass:   "IN_RENDER_PASS",
	RenderPassStateRecordingEnded: "RECORDING_ENDED",
	RenderPassStateSubmitted:      "SUBMITTED",
}

func (s RenderPassState) String() string {
	if s < 0 || int(s) >= len(renderPassStateNames) {
		return "UNKNOWN"
	}
	return renderPassStateNames[s]
}

// RenderPass is the main color/depth pass over the swapchain images. Its
// state moves in lockstep with the command buffer it is recorded into.
type RenderPass struct {
	Handle RenderPassHandle
	// Framebuffer is the one bound by the last Begin.
	Framebuffer Framebuffer

	// RenderArea is x, y, width, height.
	RenderArea mgl32.Vec4
	ClearColor mgl32.Vec4
	Depth      float32
	Stencil    uint32

	State RenderPassState

	framebuffers *containers.Darray[Framebuffer]
	hasDepth     bool

	driver DeviceDriver
	log    *logger.Logger
	mem    *memory.Tracker
}

// CreateRenderPass builds the pass for swapchain's format and one
// framebuffer per swapchain image.
func CreateRenderPass(
	device *Device,
	swapchain *Swapchain,
	renderArea, clearColor mgl32.Vec4,
	depth float32,
	stencil uint32,
) (*RenderPass, error) {
	rp := &RenderPass{
		RenderArea: renderArea,
		ClearColor: clearColor,
		Depth:      depth,
		Stencil:    stencil,
		hasDepth:   swapchain.Depth != nil,
		driver:     device.Driver,
		log:        device.log,
		mem:        device.mem,
	}

	attachments := []AttachmentDescription{
		{
			Format:         swapchain.ImageFormat.Format,
			LoadOp:         AttachmentLoadOpClear,
			StoreOp:        AttachmentStoreOpStore,
			StencilLoadOp:  AttachmentLoadOpDontCare,
			StencilStoreOp: AttachmentStoreOpDontCare,
			InitialLayout:  ImageLayoutUndefined,
			FinalLayout:    ImageLayoutPresentSrc,
		},
	}
	subpass := SubpassDescription{
		ColorAttachments: []AttachmentReference{
			{Attachment: 0, Layout: ImageLayoutColorAttachmentOptimal},
		},
	}
	stages := PipelineStageColorAttachmentOutput
	access := AccessColorAttachmentRead | AccessColorAttachmentWrite

	if rp.hasDepth {
		attachments = append(attachments, AttachmentDescription{
			Format:         swapchain.Depth.Format,
			LoadOp:         AttachmentLoadOpClear,
			StoreOp:        AttachmentStoreOpDontCare,
			StencilLoadOp:  AttachmentLoadOpDontCare,
			StencilStoreOp: AttachmentStoreOpDontCare,
			InitialLayout:  ImageLayoutUndefined,
			FinalLayout:    ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.DepthStencilAttachment = &AttachmentReference{
			Attachment: 1,
			Layout:     ImageLayoutDepthStencilAttachmentOptimal,
		}
		stages |= PipelineStageEarlyFragmentTests
		access |= AccessDepthStencilAttachmentWrite
	}

	handle, res := rp.driver.CreateRenderPass(RenderPassCreateInfo{
		Attachments: attachments,
		Subpasses:   []SubpassDescription{subpass},
		SubpassDependencies: []SubpassDependency{
			{
				SrcSubpass:    SubpassExternal,
				DstSubpass:    0,
				SrcStageMask:  stages,
				DstStageMask:  stages,
				DstAccessMask: access,
			},
		},
	})
	if err := check(rp.log, res, "vkCreateRenderPass"); err != nil {
		rp.log.Fatalf("Failed to create main render pass.")
		return nil, errors.Wrap(err, "create render pass")
	}
	rp.Handle = handle

	if err := rp.RecreateFramebuffers(swapchain); err != nil {
		rp.Destroy()
		return nil, err
	}

	rp.State = RenderPassStateReady
	rp.log.Infof("Main render pass created.")
	return rp, nil
}

func (rp *RenderPass) destroyFramebuffers() {
	for _, framebuffer := range rp.framebuffers.Items() {
		if framebuffer != 0 {
			rp.driver.DestroyFramebuffer(framebuffer)
		}
	}
	rp.framebuffers.Release()
	rp.framebuffers = nil
	rp.Framebuffer = 0
}

// RecreateFramebuffers replaces the per-image framebuffers with ones built
// over swapchain's current views.
func (rp *RenderPass) RecreateFramebuffers(swapchain *Swapchain) error {
	rp.destroyFramebuffers()

	views := swapchain.Views()
	rp.framebuffers = containers.NewDarray[Framebuffer](rp.mem, memory.TagRenderer, len(views))
	for _, view := range views {
		attachments := []ImageView{view}
		if rp.hasDepth && swapchain.Depth != nil {
			attachments = append(attachments, swapchain.Depth.View)
		}

		framebuffer, res := rp.driver.CreateFramebuffer(FramebufferCreateInfo{
			RenderPass:  rp.Handle,
			Attachments: attachments,
			Width:       swapchain.Extent.Width,
			Height:      swapchain.Extent.Height,
		})
		if err := check(rp.log, res, "vkCreateFramebuffer"); err != nil {
			rp.log.Fatalf("Failed to create framebuffer.")
			return errors.Wrap(err, "create framebuffer")
		}
		rp.framebuffers.Push(framebuffer)
	}
	return nil
}

func (rp *RenderPass) Framebuffers() []Framebuffer {
	return rp.framebuffers.Items()
}

// Begin records the start of the pass into cb against the framebuffer for
// imageIndex. cb must be recording and the pass must not already be open.
func (rp *RenderPass) Begin(cb *CommandBuffer, imageIndex int) error {
	switch rp.State {
	case RenderPassStateReady, RenderPassStateRecording, RenderPassStateRecordingEnded, RenderPassStateSubmitted:
	default:
		return invalidState("begin render pass", rp.State)
	}
	if cb.State != CommandBufferStateRecording {
		return invalidState("begin render pass: command buffer", cb.State)
	}
	if imageIndex < 0 || imageIndex >= rp.framebuffers.Len() {
		return errors.Newf("begin render pass: image index %d out of range [0, %d)", imageIndex, rp.framebuffers.Len())
	}

	rp.Framebuffer = rp.framebuffers.At(imageIndex)
	rp.driver.CmdBeginRenderPass(cb.Handle, RenderPassBeginInfo{
		RenderPass:  rp.Handle,
		Framebuffer: rp.Framebuffer,
		RenderArea: Rect2D{
			X:      int32(rp.RenderArea.X()),
			Y:      int32(rp.RenderArea.Y()),
			Width:  uint32(rp.RenderArea.Z()),
			Height: uint32(rp.RenderArea.W()),
		},
		ClearColor:   [4]float32(rp.ClearColor),
		ClearDepth:   rp.Depth,
		ClearStencil: rp.Stencil,
	})

	rp.State = RenderPassStateInRenderPass
	cb.State = CommandBufferStateInRenderPass
	return nil
}

// End closes the pass opened by Begin on cb.
func (rp *RenderPass) End(cb *CommandBuffer) error {
	if rp.State != RenderPassStateInRenderPass {
		return invalidState("end render pass", rp.State)
	}
	if cb.State != CommandBufferStateInRenderPass {
		return invalidState("end render pass: command buffer", cb.State)
	}

	rp.driver.CmdEndRenderPass(cb.Handle)
	rp.State = RenderPassStateRecordingEnded
	cb.State = CommandBufferStateRecordingEnded
	return nil
}

// MarkSubmitted follows the command buffer the pass was recorded into.
func (rp *RenderPass) MarkSubmitted() error {
	if rp.State != RenderPassStateRecordingEnded {
		return invalidState("mark render pass submitted", rp.State)
	}
	rp.State = RenderPassStateSubmitted
	return nil
}

// Destroy releases the framebuffers and the pass.
func (rp *RenderPass) Destroy() {
	if rp == nil {
		return
	}
	rp.destroyFramebuffers()
	if rp.Handle != 0 {
		rp.driver.DestroyRenderPass(rp.Handle)
		rp.Handle = 0
	}
	rp.State = RenderPassStateNotAllocated
}
