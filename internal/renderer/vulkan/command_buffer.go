package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/logger"
)

type CommandBufferState int

const (
	CommandBufferStateNotAllocated CommandBufferState = iota
	CommandBufferStateReady
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
)

var commandBufferStateNames = [...]string{
	CommandBufferStateNotAllocated:   "NOT_ALLOCATED",
	CommandBufferStateReady:          "READY",
	CommandBufferStateRecording:      "RECORDING",
	CommandBufferStateInRenderPass:   "IN_RENDER_PASS",
	CommandBufferStateRecordingEnded: "RECORDING_ENDED",
	CommandBufferStateSubmitted:      "SUBMITTED",
}

func (s CommandBufferState) String() string {
	if s < 0 || int(s) >= len(commandBufferStateNames) {
		return "UNKNOWN"
	}
	return commandBufferStateNames[s]
}

// CommandBuffer tracks one driver command buffer through its recording and
// submission lifecycle. Every transition checks the current state first.
type CommandBuffer struct {
	Handle CommandBufferHandle
	Pool   CommandPool
	State  CommandBufferState

	// ended is set by End and cleared when recording starts again, so that a
	// freshly allocated buffer cannot be submitted or reset.
	ended bool

	driver DeviceDriver
	log    *logger.Logger
}

func invalidState(op string, state fmt.Stringer) error {
	return errors.WithStack(errors.Wrapf(ErrInvalidState, "%s: not valid in state %s", op, state))
}

// AllocateCommandBuffer allocates one buffer from pool. The buffer stays
// NotAllocated unless the driver call succeeds.
func AllocateCommandBuffer(device *Device, pool CommandPool, primary bool) (*CommandBuffer, error) {
	cb := &CommandBuffer{
		Pool:   pool,
		State:  CommandBufferStateNotAllocated,
		driver: device.Driver,
		log:    device.log,
	}
	if err := cb.Allocate(pool, primary); err != nil {
		return nil, err
	}
	return cb, nil
}

// Allocate obtains a driver handle. Only valid on a NotAllocated buffer.
func (cb *CommandBuffer) Allocate(pool CommandPool, primary bool) error {
	if cb.State != CommandBufferStateNotAllocated {
		return invalidState("allocate command buffer", cb.State)
	}

	level := CommandBufferLevelSecondary
	if primary {
		level = CommandBufferLevelPrimary
	}

	handles, res := cb.driver.AllocateCommandBuffers(CommandBufferAllocateInfo{
		CommandPool: pool,
		Level:       level,
		Count:       1,
	})
	if err := check(cb.log, res, "vkAllocateCommandBuffers"); err != nil {
		return err
	}
	if len(handles) != 1 {
		return errors.Newf("vkAllocateCommandBuffers returned %d buffers, expected 1", len(handles))
	}

	cb.Handle = handles[0]
	cb.Pool = pool
	cb.State = CommandBufferStateReady
	cb.ended = false
	return nil
}

// Begin starts recording with usage flags composed from the three options.
func (cb *CommandBuffer) Begin(singleUse, renderPassContinue, simultaneousUse bool) error {
	if cb.State != CommandBufferStateReady {
		return invalidState("begin command buffer", cb.State)
	}

	var flags CommandBufferUsageFlags
	if singleUse {
		flags |= CommandBufferUsageOneTimeSubmit
	}
	if renderPassContinue {
		flags |= CommandBufferUsageRenderPassContinue
	}
	if simultaneousUse {
		flags |= CommandBufferUsageSimultaneousUse
	}

	if err := check(cb.log, cb.driver.BeginCommandBuffer(cb.Handle, flags), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	cb.State = CommandBufferStateRecording
	cb.ended = false
	return nil
}

// End finishes recording. The buffer is then ready for submission.
func (cb *CommandBuffer) End() error {
	if cb.State != CommandBufferStateRecording && cb.State != CommandBufferStateRecordingEnded {
		return invalidState("end command buffer", cb.State)
	}

	if err := check(cb.log, cb.driver.EndCommandBuffer(cb.Handle), "vkEndCommandBuffer"); err != nil {
		return err
	}
	cb.State = CommandBufferStateReady
	cb.ended = true
	return nil
}

// MarkSubmitted records that the buffer is in flight. It must not be
// re-recorded or reset until the device has finished with it.
func (cb *CommandBuffer) MarkSubmitted() error {
	if cb.State != CommandBufferStateReady || !cb.ended {
		return invalidState("mark command buffer submitted", cb.State)
	}
	cb.State = CommandBufferStateSubmitted
	return nil
}

// Reset returns an ended or submitted buffer to Ready for re-recording.
func (cb *CommandBuffer) Reset() error {
	valid := cb.State == CommandBufferStateSubmitted ||
		(cb.State == CommandBufferStateReady && cb.ended)
	if !valid {
		return invalidState("reset command buffer", cb.State)
	}

	if err := check(cb.log, cb.driver.ResetCommandBuffer(cb.Handle), "vkResetCommandBuffer"); err != nil {
		return err
	}
	cb.State = CommandBufferStateReady
	cb.ended = false
	return nil
}

// Free returns the handle to its pool. The caller must ensure the device is
// done executing the buffer.
func (cb *CommandBuffer) Free() {
	if cb.Handle != 0 {
		cb.driver.FreeCommandBuffers(cb.Pool, cb.Handle)
	}
	cb.Handle = 0
	cb.State = CommandBufferStateNotAllocated
	cb.ended = false
}

// AllocateAndBeginSingleUse returns a primary buffer already recording with
// the one-time-submit flag.
func AllocateAndBeginSingleUse(device *Device, pool CommandPool) (*CommandBuffer, error) {
	cb, err := AllocateCommandBuffer(device, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free()
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends the buffer, submits it to queue and blocks until the
// queue is idle, then frees it.
func (cb *CommandBuffer) EndSingleUse(queue Queue) error {
	defer cb.Free()

	if err := cb.End(); err != nil {
		return err
	}

	res := cb.driver.QueueSubmit(queue, 0, SubmitInfo{
		CommandBuffers: []CommandBufferHandle{cb.Handle},
	})
	if err := check(cb.log, res, "vkQueueSubmit"); err != nil {
		return err
	}
	if err := cb.MarkSubmitted(); err != nil {
		return err
	}

	return check(cb.log, cb.driver.QueueWaitIdle(queue), "vkQueueWaitIdle")
}
