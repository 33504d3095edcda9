package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommandBuffer(t *testing.T) (*testRig, *Device, *CommandBuffer) {
	t.Helper()
	r := newTestRig()
	d := r.newDevice(t)
	t.Cleanup(d.Destroy)

	cb, err := AllocateCommandBuffer(d, d.GraphicsCommandPool, true)
	require.NoError(t, err)
	return r, d, cb
}

func requireInvalidState(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState), "got %v", err)
}

func TestCommandBufferLifecycle(t *testing.T) {
	_, _, cb := newTestCommandBuffer(t)
	assert.Equal(t, CommandBufferStateReady, cb.State)
	assert.NotZero(t, cb.Handle)

	require.NoError(t, cb.Begin(false, false, false))
	assert.Equal(t, CommandBufferStateRecording, cb.State)

	require.NoError(t, cb.End())
	assert.Equal(t, CommandBufferStateReady, cb.State)

	require.NoError(t, cb.MarkSubmitted())
	assert.Equal(t, CommandBufferStateSubmitted, cb.State)

	require.NoError(t, cb.Reset())
	assert.Equal(t, CommandBufferStateReady, cb.State)

	require.NoError(t, cb.Begin(false, false, false))
	assert.Equal(t, CommandBufferStateRecording, cb.State)
}

func TestCommandBufferBeginFlags(t *testing.T) {
	tests := []struct {
		singleUse, renderPassContinue, simultaneousUse bool
		want                                           CommandBufferUsageFlags
	}{
		{false, false, false, 0},
		{true, false, false, CommandBufferUsageOneTimeSubmit},
		{false, true, false, CommandBufferUsageRenderPassContinue},
		{false, false, true, CommandBufferUsageSimultaneousUse},
		{true, true, true, CommandBufferUsageOneTimeSubmit | CommandBufferUsageRenderPassContinue | CommandBufferUsageSimultaneousUse},
	}

	r, _, cb := newTestCommandBuffer(t)
	for _, tt := range tests {
		require.NoError(t, cb.Begin(tt.singleUse, tt.renderPassContinue, tt.simultaneousUse))
		require.NoError(t, cb.End())
		require.NoError(t, cb.Reset())

		flags := r.device().beginFlags
		assert.Equal(t, tt.want, flags[len(flags)-1])
	}
}

func TestCommandBufferBeginAfterFreeFails(t *testing.T) {
	r, _, cb := newTestCommandBuffer(t)
	cb.Free()
	assert.Equal(t, CommandBufferStateNotAllocated, cb.State)
	assert.Zero(t, cb.Handle)
	assert.Zero(t, r.device().live["CommandBuffer"])

	requireInvalidState(t, cb.Begin(false, false, false))
	assert.Empty(t, r.device().beginFlags)
}

func TestCommandBufferDoubleEndFails(t *testing.T) {
	r, _, cb := newTestCommandBuffer(t)
	require.NoError(t, cb.Begin(false, false, false))
	require.NoError(t, cb.End())

	requireInvalidState(t, cb.End())
	assert.Equal(t, 1, r.calls.count("EndCommandBuffer"))
}

func TestCommandBufferResetRequiresEndOrSubmit(t *testing.T) {
	r, _, cb := newTestCommandBuffer(t)

	requireInvalidState(t, cb.Reset())

	require.NoError(t, cb.Begin(false, false, false))
	requireInvalidState(t, cb.Reset())

	require.NoError(t, cb.End())
	require.NoError(t, cb.Reset(), "reset after end")

	require.NoError(t, cb.Begin(false, false, false))
	require.NoError(t, cb.End())
	require.NoError(t, cb.MarkSubmitted())
	require.NoError(t, cb.Reset(), "reset after submit")

	assert.Equal(t, 2, r.calls.count("ResetCommandBuffer"))
}

func TestCommandBufferMarkSubmittedRequiresEnd(t *testing.T) {
	_, _, cb := newTestCommandBuffer(t)

	requireInvalidState(t, cb.MarkSubmitted())

	require.NoError(t, cb.Begin(false, false, false))
	requireInvalidState(t, cb.MarkSubmitted())

	require.NoError(t, cb.End())
	require.NoError(t, cb.MarkSubmitted())
	requireInvalidState(t, cb.MarkSubmitted())
	requireInvalidState(t, cb.Begin(false, false, false))
}

func TestCommandBufferAllocateTwiceFails(t *testing.T) {
	_, d, cb := newTestCommandBuffer(t)
	requireInvalidState(t, cb.Allocate(d.GraphicsCommandPool, true))
}

func TestCommandBufferAllocateFailure(t *testing.T) {
	r := newTestRig()
	d := r.newDevice(t)
	defer d.Destroy()
	r.device().results["AllocateCommandBuffers"] = ErrorOutOfDeviceMemory

	cb, err := AllocateCommandBuffer(d, d.GraphicsCommandPool, true)
	require.Error(t, err)
	assert.Nil(t, cb)
	assert.True(t, errors.Is(err, ErrDriver))
}

func TestCommandBufferDriverFailureKeepsState(t *testing.T) {
	r, _, cb := newTestCommandBuffer(t)
	r.device().results["BeginCommandBuffer"] = ErrorOutOfHostMemory

	err := cb.Begin(false, false, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDriver))
	assert.Equal(t, CommandBufferStateReady, cb.State)
}

func TestSingleUseCommandBuffer(t *testing.T) {
	r := newTestRig()
	d := r.newDevice(t)
	defer d.Destroy()

	cb, err := AllocateAndBeginSingleUse(d, d.GraphicsCommandPool)
	require.NoError(t, err)
	assert.Equal(t, CommandBufferStateRecording, cb.State)
	assert.Equal(t, []CommandBufferUsageFlags{CommandBufferUsageOneTimeSubmit}, r.device().beginFlags)

	handle := cb.Handle
	require.NoError(t, cb.EndSingleUse(d.GraphicsQueue))

	require.Len(t, r.device().submits, 1)
	assert.Equal(t, []CommandBufferHandle{handle}, r.device().submits[0].CommandBuffers)

	submit := r.calls.index("QueueSubmit")
	assert.Less(t, r.calls.index("EndCommandBuffer"), submit)
	assert.Less(t, submit, r.calls.index("QueueWaitIdle"))
	assert.Less(t, submit, r.calls.index("DestroyCommandBuffer"))

	assert.Equal(t, CommandBufferStateNotAllocated, cb.State)
	assert.Zero(t, r.device().live["CommandBuffer"])
}

func TestSingleUseSubmitFailureStillFrees(t *testing.T) {
	r := newTestRig()
	d := r.newDevice(t)
	defer d.Destroy()

	cb, err := AllocateAndBeginSingleUse(d, d.GraphicsCommandPool)
	require.NoError(t, err)
	r.device().results["QueueSubmit"] = ErrorDeviceLost

	err = cb.EndSingleUse(d.GraphicsQueue)
	assert.True(t, errors.Is(err, ErrDriver))
	assert.Equal(t, 0, r.calls.count("QueueWaitIdle"))
	assert.Zero(t, r.device().live["CommandBuffer"])
}

func TestCommandBufferStateString(t *testing.T) {
	assert.Equal(t, "IN_RENDER_PASS", CommandBufferStateInRenderPass.String())
	assert.Equal(t, "UNKNOWN", CommandBufferState(42).String())
}
