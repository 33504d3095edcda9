package vulkan

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/logger"
)

// Fence wraps a driver fence and remembers whether it is known to be
// signaled, so redundant waits can be skipped.
type Fence struct {
	Handle   FenceHandle
	Signaled bool

	driver DeviceDriver
	log    *logger.Logger
}

// CreateFence creates a fence, optionally already signaled so the first wait
// on it returns immediately.
func CreateFence(device *Device, signaled bool) (*Fence, error) {
	handle, res := device.Driver.CreateFence(signaled)
	if err := check(device.log, res, "vkCreateFence"); err != nil {
		return nil, errors.Wrap(err, "create fence")
	}
	return &Fence{
		Handle:   handle,
		Signaled: signaled,
		driver:   device.Driver,
		log:      device.log,
	}, nil
}

// Wait blocks until the fence is signaled or timeout nanoseconds pass.
// It reports whether the fence was signaled.
func (f *Fence) Wait(timeout uint64) bool {
	if f.Signaled {
		return true
	}

	res := f.driver.WaitForFences(timeout, f.Handle)
	switch res {
	case Success:
		f.Signaled = true
		return true
	case Timeout:
		f.log.Warnf("Fence wait timed out.")
	case ErrorDeviceLost:
		f.log.Errorf("Fence wait failed: device lost.")
	case ErrorOutOfHostMemory:
		f.log.Errorf("Fence wait failed: out of host memory.")
	case ErrorOutOfDeviceMemory:
		f.log.Errorf("Fence wait failed: out of device memory.")
	default:
		f.log.Errorf("Fence wait failed. VkResult: %d", int32(res))
	}
	return false
}

// Reset returns a signaled fence to the unsignaled state.
func (f *Fence) Reset() error {
	if !f.Signaled {
		return nil
	}
	if err := check(f.log, f.driver.ResetFences(f.Handle), "vkResetFences"); err != nil {
		return err
	}
	f.Signaled = false
	return nil
}

func (f *Fence) Destroy() {
	if f == nil {
		return
	}
	if f.Handle != 0 {
		f.driver.DestroyFence(f.Handle)
		f.Handle = 0
	}
	f.Signaled = false
}
