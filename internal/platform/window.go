// Package platform owns the SDL2 window the renderer presents to.
package platform

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/vkngwrapper/renderer/internal/logger"
	"github.com/vkngwrapper/renderer/internal/renderer/vulkan"
	"github.com/vkngwrapper/renderer/internal/renderer/vulkan/vkng"
)

// Window is an SDL2 window with Vulkan support. SDL must be driven from the
// thread that created the window.
type Window struct {
	window *sdl.Window
	log    *logger.Logger

	// OnResize receives the new drawable size after the window changes size.
	OnResize func(width, height uint32)

	minimized bool
}

var _ vulkan.Window = (*Window)(nil)

// NewWindow initializes SDL video and opens a resizable Vulkan window.
func NewWindow(title string, width, height int32, log *logger.Logger) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl video")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, width, height, sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrapf(err, "create window %q", title)
	}

	log.Infof("Created window %q (%dx%d).", title, width, height)
	return &Window{window: window, log: log}, nil
}

// LoadDriver loads the Vulkan loader SDL found for this window.
func (w *Window) LoadDriver() (*vkng.GlobalDriver, error) {
	return vkng.LoadGlobalDriver(sdl.VulkanGetVkGetInstanceProcAddr())
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) FramebufferSize() (width, height uint32) {
	wi, hi := w.window.VulkanGetDrawableSize()
	return uint32(wi), uint32(hi)
}

func (w *Window) CreateSurface(instance vulkan.InstanceDriver) (vulkan.Surface, error) {
	return vkng.CreateSDLSurface(instance, w.window)
}

// Minimized reports whether the window is currently minimized.
func (w *Window) Minimized() bool {
	return w.minimized
}

// PumpMessages drains pending SDL events. It returns false once the user
// has asked to quit.
func (w *Window) PumpMessages() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return false
		case *sdl.WindowEvent:
			switch e.Event {
			case sdl.WINDOWEVENT_MINIMIZED:
				w.minimized = true
			case sdl.WINDOWEVENT_RESTORED:
				w.minimized = false
			case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
				width, height := w.FramebufferSize()
				w.log.Debugf("Window resized to %dx%d.", width, height)
				if w.OnResize != nil {
					w.OnResize(width, height)
				}
			}
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				return false
			}
		}
	}
	return true
}

// Destroy closes the window and shuts SDL down.
func (w *Window) Destroy() {
	if w.window != nil {
		if err := w.window.Destroy(); err != nil {
			w.log.Warnf("Destroying window: %v", err)
		}
		w.window = nil
	}
	sdl.Quit()
}
