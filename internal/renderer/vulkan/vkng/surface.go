package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"

	"github.com/vkngwrapper/renderer/internal/renderer/vulkan"
)

// CreateSDLSurface creates a presentation surface for window. instance must
// have been produced by this package.
func CreateSDLSurface(instance vulkan.InstanceDriver, window *sdl.Window) (vulkan.Surface, error) {
	driver, ok := instance.(*InstanceDriver)
	if !ok {
		return 0, errors.Newf("surface creation needs a vkngwrapper instance, got %T", instance)
	}

	surface, err := vkng_sdl2.CreateSurface(driver.Instance(), driver.SurfaceExtension(), window)
	if err != nil {
		return 0, errors.Wrap(err, "create sdl surface")
	}
	return driver.AdoptSurface(surface), nil
}
