// Package vkng implements the renderer's driver interfaces on top of
// vkngwrapper. Driver objects are kept in per-type registries and handed to
// the renderer as opaque handles.
package vkng

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/vkngwrapper/renderer/internal/renderer/vulkan"
)

// GlobalDriver is the loader-level entry point.
type GlobalDriver struct {
	driver core1_0.GlobalDriver
}

var _ vulkan.GlobalDriver = (*GlobalDriver)(nil)

// LoadGlobalDriver builds the loader from a vkGetInstanceProcAddr pointer,
// such as the one SDL exposes.
func LoadGlobalDriver(procAddr unsafe.Pointer) (*GlobalDriver, error) {
	driver, err := core.CreateDriverFromProcAddr(procAddr)
	if err != nil {
		return nil, errors.Wrap(err, "load vulkan loader")
	}
	return &GlobalDriver{driver: driver}, nil
}

func (g *GlobalDriver) AvailableExtensions() ([]string, vulkan.Result) {
	extensions, res, err := g.driver.AvailableExtensions()
	return sortedKeys(extensions), result(res, err)
}

func (g *GlobalDriver) AvailableLayers() ([]string, vulkan.Result) {
	layers, res, err := g.driver.AvailableLayers()
	return sortedKeys(layers), result(res, err)
}

func (g *GlobalDriver) CreateInstance(info vulkan.InstanceCreateInfo) (vulkan.InstanceDriver, vulkan.Result) {
	options := core1_0.InstanceCreateInfo{
		ApplicationName:       info.ApplicationName,
		ApplicationVersion:    common.Version(info.ApplicationVersion),
		EngineName:            info.EngineName,
		EngineVersion:         common.Version(info.EngineVersion),
		APIVersion:            common.APIVersion(info.APIVersion),
		EnabledExtensionNames: info.EnabledExtensionNames,
		EnabledLayerNames:     info.EnabledLayerNames,
	}
	if info.EnumeratePortability {
		options.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	instance, res, err := g.driver.CreateInstance(nil, options)
	if err != nil {
		return nil, result(res, err)
	}

	driver, err := buildInstanceDriver(g.driver, instance)
	if err != nil {
		return nil, vulkan.ErrorInitializationFailed
	}
	return newInstanceDriver(driver, hasName(info.EnabledExtensionNames, ext_debug_utils.ExtensionName)), vulkan.Success
}

// instanceBuilder turns a created instance handle into the driver that
// dispatches its calls.
type instanceBuilder interface {
	BuildInstanceDriver(instance core1_0.Instance) (core1_0.CoreInstanceDriver, error)
}

var _ instanceBuilder = core1_0.GlobalDriver(nil)

func buildInstanceDriver(builder instanceBuilder, instance core1_0.Instance) (core1_0.CoreInstanceDriver, error) {
	driver, err := builder.BuildInstanceDriver(instance)
	if err != nil {
		return nil, errors.Wrap(err, "build instance driver")
	}
	return driver, nil
}

func newInstanceDriver(driver core1_0.CoreInstanceDriver, debugUtils bool) *InstanceDriver {
	instance := &InstanceDriver{
		driver:          driver,
		surface:         khr_surface.CreateExtensionDriverFromCoreDriver(driver),
		physicalDevices: newRegistry[core1_0.PhysicalDevice](),
		surfaces:        newRegistry[khr_surface.Surface](),
		messengers:      newRegistry[ext_debug_utils.DebugUtilsMessenger](),
	}
	if debugUtils {
		instance.debug = ext_debug_utils.CreateExtensionDriverFromCoreDriver(driver)
	}
	return instance
}

func hasName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
