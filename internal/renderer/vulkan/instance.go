package vulkan

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/containers"
	"github.com/vkngwrapper/renderer/internal/memory"
)

// requiredExtensions assembles the instance extension list: the generic
// surface extension, then whatever the window needs, then debug utils when
// diagnostics are on. Duplicates are dropped.
func (c *Context) requiredExtensions() *containers.Darray[string] {
	extensions := containers.NewDarray[string](c.mem, memory.TagRenderer, 4)
	push := func(name string) {
		if !extensions.Contains(func(s string) bool { return s == name }) {
			extensions.Push(name)
		}
	}

	push(khrSurfaceExtensionName)
	for _, name := range c.window.RequiredInstanceExtensions() {
		push(name)
	}
	if c.config.Diagnostics {
		push(extDebugUtilsExtensionName)
	}

	return extensions
}

func (c *Context) createInstance(global GlobalDriver) error {
	info := InstanceCreateInfo{
		ApplicationName:    c.config.ApplicationName,
		ApplicationVersion: c.config.ApplicationVersion,
		EngineName:         c.config.EngineName,
		EngineVersion:      MakeVersion(1, 0, 0),
		APIVersion:         c.config.APIVersion,
	}

	available, res := global.AvailableExtensions()
	if err := check(c.log, res, "vkEnumerateInstanceExtensionProperties"); err != nil {
		c.log.Fatalf("Unable to enumerate instance extensions.")
		return err
	}
	availableSet := make(map[string]bool, len(available))
	for _, name := range available {
		availableSet[name] = true
	}

	extensions := c.requiredExtensions()
	defer extensions.Release()

	if c.config.Diagnostics {
		c.log.Debugf("Requested Vulkan extensions:")
	}
	for _, name := range extensions.Items() {
		if !availableSet[name] {
			c.log.Fatalf("Required instance extension is missing: %s", name)
			return errors.Newf("required instance extension %s is not available", name)
		}
		if c.config.Diagnostics {
			c.log.Debugf("  %s", name)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, name)
	}

	if availableSet[khrPortabilityEnumerationExtensionName] {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, khrPortabilityEnumerationExtensionName)
		info.EnumeratePortability = true
	}

	if c.config.Diagnostics {
		layers, err := c.validationLayers(global)
		if err != nil {
			return err
		}
		info.EnabledLayerNames = layers
	}

	instance, res := global.CreateInstance(info)
	if err := check(c.log, res, "vkCreateInstance"); err != nil {
		c.log.Fatalf("vkCreateInstance failed with result: %s", res)
		return errors.Wrap(err, "create instance")
	}

	c.Instance = instance
	c.log.Infof("Vulkan instance created.")
	return nil
}

// validationLayers verifies every configured layer is installed. A missing
// layer is fatal: diagnostics builds never run without validation.
func (c *Context) validationLayers(global GlobalDriver) ([]string, error) {
	c.log.Infof("Validation layers enabled. Enumerating...")

	available, res := global.AvailableLayers()
	if err := check(c.log, res, "vkEnumerateInstanceLayerProperties"); err != nil {
		c.log.Fatalf("Unable to enumerate instance layers.")
		return nil, err
	}

	for _, name := range c.config.ValidationLayers {
		c.log.Infof("Searching for layer: %s...", name)
		found := false
		for _, candidate := range available {
			if candidate == name {
				found = true
				break
			}
		}
		if !found {
			c.log.Fatalf("Required validation layer is missing: %s", name)
			return nil, errors.WithHint(
				errors.Wrapf(ErrValidationLayerMissing, "layer %s", name),
				"install the LunarG Vulkan SDK")
		}
		c.log.Infof("Found.")
	}

	c.log.Infof("All required validation layers are present.")
	return append([]string(nil), c.config.ValidationLayers...), nil
}

func (c *Context) createSurface() error {
	c.log.Debugf("Creating Vulkan surface...")
	surface, err := c.window.CreateSurface(c.Instance)
	if err != nil {
		c.log.Fatalf("Failed to create platform surface!")
		return errors.Mark(errors.Wrap(err, "create surface"), ErrSurfaceCreation)
	}
	c.Surface = surface
	c.log.Debugf("Vulkan surface created.")
	return nil
}
