package vulkan

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/logger"
)

// debugCallback forwards validation messages to log at the level matching
// their severity.
func debugCallback(log *logger.Logger) DebugCallback {
	return func(severity DebugSeverity, _ DebugMessageType, message string) bool {
		switch {
		case severity&DebugSeverityError != 0:
			log.Errorf("%s", message)
		case severity&DebugSeverityWarning != 0:
			log.Warnf("%s", message)
		case severity&DebugSeverityInfo != 0:
			log.Infof("%s", message)
		default:
			log.Debugf("%s", message)
		}
		return false
	}
}

func (c *Context) setupDebugMessenger() error {
	if !c.config.Diagnostics {
		return nil
	}

	c.log.Debugf("Creating Vulkan debugger...")
	severities := DebugSeverityError | DebugSeverityWarning
	if c.log.Enabled(logger.LevelDebug) {
		severities |= DebugSeverityInfo | DebugSeverityVerbose
	}

	messenger, res := c.Instance.CreateDebugMessenger(DebugMessengerCreateInfo{
		Severities: severities,
		Types:      DebugMessageGeneral | DebugMessageValidation | DebugMessagePerformance,
		Callback:   debugCallback(c.log),
	})
	if err := check(c.log, res, "vkCreateDebugUtilsMessengerEXT"); err != nil {
		c.log.Fatalf("Failed to create Vulkan debugger.")
		return errors.Wrap(err, "create debug messenger")
	}

	c.DebugMessenger = messenger
	c.log.Debugf("Vulkan debugger created.")
	return nil
}
