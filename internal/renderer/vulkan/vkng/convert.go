package vkng

import (
	"math"
	"sort"
	"time"

	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/renderer/internal/renderer/vulkan"
)

// result folds a vkngwrapper (VkResult, error) pair into a single code. An
// error reported alongside a non-negative result came from the wrapper, not
// the driver, and is surfaced as an initialization failure.
func result(res common.VkResult, err error) vulkan.Result {
	r := vulkan.Result(res)
	if err != nil && !r.IsError() {
		return vulkan.ErrorInitializationFailed
	}
	return r
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func timeout(ns uint64) time.Duration {
	if ns >= math.MaxInt64 {
		return common.NoTimeout
	}
	return time.Duration(ns)
}

func toExtent(e core1_0.Extent2D) vulkan.Extent2D {
	return vulkan.Extent2D{Width: toDimension(e.Width), Height: toDimension(e.Height)}
}

// toDimension maps the wrapper's -1 "set by the swapchain" marker onto
// vulkan.UndefinedExtent.
func toDimension(v int) uint32 {
	if v < 0 {
		return vulkan.UndefinedExtent
	}
	return uint32(v)
}

func fromExtent(e vulkan.Extent2D) core1_0.Extent2D {
	return core1_0.Extent2D{Width: fromDimension(e.Width), Height: fromDimension(e.Height)}
}

func fromDimension(v uint32) int {
	if v == vulkan.UndefinedExtent {
		return -1
	}
	return int(v)
}
