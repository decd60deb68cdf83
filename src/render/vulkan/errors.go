package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

// NewError wraps a non-success result, tagging it with the calling
// function so device failures are traceable without a validation layer.
func NewError(retVal vk.Result) error {
	if retVal == vk.Success {
		return nil
	}
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("vulkan error: %w (%d)", vk.Error(retVal), retVal)
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return fmt.Errorf("vulkan error: %w (%d)", vk.Error(retVal), retVal)
	}
	return fmt.Errorf("vulkan error: %w (%d) on %s",
		vk.Error(retVal), retVal, fn.Name())
}

func IsError(retVal vk.Result) bool {
	return retVal != vk.Success
}
