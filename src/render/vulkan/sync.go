package vulkan

import (
	"fmt"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

type fence struct {
	dev    *Device
	handle vk.Fence
}

func (d *Device) NewFence(signaled bool) (render.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if err := NewError(vk.CreateFence(d.device, &info, nil, &handle)); err != nil {
		return nil, err
	}
	return &fence{dev: d, handle: handle}, nil
}

// Wait blocks with a bounded device wait. A non-positive timeout polls.
func (f *fence) Wait(timeout time.Duration) error {
	var ns uint64
	if timeout > 0 {
		ns = uint64(timeout.Nanoseconds())
	}
	res := vk.WaitForFences(f.dev.device, 1, []vk.Fence{f.handle}, vk.True, ns)
	if res == vk.Timeout {
		return fmt.Errorf("fence wait after %v: %w", timeout, render.ErrAcquireTimeout)
	}
	return NewError(res)
}

func (f *fence) Reset() error {
	return NewError(vk.ResetFences(f.dev.device, 1, []vk.Fence{f.handle}))
}

func (f *fence) Destroy() {
	vk.DestroyFence(f.dev.device, f.handle, nil)
}

type semaphore struct {
	dev    *Device
	handle vk.Semaphore
}

func (d *Device) NewSemaphore() (render.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if err := NewError(vk.CreateSemaphore(d.device, &info, nil, &handle)); err != nil {
		return nil, err
	}
	return &semaphore{dev: d, handle: handle}, nil
}

func (s *semaphore) Destroy() {
	vk.DestroySemaphore(s.dev.device, s.handle, nil)
}
