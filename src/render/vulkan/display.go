package vulkan

import (
	"fmt"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

const defaultAcquireTimeout = 5 * time.Second

// DisplayConfig hands over an already-negotiated swapchain. Framebuffers
// must be indexed by swapchain image and built against RenderPass.
type DisplayConfig struct {
	Swapchain    vk.Swapchain
	Format       vk.Format
	Width        int
	Height       int
	RenderPass   vk.RenderPass
	Framebuffers []vk.Framebuffer

	// AcquireTimeout bounds every acquire; zero picks the default. Waits
	// on the presentation engine are never unbounded.
	AcquireTimeout time.Duration
}

type renderTarget struct {
	renderPass  vk.RenderPass
	framebuffer vk.Framebuffer
	width       int
	height      int
}

// Display adapts a swapchain to the acquire/present contract. Acquisition
// blocks on an internal fence so the returned index is safe to record
// against immediately.
type Display struct {
	dev       *Device
	swapchain vk.Swapchain
	format    render.Format
	width     int
	height    int
	timeout   time.Duration
	acquired  *fence
	targets   []*renderTarget
}

var _ render.Display = (*Display)(nil)

func NewDisplay(dev *Device, cfg DisplayConfig) (*Display, error) {
	if len(cfg.Framebuffers) == 0 {
		return nil, fmt.Errorf("display needs at least one framebuffer")
	}
	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = defaultAcquireTimeout
	}
	acquired, err := dev.NewFence(false)
	if err != nil {
		return nil, err
	}
	targets := make([]*renderTarget, len(cfg.Framebuffers))
	for i, fb := range cfg.Framebuffers {
		targets[i] = &renderTarget{
			renderPass:  cfg.RenderPass,
			framebuffer: fb,
			width:       cfg.Width,
			height:      cfg.Height,
		}
	}
	return &Display{
		dev:       dev,
		swapchain: cfg.Swapchain,
		format:    FromFormat(cfg.Format),
		width:     cfg.Width,
		height:    cfg.Height,
		timeout:   timeout,
		acquired:  acquired.(*fence),
		targets:   targets,
	}, nil
}

func (d *Display) AcquireNextImage() (imageIndex int, outdated bool, err error) {
	var idx uint32
	res := vk.AcquireNextImage(d.dev.device, d.swapchain, uint64(d.timeout.Nanoseconds()),
		vk.Semaphore(vk.NullHandle), d.acquired.handle, &idx)
	switch res {
	case vk.ErrorOutOfDate:
		outdated = true
		return
	case vk.Timeout, vk.NotReady:
		err = fmt.Errorf("acquire after %v: %w", d.timeout, render.ErrAcquireTimeout)
		return
	case vk.Suboptimal, vk.Success:
		// suboptimal surfaces stay usable for this frame; present flags
		// the recreate
	default:
		err = NewError(res)
		return
	}
	if err = d.acquired.Wait(d.timeout); err != nil {
		return
	}
	if err = d.acquired.Reset(); err != nil {
		return
	}
	return int(idx), false, nil
}

func (d *Display) PresentImage(imageIndex int) (outdated bool, err error) {
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{d.swapchain},
		PImageIndices:  []uint32{uint32(imageIndex)},
	}
	res := vk.QueuePresent(d.dev.gpuQueue, &info)
	switch res {
	case vk.ErrorOutOfDate, vk.Suboptimal:
		outdated = true
		return
	case vk.Success:
		return
	default:
		err = NewError(res)
		return
	}
}

func (d *Display) RenderTarget(imageIndex int) render.RenderTarget {
	if imageIndex < 0 || imageIndex >= len(d.targets) {
		return nil
	}
	return d.targets[imageIndex]
}

func (d *Display) SurfaceFormat() render.Format {
	return d.format
}

func (d *Display) SurfaceExtent() (width, height int) {
	return d.width, d.height
}

// Destroy releases the acquire fence. Swapchain, render pass and
// framebuffers stay with the embedder.
func (d *Display) Destroy() {
	d.acquired.Destroy()
}
