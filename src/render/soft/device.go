// Package soft is an in-process implementation of the render contracts.
// Recorded command lists execute on the CPU at submit time, which keeps the
// resource lifecycle and frame pipeline fully observable without a GPU and
// lets the CLI render headless. The device validates the same rules a
// driver's validation layer would: image layouts on copy and sample,
// submission ordering, mapped-range bounds.
package soft

import (
	"fmt"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

// memoryAlignment rounds allocation sizes, so actual bound sizes exceed odd
// requests the way device alignment does.
const memoryAlignment = 256

// memoryTypes mimics a discrete GPU's table: device-local first, then the
// coherent and cached host types, then a shared window. Enumeration order is
// fixed so type selection is deterministic.
var memoryTypes = []render.MemoryType{
	{Properties: render.MemoryDeviceLocal},
	{Properties: render.MemoryHostVisible | render.MemoryHostCoherent},
	{Properties: render.MemoryHostVisible | render.MemoryHostCached},
	{Properties: render.MemoryDeviceLocal | render.MemoryHostVisible | render.MemoryHostCoherent},
}

// Stats counts live device objects and observable side effects.
type Stats struct {
	LiveBuffers  int
	LiveImages   int
	LiveMemories int
	LiveViews    int
	LiveSamplers int
	Flushes      int
	Submissions  int
}

// Device implements render.Device in process memory.
type Device struct {
	queue *Queue
	stats Stats

	// maxAllocation caps single allocations when non-zero, so tests can
	// drive allocation failure paths.
	maxAllocation int64
	submitErr     error
}

// Option configures a Device.
type Option func(*Device)

// WithMaxAllocation caps single allocations at limit bytes.
func WithMaxAllocation(limit int64) Option {
	return func(d *Device) { d.maxAllocation = limit }
}

func NewDevice(opts ...Option) *Device {
	d := &Device{}
	d.queue = &Queue{dev: d}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FailNextSubmit makes the next queue submission return err.
func (d *Device) FailNextSubmit(err error) { d.submitErr = err }

func (d *Device) takeSubmitErr() error {
	err := d.submitErr
	d.submitErr = nil
	return err
}

// Stats returns a snapshot of the device's object counts.
func (d *Device) Stats() Stats { return d.stats }

func (d *Device) MemoryTypes() []render.MemoryType { return memoryTypes }

type buffer struct {
	size  int64
	usage render.BufferUsage
	mem   *deviceMemory
}

func (b *buffer) Size() int64 { return b.size }

// bytes is the bound backing store window, nil before binding.
func (b *buffer) bytes() []byte {
	if b.mem == nil {
		return nil
	}
	return b.mem.data[:b.size]
}

type image struct {
	width  int
	height int
	format render.Format
	mem    *deviceMemory

	// layout is the device-side state, advanced only by executed barriers.
	layout render.ImageState
}

func (i *image) Extent() (width, height int) { return i.width, i.height }

func (i *image) byteSize() int64 {
	return int64(i.width * i.height * i.format.PixelSize())
}

func (i *image) bytes() []byte {
	if i.mem == nil {
		return nil
	}
	return i.mem.data[:i.byteSize()]
}

type deviceMemory struct {
	data     []byte
	typeIdx  int
	coherent bool
	mapped   bool
}

type imageView struct {
	img *image
}

type sampler struct {
	cfg render.SamplerConfig
}

func (d *Device) CreateBuffer(size int64, usage render.BufferUsage) (render.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("soft: buffer size %d must be positive", size)
	}
	d.stats.LiveBuffers++
	return &buffer{size: size, usage: usage}, nil
}

func (d *Device) BufferRequirements(b render.Buffer) render.MemoryRequirements {
	bb := b.(*buffer)
	return render.MemoryRequirements{
		Size:      alignUp(bb.size, memoryAlignment),
		Alignment: memoryAlignment,
		TypeBits:  (1 << uint(len(memoryTypes))) - 1,
	}
}

func (d *Device) DestroyBuffer(b render.Buffer) {
	b.(*buffer).mem = nil
	d.stats.LiveBuffers--
}

func (d *Device) CreateImage(width, height int, format render.Format, usage render.ImageUsageFlags) (render.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("soft: image extent %dx%d must be positive", width, height)
	}
	if format.PixelSize() == 0 {
		return nil, fmt.Errorf("soft: unknown pixel format %d", format)
	}
	d.stats.LiveImages++
	return &image{width: width, height: height, format: format, layout: render.ImageUninitialized}, nil
}

func (d *Device) ImageRequirements(img render.Image) render.MemoryRequirements {
	ii := img.(*image)
	// Images live in the device-local type only.
	return render.MemoryRequirements{
		Size:      alignUp(ii.byteSize(), memoryAlignment),
		Alignment: memoryAlignment,
		TypeBits:  1 << 0,
	}
}

func (d *Device) DestroyImage(img render.Image) {
	img.(*image).mem = nil
	d.stats.LiveImages--
}

func (d *Device) CreateImageView(img render.Image, format render.Format) (render.ImageView, error) {
	ii := img.(*image)
	if format != ii.format {
		return nil, fmt.Errorf("soft: view format %d does not match image format %d", format, ii.format)
	}
	d.stats.LiveViews++
	return &imageView{img: ii}, nil
}

func (d *Device) DestroyImageView(v render.ImageView) {
	d.stats.LiveViews--
}

func (d *Device) CreateSampler(cfg render.SamplerConfig) (render.Sampler, error) {
	d.stats.LiveSamplers++
	return &sampler{cfg: cfg}, nil
}

func (d *Device) DestroySampler(s render.Sampler) {
	d.stats.LiveSamplers--
}

func (d *Device) AllocateMemory(size int64, typeIndex int) (render.Memory, error) {
	if typeIndex < 0 || typeIndex >= len(memoryTypes) {
		return nil, fmt.Errorf("soft: memory type index %d out of range", typeIndex)
	}
	if d.maxAllocation > 0 && size > d.maxAllocation {
		return nil, fmt.Errorf("soft: allocation of %d bytes exceeds device limit %d", size, d.maxAllocation)
	}
	d.stats.LiveMemories++
	return &deviceMemory{
		data:     make([]byte, size),
		typeIdx:  typeIndex,
		coherent: memoryTypes[typeIndex].Properties&render.MemoryHostCoherent != 0,
	}, nil
}

func (d *Device) FreeMemory(m render.Memory) {
	m.(*deviceMemory).data = nil
	d.stats.LiveMemories--
}

func (d *Device) BindBufferMemory(b render.Buffer, m render.Memory) error {
	bb := b.(*buffer)
	mm := m.(*deviceMemory)
	if int64(len(mm.data)) < bb.size {
		return fmt.Errorf("soft: %d byte memory cannot back %d byte buffer", len(mm.data), bb.size)
	}
	bb.mem = mm
	return nil
}

func (d *Device) BindImageMemory(img render.Image, m render.Memory) error {
	ii := img.(*image)
	mm := m.(*deviceMemory)
	if int64(len(mm.data)) < ii.byteSize() {
		return fmt.Errorf("soft: %d byte memory cannot back %d byte image", len(mm.data), ii.byteSize())
	}
	ii.mem = mm
	return nil
}

func (d *Device) MapMemory(m render.Memory, offset, size int64) ([]byte, error) {
	mm := m.(*deviceMemory)
	if offset < 0 || size < 0 || offset+size > int64(len(mm.data)) {
		return nil, fmt.Errorf("soft: map [%d,%d) of %d byte allocation: %w",
			offset, offset+size, len(mm.data), render.ErrOutOfRange)
	}
	mm.mapped = true
	return mm.data[offset : offset+size : offset+size], nil
}

func (d *Device) UnmapMemory(m render.Memory) {
	m.(*deviceMemory).mapped = false
}

func (d *Device) FlushMemory(m render.Memory, offset, size int64) error {
	mm := m.(*deviceMemory)
	if offset < 0 || size < 0 || offset+size > int64(len(mm.data)) {
		return fmt.Errorf("soft: flush [%d,%d) of %d byte allocation: %w",
			offset, offset+size, len(mm.data), render.ErrOutOfRange)
	}
	d.stats.Flushes++
	return nil
}

func (d *Device) NewFence(signaled bool) (render.Fence, error) {
	return newFence(signaled), nil
}

func (d *Device) NewSemaphore() (render.Semaphore, error) {
	return &semaphore{}, nil
}

func (d *Device) NewExecutionContext() (render.ExecutionContext, error) {
	return &executionContext{dev: d}, nil
}

func (d *Device) Queue() render.Queue { return d.queue }

func (d *Device) WaitIdle() error { return nil }

func (d *Device) Destroy() {}

func alignUp(n, align int64) int64 {
	return (n + align - 1) / align * align
}

// BufferBytes exposes a buffer's bound bytes. Test and tooling hook.
func BufferBytes(b render.Buffer) []byte {
	return b.(*buffer).bytes()
}

// ImageBytes exposes an image's bound pixel bytes. Test and tooling hook.
func ImageBytes(img render.Image) []byte {
	return img.(*image).bytes()
}

// ImageLayout exposes the device-side layout an image last transitioned to.
func ImageLayout(img render.Image) render.ImageState {
	return img.(*image).layout
}
