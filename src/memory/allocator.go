package memory

import (
	"fmt"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

// Allocation records bound device memory for exactly one buffer or image.
// It is owned by the resource it backs and released exactly once, after the
// resource's handle is destroyed.
type Allocation struct {
	// Requested is the size the caller asked for; Actual is the size the
	// device bound, which may exceed it due to alignment.
	Requested int64
	Actual    int64
	TypeIndex int

	memory render.Memory
	freed  bool
}

// Memory returns the underlying device memory block.
func (a *Allocation) Memory() render.Memory { return a.memory }

// Allocator selects memory types and binds device memory to buffers and
// images. The device's memory types are enumerated once at construction and
// cached for every later selection.
type Allocator struct {
	dev   render.Device
	types []render.MemoryType
	total int64
}

func NewAllocator(dev render.Device) *Allocator {
	return &Allocator{dev: dev, types: dev.MemoryTypes()}
}

// FindMemoryType returns the index of the first cached memory type that is a
// candidate in typeFilter and carries every property in props. Linear scan,
// ties break by enumeration order.
func (a *Allocator) FindMemoryType(typeFilter uint32, props render.MemoryProperties) (int, error) {
	for i, t := range a.types {
		if typeFilter&(1<<uint(i)) != 0 && t.Properties&props == props {
			return i, nil
		}
	}
	return 0, fmt.Errorf("filter 0x%x props 0x%x: %w", typeFilter, props, render.ErrNoSuitableMemoryType)
}

// AllocateBuffer creates a buffer, allocates memory satisfying its
// requirements and the placement's properties, and binds the two. On any
// failure everything acquired so far is released before the error returns.
func (a *Allocator) AllocateBuffer(size int64, usage render.BufferUsage, placement render.MemoryPlacement) (render.Buffer, *Allocation, error) {
	buf, err := a.dev.CreateBuffer(size, usage)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s buffer: %w", usage, err)
	}
	alloc, err := a.allocate(size, a.dev.BufferRequirements(buf), render.PlacementProperties(placement))
	if err != nil {
		a.dev.DestroyBuffer(buf)
		return nil, nil, err
	}
	if err := a.dev.BindBufferMemory(buf, alloc.memory); err != nil {
		a.release(alloc)
		a.dev.DestroyBuffer(buf)
		return nil, nil, fmt.Errorf("bind buffer memory: %w", err)
	}
	return buf, alloc, nil
}

// AllocateImage is AllocateBuffer for images. Images are always placed in
// device-local memory.
func (a *Allocator) AllocateImage(width, height int, format render.Format, usage render.ImageUsageFlags) (render.Image, *Allocation, error) {
	img, err := a.dev.CreateImage(width, height, format, usage)
	if err != nil {
		return nil, nil, fmt.Errorf("create %dx%d image: %w", width, height, err)
	}
	req := a.dev.ImageRequirements(img)
	alloc, err := a.allocate(req.Size, req, render.MemoryDeviceLocal)
	if err != nil {
		a.dev.DestroyImage(img)
		return nil, nil, err
	}
	if err := a.dev.BindImageMemory(img, alloc.memory); err != nil {
		a.release(alloc)
		a.dev.DestroyImage(img)
		return nil, nil, fmt.Errorf("bind image memory: %w", err)
	}
	return img, alloc, nil
}

func (a *Allocator) allocate(requested int64, req render.MemoryRequirements, props render.MemoryProperties) (*Allocation, error) {
	idx, err := a.FindMemoryType(req.TypeBits, props)
	if err != nil {
		return nil, err
	}
	mem, err := a.dev.AllocateMemory(req.Size, idx)
	if err != nil {
		return nil, fmt.Errorf("allocate %d bytes of memory type %d: %w", req.Size, idx, err)
	}
	a.total += req.Size
	return &Allocation{
		Requested: requested,
		Actual:    req.Size,
		TypeIndex: idx,
		memory:    mem,
	}, nil
}

// FreeBuffer destroys the buffer handle, then releases its memory.
func (a *Allocator) FreeBuffer(b render.Buffer, alloc *Allocation) {
	a.dev.DestroyBuffer(b)
	a.release(alloc)
}

// FreeImage destroys the image handle, then releases its memory.
func (a *Allocator) FreeImage(img render.Image, alloc *Allocation) {
	a.dev.DestroyImage(img)
	a.release(alloc)
}

func (a *Allocator) release(alloc *Allocation) {
	if alloc == nil || alloc.freed {
		return
	}
	alloc.freed = true
	a.dev.FreeMemory(alloc.memory)
	a.total -= alloc.Actual
}

// TotalAllocated returns the summed actual size of live allocations.
func (a *Allocator) TotalAllocated() int64 { return a.total }
