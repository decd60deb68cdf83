package memory

import (
	"fmt"
	"sort"
	"time"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

// transferTimeout bounds the wait on staged-copy completion.
const transferTimeout = 5 * time.Second

// Buffer is a named device buffer owned by its Registry. Handles returned
// from the registry are borrowed references; the registry stays the owner
// and frees the buffer on removal or teardown.
type Buffer struct {
	name      string
	size      int64
	usage     render.BufferUsage
	placement render.MemoryPlacement

	handle     render.Buffer
	alloc      *Allocation
	mapped     []byte
	persistent bool
}

func (b *Buffer) Name() string                      { return b.name }
func (b *Buffer) Size() int64                       { return b.size }
func (b *Buffer) Usage() render.BufferUsage         { return b.usage }
func (b *Buffer) Placement() render.MemoryPlacement { return b.placement }

// Handle exposes the device handle for command recording.
func (b *Buffer) Handle() render.Buffer { return b.handle }

// Mapped returns the current host mapping, or nil when the buffer is not
// mapped.
func (b *Buffer) Mapped() []byte { return b.mapped }

// HostVisible reports whether the buffer's memory can be mapped.
func (b *Buffer) HostVisible() bool { return b.placement.HostVisible() }

func (b *Buffer) coherent() bool {
	return render.PlacementProperties(b.placement)&render.MemoryHostCoherent != 0
}

// Registry keys allocated buffers by caller-chosen unique names. A name is
// unique among live buffers; once a buffer is removed its name may be
// reused.
type Registry struct {
	dev     render.Device
	alloc   *Allocator
	buffers map[string]*Buffer

	// stagingSeq names short-lived staging buffers. Instance state so two
	// registries never contend over it.
	stagingSeq uint64
}

func NewRegistry(dev render.Device, alloc *Allocator) *Registry {
	return &Registry{
		dev:     dev,
		alloc:   alloc,
		buffers: make(map[string]*Buffer),
	}
}

// CreateBuffer allocates, binds and registers a buffer under name. With
// persistentMap set and a host-visible placement the full buffer is mapped
// once and the mapping stays valid until unmap or removal. No partial state
// survives a failure.
func (r *Registry) CreateBuffer(name string, size int64, usage render.BufferUsage, placement render.MemoryPlacement, persistentMap bool) (*Buffer, error) {
	if _, ok := r.buffers[name]; ok {
		return nil, fmt.Errorf("create buffer %q: %w", name, render.ErrDuplicateName)
	}
	if size <= 0 {
		return nil, fmt.Errorf("create buffer %q: size %d must be positive", name, size)
	}

	handle, alloc, err := r.alloc.AllocateBuffer(size, usage, placement)
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", name, err)
	}
	b := &Buffer{
		name:      name,
		size:      size,
		usage:     usage,
		placement: placement,
		handle:    handle,
		alloc:     alloc,
	}
	if persistentMap && placement.HostVisible() {
		mapped, err := r.dev.MapMemory(alloc.Memory(), 0, size)
		if err != nil {
			r.alloc.FreeBuffer(handle, alloc)
			return nil, fmt.Errorf("map buffer %q: %w", name, err)
		}
		b.mapped = mapped
		b.persistent = true
	}
	r.buffers[name] = b
	return b, nil
}

// Get returns the buffer registered under name.
func (r *Registry) Get(name string) (*Buffer, bool) {
	b, ok := r.buffers[name]
	return b, ok
}

func (r *Registry) HasBuffer(name string) bool {
	_, ok := r.buffers[name]
	return ok
}

// Len returns the number of live buffers.
func (r *Registry) Len() int { return len(r.buffers) }

// BufferNames returns the live buffer names, sorted.
func (r *Registry) BufferNames() []string {
	names := make([]string, 0, len(r.buffers))
	for name := range r.buffers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalAllocatedMemory returns the actual bytes bound across live
// allocations.
func (r *Registry) TotalAllocatedMemory() int64 { return r.alloc.TotalAllocated() }

// UploadData copies data into the buffer at offset. Host-visible buffers are
// written through a mapping, flushed when the memory is not coherent.
// Device-only buffers are reached through a short-lived staging buffer and a
// device-side copy recorded on exec and submitted synchronously; without an
// exec the upload fails with ErrMissingTransferContext.
func (r *Registry) UploadData(b *Buffer, data []byte, offset int64, exec render.ExecutionContext) error {
	if err := checkRange(b.size, offset, int64(len(data))); err != nil {
		return fmt.Errorf("upload to %q: %w", b.name, err)
	}
	if b.HostVisible() {
		if err := r.writeMapped(b, data, offset); err != nil {
			return fmt.Errorf("upload to %q: %w", b.name, err)
		}
		return nil
	}
	return r.stagedUpload(b, data, offset, exec)
}

// DownloadData copies len(out) bytes at offset out of a host-visible buffer.
func (r *Registry) DownloadData(b *Buffer, out []byte, offset int64) error {
	if !b.HostVisible() {
		return fmt.Errorf("download from %q (%s): %w", b.name, b.placement, render.ErrNotHostVisible)
	}
	if err := checkRange(b.size, offset, int64(len(out))); err != nil {
		return fmt.Errorf("download from %q: %w", b.name, err)
	}
	window := b.mapped
	if window == nil {
		m, err := r.dev.MapMemory(b.alloc.Memory(), 0, b.size)
		if err != nil {
			return fmt.Errorf("map %q: %w", b.name, err)
		}
		defer r.dev.UnmapMemory(b.alloc.Memory())
		window = m
	}
	copy(out, window[offset:offset+int64(len(out))])
	return nil
}

// MapBuffer maps a host-visible buffer on demand. The mapping stays valid
// until UnmapBuffer or removal. Mapping an already mapped buffer returns the
// existing window.
func (r *Registry) MapBuffer(name string) ([]byte, error) {
	b, ok := r.buffers[name]
	if !ok {
		return nil, fmt.Errorf("map buffer: no buffer named %q", name)
	}
	if !b.HostVisible() {
		return nil, fmt.Errorf("map buffer %q (%s): %w", name, b.placement, render.ErrNotHostVisible)
	}
	if b.mapped != nil {
		return b.mapped, nil
	}
	m, err := r.dev.MapMemory(b.alloc.Memory(), 0, b.size)
	if err != nil {
		return nil, fmt.Errorf("map buffer %q: %w", name, err)
	}
	b.mapped = m
	return m, nil
}

// UnmapBuffer drops a mapping made by MapBuffer. Persistent mappings stay
// until removal.
func (r *Registry) UnmapBuffer(name string) {
	b, ok := r.buffers[name]
	if !ok || b.mapped == nil || b.persistent {
		return
	}
	r.dev.UnmapMemory(b.alloc.Memory())
	b.mapped = nil
}

// RemoveBuffer unmaps, frees and forgets the named buffer. Removing an
// unknown name returns false.
func (r *Registry) RemoveBuffer(name string) bool {
	b, ok := r.buffers[name]
	if !ok {
		return false
	}
	if b.mapped != nil {
		r.dev.UnmapMemory(b.alloc.Memory())
		b.mapped = nil
	}
	r.alloc.FreeBuffer(b.handle, b.alloc)
	delete(r.buffers, name)
	return true
}

// Clear removes every live buffer.
func (r *Registry) Clear() {
	for name := range r.buffers {
		r.RemoveBuffer(name)
	}
}

func (r *Registry) writeMapped(b *Buffer, data []byte, offset int64) error {
	window := b.mapped
	if window == nil {
		m, err := r.dev.MapMemory(b.alloc.Memory(), 0, b.size)
		if err != nil {
			return err
		}
		defer r.dev.UnmapMemory(b.alloc.Memory())
		window = m
	}
	copy(window[offset:offset+int64(len(data))], data)
	if !b.coherent() {
		if err := r.dev.FlushMemory(b.alloc.Memory(), offset, int64(len(data))); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
	}
	return nil
}

func (r *Registry) stagedUpload(b *Buffer, data []byte, offset int64, exec render.ExecutionContext) error {
	if exec == nil {
		return fmt.Errorf("upload to device-only buffer %q: %w", b.name, render.ErrMissingTransferContext)
	}

	stagingName := fmt.Sprintf("staging_%d", r.stagingSeq)
	r.stagingSeq++
	staging, err := r.CreateBuffer(stagingName, int64(len(data)), render.UsageStaging, render.PlacementHostToDevice, false)
	if err != nil {
		return fmt.Errorf("staging for %q: %w", b.name, err)
	}
	defer r.RemoveBuffer(stagingName)

	if err := r.writeMapped(staging, data, 0); err != nil {
		return fmt.Errorf("fill staging for %q: %w", b.name, err)
	}

	if err := exec.Begin(); err != nil {
		return fmt.Errorf("record staging copy to %q: %w", b.name, err)
	}
	exec.CopyBuffer(staging.handle, b.handle, render.BufferCopy{
		SrcOffset: 0,
		DstOffset: offset,
		Size:      int64(len(data)),
	})
	if err := exec.End(); err != nil {
		return fmt.Errorf("record staging copy to %q: %w", b.name, err)
	}
	if err := r.submitAndWait(exec); err != nil {
		return fmt.Errorf("staging copy to %q: %w", b.name, err)
	}
	return nil
}

// submitAndWait runs one recorded context to completion, bounded by
// transferTimeout.
func (r *Registry) submitAndWait(exec render.ExecutionContext) error {
	fence, err := r.dev.NewFence(false)
	if err != nil {
		return err
	}
	defer fence.Destroy()
	info := render.SubmitInfo{
		Contexts: []render.ExecutionContext{exec},
		Fence:    fence,
	}
	if err := r.dev.Queue().Submit(info); err != nil {
		return fmt.Errorf("%w: %v", render.ErrSubmissionFailure, err)
	}
	return fence.Wait(transferTimeout)
}

func checkRange(size, offset, length int64) error {
	if offset < 0 || length < 0 || offset+length > size {
		return fmt.Errorf("range [%d,%d) of %d byte buffer: %w", offset, offset+length, size, render.ErrOutOfRange)
	}
	return nil
}
