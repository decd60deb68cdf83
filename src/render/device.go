package render

import "time"

// Buffer is an opaque device buffer handle.
type Buffer interface {
	Size() int64
}

// Image is an opaque device image handle.
type Image interface {
	Extent() (width, height int)
}

// Memory is an opaque block of bound device memory.
type Memory interface{}

// ImageView is an opaque sampleable view over an image.
type ImageView interface{}

// Sampler is an opaque sampler object.
type Sampler interface{}

// ComputePipeline is an opaque handle produced by a pipeline provider and
// bound to a named compute program. The orchestrator only binds and
// dispatches it.
type ComputePipeline interface{}

// GraphicsPipeline is the graphics counterpart of ComputePipeline.
type GraphicsPipeline interface{}

// RenderTarget is an opaque presentable surface image owned by a Display.
type RenderTarget interface{}

// Fence signals completion of one submission.
type Fence interface {
	// Wait blocks until the fence signals or the timeout elapses, returning
	// ErrAcquireTimeout on expiry.
	Wait(timeout time.Duration) error
	Reset() error
	Destroy()
}

// Semaphore orders two submissions on the device timeline.
type Semaphore interface {
	Destroy()
}

// BufferCopy is one buffer-to-buffer copy region.
type BufferCopy struct {
	SrcOffset int64
	DstOffset int64
	Size      int64
}

// ImageBarrier moves an image between access states, ordering the accesses
// named by the masks around the transition.
type ImageBarrier struct {
	Image     Image
	From      ImageState
	To        ImageState
	SrcAccess AccessFlags
	DstAccess AccessFlags
	SrcStage  StageFlags
	DstStage  StageFlags
}

// ExecutionContext records a sequence of device commands for a single
// submission. Recording does not execute anything; work runs only once the
// context is submitted to a Queue.
type ExecutionContext interface {
	// Begin resets any previously recorded commands and starts recording.
	Begin() error
	End() error

	CopyBuffer(src, dst Buffer, region BufferCopy)
	CopyBufferToImage(src Buffer, dst Image, width, height int)
	PipelineBarrier(barrier ImageBarrier)

	BindComputePipeline(p ComputePipeline)
	Dispatch(groupsX, groupsY, groupsZ int)

	BindGraphicsPipeline(p GraphicsPipeline)
	BeginRenderPass(target RenderTarget)
	Draw(vertexCount, instanceCount int)
	EndRenderPass()

	Destroy()
}

// SubmitInfo describes one queue submission: the contexts to execute, the
// semaphores to wait on before execution, the semaphores to signal after,
// and an optional fence signaled on completion.
type SubmitInfo struct {
	Contexts         []ExecutionContext
	WaitSemaphores   []Semaphore
	SignalSemaphores []Semaphore
	Fence            Fence
}

// Queue submits recorded work to the device.
type Queue interface {
	Submit(info SubmitInfo) error
	// WaitIdle drains the queue. Teardown only; the frame path synchronizes
	// with fences and semaphores.
	WaitIdle() error
}

// Device is the hardware surface the resource managers run against.
type Device interface {
	// MemoryTypes enumerates the device's memory types. The slice is stable
	// for the lifetime of the device; callers cache it.
	MemoryTypes() []MemoryType

	CreateBuffer(size int64, usage BufferUsage) (Buffer, error)
	BufferRequirements(b Buffer) MemoryRequirements
	DestroyBuffer(b Buffer)

	CreateImage(width, height int, format Format, usage ImageUsageFlags) (Image, error)
	ImageRequirements(img Image) MemoryRequirements
	DestroyImage(img Image)

	CreateImageView(img Image, format Format) (ImageView, error)
	DestroyImageView(v ImageView)
	CreateSampler(cfg SamplerConfig) (Sampler, error)
	DestroySampler(s Sampler)

	AllocateMemory(size int64, typeIndex int) (Memory, error)
	FreeMemory(m Memory)
	BindBufferMemory(b Buffer, m Memory) error
	BindImageMemory(img Image, m Memory) error

	// MapMemory exposes [offset, offset+size) of a host-visible allocation
	// as a byte slice. Writes through the slice land in device memory,
	// subject to FlushMemory when the memory type is not coherent.
	MapMemory(m Memory, offset, size int64) ([]byte, error)
	UnmapMemory(m Memory)
	FlushMemory(m Memory, offset, size int64) error

	NewFence(signaled bool) (Fence, error)
	NewSemaphore() (Semaphore, error)
	NewExecutionContext() (ExecutionContext, error)
	Queue() Queue

	WaitIdle() error
	Destroy()
}
