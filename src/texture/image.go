package texture

import (
	"fmt"

	"github.com/UntitledError-09/fractal-generator/src/memory"
	"github.com/UntitledError-09/fractal-generator/src/render"
)

// barrierMasks are the access and stage scopes of one legal transition.
type barrierMasks struct {
	srcAccess render.AccessFlags
	dstAccess render.AccessFlags
	srcStage  render.StageFlags
	dstStage  render.StageFlags
}

// transitions is the closed set of legal state changes. Extending the image
// state machine means adding rows here, nowhere else.
var transitions = map[[2]render.ImageState]barrierMasks{
	{render.ImageUninitialized, render.ImageTransferDst}: {
		srcAccess: render.AccessNone,
		dstAccess: render.AccessTransferWrite,
		srcStage:  render.StageTopOfPipe,
		dstStage:  render.StageTransfer,
	},
	{render.ImageTransferDst, render.ImageShaderRead}: {
		srcAccess: render.AccessTransferWrite,
		dstAccess: render.AccessShaderRead,
		srcStage:  render.StageTransfer,
		dstStage:  render.StageFragmentShader,
	},
}

// Image is a 2D sampleable surface with an explicit access state. State
// changes are recorded as pipeline barriers into a caller-supplied execution
// context; the tracked state follows recording order, so the caller owns
// submitting those contexts in the same order.
type Image struct {
	dev   render.Device
	alloc *memory.Allocator

	handle render.Image
	mem    *memory.Allocation

	view    render.ImageView
	sampler render.Sampler

	width  int
	height int
	format render.Format
	state  render.ImageState
}

// New creates a device-local image usable as a transfer destination and for
// shader sampling, plus its view and a linear clamp-to-edge sampler. The
// image starts uninitialized. Construction either fully succeeds or releases
// everything it acquired.
func New(dev render.Device, alloc *memory.Allocator, width, height int, format render.Format) (*Image, error) {
	handle, mem, err := alloc.AllocateImage(width, height, format, render.ImageUsageTransferDst|render.ImageUsageSampled)
	if err != nil {
		return nil, fmt.Errorf("texture image: %w", err)
	}
	view, err := dev.CreateImageView(handle, format)
	if err != nil {
		alloc.FreeImage(handle, mem)
		return nil, fmt.Errorf("texture view: %w", err)
	}
	sampler, err := dev.CreateSampler(render.SamplerConfig{
		Filter:  render.FilterLinear,
		Address: render.AddressClampToEdge,
	})
	if err != nil {
		dev.DestroyImageView(view)
		alloc.FreeImage(handle, mem)
		return nil, fmt.Errorf("texture sampler: %w", err)
	}
	return &Image{
		dev:     dev,
		alloc:   alloc,
		handle:  handle,
		mem:     mem,
		view:    view,
		sampler: sampler,
		width:   width,
		height:  height,
		format:  format,
		state:   render.ImageUninitialized,
	}, nil
}

// Handle exposes the device image for command recording.
func (i *Image) Handle() render.Image { return i.handle }

// View returns the sampleable view for descriptor binding.
func (i *Image) View() render.ImageView { return i.view }

// Sampler returns the sampler for descriptor binding.
func (i *Image) Sampler() render.Sampler { return i.sampler }

// State returns the current access state as of the last recorded change.
func (i *Image) State() render.ImageState { return i.state }

func (i *Image) Extent() (width, height int) { return i.width, i.height }

// Transition records the pipeline barrier for the from-to pair into exec and
// advances the tracked state. The pair must be one of the two legal
// transitions and from must match the image's current state; anything else
// fails with ErrUnsupportedTransition. Nothing is submitted or waited on
// here.
func (i *Image) Transition(from, to render.ImageState, exec render.ExecutionContext) error {
	masks, ok := transitions[[2]render.ImageState{from, to}]
	if !ok {
		return fmt.Errorf("transition %s -> %s: %w", from, to, render.ErrUnsupportedTransition)
	}
	if from != i.state {
		return fmt.Errorf("transition %s -> %s: image is %s: %w", from, to, i.state, render.ErrUnsupportedTransition)
	}
	exec.PipelineBarrier(render.ImageBarrier{
		Image:     i.handle,
		From:      from,
		To:        to,
		SrcAccess: masks.srcAccess,
		DstAccess: masks.dstAccess,
		SrcStage:  masks.srcStage,
		DstStage:  masks.dstStage,
	})
	i.state = to
	return nil
}

// CopyFrom records a tightly packed buffer-to-image copy covering the full
// extent. The image must currently be a transfer destination; the state is
// left unchanged and the caller transitions afterward.
func (i *Image) CopyFrom(src render.Buffer, exec render.ExecutionContext) error {
	if i.state != render.ImageTransferDst {
		return fmt.Errorf("copy into %s image: %w", i.state, render.ErrUnsupportedTransition)
	}
	need := int64(i.width * i.height * i.format.PixelSize())
	if src.Size() < need {
		return fmt.Errorf("copy %d byte buffer into %dx%d image needing %d: %w",
			src.Size(), i.width, i.height, need, render.ErrOutOfRange)
	}
	exec.CopyBufferToImage(src, i.handle, i.width, i.height)
	return nil
}

// FillFrom records the full refresh chain for one frame: transition to
// transfer destination, copy the buffer in, transition to shader readable.
func (i *Image) FillFrom(src render.Buffer, exec render.ExecutionContext) error {
	if err := i.Transition(render.ImageUninitialized, render.ImageTransferDst, exec); err != nil {
		return err
	}
	if err := i.CopyFrom(src, exec); err != nil {
		return err
	}
	return i.Transition(render.ImageTransferDst, render.ImageShaderRead, exec)
}

// ResetState marks the image uninitialized so the next frame can run the
// transition chain again. Prior contents are discarded: the next transition
// out of uninitialized tells the device the old data is dead, which is safe
// here because every frame rewrites the full extent.
func (i *Image) ResetState() { i.state = render.ImageUninitialized }

// Destroy releases sampler, view, then image and memory, in that order.
func (i *Image) Destroy() {
	if i.sampler != nil {
		i.dev.DestroySampler(i.sampler)
		i.sampler = nil
	}
	if i.view != nil {
		i.dev.DestroyImageView(i.view)
		i.view = nil
	}
	if i.handle != nil {
		i.alloc.FreeImage(i.handle, i.mem)
		i.handle = nil
	}
}
