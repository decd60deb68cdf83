package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/UntitledError-09/fractal-generator/src/fractal"
	"github.com/UntitledError-09/fractal-generator/src/logging"
	"github.com/UntitledError-09/fractal-generator/src/memory"
	"github.com/UntitledError-09/fractal-generator/src/render"
	"github.com/UntitledError-09/fractal-generator/src/texture"
)

// Buffer names the orchestrator registers; collaborators look them up.
const (
	ParamsBufferName = "fractal_parameters"
	OutputBufferName = "fractal_output"
)

// defaultFrameTimeout bounds every fence wait in the frame path.
const defaultFrameTimeout = 5 * time.Second

// PipelineProvider yields the opaque pipelines the orchestrator binds. The
// provider owns program compilation and descriptor wiring; the orchestrator
// only binds and dispatches.
type PipelineProvider interface {
	ComputePipeline(params, output render.Buffer) (render.ComputePipeline, error)
	GraphicsPipeline(view render.ImageView, sampler render.Sampler) (render.GraphicsPipeline, error)
}

// Config assembles an Orchestrator.
type Config struct {
	Device    render.Device
	Display   render.Display
	Pipelines PipelineProvider

	// Width and Height fix the compute output extent for the life of the
	// orchestrator; per-frame parameters are clamped to it.
	Width  int
	Height int

	// FrameTimeout bounds fence waits. Zero means the 5s default.
	FrameTimeout time.Duration

	Log *logrus.Logger
}

// Orchestrator owns the canonical frame resources (registry, parameter and
// output buffers, the sampled image, sync objects) and drives the frame
// stages: parameters, compute, transfer, acquire, render, present. One
// control goroutine; not safe for concurrent use.
type Orchestrator struct {
	dev     render.Device
	display render.Display
	log     *logrus.Logger

	alloc    *memory.Allocator
	registry *memory.Registry

	params *memory.Buffer
	output *memory.Buffer
	image  *texture.Image

	compute  render.ComputePipeline
	graphics render.GraphicsPipeline

	computeExec  render.ExecutionContext
	transferExec render.ExecutionContext
	renderExec   render.ExecutionContext

	computeDone  render.Semaphore
	transferDone render.Semaphore

	computeFence  render.Fence
	transferFence render.Fence
	renderFence   render.Fence

	// pending holds the fences of submissions still in flight from the
	// previous frame. Settled before shared resources are touched again.
	pending []render.Fence

	width   int
	height  int
	timeout time.Duration
	frame   uint64
}

// New builds the orchestrator and all startup resources. Any failure here
// is fatal to construction; partially acquired resources are released.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Device == nil || cfg.Display == nil || cfg.Pipelines == nil {
		return nil, fmt.Errorf("orchestrator: device, display and pipelines are required")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("orchestrator: output extent %dx%d must be positive", cfg.Width, cfg.Height)
	}

	o := &Orchestrator{
		dev:     cfg.Device,
		display: cfg.Display,
		log:     cfg.Log,
		width:   cfg.Width,
		height:  cfg.Height,
		timeout: cfg.FrameTimeout,
	}
	if o.log == nil {
		o.log = logging.Get()
	}
	if o.timeout <= 0 {
		o.timeout = defaultFrameTimeout
	}
	o.alloc = memory.NewAllocator(cfg.Device)
	o.registry = memory.NewRegistry(cfg.Device, o.alloc)

	if err := o.build(cfg.Pipelines); err != nil {
		o.Close()
		return nil, err
	}
	return o, nil
}

func (o *Orchestrator) build(pipelines PipelineProvider) error {
	var err error
	o.params, err = o.registry.CreateBuffer(ParamsBufferName, fractal.ParametersSize,
		render.UsageComputeParams, render.PlacementHostToDevice, true)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	outputSize := int64(o.width) * int64(o.height) * int64(render.FormatRGBA8.PixelSize())
	o.output, err = o.registry.CreateBuffer(OutputBufferName, outputSize,
		render.UsageComputeOutput, render.PlacementDeviceOnly, false)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	o.image, err = texture.New(o.dev, o.alloc, o.width, o.height, render.FormatRGBA8)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	o.compute, err = pipelines.ComputePipeline(o.params.Handle(), o.output.Handle())
	if err != nil {
		return fmt.Errorf("orchestrator: compute pipeline: %w", err)
	}
	o.graphics, err = pipelines.GraphicsPipeline(o.image.View(), o.image.Sampler())
	if err != nil {
		return fmt.Errorf("orchestrator: graphics pipeline: %w", err)
	}

	for _, e := range []*render.ExecutionContext{&o.computeExec, &o.transferExec, &o.renderExec} {
		if *e, err = o.dev.NewExecutionContext(); err != nil {
			return fmt.Errorf("orchestrator: execution context: %w", err)
		}
	}
	for _, s := range []*render.Semaphore{&o.computeDone, &o.transferDone} {
		if *s, err = o.dev.NewSemaphore(); err != nil {
			return fmt.Errorf("orchestrator: semaphore: %w", err)
		}
	}
	for _, f := range []*render.Fence{&o.computeFence, &o.transferFence, &o.renderFence} {
		if *f, err = o.dev.NewFence(false); err != nil {
			return fmt.Errorf("orchestrator: fence: %w", err)
		}
	}
	return nil
}

// Registry exposes the orchestrator's buffer registry for named lookups.
func (o *Orchestrator) Registry() *memory.Registry { return o.registry }

// Image exposes the sampled image resource for descriptor binding.
func (o *Orchestrator) Image() *texture.Image { return o.image }

// Frame returns the number of frames started.
func (o *Orchestrator) Frame() uint64 { return o.frame }

// RenderFrame drives one frame. A stage failure aborts the remaining stages
// of this frame only and is logged; the orchestrator retries on the next
// frame unconditionally. A stale surface skips the frame and surfaces
// render.ErrStaleSurface so the caller can recreate the swapchain.
func (o *Orchestrator) RenderFrame(ctx context.Context, params fractal.FrameParameters) error {
	o.frame++
	log := o.log.WithField("frame", o.frame)

	// Settle the previous frame's submissions before shared resources are
	// rewritten: the parameter buffer, output buffer and image must not
	// change under in-flight work. Presentation is not waited on, so this
	// frame's compute overlaps the previous frame's present.
	if err := o.settlePending(); err != nil {
		return o.fail(log, "settle", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The output buffer and image extents are fixed; the parameters follow.
	params.ImageWidth = uint32(o.width)
	params.ImageHeight = uint32(o.height)
	if err := o.registry.UploadData(o.params, params.Encode(), 0, nil); err != nil {
		return o.fail(log, "parameters", err)
	}

	if err := o.submitCompute(); err != nil {
		return o.fail(log, "compute", err)
	}
	if err := o.submitTransfer(); err != nil {
		return o.fail(log, "transfer", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	imageIndex, outdated, err := o.display.AcquireNextImage()
	if err != nil {
		return o.fail(log, "acquire", err)
	}
	if outdated {
		log.Warn("surface stale, skipping frame")
		return fmt.Errorf("acquire: %w", render.ErrStaleSurface)
	}

	if err := o.submitRender(imageIndex); err != nil {
		return o.fail(log, "render", err)
	}
	// The display contract carries no ordering semaphore, so presentation
	// waits on the render fence.
	if err := o.renderFence.Wait(o.timeout); err != nil {
		return o.fail(log, "render wait", err)
	}

	suboptimal, err := o.display.PresentImage(imageIndex)
	if err != nil {
		return o.fail(log, "present", err)
	}
	if suboptimal {
		log.Warn("surface suboptimal after present")
	}
	return nil
}

func (o *Orchestrator) submitCompute() error {
	e := o.computeExec
	if err := e.Begin(); err != nil {
		return err
	}
	e.BindComputePipeline(o.compute)
	e.Dispatch(
		fractal.Workgroups(o.width, fractal.GroupSize),
		fractal.Workgroups(o.height, fractal.GroupSize),
		1,
	)
	if err := e.End(); err != nil {
		return err
	}
	return o.submit(e, nil, []render.Semaphore{o.computeDone}, o.computeFence)
}

func (o *Orchestrator) submitTransfer() error {
	e := o.transferExec
	if err := e.Begin(); err != nil {
		return err
	}
	// The image is refreshed whole every frame, so prior contents are
	// discarded by re-entering the chain from uninitialized.
	o.image.ResetState()
	if err := o.image.FillFrom(o.output.Handle(), e); err != nil {
		return err
	}
	if err := e.End(); err != nil {
		return err
	}
	return o.submit(e, []render.Semaphore{o.computeDone}, []render.Semaphore{o.transferDone}, o.transferFence)
}

func (o *Orchestrator) submitRender(imageIndex int) error {
	e := o.renderExec
	if err := e.Begin(); err != nil {
		return err
	}
	e.BeginRenderPass(o.display.RenderTarget(imageIndex))
	e.BindGraphicsPipeline(o.graphics)
	e.Draw(3, 1)
	e.EndRenderPass()
	if err := e.End(); err != nil {
		return err
	}
	return o.submit(e, []render.Semaphore{o.transferDone}, nil, o.renderFence)
}

func (o *Orchestrator) submit(exec render.ExecutionContext, waits, signals []render.Semaphore, fence render.Fence) error {
	info := render.SubmitInfo{
		Contexts:         []render.ExecutionContext{exec},
		WaitSemaphores:   waits,
		SignalSemaphores: signals,
		Fence:            fence,
	}
	if err := o.dev.Queue().Submit(info); err != nil {
		return fmt.Errorf("%w: %v", render.ErrSubmissionFailure, err)
	}
	o.pending = append(o.pending, fence)
	return nil
}

// settlePending waits out the previous frame's fences and rearms all fences
// for this frame. Pending entries are dropped even on failure so the next
// frame starts clean.
func (o *Orchestrator) settlePending() error {
	var firstErr error
	for _, f := range o.pending {
		if err := f.Wait(o.timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	o.pending = o.pending[:0]
	if firstErr != nil {
		return firstErr
	}
	for _, f := range []render.Fence{o.computeFence, o.transferFence, o.renderFence} {
		if err := f.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// fail logs one dropped frame and wraps the stage error.
func (o *Orchestrator) fail(log *logrus.Entry, stage string, err error) error {
	log.WithField("stage", stage).WithError(err).Error("frame dropped")
	return fmt.Errorf("%s: %w", stage, err)
}

// Close releases every owned resource. Safe on a partially constructed
// orchestrator.
func (o *Orchestrator) Close() {
	for _, e := range []render.ExecutionContext{o.computeExec, o.transferExec, o.renderExec} {
		if e != nil {
			e.Destroy()
		}
	}
	for _, s := range []render.Semaphore{o.computeDone, o.transferDone} {
		if s != nil {
			s.Destroy()
		}
	}
	for _, f := range []render.Fence{o.computeFence, o.transferFence, o.renderFence} {
		if f != nil {
			f.Destroy()
		}
	}
	if o.image != nil {
		o.image.Destroy()
		o.image = nil
	}
	if o.registry != nil {
		o.registry.Clear()
	}
}
