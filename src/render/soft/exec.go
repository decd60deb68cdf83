package soft

import (
	"errors"
	"fmt"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

// execState is the mutable binding state a command list runs against. A
// fresh one is built per submission, so contexts are replayable.
type execState struct {
	compute  render.ComputePipeline
	graphics render.GraphicsPipeline
	target   *surfaceImage
}

type command func(st *execState) error

// executionContext records commands as closures and runs them at submit.
type executionContext struct {
	dev       *Device
	commands  []command
	recording bool
}

func (e *executionContext) Begin() error {
	e.commands = e.commands[:0]
	e.recording = true
	return nil
}

func (e *executionContext) End() error {
	if !e.recording {
		return errors.New("soft: End without Begin")
	}
	e.recording = false
	return nil
}

func (e *executionContext) CopyBuffer(src, dst render.Buffer, region render.BufferCopy) {
	s := src.(*buffer)
	d := dst.(*buffer)
	e.commands = append(e.commands, func(st *execState) error {
		if region.SrcOffset < 0 || region.DstOffset < 0 || region.Size < 0 ||
			region.SrcOffset+region.Size > s.size || region.DstOffset+region.Size > d.size {
			return fmt.Errorf("soft: buffer copy region %+v: %w", region, render.ErrOutOfRange)
		}
		if s.bytes() == nil || d.bytes() == nil {
			return errors.New("soft: buffer copy against unbound memory")
		}
		copy(d.bytes()[region.DstOffset:region.DstOffset+region.Size],
			s.bytes()[region.SrcOffset:region.SrcOffset+region.Size])
		return nil
	})
}

func (e *executionContext) CopyBufferToImage(src render.Buffer, dst render.Image, width, height int) {
	s := src.(*buffer)
	img := dst.(*image)
	e.commands = append(e.commands, func(st *execState) error {
		if img.layout != render.ImageTransferDst {
			return fmt.Errorf("soft: copy into image in layout %s, want %s",
				img.layout, render.ImageTransferDst)
		}
		need := int64(width * height * img.format.PixelSize())
		if need > s.size || need > img.byteSize() {
			return fmt.Errorf("soft: %dx%d image copy of %d bytes: %w",
				width, height, need, render.ErrOutOfRange)
		}
		if s.bytes() == nil || img.bytes() == nil {
			return errors.New("soft: image copy against unbound memory")
		}
		copy(img.bytes()[:need], s.bytes()[:need])
		return nil
	})
}

func (e *executionContext) PipelineBarrier(b render.ImageBarrier) {
	img := b.Image.(*image)
	e.commands = append(e.commands, func(st *execState) error {
		// A barrier out of uninitialized discards contents and is legal
		// whatever the image holds; any other source must match the
		// device-side layout.
		if b.From != render.ImageUninitialized && img.layout != b.From {
			return fmt.Errorf("soft: barrier from %s but image layout is %s", b.From, img.layout)
		}
		img.layout = b.To
		return nil
	})
}

func (e *executionContext) BindComputePipeline(p render.ComputePipeline) {
	e.commands = append(e.commands, func(st *execState) error {
		st.compute = p
		return nil
	})
}

func (e *executionContext) Dispatch(groupsX, groupsY, groupsZ int) {
	e.commands = append(e.commands, func(st *execState) error {
		cp, ok := st.compute.(*ComputePipeline)
		if !ok {
			return errors.New("soft: dispatch without a bound compute pipeline")
		}
		return cp.dispatch(groupsX, groupsY, groupsZ)
	})
}

func (e *executionContext) BindGraphicsPipeline(p render.GraphicsPipeline) {
	e.commands = append(e.commands, func(st *execState) error {
		st.graphics = p
		return nil
	})
}

func (e *executionContext) BeginRenderPass(target render.RenderTarget) {
	e.commands = append(e.commands, func(st *execState) error {
		st.target = target.(*surfaceImage)
		return nil
	})
}

func (e *executionContext) Draw(vertexCount, instanceCount int) {
	e.commands = append(e.commands, func(st *execState) error {
		gp, ok := st.graphics.(*GraphicsPipeline)
		if !ok {
			return errors.New("soft: draw without a bound graphics pipeline")
		}
		if st.target == nil {
			return errors.New("soft: draw outside a render pass")
		}
		return gp.draw(st.target)
	})
}

func (e *executionContext) EndRenderPass() {
	e.commands = append(e.commands, func(st *execState) error {
		st.target = nil
		return nil
	})
}

func (e *executionContext) Destroy() {
	e.commands = nil
}

// Queue executes submissions synchronously in submission order.
type Queue struct {
	dev *Device
}

func (q *Queue) Submit(info render.SubmitInfo) error {
	if err := q.dev.takeSubmitErr(); err != nil {
		return err
	}
	// Execution is synchronous, so a wait on an unsignaled semaphore is a
	// submission-ordering bug, not something to block on.
	for _, s := range info.WaitSemaphores {
		ss := s.(*semaphore)
		if !ss.signaled {
			return errors.New("soft: wait on unsignaled semaphore")
		}
		ss.signaled = false
	}
	st := &execState{}
	for _, c := range info.Contexts {
		ec := c.(*executionContext)
		if ec.recording {
			return errors.New("soft: submitted context is still recording")
		}
		for _, cmd := range ec.commands {
			if err := cmd(st); err != nil {
				return err
			}
		}
	}
	for _, s := range info.SignalSemaphores {
		s.(*semaphore).signaled = true
	}
	if info.Fence != nil {
		info.Fence.(*fence).signal()
	}
	q.dev.stats.Submissions++
	return nil
}

func (q *Queue) WaitIdle() error { return nil }
