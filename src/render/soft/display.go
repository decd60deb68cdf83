package soft

import (
	"github.com/UntitledError-09/fractal-generator/src/render"
)

// surfaceImage is one presentable framebuffer.
type surfaceImage struct {
	width  int
	height int
	format render.Format
	pixels []byte
}

// Display is an in-memory presentable surface: a small ring of framebuffers
// plus injectable staleness, suboptimal and failure signals for exercising
// the orchestrator's recovery paths.
type Display struct {
	width  int
	height int
	format render.Format

	targets []*surfaceImage
	next    int

	presented     int
	lastPresented int

	staleAcquires int
	suboptimals   int
	acquireErr    error
	presentErr    error
}

// NewDisplay creates a display with two presentable images, mirroring a
// double-buffered swapchain.
func NewDisplay(width, height int) *Display {
	d := &Display{
		width:         width,
		height:        height,
		format:        render.FormatRGBA8,
		lastPresented: -1,
	}
	for i := 0; i < 2; i++ {
		d.targets = append(d.targets, &surfaceImage{
			width:  width,
			height: height,
			format: d.format,
			pixels: make([]byte, width*height*d.format.PixelSize()),
		})
	}
	return d
}

func (d *Display) AcquireNextImage() (imageIndex int, outdated bool, err error) {
	if d.acquireErr != nil {
		err = d.acquireErr
		d.acquireErr = nil
		return 0, false, err
	}
	if d.staleAcquires > 0 {
		d.staleAcquires--
		return 0, true, nil
	}
	idx := d.next
	d.next = (d.next + 1) % len(d.targets)
	return idx, false, nil
}

func (d *Display) PresentImage(imageIndex int) (outdated bool, err error) {
	if d.presentErr != nil {
		err = d.presentErr
		d.presentErr = nil
		return false, err
	}
	d.lastPresented = imageIndex
	d.presented++
	if d.suboptimals > 0 {
		d.suboptimals--
		return true, nil
	}
	return false, nil
}

func (d *Display) RenderTarget(imageIndex int) render.RenderTarget {
	return d.targets[imageIndex]
}

func (d *Display) SurfaceFormat() render.Format { return d.format }

func (d *Display) SurfaceExtent() (width, height int) { return d.width, d.height }

// QueueStale makes the next acquire report an outdated surface.
func (d *Display) QueueStale() { d.staleAcquires++ }

// QueueSuboptimal makes the next present report a suboptimal surface.
func (d *Display) QueueSuboptimal() { d.suboptimals++ }

// FailNextAcquire makes the next acquire fail with err.
func (d *Display) FailNextAcquire(err error) { d.acquireErr = err }

// FailNextPresent makes the next present fail with err.
func (d *Display) FailNextPresent(err error) { d.presentErr = err }

// Presented returns how many frames were presented.
func (d *Display) Presented() int { return d.presented }

// LastFrame returns a copy of the most recently presented framebuffer, nil
// when nothing has been presented.
func (d *Display) LastFrame() []byte {
	if d.lastPresented < 0 {
		return nil
	}
	src := d.targets[d.lastPresented].pixels
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
