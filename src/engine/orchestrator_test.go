package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/UntitledError-09/fractal-generator/src/fractal"
	"github.com/UntitledError-09/fractal-generator/src/render"
	"github.com/UntitledError-09/fractal-generator/src/render/soft"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestOrchestrator(t *testing.T, width, height int) (*soft.Device, *soft.Display, *Orchestrator) {
	t.Helper()
	dev := soft.NewDevice()
	display := soft.NewDisplay(width, height)
	o, err := New(Config{
		Device:    dev,
		Display:   display,
		Pipelines: soft.PipelineProvider{Kernel: fractal.Kernel},
		Width:     width,
		Height:    height,
		Log:       quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return dev, display, o
}

// expectedFrame runs the kernel over the dispatch grid on the host, which is
// exactly what the software compute pipeline does device-side.
func expectedFrame(params fractal.FrameParameters, width, height int) []byte {
	params.ImageWidth = uint32(width)
	params.ImageHeight = uint32(height)
	out := make([]byte, width*height*4)
	for gy := 0; gy < fractal.Workgroups(height, fractal.GroupSize); gy++ {
		for gx := 0; gx < fractal.Workgroups(width, fractal.GroupSize); gx++ {
			fractal.ComputeGroup(params, out, gx, gy)
		}
	}
	return out
}

func TestNewValidation(t *testing.T) {
	dev := soft.NewDevice()
	display := soft.NewDisplay(8, 8)
	provider := soft.PipelineProvider{Kernel: fractal.Kernel}

	for idx, tc := range []struct {
		name string
		cfg  Config
	}{
		{"nil device", Config{Display: display, Pipelines: provider, Width: 8, Height: 8}},
		{"nil display", Config{Device: dev, Pipelines: provider, Width: 8, Height: 8}},
		{"nil pipelines", Config{Device: dev, Display: display, Width: 8, Height: 8}},
		{"zero width", Config{Device: dev, Display: display, Pipelines: provider, Width: 0, Height: 8}},
		{"negative height", Config{Device: dev, Display: display, Pipelines: provider, Width: 8, Height: -1}},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.name), func(t *testing.T) {
			tc.cfg.Log = quietLogger()
			_, err := New(tc.cfg)
			require.Error(t, err)
		})
	}
}

func TestNewStartupFailureIsFatal(t *testing.T) {
	// the parameter buffer fits under the cap, the output buffer does not
	dev := soft.NewDevice(soft.WithMaxAllocation(4096))
	display := soft.NewDisplay(64, 64)

	_, err := New(Config{
		Device:    dev,
		Display:   display,
		Pipelines: soft.PipelineProvider{Kernel: fractal.Kernel},
		Width:     64,
		Height:    64,
		Log:       quietLogger(),
	})
	require.Error(t, err)

	// construction failure leaves nothing behind
	require.Equal(t, soft.Stats{}, dev.Stats())
}

func TestCanonicalBufferProperties(t *testing.T) {
	_, _, o := newTestOrchestrator(t, 64, 64)

	require.Equal(t, []string{OutputBufferName, ParamsBufferName}, o.Registry().BufferNames())

	params, ok := o.Registry().Get(ParamsBufferName)
	require.True(t, ok)
	require.Equal(t, int64(fractal.ParametersSize), params.Size())
	require.Equal(t, render.UsageComputeParams, params.Usage())
	require.Equal(t, render.PlacementHostToDevice, params.Placement())
	require.Len(t, params.Mapped(), fractal.ParametersSize)

	output, ok := o.Registry().Get(OutputBufferName)
	require.True(t, ok)
	require.Equal(t, int64(64*64*4), output.Size())
	require.Equal(t, render.UsageComputeOutput, output.Usage())
	require.Equal(t, render.PlacementDeviceOnly, output.Placement())
	require.Nil(t, output.Mapped())

	width, height := o.Image().Extent()
	require.Equal(t, 64, width)
	require.Equal(t, 64, height)
	require.Equal(t, render.ImageUninitialized, o.Image().State())
}

func TestRenderFrameEndToEnd(t *testing.T) {
	dev, display, o := newTestOrchestrator(t, 64, 64)

	// the default 800x600 extent in the parameters is overridden by the
	// orchestrator's fixed output extent
	params := fractal.DefaultParameters()
	require.NoError(t, o.RenderFrame(context.Background(), params))

	require.Equal(t, uint64(1), o.Frame())
	require.Equal(t, 1, display.Presented())
	require.Equal(t, 3, dev.Stats().Submissions)
	require.Equal(t, render.ImageShaderRead, o.Image().State())
	require.Equal(t, expectedFrame(params, 64, 64), display.LastFrame())
}

func TestRenderFrameSequence(t *testing.T) {
	dev, display, o := newTestOrchestrator(t, 40, 24)

	params := fractal.DefaultParameters()
	for _, zoom := range []float32{1, 2, 4} {
		params.Zoom = zoom
		require.NoError(t, o.RenderFrame(context.Background(), params))
	}

	require.Equal(t, uint64(3), o.Frame())
	require.Equal(t, 3, display.Presented())
	require.Equal(t, 9, dev.Stats().Submissions)

	// the displayed frame is the last one rendered
	require.Equal(t, expectedFrame(params, 40, 24), display.LastFrame())
}

func TestRenderFrameStaleSurfaceSkips(t *testing.T) {
	_, display, o := newTestOrchestrator(t, 32, 32)

	display.QueueStale()
	err := o.RenderFrame(context.Background(), fractal.DefaultParameters())
	require.ErrorIs(t, err, render.ErrStaleSurface)
	require.Equal(t, 0, display.Presented())

	// the skip is recoverable, the next frame presents
	require.NoError(t, o.RenderFrame(context.Background(), fractal.DefaultParameters()))
	require.Equal(t, 1, display.Presented())
}

func TestRenderFrameSubmitFailureDropsFrame(t *testing.T) {
	dev, display, o := newTestOrchestrator(t, 32, 32)

	dev.FailNextSubmit(errors.New("device lost"))
	err := o.RenderFrame(context.Background(), fractal.DefaultParameters())
	require.ErrorIs(t, err, render.ErrSubmissionFailure)
	require.Equal(t, 0, display.Presented())

	// a dropped frame does not poison the next one
	require.NoError(t, o.RenderFrame(context.Background(), fractal.DefaultParameters()))
	require.Equal(t, 1, display.Presented())
}

func TestRenderFrameAcquireFailureDropsFrame(t *testing.T) {
	dev, display, o := newTestOrchestrator(t, 32, 32)

	display.FailNextAcquire(render.ErrAcquireTimeout)
	err := o.RenderFrame(context.Background(), fractal.DefaultParameters())
	require.ErrorIs(t, err, render.ErrAcquireTimeout)
	require.Equal(t, 0, display.Presented())

	// compute and transfer already ran by the time the acquire failed
	require.Equal(t, 2, dev.Stats().Submissions)

	require.NoError(t, o.RenderFrame(context.Background(), fractal.DefaultParameters()))
	require.Equal(t, 1, display.Presented())
}

func TestRenderFramePresentFailureDropsFrame(t *testing.T) {
	_, display, o := newTestOrchestrator(t, 32, 32)

	display.FailNextPresent(errors.New("present rejected"))
	err := o.RenderFrame(context.Background(), fractal.DefaultParameters())
	require.Error(t, err)
	require.Contains(t, err.Error(), "present")
	require.Equal(t, 0, display.Presented())

	require.NoError(t, o.RenderFrame(context.Background(), fractal.DefaultParameters()))
	require.Equal(t, 1, display.Presented())
}

func TestRenderFrameSuboptimalPresentStillCounts(t *testing.T) {
	_, display, o := newTestOrchestrator(t, 32, 32)

	display.QueueSuboptimal()
	require.NoError(t, o.RenderFrame(context.Background(), fractal.DefaultParameters()))
	require.Equal(t, 1, display.Presented())
}

func TestRenderFrameContextCanceled(t *testing.T) {
	dev, display, o := newTestOrchestrator(t, 32, 32)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := o.RenderFrame(ctx, fractal.DefaultParameters())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, display.Presented())
	require.Equal(t, 0, dev.Stats().Submissions)

	require.NoError(t, o.RenderFrame(context.Background(), fractal.DefaultParameters()))
	require.Equal(t, 1, display.Presented())
}

func TestCloseReleasesEverything(t *testing.T) {
	dev := soft.NewDevice()
	display := soft.NewDisplay(16, 16)
	o, err := New(Config{
		Device:    dev,
		Display:   display,
		Pipelines: soft.PipelineProvider{Kernel: fractal.Kernel},
		Width:     16,
		Height:    16,
		Log:       quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, o.RenderFrame(context.Background(), fractal.DefaultParameters()))

	o.Close()
	stats := dev.Stats()
	require.Equal(t, 0, stats.LiveBuffers)
	require.Equal(t, 0, stats.LiveImages)
	require.Equal(t, 0, stats.LiveMemories)
	require.Equal(t, 0, stats.LiveViews)
	require.Equal(t, 0, stats.LiveSamplers)
}
