package texture

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/UntitledError-09/fractal-generator/src/memory"
	"github.com/UntitledError-09/fractal-generator/src/render"
	"github.com/UntitledError-09/fractal-generator/src/render/soft"
)

// imageInState records the legal transition chain up to state on a fresh
// image and leaves the context recording.
func imageInState(t *testing.T, state render.ImageState) (*Image, render.ExecutionContext) {
	t.Helper()
	dev := soft.NewDevice()
	alloc := memory.NewAllocator(dev)
	img, err := New(dev, alloc, 4, 4, render.FormatRGBA8)
	require.NoError(t, err)
	exec, err := dev.NewExecutionContext()
	require.NoError(t, err)
	require.NoError(t, exec.Begin())
	if state == render.ImageTransferDst || state == render.ImageShaderRead {
		require.NoError(t, img.Transition(render.ImageUninitialized, render.ImageTransferDst, exec))
	}
	if state == render.ImageShaderRead {
		require.NoError(t, img.Transition(render.ImageTransferDst, render.ImageShaderRead, exec))
	}
	return img, exec
}

func newFilledBuffer(t *testing.T, alloc *memory.Allocator, data []byte) render.Buffer {
	t.Helper()
	handle, _, err := alloc.AllocateBuffer(int64(len(data)), render.UsageStorage, render.PlacementHostToDevice)
	require.NoError(t, err)
	copy(soft.BufferBytes(handle), data)
	return handle
}

func submitOne(t *testing.T, dev *soft.Device, exec render.ExecutionContext) {
	t.Helper()
	fence, err := dev.NewFence(false)
	require.NoError(t, err)
	defer fence.Destroy()
	require.NoError(t, dev.Queue().Submit(render.SubmitInfo{
		Contexts: []render.ExecutionContext{exec},
		Fence:    fence,
	}))
	require.NoError(t, fence.Wait(time.Second))
}

func pixels(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*13 + 1)
	}
	return out
}

func TestTransitionMatrix(t *testing.T) {
	for idx, tc := range []struct {
		from, to render.ImageState
		legal    bool
	}{
		{render.ImageUninitialized, render.ImageUninitialized, false},
		{render.ImageUninitialized, render.ImageTransferDst, true},
		{render.ImageUninitialized, render.ImageShaderRead, false},
		{render.ImageTransferDst, render.ImageUninitialized, false},
		{render.ImageTransferDst, render.ImageTransferDst, false},
		{render.ImageTransferDst, render.ImageShaderRead, true},
		{render.ImageShaderRead, render.ImageUninitialized, false},
		{render.ImageShaderRead, render.ImageTransferDst, false},
		{render.ImageShaderRead, render.ImageShaderRead, false},
	} {
		t.Run(fmt.Sprintf("%d/%s to %s", idx, tc.from, tc.to), func(t *testing.T) {
			img, exec := imageInState(t, tc.from)
			defer exec.Destroy()

			err := img.Transition(tc.from, tc.to, exec)
			if tc.legal {
				require.NoError(t, err)
				require.Equal(t, tc.to, img.State())
			} else {
				require.ErrorIs(t, err, render.ErrUnsupportedTransition)
				require.Equal(t, tc.from, img.State())
			}
		})
	}
}

func TestTransitionRequiresCurrentState(t *testing.T) {
	// legal pairs are still rejected when the image is not in the from state
	for idx, tc := range []struct {
		current  render.ImageState
		from, to render.ImageState
	}{
		{render.ImageShaderRead, render.ImageUninitialized, render.ImageTransferDst},
		{render.ImageUninitialized, render.ImageTransferDst, render.ImageShaderRead},
	} {
		t.Run(fmt.Sprintf("%d/image in %s", idx, tc.current), func(t *testing.T) {
			img, exec := imageInState(t, tc.current)
			defer exec.Destroy()

			err := img.Transition(tc.from, tc.to, exec)
			require.ErrorIs(t, err, render.ErrUnsupportedTransition)
			require.Equal(t, tc.current, img.State())
		})
	}
}

func TestCopyFromRequiresTransferDst(t *testing.T) {
	dev := soft.NewDevice()
	alloc := memory.NewAllocator(dev)
	img, err := New(dev, alloc, 4, 4, render.FormatRGBA8)
	require.NoError(t, err)
	exec, err := dev.NewExecutionContext()
	require.NoError(t, err)
	defer exec.Destroy()
	require.NoError(t, exec.Begin())

	src := newFilledBuffer(t, alloc, pixels(64))
	err = img.CopyFrom(src, exec)
	require.ErrorIs(t, err, render.ErrUnsupportedTransition)
}

func TestCopyFromRejectsShortBuffer(t *testing.T) {
	img, exec := imageInState(t, render.ImageTransferDst)
	defer exec.Destroy()

	short, err := img.dev.CreateBuffer(16, render.UsageStorage)
	require.NoError(t, err)
	defer img.dev.DestroyBuffer(short)

	err = img.CopyFrom(short, exec)
	require.ErrorIs(t, err, render.ErrOutOfRange)
	require.Equal(t, render.ImageTransferDst, img.State())
}

func TestCopyFromWritesPixels(t *testing.T) {
	dev := soft.NewDevice()
	alloc := memory.NewAllocator(dev)
	img, err := New(dev, alloc, 4, 4, render.FormatRGBA8)
	require.NoError(t, err)
	exec, err := dev.NewExecutionContext()
	require.NoError(t, err)
	defer exec.Destroy()

	data := pixels(64)
	src := newFilledBuffer(t, alloc, data)

	require.NoError(t, exec.Begin())
	require.NoError(t, img.Transition(render.ImageUninitialized, render.ImageTransferDst, exec))
	require.NoError(t, img.CopyFrom(src, exec))
	require.NoError(t, exec.End())
	submitOne(t, dev, exec)

	require.Equal(t, data, soft.ImageBytes(img.Handle()))
	require.Equal(t, render.ImageTransferDst, img.State())
}

func TestFillFromEndToEnd(t *testing.T) {
	dev := soft.NewDevice()
	alloc := memory.NewAllocator(dev)
	img, err := New(dev, alloc, 8, 8, render.FormatRGBA8)
	require.NoError(t, err)
	exec, err := dev.NewExecutionContext()
	require.NoError(t, err)
	defer exec.Destroy()

	data := pixels(8 * 8 * 4)
	src := newFilledBuffer(t, alloc, data)

	require.NoError(t, exec.Begin())
	require.NoError(t, img.FillFrom(src, exec))
	require.NoError(t, exec.End())
	submitOne(t, dev, exec)

	require.Equal(t, data, soft.ImageBytes(img.Handle()))
	require.Equal(t, render.ImageShaderRead, img.State())
	require.Equal(t, render.ImageShaderRead, soft.ImageLayout(img.Handle()))
}

func TestFillFromNeedsReset(t *testing.T) {
	dev := soft.NewDevice()
	alloc := memory.NewAllocator(dev)
	img, err := New(dev, alloc, 4, 4, render.FormatRGBA8)
	require.NoError(t, err)
	exec, err := dev.NewExecutionContext()
	require.NoError(t, err)
	defer exec.Destroy()

	first := pixels(64)
	src := newFilledBuffer(t, alloc, first)

	require.NoError(t, exec.Begin())
	require.NoError(t, img.FillFrom(src, exec))
	require.NoError(t, exec.End())
	submitOne(t, dev, exec)

	// a second fill is rejected until the state is reset
	require.NoError(t, exec.Begin())
	err = img.FillFrom(src, exec)
	require.ErrorIs(t, err, render.ErrUnsupportedTransition)

	img.ResetState()
	require.Equal(t, render.ImageUninitialized, img.State())

	second := make([]byte, 64)
	for i := range second {
		second[i] = byte(255 - i)
	}
	copy(soft.BufferBytes(src), second)

	require.NoError(t, exec.Begin())
	require.NoError(t, img.FillFrom(src, exec))
	require.NoError(t, exec.End())
	submitOne(t, dev, exec)

	require.Equal(t, second, soft.ImageBytes(img.Handle()))
	require.Equal(t, render.ImageShaderRead, img.State())
}

func TestDestroyReleasesEverything(t *testing.T) {
	dev := soft.NewDevice()
	alloc := memory.NewAllocator(dev)
	img, err := New(dev, alloc, 4, 4, render.FormatRGBA8)
	require.NoError(t, err)

	stats := dev.Stats()
	require.Equal(t, 1, stats.LiveImages)
	require.Equal(t, 1, stats.LiveMemories)
	require.Equal(t, 1, stats.LiveViews)
	require.Equal(t, 1, stats.LiveSamplers)

	img.Destroy()
	img.Destroy() // idempotent

	require.Equal(t, soft.Stats{}, dev.Stats())
	require.Equal(t, int64(0), alloc.TotalAllocated())
}

func TestNewRollsBackOnAllocationFailure(t *testing.T) {
	dev := soft.NewDevice(soft.WithMaxAllocation(64))
	alloc := memory.NewAllocator(dev)

	// a 16x16 RGBA image needs 1024 bytes, well past the cap
	_, err := New(dev, alloc, 16, 16, render.FormatRGBA8)
	require.Error(t, err)

	require.Equal(t, soft.Stats{}, dev.Stats())
	require.Equal(t, int64(0), alloc.TotalAllocated())
}
