package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/UntitledError-09/fractal-generator/src/render"
	"github.com/UntitledError-09/fractal-generator/src/render/soft"
)

// the software device enumerates four types: device-local, host-coherent,
// host-cached, then a shared device+host window
const allTypeBits = 1<<4 - 1

func TestFindMemoryType(t *testing.T) {
	alloc := NewAllocator(soft.NewDevice())

	for idx, tc := range []struct {
		filter  uint32
		props   render.MemoryProperties
		want    int
		wantErr bool
	}{
		{allTypeBits, render.MemoryDeviceLocal, 0, false},
		{allTypeBits, render.MemoryHostVisible | render.MemoryHostCoherent, 1, false},
		{allTypeBits, render.MemoryHostVisible | render.MemoryHostCached, 2, false},
		{allTypeBits, render.MemoryHostVisible, 1, false},

		// a narrowed filter skips earlier matches
		{1 << 3, render.MemoryHostVisible | render.MemoryHostCoherent, 3, false},
		{1<<2 | 1<<3, render.MemoryHostVisible, 2, false},

		// nothing satisfies these
		{1 << 0, render.MemoryHostVisible, 0, true},
		{0, render.MemoryDeviceLocal, 0, true},
	} {
		t.Run(fmt.Sprintf("%d/filter %#x props %#x", idx, tc.filter, tc.props), func(t *testing.T) {
			got, err := alloc.FindMemoryType(tc.filter, tc.props)
			if tc.wantErr {
				require.ErrorIs(t, err, render.ErrNoSuitableMemoryType)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFindMemoryTypeDeterministic(t *testing.T) {
	alloc := NewAllocator(soft.NewDevice())
	first, err := alloc.FindMemoryType(allTypeBits, render.MemoryHostVisible)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		got, err := alloc.FindMemoryType(allTypeBits, render.MemoryHostVisible)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
}

func TestAllocateBufferPlacements(t *testing.T) {
	for idx, tc := range []struct {
		placement render.MemoryPlacement
		wantType  int
	}{
		{render.PlacementDeviceOnly, 0},
		{render.PlacementHostToDevice, 1},
		{render.PlacementDeviceToHost, 2},
		{render.PlacementShared, 1},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.placement), func(t *testing.T) {
			dev := soft.NewDevice()
			alloc := NewAllocator(dev)

			buf, mem, err := alloc.AllocateBuffer(100, render.UsageStorage, tc.placement)
			require.NoError(t, err)
			require.Equal(t, tc.wantType, mem.TypeIndex)
			require.Equal(t, int64(100), mem.Requested)
			require.Equal(t, int64(256), mem.Actual) // aligned up
			require.Equal(t, int64(100), buf.Size())
			require.Equal(t, int64(256), alloc.TotalAllocated())

			alloc.FreeBuffer(buf, mem)
			require.Equal(t, int64(0), alloc.TotalAllocated())
			require.Equal(t, 0, dev.Stats().LiveBuffers)
			require.Equal(t, 0, dev.Stats().LiveMemories)
		})
	}
}

func TestAllocateBufferInvalidSize(t *testing.T) {
	dev := soft.NewDevice()
	alloc := NewAllocator(dev)

	_, _, err := alloc.AllocateBuffer(0, render.UsageStaging, render.PlacementHostToDevice)
	require.Error(t, err)
	require.Equal(t, 0, dev.Stats().LiveBuffers)
	require.Equal(t, 0, dev.Stats().LiveMemories)
	require.Equal(t, int64(0), alloc.TotalAllocated())
}

func TestAllocateBufferRollbackOnMemoryFailure(t *testing.T) {
	dev := soft.NewDevice(soft.WithMaxAllocation(128))
	alloc := NewAllocator(dev)

	_, _, err := alloc.AllocateBuffer(4096, render.UsageStorage, render.PlacementHostToDevice)
	require.Error(t, err)

	// the buffer handle created before the allocation failed is destroyed
	require.Equal(t, 0, dev.Stats().LiveBuffers)
	require.Equal(t, 0, dev.Stats().LiveMemories)
	require.Equal(t, int64(0), alloc.TotalAllocated())
}

func TestAllocateImage(t *testing.T) {
	dev := soft.NewDevice()
	alloc := NewAllocator(dev)

	img, mem, err := alloc.AllocateImage(16, 16, render.FormatRGBA8, render.ImageUsageTransferDst|render.ImageUsageSampled)
	require.NoError(t, err)
	require.Equal(t, 0, mem.TypeIndex)
	require.Equal(t, int64(1024), mem.Actual)
	w, h := img.Extent()
	require.Equal(t, 16, w)
	require.Equal(t, 16, h)
	require.Equal(t, int64(1024), alloc.TotalAllocated())

	alloc.FreeImage(img, mem)
	require.Equal(t, int64(0), alloc.TotalAllocated())
	require.Equal(t, 0, dev.Stats().LiveImages)
	require.Equal(t, 0, dev.Stats().LiveMemories)
}

func TestTotalAllocatedStableAcrossCycles(t *testing.T) {
	dev := soft.NewDevice()
	alloc := NewAllocator(dev)

	var peak int64
	for cycle := 0; cycle < 3; cycle++ {
		buf, bufMem, err := alloc.AllocateBuffer(300, render.UsageUniform, render.PlacementHostToDevice)
		require.NoError(t, err)
		img, imgMem, err := alloc.AllocateImage(8, 8, render.FormatRGBA8, render.ImageUsageSampled)
		require.NoError(t, err)

		if cycle == 0 {
			peak = alloc.TotalAllocated()
			require.Greater(t, peak, int64(0))
		} else {
			require.Equal(t, peak, alloc.TotalAllocated())
		}

		alloc.FreeBuffer(buf, bufMem)
		alloc.FreeImage(img, imgMem)
		require.Equal(t, int64(0), alloc.TotalAllocated())
	}
	require.Equal(t, 0, dev.Stats().LiveMemories)
}

func TestReleaseIsIdempotent(t *testing.T) {
	dev := soft.NewDevice()
	alloc := NewAllocator(dev)

	buf, mem, err := alloc.AllocateBuffer(64, render.UsageVertex, render.PlacementDeviceOnly)
	require.NoError(t, err)
	alloc.FreeBuffer(buf, mem)
	require.Equal(t, int64(0), alloc.TotalAllocated())

	// releasing the same allocation again must not double-subtract
	alloc.release(mem)
	require.Equal(t, int64(0), alloc.TotalAllocated())
}
