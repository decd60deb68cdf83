package render

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUsageCapabilities(t *testing.T) {
	for idx, tc := range []struct {
		usage BufferUsage
		caps  BufferCapabilities
	}{
		{UsageVertex, CapVertex | CapTransferDst},
		{UsageIndex, CapIndex | CapTransferDst},
		{UsageUniform, CapUniform | CapTransferDst},
		{UsageStorage, CapStorage | CapTransferSrc | CapTransferDst},
		{UsageStaging, CapTransferSrc},
		{UsageComputeParams, CapUniform | CapTransferDst},
		{UsageComputeOutput, CapStorage | CapTransferSrc},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.usage), func(t *testing.T) {
			require.Equal(t, tc.caps, UsageCapabilities(tc.usage))
		})
	}
}

func TestPlacementProperties(t *testing.T) {
	for idx, tc := range []struct {
		placement   MemoryPlacement
		props       MemoryProperties
		hostVisible bool
	}{
		{PlacementDeviceOnly, MemoryDeviceLocal, false},
		{PlacementHostToDevice, MemoryHostVisible | MemoryHostCoherent, true},
		{PlacementDeviceToHost, MemoryHostVisible | MemoryHostCached, true},
		{PlacementShared, MemoryHostVisible | MemoryHostCoherent, true},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.placement), func(t *testing.T) {
			require.Equal(t, tc.props, PlacementProperties(tc.placement))
			require.Equal(t, tc.hostVisible, tc.placement.HostVisible())
		})
	}
}

func TestFormatPixelSize(t *testing.T) {
	require.Equal(t, 4, FormatRGBA8.PixelSize())
	require.Equal(t, 4, FormatBGRA8.PixelSize())
	require.Equal(t, 0, Format(99).PixelSize())
}

func TestImageStateString(t *testing.T) {
	for idx, tc := range []struct {
		state ImageState
		want  string
	}{
		{ImageUninitialized, "uninitialized"},
		{ImageTransferDst, "transfer-destination"},
		{ImageShaderRead, "shader-readable"},
		{ImageState(42), "unknown"},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.want), func(t *testing.T) {
			require.Equal(t, tc.want, tc.state.String())
		})
	}
}
