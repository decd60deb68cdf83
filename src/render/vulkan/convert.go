package vulkan

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

func toFormat(f render.Format) vk.Format {
	switch f {
	case render.FormatBGRA8:
		return vk.FormatB8g8r8a8Unorm
	default:
		return vk.FormatR8g8b8a8Unorm
	}
}

// FromFormat maps a negotiated surface format back onto the contract
// enum. Unknown surface formats degrade to BGRA, the common swapchain
// default.
func FromFormat(f vk.Format) render.Format {
	switch f {
	case vk.FormatR8g8b8a8Unorm, vk.FormatR8g8b8a8Srgb:
		return render.FormatRGBA8
	default:
		return render.FormatBGRA8
	}
}

func toLayout(s render.ImageState) vk.ImageLayout {
	switch s {
	case render.ImageTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case render.ImageShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal
	default:
		return vk.ImageLayoutUndefined
	}
}

func toAccess(a render.AccessFlags) vk.AccessFlags {
	var out vk.AccessFlags
	if a&render.AccessTransferWrite != 0 {
		out |= vk.AccessFlags(vk.AccessTransferWriteBit)
	}
	if a&render.AccessShaderRead != 0 {
		out |= vk.AccessFlags(vk.AccessShaderReadBit)
	}
	return out
}

func toStages(s render.StageFlags) vk.PipelineStageFlags {
	var out vk.PipelineStageFlags
	if s&render.StageTopOfPipe != 0 {
		out |= vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	if s&render.StageTransfer != 0 {
		out |= vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	}
	if s&render.StageFragmentShader != 0 {
		out |= vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}
	if s&render.StageComputeShader != 0 {
		out |= vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	}
	return out
}

func toBufferUsage(c render.BufferCapabilities) vk.BufferUsageFlags {
	var out vk.BufferUsageFlags
	if c&render.CapTransferSrc != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
	if c&render.CapTransferDst != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
	if c&render.CapVertex != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if c&render.CapIndex != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	if c&render.CapUniform != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if c&render.CapStorage != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	return out
}

func toImageUsage(u render.ImageUsageFlags) vk.ImageUsageFlags {
	var out vk.ImageUsageFlags
	if u&render.ImageUsageTransferDst != 0 {
		out |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	}
	if u&render.ImageUsageSampled != 0 {
		out |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	}
	return out
}

func fromMemoryProperties(p vk.MemoryPropertyFlags) render.MemoryProperties {
	var out render.MemoryProperties
	if p&vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) != 0 {
		out |= render.MemoryDeviceLocal
	}
	if p&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		out |= render.MemoryHostVisible
	}
	if p&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit) != 0 {
		out |= render.MemoryHostCoherent
	}
	if p&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit) != 0 {
		out |= render.MemoryHostCached
	}
	return out
}

func toFilter(f render.FilterMode) vk.Filter {
	if f == render.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func toAddressMode(m render.AddressMode) vk.SamplerAddressMode {
	if m == render.AddressRepeat {
		return vk.SamplerAddressModeRepeat
	}
	return vk.SamplerAddressModeClampToEdge
}
