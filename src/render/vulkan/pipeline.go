package vulkan

import (
	vk "github.com/vulkan-go/vulkan"
)

// ComputePipeline carries a compiled compute pipeline plus the descriptor
// sets binding its parameter and output buffers. Shader compilation and
// descriptor layout stay with the embedder; binding and dispatch happen
// through an execution context.
type ComputePipeline struct {
	Pipeline vk.Pipeline
	Layout   vk.PipelineLayout
	Sets     []vk.DescriptorSet
}

// GraphicsPipeline carries the fullscreen presentation pipeline plus the
// descriptor sets binding the sampled image.
type GraphicsPipeline struct {
	Pipeline vk.Pipeline
	Layout   vk.PipelineLayout
	Sets     []vk.DescriptorSet
}
