package vulkan

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

// executionContext records into one primary command buffer. Contexts are
// re-recorded every frame; the pool carries the reset bit for that.
type executionContext struct {
	dev    *Device
	buffer vk.CommandBuffer
}

func (d *Device) NewExecutionContext() (render.ExecutionContext, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := NewError(vk.AllocateCommandBuffers(d.device, &info, commandBuffers)); err != nil {
		return nil, err
	}
	return &executionContext{dev: d, buffer: commandBuffers[0]}, nil
}

func (c *executionContext) Begin() error {
	if err := NewError(vk.ResetCommandBuffer(c.buffer, 0)); err != nil {
		return err
	}
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	return NewError(vk.BeginCommandBuffer(c.buffer, &info))
}

func (c *executionContext) End() error {
	return NewError(vk.EndCommandBuffer(c.buffer))
}

func (c *executionContext) CopyBuffer(src, dst render.Buffer, region render.BufferCopy) {
	vk.CmdCopyBuffer(c.buffer, src.(*buffer).handle, dst.(*buffer).handle, 1,
		[]vk.BufferCopy{{
			SrcOffset: vk.DeviceSize(region.SrcOffset),
			DstOffset: vk.DeviceSize(region.DstOffset),
			Size:      vk.DeviceSize(region.Size),
		}})
}

func (c *executionContext) CopyBufferToImage(src render.Buffer, dst render.Image, width, height int) {
	// row length and image height stay zero so the buffer is read as
	// tightly packed rows
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{
			Width:  uint32(width),
			Height: uint32(height),
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(c.buffer, src.(*buffer).handle, dst.(*image).handle,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (c *executionContext) PipelineBarrier(b render.ImageBarrier) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           toLayout(b.From),
		NewLayout:           toLayout(b.To),
		SrcAccessMask:       toAccess(b.SrcAccess),
		DstAccessMask:       toAccess(b.DstAccess),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               b.Image.(*image).handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	vk.CmdPipelineBarrier(c.buffer, toStages(b.SrcStage), toStages(b.DstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (c *executionContext) BindComputePipeline(p render.ComputePipeline) {
	cp := p.(*ComputePipeline)
	vk.CmdBindPipeline(c.buffer, vk.PipelineBindPointCompute, cp.Pipeline)
	if len(cp.Sets) > 0 {
		vk.CmdBindDescriptorSets(c.buffer, vk.PipelineBindPointCompute, cp.Layout,
			0, uint32(len(cp.Sets)), cp.Sets, 0, nil)
	}
}

func (c *executionContext) Dispatch(groupsX, groupsY, groupsZ int) {
	vk.CmdDispatch(c.buffer, uint32(groupsX), uint32(groupsY), uint32(groupsZ))
}

func (c *executionContext) BindGraphicsPipeline(p render.GraphicsPipeline) {
	gp := p.(*GraphicsPipeline)
	vk.CmdBindPipeline(c.buffer, vk.PipelineBindPointGraphics, gp.Pipeline)
	if len(gp.Sets) > 0 {
		vk.CmdBindDescriptorSets(c.buffer, vk.PipelineBindPointGraphics, gp.Layout,
			0, uint32(len(gp.Sets)), gp.Sets, 0, nil)
	}
}

func (c *executionContext) BeginRenderPass(target render.RenderTarget) {
	t := target.(*renderTarget)
	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  t.renderPass,
		Framebuffer: t.framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: uint32(t.width), Height: uint32(t.height)},
		},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{vk.NewClearValue([]float32{0, 0, 0, 1})},
	}
	vk.CmdBeginRenderPass(c.buffer, &info, vk.SubpassContentsInline)
}

func (c *executionContext) Draw(vertexCount, instanceCount int) {
	vk.CmdDraw(c.buffer, uint32(vertexCount), uint32(instanceCount), 0, 0)
}

func (c *executionContext) EndRenderPass() {
	vk.CmdEndRenderPass(c.buffer)
}

func (c *executionContext) Destroy() {
	vk.FreeCommandBuffers(c.dev.device, c.dev.pool, 1, []vk.CommandBuffer{c.buffer})
}
