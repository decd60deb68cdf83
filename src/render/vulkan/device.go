// Package vulkan backs the render contracts with a live Vulkan device
// through the vulkan-go binding. The embedder owns instance, device and
// swapchain negotiation; this package only wires the resource, recording
// and synchronization surface on top of handles it is given.
package vulkan

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

// Device adapts an already-initialized Vulkan device. It owns the command
// pool it allocates execution contexts from and nothing else; the wrapped
// handles stay with the embedder.
type Device struct {
	physical vk.PhysicalDevice
	device   vk.Device
	gpuQueue vk.Queue
	family   uint32
	pool     vk.CommandPool
	types    []render.MemoryType
}

var _ render.Device = (*Device)(nil)

// New wraps the given handles and enumerates the physical device's memory
// types once. The queue must support graphics, compute and transfer.
func New(physical vk.PhysicalDevice, device vk.Device, queue vk.Queue, queueFamily uint32) (*Device, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := NewError(vk.CreateCommandPool(device, &poolInfo, nil, &pool)); err != nil {
		return nil, err
	}

	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physical, &memProperties)
	memProperties.Deref()

	types := make([]render.MemoryType, 0, memProperties.MemoryTypeCount)
	for i := uint32(0); i < memProperties.MemoryTypeCount; i++ {
		memProperties.MemoryTypes[i].Deref()
		types = append(types, render.MemoryType{
			Properties: fromMemoryProperties(memProperties.MemoryTypes[i].PropertyFlags),
		})
	}

	return &Device{
		physical: physical,
		device:   device,
		gpuQueue: queue,
		family:   queueFamily,
		pool:     pool,
		types:    types,
	}, nil
}

func (d *Device) MemoryTypes() []render.MemoryType {
	return d.types
}

type buffer struct {
	handle vk.Buffer
	size   int64
}

func (b *buffer) Size() int64 { return b.size }

type image struct {
	handle vk.Image
	width  int
	height int
}

func (i *image) Extent() (int, int) { return i.width, i.height }

type memory struct {
	handle vk.DeviceMemory
}

type imageView struct {
	handle vk.ImageView
}

type sampler struct {
	handle vk.Sampler
}

func (d *Device) CreateBuffer(size int64, usage render.BufferUsage) (render.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       toBufferUsage(render.UsageCapabilities(usage)),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := NewError(vk.CreateBuffer(d.device, &info, nil, &handle)); err != nil {
		return nil, err
	}
	return &buffer{handle: handle, size: size}, nil
}

func (d *Device) BufferRequirements(b render.Buffer) render.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, b.(*buffer).handle, &req)
	req.Deref()
	return render.MemoryRequirements{
		Size:      int64(req.Size),
		Alignment: int64(req.Alignment),
		TypeBits:  req.MemoryTypeBits,
	}
}

func (d *Device) DestroyBuffer(b render.Buffer) {
	vk.DestroyBuffer(d.device, b.(*buffer).handle, nil)
}

func (d *Device) CreateImage(width, height int, format render.Format, usage render.ImageUsageFlags) (render.Image, error) {
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  uint32(width),
			Height: uint32(height),
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        toFormat(format),
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         toImageUsage(usage),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}
	var handle vk.Image
	if err := NewError(vk.CreateImage(d.device, &info, nil, &handle)); err != nil {
		return nil, err
	}
	return &image{handle: handle, width: width, height: height}, nil
}

func (d *Device) ImageRequirements(img render.Image) render.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, img.(*image).handle, &req)
	req.Deref()
	return render.MemoryRequirements{
		Size:      int64(req.Size),
		Alignment: int64(req.Alignment),
		TypeBits:  req.MemoryTypeBits,
	}
}

func (d *Device) DestroyImage(img render.Image) {
	vk.DestroyImage(d.device, img.(*image).handle, nil)
}

func (d *Device) CreateImageView(img render.Image, format render.Format) (render.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.(*image).handle,
		ViewType: vk.ImageViewType2d,
		Format:   toFormat(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var handle vk.ImageView
	if err := NewError(vk.CreateImageView(d.device, &info, nil, &handle)); err != nil {
		return nil, err
	}
	return &imageView{handle: handle}, nil
}

func (d *Device) DestroyImageView(v render.ImageView) {
	vk.DestroyImageView(d.device, v.(*imageView).handle, nil)
}

func (d *Device) CreateSampler(cfg render.SamplerConfig) (render.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               toFilter(cfg.Filter),
		MinFilter:               toFilter(cfg.Filter),
		AddressModeU:            toAddressMode(cfg.Address),
		AddressModeV:            toAddressMode(cfg.Address),
		AddressModeW:            toAddressMode(cfg.Address),
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1.0,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  0,
	}
	var handle vk.Sampler
	if err := NewError(vk.CreateSampler(d.device, &info, nil, &handle)); err != nil {
		return nil, err
	}
	return &sampler{handle: handle}, nil
}

func (d *Device) DestroySampler(s render.Sampler) {
	vk.DestroySampler(d.device, s.(*sampler).handle, nil)
}

func (d *Device) AllocateMemory(size int64, typeIndex int) (render.Memory, error) {
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: uint32(typeIndex),
	}
	var handle vk.DeviceMemory
	if err := NewError(vk.AllocateMemory(d.device, &info, nil, &handle)); err != nil {
		return nil, err
	}
	return &memory{handle: handle}, nil
}

func (d *Device) FreeMemory(m render.Memory) {
	vk.FreeMemory(d.device, m.(*memory).handle, nil)
}

func (d *Device) BindBufferMemory(b render.Buffer, m render.Memory) error {
	return NewError(vk.BindBufferMemory(d.device, b.(*buffer).handle, m.(*memory).handle, 0))
}

func (d *Device) BindImageMemory(img render.Image, m render.Memory) error {
	return NewError(vk.BindImageMemory(d.device, img.(*image).handle, m.(*memory).handle, 0))
}

func (d *Device) MapMemory(m render.Memory, offset, size int64) ([]byte, error) {
	var pData unsafe.Pointer
	err := NewError(vk.MapMemory(d.device, m.(*memory).handle,
		vk.DeviceSize(offset), vk.DeviceSize(size), 0, &pData))
	if err != nil {
		return nil, err
	}
	return (*[1 << 30]byte)(pData)[:size:size], nil
}

func (d *Device) UnmapMemory(m render.Memory) {
	vk.UnmapMemory(d.device, m.(*memory).handle)
}

func (d *Device) FlushMemory(m render.Memory, offset, size int64) error {
	ranges := []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: m.(*memory).handle,
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}}
	return NewError(vk.FlushMappedMemoryRanges(d.device, 1, ranges))
}

func (d *Device) Queue() render.Queue {
	return &queue{dev: d, handle: d.gpuQueue}
}

func (d *Device) WaitIdle() error {
	return NewError(vk.DeviceWaitIdle(d.device))
}

// Destroy releases the command pool. The device and queue handles belong
// to the embedder and are left alone.
func (d *Device) Destroy() {
	vk.DestroyCommandPool(d.device, d.pool, nil)
}

type queue struct {
	dev    *Device
	handle vk.Queue
}

func (q *queue) Submit(info render.SubmitInfo) error {
	commandBuffers := make([]vk.CommandBuffer, len(info.Contexts))
	for i, ec := range info.Contexts {
		commandBuffers[i] = ec.(*executionContext).buffer
	}
	waits := make([]vk.Semaphore, len(info.WaitSemaphores))
	// waits gate the whole submission, so the top of the pipe is the
	// conservative stage for every one of them
	waitStages := make([]vk.PipelineStageFlags, len(info.WaitSemaphores))
	for i, s := range info.WaitSemaphores {
		waits[i] = s.(*semaphore).handle
		waitStages[i] = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	signals := make([]vk.Semaphore, len(info.SignalSemaphores))
	for i, s := range info.SignalSemaphores {
		signals[i] = s.(*semaphore).handle
	}

	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   uint32(len(commandBuffers)),
		PCommandBuffers:      commandBuffers,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}

	signalFence := vk.Fence(vk.NullHandle)
	if info.Fence != nil {
		signalFence = info.Fence.(*fence).handle
	}
	return NewError(vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{submit}, signalFence))
}

func (q *queue) WaitIdle() error {
	return NewError(vk.QueueWaitIdle(q.handle))
}
