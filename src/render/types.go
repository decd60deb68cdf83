package render

// BufferUsage declares what a buffer will be used for. The usage decides
// which device capabilities the buffer is created with.
type BufferUsage int

const (
	UsageVertex BufferUsage = iota
	UsageIndex
	UsageUniform
	UsageStorage
	UsageStaging
	UsageComputeParams
	UsageComputeOutput
)

func (u BufferUsage) String() string {
	switch u {
	case UsageVertex:
		return "vertex"
	case UsageIndex:
		return "index"
	case UsageUniform:
		return "uniform"
	case UsageStorage:
		return "storage"
	case UsageStaging:
		return "staging"
	case UsageComputeParams:
		return "compute-params"
	case UsageComputeOutput:
		return "compute-output"
	}
	return "unknown"
}

// BufferCapabilities are the device-level capability bits a buffer is
// created with.
type BufferCapabilities uint32

const (
	CapTransferSrc BufferCapabilities = 1 << 0
	CapTransferDst BufferCapabilities = 1 << 1
	CapVertex      BufferCapabilities = 1 << 2
	CapIndex       BufferCapabilities = 1 << 3
	CapUniform     BufferCapabilities = 1 << 4
	CapStorage     BufferCapabilities = 1 << 5
)

// UsageCapabilities maps a usage intent to the capabilities the buffer
// must be created with.
func UsageCapabilities(u BufferUsage) BufferCapabilities {
	switch u {
	case UsageVertex:
		return CapVertex | CapTransferDst
	case UsageIndex:
		return CapIndex | CapTransferDst
	case UsageUniform:
		return CapUniform | CapTransferDst
	case UsageStorage:
		return CapStorage | CapTransferSrc | CapTransferDst
	case UsageStaging:
		return CapTransferSrc
	case UsageComputeParams:
		return CapUniform | CapTransferDst
	case UsageComputeOutput:
		return CapStorage | CapTransferSrc
	}
	return 0
}

// MemoryPlacement is the caller's placement preference for a resource's
// backing memory.
type MemoryPlacement int

const (
	PlacementDeviceOnly MemoryPlacement = iota
	PlacementHostToDevice
	PlacementDeviceToHost
	PlacementShared
)

func (p MemoryPlacement) String() string {
	switch p {
	case PlacementDeviceOnly:
		return "device-only"
	case PlacementHostToDevice:
		return "host-to-device"
	case PlacementDeviceToHost:
		return "device-to-host"
	case PlacementShared:
		return "host-device-shared"
	}
	return "unknown"
}

// HostVisible reports whether the placement maps to host-accessible memory.
func (p MemoryPlacement) HostVisible() bool {
	return PlacementProperties(p)&MemoryHostVisible != 0
}

// MemoryProperties are the property bits of a device memory type.
type MemoryProperties uint32

const (
	MemoryDeviceLocal  MemoryProperties = 1 << 0
	MemoryHostVisible  MemoryProperties = 1 << 1
	MemoryHostCoherent MemoryProperties = 1 << 2
	MemoryHostCached   MemoryProperties = 1 << 3
)

// PlacementProperties maps a placement preference to the memory property
// flags an allocation must satisfy.
func PlacementProperties(p MemoryPlacement) MemoryProperties {
	switch p {
	case PlacementDeviceOnly:
		return MemoryDeviceLocal
	case PlacementHostToDevice:
		return MemoryHostVisible | MemoryHostCoherent
	case PlacementDeviceToHost:
		return MemoryHostVisible | MemoryHostCached
	case PlacementShared:
		return MemoryHostVisible | MemoryHostCoherent
	}
	return 0
}

// MemoryType describes one device memory type as enumerated at startup.
type MemoryType struct {
	Properties MemoryProperties
}

// MemoryRequirements is what a buffer or image demands of its backing
// memory. Size may exceed the requested resource size due to alignment.
type MemoryRequirements struct {
	Size      int64
	Alignment int64
	// TypeBits holds the candidate memory types, one bit per type index.
	TypeBits uint32
}

// ImageState is the current access state of an image resource. The set is
// closed; extending it means adding explicit transition rules.
type ImageState int

const (
	ImageUninitialized ImageState = iota
	ImageTransferDst
	ImageShaderRead
)

func (s ImageState) String() string {
	switch s {
	case ImageUninitialized:
		return "uninitialized"
	case ImageTransferDst:
		return "transfer-destination"
	case ImageShaderRead:
		return "shader-readable"
	}
	return "unknown"
}

// Format is a pixel format.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatBGRA8
)

// PixelSize returns the byte size of one pixel of the format.
func (f Format) PixelSize() int {
	switch f {
	case FormatRGBA8, FormatBGRA8:
		return 4
	}
	return 0
}

// ImageUsageFlags are the capability bits an image is created with.
type ImageUsageFlags uint32

const (
	ImageUsageTransferDst ImageUsageFlags = 1 << 0
	ImageUsageSampled     ImageUsageFlags = 1 << 1
)

// AccessFlags name the memory access kinds a barrier orders.
type AccessFlags uint32

const (
	AccessNone          AccessFlags = 0
	AccessTransferWrite AccessFlags = 1 << 0
	AccessShaderRead    AccessFlags = 1 << 1
)

// StageFlags name pipeline stages for barrier scoping.
type StageFlags uint32

const (
	StageTopOfPipe      StageFlags = 1 << 0
	StageTransfer       StageFlags = 1 << 1
	StageFragmentShader StageFlags = 1 << 2
	StageComputeShader  StageFlags = 1 << 3
)

// FilterMode selects how a sampler interpolates texels.
type FilterMode int

const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// AddressMode selects how a sampler treats coordinates outside the image.
type AddressMode int

const (
	AddressClampToEdge AddressMode = iota
	AddressRepeat
)

// SamplerConfig is the sampling configuration of an image resource.
type SamplerConfig struct {
	Filter  FilterMode
	Address AddressMode
}
