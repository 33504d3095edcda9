package vulkan

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Opaque driver handles. The zero value is the null handle.
type (
	PhysicalDevice      uintptr
	Surface             uintptr
	Queue               uintptr
	CommandPool         uintptr
	CommandBufferHandle uintptr
	SwapchainHandle     uintptr
	Image               uintptr
	ImageView           uintptr
	DeviceMemory        uintptr
	RenderPassHandle    uintptr
	Framebuffer         uintptr
	Semaphore           uintptr
	FenceHandle         uintptr
	DebugMessenger      uintptr
)

// NoTimeout blocks until the driver call completes.
const NoTimeout = math.MaxUint64

// Version is a packed Vulkan version number.
type Version uint32

func MakeVersion(major, minor, patch uint32) Version {
	return Version(major<<22 | minor<<12 | patch)
}

func (v Version) Major() uint32 { return (uint32(v) >> 22) & 0x7f }
func (v Version) Minor() uint32 { return (uint32(v) >> 12) & 0x3ff }
func (v Version) Patch() uint32 { return uint32(v) & 0xfff }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

var (
	Vulkan1_0 = MakeVersion(1, 0, 0)
	Vulkan1_1 = MakeVersion(1, 1, 0)
	Vulkan1_2 = MakeVersion(1, 2, 0)
)

type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
	QueueSparseBinding
)

type QueueFamilyProperties struct {
	Flags      QueueFlags
	QueueCount int
}

type DeviceType int32

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "Integrated"
	case DeviceTypeDiscreteGPU:
		return "Discrete"
	case DeviceTypeVirtualGPU:
		return "Virtual"
	case DeviceTypeCPU:
		return "CPU"
	}
	return "Unknown"
}

type PhysicalDeviceProperties struct {
	DeviceName        string
	DeviceType        DeviceType
	VendorID          uint32
	DeviceID          uint32
	DriverVersion     Version
	APIVersion        Version
	PipelineCacheUUID uuid.UUID
}

type PhysicalDeviceFeatures struct {
	SamplerAnisotropy bool
	GeometryShader    bool
}

type MemoryHeapFlags uint32

const MemoryHeapDeviceLocal MemoryHeapFlags = 1

type MemoryHeap struct {
	Size  uint64
	Flags MemoryHeapFlags
}

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal MemoryPropertyFlags = 1 << iota
	MemoryPropertyHostVisible
	MemoryPropertyHostCoherent
	MemoryPropertyHostCached
	MemoryPropertyLazilyAllocated
)

type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     int
}

type MemoryProperties struct {
	MemoryTypes []MemoryType
	MemoryHeaps []MemoryHeap
}

type MemoryRequirements struct {
	Size           uint64
	MemoryTypeBits uint32
}

type Format int32

const (
	FormatUndefined       Format = 0
	FormatB8G8R8A8Unorm   Format = 44
	FormatB8G8R8A8SRGB    Format = 50
	FormatD32SFloat       Format = 126
	FormatD24UnormS8UInt  Format = 129
	FormatD32SFloatS8UInt Format = 130
)

type FormatFeatureFlags uint32

const FormatFeatureDepthStencilAttachment FormatFeatureFlags = 0x200

type FormatProperties struct {
	LinearTilingFeatures  FormatFeatureFlags
	OptimalTilingFeatures FormatFeatureFlags
	BufferFeatures        FormatFeatureFlags
}

type ColorSpace int32

const ColorSpaceSRGBNonlinear ColorSpace = 0

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode int32

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFIFO
	PresentModeFIFORelaxed
)

type Extent2D struct {
	Width  uint32
	Height uint32
}

// UndefinedExtent marks a surface whose size is set by the swapchain.
const UndefinedExtent = math.MaxUint32

type SurfaceTransformFlags uint32

const SurfaceTransformIdentity SurfaceTransformFlags = 1

type SurfaceCapabilities struct {
	MinImageCount    uint32
	MaxImageCount    uint32
	CurrentExtent    Extent2D
	MinImageExtent   Extent2D
	MaxImageExtent   Extent2D
	CurrentTransform SurfaceTransformFlags
}

type InstanceCreateInfo struct {
	ApplicationName       string
	ApplicationVersion    Version
	EngineName            string
	EngineVersion         Version
	APIVersion            Version
	EnabledExtensionNames []string
	EnabledLayerNames     []string
	EnumeratePortability  bool
}

type DebugSeverity uint32

const (
	DebugSeverityVerbose DebugSeverity = 0x1
	DebugSeverityInfo    DebugSeverity = 0x10
	DebugSeverityWarning DebugSeverity = 0x100
	DebugSeverityError   DebugSeverity = 0x1000
)

type DebugMessageType uint32

const (
	DebugMessageGeneral DebugMessageType = 1 << iota
	DebugMessageValidation
	DebugMessagePerformance
)

// DebugCallback receives validation messages. Returning true aborts the call
// that triggered the message.
type DebugCallback func(severity DebugSeverity, messageType DebugMessageType, message string) bool

type DebugMessengerCreateInfo struct {
	Severities DebugSeverity
	Types      DebugMessageType
	Callback   DebugCallback
}

type DeviceQueueCreateInfo struct {
	QueueFamilyIndex int
	QueuePriorities  []float32
}

type DeviceCreateInfo struct {
	QueueCreateInfos      []DeviceQueueCreateInfo
	EnabledFeatures       PhysicalDeviceFeatures
	EnabledExtensionNames []string
}

type CommandPoolCreateFlags uint32

const (
	CommandPoolCreateTransient CommandPoolCreateFlags = 1 << iota
	CommandPoolCreateResetBuffer
)

type CommandPoolCreateInfo struct {
	QueueFamilyIndex int
	Flags            CommandPoolCreateFlags
}

type CommandBufferLevel int32

const (
	CommandBufferLevelPrimary CommandBufferLevel = iota
	CommandBufferLevelSecondary
)

type CommandBufferAllocateInfo struct {
	CommandPool CommandPool
	Level       CommandBufferLevel
	Count       int
}

type CommandBufferUsageFlags uint32

const (
	CommandBufferUsageOneTimeSubmit CommandBufferUsageFlags = 1 << iota
	CommandBufferUsageRenderPassContinue
	CommandBufferUsageSimultaneousUse
)

type ImageLayout int32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

type AttachmentLoadOp int32

const (
	AttachmentLoadOpLoad AttachmentLoadOp = iota
	AttachmentLoadOpClear
	AttachmentLoadOpDontCare
)

type AttachmentStoreOp int32

const (
	AttachmentStoreOpStore AttachmentStoreOp = iota
	AttachmentStoreOpDontCare
)

type PipelineStageFlags uint32

const (
	PipelineStageEarlyFragmentTests    PipelineStageFlags = 0x100
	PipelineStageColorAttachmentOutput PipelineStageFlags = 0x400
)

type AccessFlags uint32

const (
	AccessColorAttachmentRead         AccessFlags = 0x80
	AccessColorAttachmentWrite        AccessFlags = 0x100
	AccessDepthStencilAttachmentWrite AccessFlags = 0x400
)

type AttachmentDescription struct {
	Format         Format
	LoadOp         AttachmentLoadOp
	StoreOp        AttachmentStoreOp
	StencilLoadOp  AttachmentLoadOp
	StencilStoreOp AttachmentStoreOp
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
}

type AttachmentReference struct {
	Attachment int
	Layout     ImageLayout
}

type SubpassDescription struct {
	ColorAttachments       []AttachmentReference
	DepthStencilAttachment *AttachmentReference
}

// SubpassExternal refers to commands outside the render pass.
const SubpassExternal = -1

type SubpassDependency struct {
	SrcSubpass    int
	DstSubpass    int
	SrcStageMask  PipelineStageFlags
	DstStageMask  PipelineStageFlags
	SrcAccessMask AccessFlags
	DstAccessMask AccessFlags
}

type RenderPassCreateInfo struct {
	Attachments         []AttachmentDescription
	Subpasses           []SubpassDescription
	SubpassDependencies []SubpassDependency
}

type FramebufferCreateInfo struct {
	RenderPass  RenderPassHandle
	Attachments []ImageView
	Width       uint32
	Height      uint32
}

type Rect2D struct {
	X, Y          int32
	Width, Height uint32
}

type RenderPassBeginInfo struct {
	RenderPass   RenderPassHandle
	Framebuffer  Framebuffer
	RenderArea   Rect2D
	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32
}

type ImageTiling int32

const (
	ImageTilingOptimal ImageTiling = iota
	ImageTilingLinear
)

type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc            ImageUsageFlags = 0x1
	ImageUsageTransferDst            ImageUsageFlags = 0x2
	ImageUsageSampled                ImageUsageFlags = 0x4
	ImageUsageColorAttachment        ImageUsageFlags = 0x10
	ImageUsageDepthStencilAttachment ImageUsageFlags = 0x20
)

type ImageAspectFlags uint32

const (
	ImageAspectColor ImageAspectFlags = 1 << iota
	ImageAspectDepth
	ImageAspectStencil
)

type ImageCreateInfo struct {
	Width  uint32
	Height uint32
	Format Format
	Tiling ImageTiling
	Usage  ImageUsageFlags
}

type ImageViewCreateInfo struct {
	Image  Image
	Format Format
	Aspect ImageAspectFlags
}

type SharingMode int32

const (
	SharingModeExclusive SharingMode = iota
	SharingModeConcurrent
)

type CompositeAlphaFlags uint32

const CompositeAlphaOpaque CompositeAlphaFlags = 1

type SwapchainCreateInfo struct {
	Surface            Surface
	MinImageCount      uint32
	ImageFormat        Format
	ImageColorSpace    ColorSpace
	ImageExtent        Extent2D
	ImageArrayLayers   uint32
	ImageUsage         ImageUsageFlags
	ImageSharingMode   SharingMode
	QueueFamilyIndices []int
	PreTransform       SurfaceTransformFlags
	CompositeAlpha     CompositeAlphaFlags
	PresentMode        PresentMode
	Clipped            bool
	OldSwapchain       SwapchainHandle
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitDstStageMask []PipelineStageFlags
	CommandBuffers   []CommandBufferHandle
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchains     []SwapchainHandle
	ImageIndices   []int
}

// GlobalDriver is the loader entry point: instance-independent queries and
// instance creation.
type GlobalDriver interface {
	AvailableExtensions() ([]string, Result)
	AvailableLayers() ([]string, Result)
	CreateInstance(info InstanceCreateInfo) (InstanceDriver, Result)
}

// InstanceDriver exposes the calls made against a live instance, including
// the surface and debug-utils extensions.
type InstanceDriver interface {
	EnumeratePhysicalDevices() ([]PhysicalDevice, Result)
	GetPhysicalDeviceProperties(device PhysicalDevice) (PhysicalDeviceProperties, Result)
	GetPhysicalDeviceFeatures(device PhysicalDevice) PhysicalDeviceFeatures
	GetPhysicalDeviceMemoryProperties(device PhysicalDevice) MemoryProperties
	GetPhysicalDeviceQueueFamilyProperties(device PhysicalDevice) []QueueFamilyProperties
	GetPhysicalDeviceFormatProperties(device PhysicalDevice, format Format) FormatProperties
	EnumerateDeviceExtensionProperties(device PhysicalDevice) ([]string, Result)

	GetPhysicalDeviceSurfaceSupport(surface Surface, device PhysicalDevice, queueFamilyIndex int) (bool, Result)
	GetPhysicalDeviceSurfaceCapabilities(surface Surface, device PhysicalDevice) (SurfaceCapabilities, Result)
	GetPhysicalDeviceSurfaceFormats(surface Surface, device PhysicalDevice) ([]SurfaceFormat, Result)
	GetPhysicalDeviceSurfacePresentModes(surface Surface, device PhysicalDevice) ([]PresentMode, Result)
	DestroySurface(surface Surface)

	CreateDebugMessenger(info DebugMessengerCreateInfo) (DebugMessenger, Result)
	DestroyDebugMessenger(messenger DebugMessenger)

	CreateDevice(device PhysicalDevice, info DeviceCreateInfo) (DeviceDriver, Result)
	DestroyInstance()
}

// DeviceDriver exposes the calls made against a logical device, including
// the swapchain extension.
type DeviceDriver interface {
	GetQueue(queueFamilyIndex, queueIndex int) Queue
	DeviceWaitIdle() Result
	QueueWaitIdle(queue Queue) Result
	QueueSubmit(queue Queue, fence FenceHandle, submits ...SubmitInfo) Result

	CreateCommandPool(info CommandPoolCreateInfo) (CommandPool, Result)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffers(info CommandBufferAllocateInfo) ([]CommandBufferHandle, Result)
	FreeCommandBuffers(pool CommandPool, buffers ...CommandBufferHandle)
	BeginCommandBuffer(buffer CommandBufferHandle, flags CommandBufferUsageFlags) Result
	EndCommandBuffer(buffer CommandBufferHandle) Result
	ResetCommandBuffer(buffer CommandBufferHandle) Result
	CmdBeginRenderPass(buffer CommandBufferHandle, info RenderPassBeginInfo)
	CmdEndRenderPass(buffer CommandBufferHandle)

	CreateRenderPass(info RenderPassCreateInfo) (RenderPassHandle, Result)
	DestroyRenderPass(renderPass RenderPassHandle)
	CreateFramebuffer(info FramebufferCreateInfo) (Framebuffer, Result)
	DestroyFramebuffer(framebuffer Framebuffer)

	CreateImage(info ImageCreateInfo) (Image, Result)
	DestroyImage(image Image)
	GetImageMemoryRequirements(image Image) MemoryRequirements
	AllocateMemory(size uint64, memoryTypeIndex int) (DeviceMemory, Result)
	FreeMemory(memory DeviceMemory)
	BindImageMemory(image Image, memory DeviceMemory) Result
	CreateImageView(info ImageViewCreateInfo) (ImageView, Result)
	DestroyImageView(view ImageView)

	CreateSemaphore() (Semaphore, Result)
	DestroySemaphore(semaphore Semaphore)
	CreateFence(signaled bool) (FenceHandle, Result)
	DestroyFence(fence FenceHandle)
	WaitForFences(timeout uint64, fences ...FenceHandle) Result
	ResetFences(fences ...FenceHandle) Result

	CreateSwapchain(info SwapchainCreateInfo) (SwapchainHandle, Result)
	DestroySwapchain(swapchain SwapchainHandle)
	GetSwapchainImages(swapchain SwapchainHandle) ([]Image, Result)
	AcquireNextImage(swapchain SwapchainHandle, timeout uint64, semaphore Semaphore, fence FenceHandle) (int, Result)
	QueuePresent(queue Queue, info PresentInfo) Result

	DestroyDevice()
}

// Window is the windowing collaborator the renderer binds to.
type Window interface {
	RequiredInstanceExtensions() []string
	FramebufferSize() (width, height uint32)
	CreateSurface(instance InstanceDriver) (Surface, error)
}
