package vulkan

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/logger"
	"github.com/vkngwrapper/renderer/internal/memory"
)

// callLog records driver calls in order across the fake tiers.
type callLog struct {
	calls []string
}

func (l *callLog) add(call string) {
	l.calls = append(l.calls, call)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (l *callLog) index(call string) int {
	for i, c := range l.calls {
		if c == call {
			return i
		}
	}
	return -1
}

type fakeGlobal struct {
	log *callLog

	extensions       []string
	extensionsResult Result
	layers           []string
	layersResult     Result
	createResult     Result

	instance *fakeInstance
	lastInfo InstanceCreateInfo
}

func (g *fakeGlobal) AvailableExtensions() ([]string, Result) {
	g.log.add("AvailableExtensions")
	return g.extensions, g.extensionsResult
}

func (g *fakeGlobal) AvailableLayers() ([]string, Result) {
	g.log.add("AvailableLayers")
	return g.layers, g.layersResult
}

func (g *fakeGlobal) CreateInstance(info InstanceCreateInfo) (InstanceDriver, Result) {
	g.log.add("CreateInstance")
	g.lastInfo = info
	if g.createResult != Success {
		return nil, g.createResult
	}
	return g.instance, Success
}

type fakePhysicalDevice struct {
	properties       PhysicalDeviceProperties
	propertiesResult Result
	features         PhysicalDeviceFeatures
	memory           MemoryProperties
	families         []QueueFamilyProperties

	presentSupport map[int]bool
	presentResult  map[int]Result

	capabilities       SurfaceCapabilities
	capabilitiesResult Result
	formats            []SurfaceFormat
	formatsResult      Result
	presentModes       []PresentMode
	presentModesResult Result
	extensions         []string
	extensionsResult   Result
	formatProperties   map[Format]FormatProperties
}

// newFakePhysicalDevice returns a device that passes every requirement: one
// general family with present support and one dedicated transfer family.
func newFakePhysicalDevice(name string) *fakePhysicalDevice {
	return &fakePhysicalDevice{
		properties: PhysicalDeviceProperties{
			DeviceName:    name,
			DeviceType:    DeviceTypeIntegratedGPU,
			DriverVersion: MakeVersion(1, 2, 3),
			APIVersion:    Vulkan1_2,
		},
		features: PhysicalDeviceFeatures{SamplerAnisotropy: true},
		memory: MemoryProperties{
			MemoryTypes: []MemoryType{
				{PropertyFlags: MemoryPropertyHostVisible | MemoryPropertyHostCoherent, HeapIndex: 1},
				{PropertyFlags: MemoryPropertyDeviceLocal, HeapIndex: 0},
			},
			MemoryHeaps: []MemoryHeap{
				{Size: 4 << 30, Flags: MemoryHeapDeviceLocal},
				{Size: 8 << 30},
			},
		},
		families: []QueueFamilyProperties{
			{Flags: QueueGraphics | QueueCompute | QueueTransfer, QueueCount: 16},
			{Flags: QueueTransfer, QueueCount: 2},
		},
		presentSupport: map[int]bool{0: true},
		capabilities: SurfaceCapabilities{
			MinImageCount:    2,
			MaxImageCount:    8,
			CurrentExtent:    Extent2D{Width: UndefinedExtent, Height: UndefinedExtent},
			MinImageExtent:   Extent2D{Width: 1, Height: 1},
			MaxImageExtent:   Extent2D{Width: 4096, Height: 4096},
			CurrentTransform: SurfaceTransformIdentity,
		},
		formats: []SurfaceFormat{
			{Format: FormatB8G8R8A8Unorm, ColorSpace: ColorSpaceSRGBNonlinear},
			{Format: FormatB8G8R8A8SRGB, ColorSpace: ColorSpaceSRGBNonlinear},
		},
		presentModes: []PresentMode{PresentModeFIFO, PresentModeMailbox},
		extensions:   []string{khrSwapchainExtensionName},
		formatProperties: map[Format]FormatProperties{
			FormatD32SFloat: {OptimalTilingFeatures: FormatFeatureDepthStencilAttachment},
		},
	}
}

type fakeInstance struct {
	log *callLog

	order           []PhysicalDevice
	devices         map[PhysicalDevice]*fakePhysicalDevice
	enumerateResult Result

	messengerResult Result
	messengerInfo   DebugMessengerCreateInfo

	device             *fakeDevice
	createDeviceResult Result
	lastDeviceInfo     DeviceCreateInfo
	createdOn          PhysicalDevice
}

func newFakeInstance(log *callLog, physical ...*fakePhysicalDevice) *fakeInstance {
	i := &fakeInstance{
		log:     log,
		devices: map[PhysicalDevice]*fakePhysicalDevice{},
		device:  newFakeDevice(log),
	}
	for n, p := range physical {
		handle := PhysicalDevice(0x100 + n)
		i.order = append(i.order, handle)
		i.devices[handle] = p
	}
	return i
}

func (i *fakeInstance) EnumeratePhysicalDevices() ([]PhysicalDevice, Result) {
	i.log.add("EnumeratePhysicalDevices")
	return i.order, i.enumerateResult
}

func (i *fakeInstance) GetPhysicalDeviceProperties(device PhysicalDevice) (PhysicalDeviceProperties, Result) {
	p := i.devices[device]
	return p.properties, p.propertiesResult
}

func (i *fakeInstance) GetPhysicalDeviceFeatures(device PhysicalDevice) PhysicalDeviceFeatures {
	return i.devices[device].features
}

func (i *fakeInstance) GetPhysicalDeviceMemoryProperties(device PhysicalDevice) MemoryProperties {
	return i.devices[device].memory
}

func (i *fakeInstance) GetPhysicalDeviceQueueFamilyProperties(device PhysicalDevice) []QueueFamilyProperties {
	return i.devices[device].families
}

func (i *fakeInstance) GetPhysicalDeviceFormatProperties(device PhysicalDevice, format Format) FormatProperties {
	return i.devices[device].formatProperties[format]
}

func (i *fakeInstance) EnumerateDeviceExtensionProperties(device PhysicalDevice) ([]string, Result) {
	p := i.devices[device]
	return p.extensions, p.extensionsResult
}

func (i *fakeInstance) GetPhysicalDeviceSurfaceSupport(_ Surface, device PhysicalDevice, queueFamilyIndex int) (bool, Result) {
	p := i.devices[device]
	if res, ok := p.presentResult[queueFamilyIndex]; ok && res != Success {
		return false, res
	}
	return p.presentSupport[queueFamilyIndex], Success
}

func (i *fakeInstance) GetPhysicalDeviceSurfaceCapabilities(_ Surface, device PhysicalDevice) (SurfaceCapabilities, Result) {
	p := i.devices[device]
	return p.capabilities, p.capabilitiesResult
}

func (i *fakeInstance) GetPhysicalDeviceSurfaceFormats(_ Surface, device PhysicalDevice) ([]SurfaceFormat, Result) {
	p := i.devices[device]
	return p.formats, p.formatsResult
}

func (i *fakeInstance) GetPhysicalDeviceSurfacePresentModes(_ Surface, device PhysicalDevice) ([]PresentMode, Result) {
	p := i.devices[device]
	return p.presentModes, p.presentModesResult
}

func (i *fakeInstance) DestroySurface(Surface) {
	i.log.add("DestroySurface")
}

func (i *fakeInstance) CreateDebugMessenger(info DebugMessengerCreateInfo) (DebugMessenger, Result) {
	i.log.add("CreateDebugMessenger")
	i.messengerInfo = info
	if i.messengerResult != Success {
		return 0, i.messengerResult
	}
	return DebugMessenger(0x77), Success
}

func (i *fakeInstance) DestroyDebugMessenger(DebugMessenger) {
	i.log.add("DestroyDebugMessenger")
}

func (i *fakeInstance) CreateDevice(device PhysicalDevice, info DeviceCreateInfo) (DeviceDriver, Result) {
	i.log.add("CreateDevice")
	i.lastDeviceInfo = info
	i.createdOn = device
	if i.createDeviceResult != Success {
		return nil, i.createDeviceResult
	}
	return i.device, Success
}

func (i *fakeInstance) DestroyInstance() {
	i.log.add("DestroyInstance")
}

// fakeDevice hands out sequential handles and counts live objects per kind.
type fakeDevice struct {
	log *callLog

	next uintptr
	live map[string]int

	// results overrides the result of the named call.
	results map[string]Result

	// acquireResults is consumed one per AcquireNextImage call.
	acquireResults []Result
	acquireNext    int
	imageCount     int

	lastSwapchainInfo SwapchainCreateInfo
	lastRenderPass    RenderPassCreateInfo
	beginFlags        []CommandBufferUsageFlags
	renderPassBegins  []RenderPassBeginInfo
	submits           []SubmitInfo
	presents          []PresentInfo
	fences            map[FenceHandle]bool
	queues            map[Queue]int
}

func newFakeDevice(log *callLog) *fakeDevice {
	return &fakeDevice{
		log:     log,
		live:    map[string]int{},
		results: map[string]Result{},
		fences:  map[FenceHandle]bool{},
		queues:  map[Queue]int{},
	}
}

func (d *fakeDevice) create(kind string) uintptr {
	d.log.add("Create" + kind)
	d.next++
	d.live[kind]++
	return 0x1000 + d.next
}

func (d *fakeDevice) destroy(kind string) {
	d.log.add("Destroy" + kind)
	d.live[kind]--
}

func (d *fakeDevice) liveObjects() int {
	total := 0
	for _, n := range d.live {
		total += n
	}
	return total
}

func (d *fakeDevice) GetQueue(queueFamilyIndex, _ int) Queue {
	q := Queue(0x10 + queueFamilyIndex)
	d.queues[q] = queueFamilyIndex
	return q
}

func (d *fakeDevice) DeviceWaitIdle() Result {
	d.log.add("DeviceWaitIdle")
	return d.results["DeviceWaitIdle"]
}

func (d *fakeDevice) QueueWaitIdle(Queue) Result {
	d.log.add("QueueWaitIdle")
	return d.results["QueueWaitIdle"]
}

func (d *fakeDevice) QueueSubmit(_ Queue, fence FenceHandle, submits ...SubmitInfo) Result {
	d.log.add("QueueSubmit")
	if res := d.results["QueueSubmit"]; res != Success {
		return res
	}
	d.submits = append(d.submits, submits...)
	if fence != 0 {
		// Work completes instantly.
		d.fences[fence] = true
	}
	return Success
}

func (d *fakeDevice) CreateCommandPool(CommandPoolCreateInfo) (CommandPool, Result) {
	if res := d.results["CreateCommandPool"]; res != Success {
		return 0, res
	}
	return CommandPool(d.create("CommandPool")), Success
}

func (d *fakeDevice) DestroyCommandPool(CommandPool) { d.destroy("CommandPool") }

func (d *fakeDevice) AllocateCommandBuffers(info CommandBufferAllocateInfo) ([]CommandBufferHandle, Result) {
	if res := d.results["AllocateCommandBuffers"]; res != Success {
		return nil, res
	}
	handles := make([]CommandBufferHandle, info.Count)
	for i := range handles {
		handles[i] = CommandBufferHandle(d.create("CommandBuffer"))
	}
	return handles, Success
}

func (d *fakeDevice) FreeCommandBuffers(_ CommandPool, buffers ...CommandBufferHandle) {
	for range buffers {
		d.destroy("CommandBuffer")
	}
}

func (d *fakeDevice) BeginCommandBuffer(_ CommandBufferHandle, flags CommandBufferUsageFlags) Result {
	d.beginFlags = append(d.beginFlags, flags)
	return d.results["BeginCommandBuffer"]
}

func (d *fakeDevice) EndCommandBuffer(CommandBufferHandle) Result {
	d.log.add("EndCommandBuffer")
	return d.results["EndCommandBuffer"]
}

func (d *fakeDevice) ResetCommandBuffer(CommandBufferHandle) Result {
	d.log.add("ResetCommandBuffer")
	return d.results["ResetCommandBuffer"]
}

func (d *fakeDevice) CmdBeginRenderPass(_ CommandBufferHandle, info RenderPassBeginInfo) {
	d.renderPassBegins = append(d.renderPassBegins, info)
}

func (d *fakeDevice) CmdEndRenderPass(CommandBufferHandle) {
	d.log.add("CmdEndRenderPass")
}

func (d *fakeDevice) CreateRenderPass(info RenderPassCreateInfo) (RenderPassHandle, Result) {
	d.lastRenderPass = info
	if res := d.results["CreateRenderPass"]; res != Success {
		return 0, res
	}
	return RenderPassHandle(d.create("RenderPass")), Success
}

func (d *fakeDevice) DestroyRenderPass(RenderPassHandle) { d.destroy("RenderPass") }

func (d *fakeDevice) CreateFramebuffer(FramebufferCreateInfo) (Framebuffer, Result) {
	if res := d.results["CreateFramebuffer"]; res != Success {
		return 0, res
	}
	return Framebuffer(d.create("Framebuffer")), Success
}

func (d *fakeDevice) DestroyFramebuffer(Framebuffer) { d.destroy("Framebuffer") }

func (d *fakeDevice) CreateImage(ImageCreateInfo) (Image, Result) {
	if res := d.results["CreateImage"]; res != Success {
		return 0, res
	}
	return Image(d.create("Image")), Success
}

func (d *fakeDevice) DestroyImage(Image) { d.destroy("Image") }

func (d *fakeDevice) GetImageMemoryRequirements(Image) MemoryRequirements {
	return MemoryRequirements{Size: 1 << 20, MemoryTypeBits: 0b11}
}

func (d *fakeDevice) AllocateMemory(uint64, int) (DeviceMemory, Result) {
	if res := d.results["AllocateMemory"]; res != Success {
		return 0, res
	}
	return DeviceMemory(d.create("Memory")), Success
}

func (d *fakeDevice) FreeMemory(DeviceMemory) { d.destroy("Memory") }

func (d *fakeDevice) BindImageMemory(Image, DeviceMemory) Result {
	return d.results["BindImageMemory"]
}

func (d *fakeDevice) CreateImageView(ImageViewCreateInfo) (ImageView, Result) {
	if res := d.results["CreateImageView"]; res != Success {
		return 0, res
	}
	return ImageView(d.create("ImageView")), Success
}

func (d *fakeDevice) DestroyImageView(ImageView) { d.destroy("ImageView") }

func (d *fakeDevice) CreateSemaphore() (Semaphore, Result) {
	if res := d.results["CreateSemaphore"]; res != Success {
		return 0, res
	}
	return Semaphore(d.create("Semaphore")), Success
}

func (d *fakeDevice) DestroySemaphore(Semaphore) { d.destroy("Semaphore") }

func (d *fakeDevice) CreateFence(signaled bool) (FenceHandle, Result) {
	if res := d.results["CreateFence"]; res != Success {
		return 0, res
	}
	fence := FenceHandle(d.create("Fence"))
	d.fences[fence] = signaled
	return fence, Success
}

func (d *fakeDevice) DestroyFence(fence FenceHandle) {
	delete(d.fences, fence)
	d.destroy("Fence")
}

func (d *fakeDevice) WaitForFences(_ uint64, fences ...FenceHandle) Result {
	d.log.add("WaitForFences")
	return d.results["WaitForFences"]
}

func (d *fakeDevice) ResetFences(fences ...FenceHandle) Result {
	d.log.add("ResetFences")
	for _, fence := range fences {
		d.fences[fence] = false
	}
	return d.results["ResetFences"]
}

func (d *fakeDevice) CreateSwapchain(info SwapchainCreateInfo) (SwapchainHandle, Result) {
	d.lastSwapchainInfo = info
	if res := d.results["CreateSwapchain"]; res != Success {
		return 0, res
	}
	d.imageCount = int(info.MinImageCount)
	d.acquireNext = 0
	return SwapchainHandle(d.create("Swapchain")), Success
}

func (d *fakeDevice) DestroySwapchain(SwapchainHandle) { d.destroy("Swapchain") }

func (d *fakeDevice) GetSwapchainImages(SwapchainHandle) ([]Image, Result) {
	images := make([]Image, d.imageCount)
	for i := range images {
		images[i] = Image(0x9000 + i)
	}
	return images, d.results["GetSwapchainImages"]
}

func (d *fakeDevice) AcquireNextImage(SwapchainHandle, uint64, Semaphore, FenceHandle) (int, Result) {
	d.log.add("AcquireNextImage")
	res := Success
	if len(d.acquireResults) > 0 {
		res = d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
	}
	if res != Success && res != Suboptimal {
		return -1, res
	}
	index := d.acquireNext % d.imageCount
	d.acquireNext++
	return index, res
}

func (d *fakeDevice) QueuePresent(_ Queue, info PresentInfo) Result {
	d.log.add("QueuePresent")
	d.presents = append(d.presents, info)
	return d.results["QueuePresent"]
}

func (d *fakeDevice) DestroyDevice() {
	d.log.add("DestroyDevice")
}

type fakeWindow struct {
	extensions    []string
	width, height uint32
	surfaceErr    error
	surfaceCalls  int
}

func (w *fakeWindow) RequiredInstanceExtensions() []string {
	return w.extensions
}

func (w *fakeWindow) FramebufferSize() (uint32, uint32) {
	return w.width, w.height
}

func (w *fakeWindow) CreateSurface(InstanceDriver) (Surface, error) {
	w.surfaceCalls++
	if w.surfaceErr != nil {
		return 0, w.surfaceErr
	}
	return Surface(0x55), nil
}

// testRig wires a fake driver stack with one fully capable physical device.
type testRig struct {
	calls    *callLog
	global   *fakeGlobal
	instance *fakeInstance
	physical *fakePhysicalDevice
	window   *fakeWindow
	mem      *memory.Tracker
	logs     *bytes.Buffer
	log      *logger.Logger
}

func newTestRig(physical ...*fakePhysicalDevice) *testRig {
	if len(physical) == 0 {
		physical = []*fakePhysicalDevice{newFakePhysicalDevice("Fake GPU")}
	}
	calls := &callLog{}
	instance := newFakeInstance(calls, physical...)
	logs := &bytes.Buffer{}
	log := logger.New(logs, logger.LevelTrace)

	return &testRig{
		calls: calls,
		global: &fakeGlobal{
			log:        calls,
			extensions: []string{khrSurfaceExtensionName, "VK_KHR_xlib_surface", extDebugUtilsExtensionName},
			layers:     []string{khronosValidationLayerName},
			instance:   instance,
		},
		instance: instance,
		physical: physical[0],
		window: &fakeWindow{
			extensions: []string{"VK_KHR_xlib_surface"},
			width:      800,
			height:     600,
		},
		mem:  memory.NewTracker(log),
		logs: logs,
		log:  log,
	}
}

func (r *testRig) device() *fakeDevice {
	return r.instance.device
}

func (r *testRig) config(diagnostics bool) Config {
	cfg := DefaultConfig("testbed")
	cfg.Diagnostics = diagnostics
	return cfg
}

// newDevice builds a Device through the real selection and creation path.
func (r *testRig) newDevice(t *testing.T) *Device {
	t.Helper()
	d, err := CreateDevice(r.instance, Surface(0x55), r.log, r.mem)
	if err != nil {
		t.Fatalf("CreateDevice: %+v", err)
	}
	return d
}

func (r *testRig) initialize(t *testing.T, diagnostics bool) *Context {
	t.Helper()
	c, err := Initialize(r.config(diagnostics), r.window, r.global, r.log, r.mem)
	if err != nil {
		t.Fatalf("Initialize: %+v", errors.WithStack(err))
	}
	return c
}
