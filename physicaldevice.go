package vkframe

import (
	"math/bits"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const swapchainExtension = "VK_KHR_swapchain"

type PhysicalDevice struct {
	DeviceName                 string
	VKPhysicalDevice           vk.PhysicalDevice
	VKPhysicalDeviceProperties vk.PhysicalDeviceProperties
}

func (p *PhysicalDevice) String() string {
	return p.DeviceName
}

// SurfaceSupport is everything the swapchain needs to know about a surface.
type SurfaceSupport struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// QuerySurfaceSupport reads capabilities, formats and present modes for surface.
func (p *PhysicalDevice) QuerySurfaceSupport(surface vk.Surface) (SurfaceSupport, error) {
	var support SurfaceSupport

	res := vk.GetPhysicalDeviceSurfaceCapabilities(p.VKPhysicalDevice, surface, &support.Capabilities)
	if err := vkError(res, "get surface capabilities"); err != nil {
		return support, err
	}
	support.Capabilities.Deref()
	support.Capabilities.CurrentExtent.Deref()
	support.Capabilities.MinImageExtent.Deref()
	support.Capabilities.MaxImageExtent.Deref()

	var count uint32
	if err := vkError(vk.GetPhysicalDeviceSurfaceFormats(p.VKPhysicalDevice, surface, &count, nil), "get surface formats"); err != nil {
		return support, err
	}
	support.Formats = make([]vk.SurfaceFormat, count)
	if err := vkError(vk.GetPhysicalDeviceSurfaceFormats(p.VKPhysicalDevice, surface, &count, support.Formats), "get surface formats"); err != nil {
		return support, err
	}
	for i := range support.Formats {
		support.Formats[i].Deref()
	}

	count = 0
	if err := vkError(vk.GetPhysicalDeviceSurfacePresentModes(p.VKPhysicalDevice, surface, &count, nil), "get present modes"); err != nil {
		return support, err
	}
	support.PresentModes = make([]vk.PresentMode, count)
	if err := vkError(vk.GetPhysicalDeviceSurfacePresentModes(p.VKPhysicalDevice, surface, &count, support.PresentModes), "get present modes"); err != nil {
		return support, err
	}
	return support, nil
}

func (p *PhysicalDevice) QueueFamilies() QueueFamilySlice {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(p.VKPhysicalDevice, &count, nil)
	if count == 0 {
		return nil
	}
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(p.VKPhysicalDevice, &count, props)

	ret := make(QueueFamilySlice, count)
	for i, prop := range props {
		prop.Deref()
		ret[i] = &QueueFamily{Index: i, PhysicalDevice: p, VKQueueFamilyProperties: prop}
	}
	return ret
}

// SupportedExtensions returns the names of the device level extensions.
func (p *PhysicalDevice) SupportedExtensions() ([]string, error) {
	var count uint32
	if err := vkError(vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, nil), "enumerate device extensions"); err != nil {
		return nil, err
	}
	ext := make([]vk.ExtensionProperties, count)
	if err := vkError(vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, ext), "enumerate device extensions"); err != nil {
		return nil, err
	}
	names := make([]string, len(ext))
	for i := range ext {
		ext[i].Deref()
		names[i] = vk.ToString(ext[i].ExtensionName[:])
	}
	return names, nil
}

func (p *PhysicalDevice) supportsExtension(name string) bool {
	exts, err := p.SupportedExtensions()
	if err != nil {
		return false
	}
	for _, e := range exts {
		if e == name {
			return true
		}
	}
	return false
}

type CreateDeviceOptions struct {
	EnabledExtensions []string
	EnabledLayers     []string
}

// CreateLogicalDeviceWithOptions creates a device with one queue per distinct
// family index.
func (p *PhysicalDevice) CreateLogicalDeviceWithOptions(familyIndices []int, options *CreateDeviceOptions) (*Device, error) {
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, 0, len(familyIndices))
	seen := make(map[int]bool)
	for _, idx := range familyIndices {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		queueCreateInfos = append(queueCreateInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(idx),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(p.VKPhysicalDevice, &features)

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueCreateInfos)),
		PQueueCreateInfos:    queueCreateInfos,
		PEnabledFeatures:     []vk.PhysicalDeviceFeatures{features},
	}
	if options != nil {
		if len(options.EnabledExtensions) > 0 {
			deviceCreateInfo.EnabledExtensionCount = uint32(len(options.EnabledExtensions))
			deviceCreateInfo.PpEnabledExtensionNames = safeStrings(options.EnabledExtensions)
		}
		if len(options.EnabledLayers) > 0 {
			deviceCreateInfo.EnabledLayerCount = uint32(len(options.EnabledLayers))
			deviceCreateInfo.PpEnabledLayerNames = safeStrings(options.EnabledLayers)
		}
	}

	var ldevice vk.Device
	if err := vkError(vk.CreateDevice(p.VKPhysicalDevice, &deviceCreateInfo, nil, &ldevice), "create device"); err != nil {
		return nil, err
	}
	return &Device{PhysicalDevice: p, VKDevice: ldevice}, nil
}

type MemoryTypeSlice []vk.MemoryType

// MemoryTypes returns the dereferenced memory types of the device.
func (p *PhysicalDevice) MemoryTypes() MemoryTypeSlice {
	var mp vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(p.VKPhysicalDevice, &mp)
	mp.Deref()

	ret := make(MemoryTypeSlice, 0, mp.MemoryTypeCount)
	for i := uint32(0); i < mp.MemoryTypeCount; i++ {
		mt := mp.MemoryTypes[i]
		mt.Deref()
		ret = append(ret, mt)
	}
	return ret
}

// Find returns the index of the memory type allowed by typeBits that has all
// the required properties. Candidates are scored by how many extra property
// bits they carry; the lowest score wins and ties keep the lowest index, so
// a plain HOST_VISIBLE|HOST_COHERENT type is preferred over a cached one.
func (m MemoryTypeSlice) Find(typeBits uint32, required vk.MemoryPropertyFlags) (uint32, error) {
	best, bestScore := -1, 0
	for i, mt := range m {
		if i >= 32 || typeBits&(1<<uint(i)) == 0 {
			continue
		}
		if mt.PropertyFlags&required != required {
			continue
		}
		score := bits.OnesCount32(uint32(mt.PropertyFlags &^ required))
		if best < 0 || score < bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return 0, errors.Wrapf(ErrNoMemoryType, "type bits %#x, properties %#x", typeBits, uint32(required))
	}
	return uint32(best), nil
}

func (p *PhysicalDevice) FindMemoryType(typeBits uint32, required vk.MemoryPropertyFlags) (uint32, error) {
	return p.MemoryTypes().Find(typeBits, required)
}

var depthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// FindDepthFormat returns the first candidate usable as an optimally tiled
// depth attachment.
func (p *PhysicalDevice) FindDepthFormat() (vk.Format, error) {
	for _, f := range depthFormatCandidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(p.VKPhysicalDevice, f, &props)
		props.Deref()
		if props.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0 {
			return f, nil
		}
	}
	return vk.FormatUndefined, errors.Wrap(ErrNoSuitableDevice, "no depth attachment format")
}

// Limits returns the device limits read at enumeration time.
func (p *PhysicalDevice) Limits() vk.PhysicalDeviceLimits {
	return p.VKPhysicalDeviceProperties.Limits
}

// rateDeviceType scores adapters so a discrete GPU wins over everything else.
func rateDeviceType(t vk.PhysicalDeviceType) int {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 100
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 10
	case vk.PhysicalDeviceTypeCpu:
		return 1
	}
	return 0
}

// deviceCandidate is a suitable adapter with the queue families it would use.
type deviceCandidate struct {
	device   *PhysicalDevice
	families QueueFamilyIndices
	score    int
}

// pickBestCandidate returns the highest scoring candidate, first wins ties.
func pickBestCandidate(candidates []deviceCandidate) (deviceCandidate, error) {
	if len(candidates) == 0 {
		return deviceCandidate{}, ErrNoSuitableDevice
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score {
			best = c
		}
	}
	return best, nil
}

// SelectPhysicalDevice picks the best adapter able to render to surface: it
// needs graphics and present queues, the swapchain extension and at least
// one surface format and present mode.
func SelectPhysicalDevice(devices []*PhysicalDevice, surface vk.Surface) (*PhysicalDevice, QueueFamilyIndices, error) {
	candidates := make([]deviceCandidate, 0, len(devices))
	for _, d := range devices {
		families, err := selectQueueFamilies(d.QueueFamilies().Infos(surface))
		if err != nil {
			Logger().Debug("adapter rejected", "device", d.DeviceName, "reason", err)
			continue
		}
		if !d.supportsExtension(swapchainExtension) {
			Logger().Debug("adapter rejected", "device", d.DeviceName, "reason", "no swapchain extension")
			continue
		}
		support, err := d.QuerySurfaceSupport(surface)
		if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			Logger().Debug("adapter rejected", "device", d.DeviceName, "reason", "inadequate surface support")
			continue
		}
		candidates = append(candidates, deviceCandidate{
			device:   d,
			families: families,
			score:    rateDeviceType(d.VKPhysicalDeviceProperties.DeviceType),
		})
	}
	best, err := pickBestCandidate(candidates)
	if err != nil {
		return nil, QueueFamilyIndices{}, err
	}
	Logger().Info("adapter selected", "device", best.device.DeviceName, "graphics_family", best.families.Graphics, "present_family", best.families.Present)
	return best.device, best.families, nil
}
