package vkframe

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Version is used to specify versions of components
type Version struct {
	Major int
	Minor int
	Patch int
}

// VKVersion returns a Vulkan compatible version representation
func (v *Version) VKVersion() uint32 {
	return vk.MakeVersion(v.Major, v.Minor, v.Patch)
}

// App is used to provide information about this specific application to Vulkan
type App struct {
	Name       string
	EngineName string
	Version    Version
	// APIVersion the expected minimum version of the Vulkan API (i.e. 1.0.0)
	APIVersion Version

	EnabledLayers     []string
	EnabledExtensions []string

	debug bool
}

// SupportedLayers returns the instance layers known to the loader.
func SupportedLayers() ([]string, error) {
	var count uint32
	if err := vkError(vk.EnumerateInstanceLayerProperties(&count, nil), "enumerate instance layers"); err != nil {
		return nil, err
	}
	layers := make([]vk.LayerProperties, count)
	if err := vkError(vk.EnumerateInstanceLayerProperties(&count, layers), "enumerate instance layers"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range layers {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// EnableDebugging turns on the Khronos validation layer and the debug report
// extension. It returns an error when the layer is not installed.
func (a *App) EnableDebugging() error {
	if err := a.EnableLayer(validationLayer); err != nil {
		return err
	}
	a.EnableExtension("VK_EXT_debug_report")
	a.debug = true
	return nil
}

// EnableLayer enables a layer if the loader supports it.
func (a *App) EnableLayer(layer string) error {
	layers, err := SupportedLayers()
	if err != nil {
		return errors.Wrap(err, "query supported layers")
	}
	for _, l := range layers {
		if l == layer {
			a.EnabledLayers = append(a.EnabledLayers, layer)
			return nil
		}
	}
	return errors.Errorf("layer %q not found", layer)
}

// EnableExtension enables an instance extension.
func (a *App) EnableExtension(extension string) *App {
	for _, e := range a.EnabledExtensions {
		if e == extension {
			return a
		}
	}
	a.EnabledExtensions = append(a.EnabledExtensions, extension)
	return a
}

// VKApplicationInfo creates a structure representing this application in a Vulkan friendly format
func (a *App) VKApplicationInfo() vk.ApplicationInfo {
	if a.APIVersion.Major < 1 {
		a.APIVersion.Major = 1
	}
	return vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         a.APIVersion.VKVersion(),
		ApplicationVersion: a.Version.VKVersion(),
		PApplicationName:   safeString(a.Name),
		PEngineName:        safeString(a.EngineName),
	}
}

// CreateInstance creates the Vulkan instance. When debugging is enabled the
// validation output is routed to Logger().
func (a *App) CreateInstance() (*Instance, error) {
	appInfo := a.VKApplicationInfo()

	extensions := safeStrings(a.EnabledExtensions)
	layers := safeStrings(a.EnabledLayers)

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	instance := &Instance{}
	if err := vkError(vk.CreateInstance(&createInfo, nil, &instance.VKInstance), "create instance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(instance.VKInstance); err != nil {
		vk.DestroyInstance(instance.VKInstance, nil)
		return nil, errors.Wrap(err, "init instance")
	}

	if a.debug {
		if err := instance.SetDebugCallback(DefaultDebugCallback); err != nil {
			Logger().Warn("debug report callback unavailable", "error", err)
		}
	}
	return instance, nil
}

// Instance is an instance of the Vulkan subsystem
type Instance struct {
	VKInstance vk.Instance

	debugCallback vk.DebugReportCallback
	hasCallback   bool
}

// PhysicalDevices returns the physical devices known to Vulkan.
func (i *Instance) PhysicalDevices() ([]*PhysicalDevice, error) {
	var count uint32
	if err := vkError(vk.EnumeratePhysicalDevices(i.VKInstance, &count, nil), "enumerate physical devices"); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := vkError(vk.EnumeratePhysicalDevices(i.VKInstance, &count, devices), "enumerate physical devices"); err != nil {
		return nil, err
	}

	ret := make([]*PhysicalDevice, count)
	for n, device := range devices {
		pd := &PhysicalDevice{VKPhysicalDevice: device}
		vk.GetPhysicalDeviceProperties(device, &pd.VKPhysicalDeviceProperties)
		pd.VKPhysicalDeviceProperties.Deref()
		pd.VKPhysicalDeviceProperties.Limits.Deref()
		pd.DeviceName = vk.ToString(pd.VKPhysicalDeviceProperties.DeviceName[:])
		ret[n] = pd
	}
	return ret, nil
}

// SetDebugCallback installs a debug report callback for errors and warnings.
func (i *Instance) SetDebugCallback(callback vk.DebugReportCallbackFunc) error {
	var debugCallback vk.DebugReportCallback
	ret := vk.CreateDebugReportCallback(i.VKInstance, &vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: callback,
	}, nil, &debugCallback)
	if err := vkError(ret, "create debug report callback"); err != nil {
		return err
	}
	i.debugCallback = debugCallback
	i.hasCallback = true
	return nil
}

// DefaultDebugCallback forwards validation messages to Logger().
func DefaultDebugCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	log := Logger()
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		log.Error(pMessage, "layer", pLayerPrefix, "code", messageCode)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		log.Warn(pMessage, "layer", pLayerPrefix, "code", messageCode)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		log.Warn(pMessage, "layer", pLayerPrefix, "code", messageCode, "performance", true)
	default:
		log.Debug(pMessage, "layer", pLayerPrefix, "code", messageCode)
	}
	return vk.Bool32(vk.False)
}

// Destroy tears down the debug callback and the instance.
func (i *Instance) Destroy() {
	if i.hasCallback {
		vk.DestroyDebugReportCallback(i.VKInstance, i.debugCallback, nil)
	}
	vk.DestroyInstance(i.VKInstance, nil)
}
