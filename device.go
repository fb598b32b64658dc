package vkframe

import (
	"fmt"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type Device struct {
	PhysicalDevice *PhysicalDevice
	VKDevice       vk.Device
}

func (d *Device) Destroy() {
	vk.DestroyDevice(d.VKDevice, nil)
}

func (d *Device) String() string {
	return fmt.Sprintf("{ PhysicalDevice: %s }", d.PhysicalDevice)
}

// WaitIdle blocks until every queue of the device is idle.
func (d *Device) WaitIdle() error {
	return vkError(vk.DeviceWaitIdle(d.VKDevice), "device wait idle")
}

func (d *Device) GetQueue(familyIndex int) *Queue {
	var vkq vk.Queue
	vk.GetDeviceQueue(d.VKDevice, uint32(familyIndex), 0, &vkq)
	return &Queue{Device: d, FamilyIndex: familyIndex, VKQueue: vkq}
}

// Allocate allocates sizeInBytes from the best memory type matching
// memoryTypeBits and memoryProperties.
func (d *Device) Allocate(sizeInBytes uint64, memoryTypeBits uint32, memoryProperties vk.MemoryPropertyFlags) (*DeviceMemory, error) {
	typeIndex, err := d.PhysicalDevice.FindMemoryType(memoryTypeBits, memoryProperties)
	if err != nil {
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(sizeInBytes),
		MemoryTypeIndex: typeIndex,
	}

	var deviceMemory vk.DeviceMemory
	if err := vkError(vk.AllocateMemory(d.VKDevice, &allocateInfo, nil, &deviceMemory), "allocate memory"); err != nil {
		return nil, err
	}
	Logger().Debug("memory allocated", "size", sizeInBytes, "type", typeIndex)

	return &DeviceMemory{Device: d, VKDeviceMemory: deviceMemory, Size: sizeInBytes}, nil
}

// UpdateDescriptorSets flushes descriptor writes to the driver.
func (d *Device) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	if len(writes) == 0 {
		return
	}
	vk.UpdateDescriptorSets(d.VKDevice, uint32(len(writes)), writes, 0, nil)
}

// DeviceContext bundles everything the renderer needs from bootstrap. It is
// created once and destroyed after every object built from it.
type DeviceContext struct {
	Instance       *Instance
	Surface        vk.Surface
	PhysicalDevice *PhysicalDevice
	Device         *Device
	GraphicsQueue  *Queue
	PresentQueue   *Queue
	QueueFamilies  QueueFamilyIndices

	cleanup *Cleanup
}

// NewDeviceContext creates the instance, the window surface and a logical
// device on the best adapter that can present to it.
func NewDeviceContext(app *App, window Window) (*DeviceContext, error) {
	for _, ext := range window.RequiredInstanceExtensions() {
		app.EnableExtension(ext)
	}

	cleanup := NewCleanup()
	ctx := &DeviceContext{cleanup: cleanup}

	instance, err := app.CreateInstance()
	if err != nil {
		return nil, err
	}
	ctx.Instance = instance
	cleanup.Push(instance.Destroy)

	surface, err := window.CreateSurface(instance.VKInstance)
	if err != nil {
		cleanup.Release()
		return nil, errors.Wrap(err, "create surface")
	}
	ctx.Surface = surface
	cleanup.Push(func() { vk.DestroySurface(instance.VKInstance, surface, nil) })

	devices, err := instance.PhysicalDevices()
	if err != nil {
		cleanup.Release()
		return nil, err
	}
	pd, families, err := SelectPhysicalDevice(devices, surface)
	if err != nil {
		cleanup.Release()
		return nil, err
	}
	ctx.PhysicalDevice = pd
	ctx.QueueFamilies = families

	device, err := pd.CreateLogicalDeviceWithOptions(families.Unique(), &CreateDeviceOptions{
		EnabledExtensions: []string{swapchainExtension},
		EnabledLayers:     app.EnabledLayers,
	})
	if err != nil {
		cleanup.Release()
		return nil, err
	}
	ctx.Device = device
	cleanup.Push(device.Destroy)

	ctx.GraphicsQueue = device.GetQueue(families.Graphics)
	ctx.PresentQueue = device.GetQueue(families.Present)
	return ctx, nil
}

// Destroy releases the device, the surface and the instance in that order.
func (c *DeviceContext) Destroy() {
	c.cleanup.Release()
}
